package elf64

import (
	"bytes"
	"compress/flate"
)

// compressFlate returns data's raw DEFLATE encoding. Raw, not zlib- or
// gzip-wrapped: the Chdr already carries the decompressed size, so a
// container with its own length/checksum framing would be redundant.
func compressFlate(data []byte) []byte {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil
	}
	if _, err := w.Write(data); err != nil {
		return nil
	}
	if err := w.Close(); err != nil {
		return nil
	}
	return buf.Bytes()
}

// decompressFlate reverses compressFlate. originalSize only sizes the
// initial allocation; a mismatch against the actual decoded length is
// not treated as an error.
func decompressFlate(data []byte, originalSize int) []byte {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out := make([]byte, 0, originalSize)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			break
		}
	}
	return out
}
