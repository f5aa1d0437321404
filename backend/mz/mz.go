// Package mz implements the MZ (DOS executable) backend: detection and a
// minimal reader only. MZ files have no sections, symbols, relocations
// or imports in the sense this model cares about, and the format has no
// writer — registering it exercises the registry's "backend without
// write" path (spec invariant 4).
package mz

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/xyproto/objfile"
)

const (
	magic          = 0x5a4d // "MZ"
	dosHeaderSize  = 64
	lfanewOffset   = 0x3c
)

func name() string        { return "mz" }
func format() objfile.Type { return objfile.TypeMZ }

// Register installs the mz backend into r. It matches the signature of
// objfile.BackendInitFunc so it can be used directly in a fixed-order
// init table.
func Register(r *objfile.Registry) error {
	return r.Register(objfile.Backend{
		Name:   name,
		Format: format,
		Read:   read,
	})
}

func read(filename string) (*objfile.Object, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if len(data) < dosHeaderSize {
		return nil, fmt.Errorf("mz: file too short for a DOS header")
	}
	if binary.LittleEndian.Uint16(data[0:2]) != magic {
		return nil, fmt.Errorf("mz: missing MZ signature")
	}
	lfanew := binary.LittleEndian.Uint32(data[lfanewOffset : lfanewOffset+4])
	stubEnd := int(lfanew)
	if stubEnd <= 0 || stubEnd > len(data) {
		stubEnd = len(data)
	}

	obj := objfile.NewObject()
	obj.SetName(filename)
	obj.SetType(objfile.TypeMZ)
	obj.SetArch(objfile.ArchI386)
	obj.AddSection("stub", uint64(stubEnd), 0, append([]byte(nil), data[:stubEnd]...), 0, 1, 0)
	return obj, nil
}
