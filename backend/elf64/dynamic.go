package elf64

import (
	"bytes"
	"encoding/binary"

	"github.com/xyproto/objfile"
)

const (
	ptInterp = 3
	ptPhdr   = 6

	dtNeeded   = 1
	dtPltRelSz = 2
	dtHash     = 4
	dtStrtab   = 5
	dtSymtab   = 6
	dtStrSz    = 10
	dtSymEnt   = 11
	dtPltGot   = 3
	dtJmpRel   = 23
	dtNull     = 0

	rX8664JumpSlot = 7

	interpreter = "/lib64/ld-linux-x86-64.so.2\x00"
)

// writeDynamic lays out a dynamically-linked executable: PHDR, INTERP,
// LOAD(ro), LOAD(rx), LOAD(rw), DYNAMIC — the same six-segment plan the
// teacher's WriteCompleteDynamicELF comment describes — with a PLT/GOT
// pair generated the way plt_got.go generates one, one stub per entry in
// imports.
func writeDynamic(buf *bytes.Buffer, obj *objfile.Object, text, data []byte, bssSize uint64, imports []string) error {
	dynstr := buildDynstr(imports)
	dynsym := buildDynsym(dynstr, imports)
	hashTab := buildHash(imports)

	const numProgHeaders = 6
	headersSize := align(uint64(ehdrSize+phdrSize*numProgHeaders), 16)

	roOff := headersSize
	interpOff := roOff
	roOff = align(roOff+uint64(len(interpreter)), 8)
	dynsymOff := roOff
	roOff = align(roOff+uint64(dynsym.Len()), 8)
	dynstrOff := roOff
	roOff = align(roOff+uint64(dynstr.Len()), 8)
	hashOff := roOff
	roOff = align(roOff+uint64(hashTab.Len()), 8)
	relaOff := roOff
	relaSz := uint64(len(imports)) * relaSize
	roOff = align(roOff+relaSz, pageSize)

	pltOff := roOff
	pltBase := uint64(baseAddr) + pltOff
	dynsymAddr := uint64(baseAddr) + dynsymOff
	dynstrAddr := uint64(baseAddr) + dynstrOff
	hashAddr := uint64(baseAddr) + hashOff
	relaAddr := uint64(baseAddr) + relaOff
	interpAddr := uint64(baseAddr) + interpOff

	pltSize := uint64(16 + 16*len(imports))
	gotOff := align(pltOff+pltSize, 16)
	gotBase := uint64(baseAddr) + gotOff
	gotSize := uint64(8 * (3 + len(imports)))

	textOff := align(gotOff+gotSize, 16)
	textAddr := uint64(baseAddr) + textOff

	rwOff := align(textOff+uint64(len(text)), pageSize)
	dataOff := rwOff
	dataAddr := uint64(baseAddr) + dataOff

	dynOff := align(dataOff+uint64(len(data)), 16)
	dynAddr := uint64(baseAddr) + dynOff

	plt, got := generatePLTGOT(imports, gotBase, pltBase, dynAddr)
	rela := buildRelaPlt(imports, gotBase)
	dyn := buildDynamic(imports, dynstrAddr, uint64(dynstr.Len()), dynsymAddr, hashAddr, relaAddr, relaSz, pltBase, gotOff)

	entry := obj.Entry()
	if entry == 0 {
		entry = textAddr
	}

	fileEnd := align(dynOff+uint64(dyn.Len()), 8)

	hdr := fileHeader{
		Type: etDyn, Machine: emX86_64, Version: evCurrent,
		Entry: entry, Phoff: ehdrSize, Shoff: 0,
		Ehsize: ehdrSize, Phentsize: phdrSize, Phnum: numProgHeaders,
	}
	copy(hdr.Ident[:], []byte{magic0, magic1, magic2, magic3, classELF64, dataLE, evCurrent})

	phdrs := []progHeader{
		{Type: ptPhdr, Flags: 4, Offset: ehdrSize, Vaddr: baseAddr + ehdrSize, Paddr: baseAddr + ehdrSize, Filesz: phdrSize * numProgHeaders, Memsz: phdrSize * numProgHeaders, Align: 8},
		{Type: ptInterp, Flags: 4, Offset: interpOff, Vaddr: interpAddr, Paddr: interpAddr, Filesz: uint64(len(interpreter)), Memsz: uint64(len(interpreter)), Align: 1},
		{Type: ptLoad, Flags: 4, Offset: 0, Vaddr: baseAddr, Paddr: baseAddr, Filesz: relaOff + relaSz, Memsz: relaOff + relaSz, Align: pageSize},
		{Type: ptLoad, Flags: 5, Offset: pltOff, Vaddr: pltBase, Paddr: pltBase, Filesz: textOff + uint64(len(text)) - pltOff, Memsz: textOff + uint64(len(text)) - pltOff, Align: pageSize},
		{Type: ptLoad, Flags: 6, Offset: dataOff, Vaddr: dataAddr, Paddr: dataAddr, Filesz: dynOff + uint64(dyn.Len()) - dataOff, Memsz: dynOff + uint64(dyn.Len()) - dataOff + bssSize, Align: pageSize},
		{Type: ptDynamic, Flags: 6, Offset: dynOff, Vaddr: dynAddr, Paddr: dynAddr, Filesz: uint64(dyn.Len()), Memsz: uint64(dyn.Len()), Align: 8},
	}

	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		return err
	}
	for _, p := range phdrs {
		if err := binary.Write(buf, binary.LittleEndian, p); err != nil {
			return err
		}
	}
	buf.WriteString(interpreter)
	padTo(buf, dynsymOff)
	buf.Write(dynsym.Bytes())
	padTo(buf, dynstrOff)
	buf.Write(dynstr.Bytes())
	padTo(buf, hashOff)
	buf.Write(hashTab.Bytes())
	padTo(buf, relaOff)
	buf.Write(rela.Bytes())
	padTo(buf, pltOff)
	buf.Write(plt.Bytes())
	padTo(buf, gotOff)
	buf.Write(got.Bytes())
	padTo(buf, textOff)
	buf.Write(text)
	padTo(buf, dataOff)
	buf.Write(data)
	padTo(buf, dynOff)
	buf.Write(dyn.Bytes())
	padTo(buf, fileEnd)
	return nil
}

func buildDynstr(imports []string) *bytes.Buffer {
	var b bytes.Buffer
	b.WriteByte(0)
	for _, n := range imports {
		b.WriteString(n)
		b.WriteByte(0)
	}
	return &b
}

func buildDynsym(dynstr *bytes.Buffer, imports []string) *bytes.Buffer {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, symEntry{}) // index 0: null symbol
	off := uint32(1)
	for _, n := range imports {
		se := symEntry{Name: off, Info: (1 << 4) | 2, Shndx: 0} // GLOBAL FUNC, undefined
		binary.Write(&b, binary.LittleEndian, se)
		off += uint32(len(n)) + 1
	}
	return &b
}

// buildHash writes a minimal SysV .hash table: one empty bucket and an
// all-zero chain with one entry per .dynsym symbol, so no symbol is
// reachable through it; it only gives ld.so a well-formed table.
func buildHash(imports []string) *bytes.Buffer {
	var b bytes.Buffer
	nchain := uint32(len(imports) + 1)
	binary.Write(&b, binary.LittleEndian, uint32(1)) // nbucket
	binary.Write(&b, binary.LittleEndian, nchain)
	binary.Write(&b, binary.LittleEndian, uint32(0)) // bucket[0] -> chain head (none)
	for i := uint32(0); i < nchain; i++ {
		binary.Write(&b, binary.LittleEndian, uint32(0))
	}
	return &b
}

func buildRelaPlt(imports []string, gotBase uint64) *bytes.Buffer {
	var b bytes.Buffer
	for i := range imports {
		gotSlot := gotBase + uint64(24+i*8)
		info := (uint64(i+1) << 32) | rX8664JumpSlot
		binary.Write(&b, binary.LittleEndian, relaEntry{Offset: gotSlot, Info: info, Addend: 0})
	}
	return &b
}

func buildDynamic(imports []string, dynstrAddr, dynstrSz, dynsymAddr, hashAddr, relaAddr, relaSz, pltBase uint64, gotOff uint64) *bytes.Buffer {
	var b bytes.Buffer
	write := func(tag int64, val uint64) {
		binary.Write(&b, binary.LittleEndian, int64(tag))
		binary.Write(&b, binary.LittleEndian, val)
	}
	write(dtHash, hashAddr)
	write(dtStrtab, dynstrAddr)
	write(dtSymtab, dynsymAddr)
	write(dtStrSz, dynstrSz)
	write(dtSymEnt, symSize)
	write(dtPltGot, uint64(baseAddr)+gotOff)
	write(dtJmpRel, relaAddr)
	write(dtPltRelSz, relaSz)
	write(dtNull, 0)
	return &b
}

func generatePLTGOT(imports []string, gotBase, pltBase, dynAddr uint64) (plt, got *bytes.Buffer) {
	plt = &bytes.Buffer{}
	got = &bytes.Buffer{}

	// PLT[0]: resolver stub.
	plt.Write([]byte{0xff, 0x35})
	binary.Write(plt, binary.LittleEndian, uint32(gotBase+8-pltBase-6))
	plt.Write([]byte{0xff, 0x25})
	binary.Write(plt, binary.LittleEndian, uint32(gotBase+16-pltBase-12))
	plt.Write([]byte{0x0f, 0x1f, 0x40, 0x00})

	for i := range imports {
		pltOffset := pltBase + uint64(plt.Len())
		gotOffset := gotBase + uint64(24+i*8)
		plt.Write([]byte{0xff, 0x25})
		binary.Write(plt, binary.LittleEndian, int32(gotOffset-pltOffset-6))
		plt.Write([]byte{0x68})
		binary.Write(plt, binary.LittleEndian, uint32(i))
		plt.Write([]byte{0xe9})
		binary.Write(plt, binary.LittleEndian, int32(pltBase-pltOffset-16))
	}

	binary.Write(got, binary.LittleEndian, dynAddr)
	binary.Write(got, binary.LittleEndian, uint64(0))
	binary.Write(got, binary.LittleEndian, uint64(0))
	for i := range imports {
		pltPushAddr := pltBase + 16 + uint64(i*16) + 6
		binary.Write(got, binary.LittleEndian, pltPushAddr)
	}
	return plt, got
}
