// Package elf64 implements the ELF64 backend: detection, a header+
// section+symbol+relocation reader, and a writer that lays out a minimal
// static or dynamically-linked (PLT/GOT) executable the way the teacher's
// WriteCompleteDynamicELF and plt_got.go lay one out. It is a reasonable
// subset of the real format — enough to round-trip through this
// package's own reader — not a certified ELF implementation.
package elf64

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/xyproto/objfile"
)

const (
	magic0, magic1, magic2, magic3 = 0x7f, 'E', 'L', 'F'
	classELF64                     = 2
	dataLE                         = 1
	evCurrent                      = 1

	etExec = 2
	etDyn  = 3

	emX86_64 = 0x3e

	ptLoad    = 1
	ptDynamic = 2

	shtNull    = 0
	shtProgbit = 1
	shtSymtab  = 2
	shtStrtab  = 3
	shtRela    = 4
	shtHash    = 5
	shtDynamic = 6
	shtNobits  = 8
	shtDynsym  = 11

	shfWrite      = 0x1
	shfAlloc      = 0x2
	shfExecinstr  = 0x4
	shfCompressed = 0x800

	// chtRawDeflate tags a Chdr's ch_type as raw (unwrapped) DEFLATE
	// rather than ELFCOMPRESS_ZLIB, staying inside the OS/processor
	// specific tag range so a real readelf doesn't mistake this for a
	// zlib stream (ELFCOMPRESS_ZLIB implies a zlib header and adler32
	// trailer that this package's payload does not have).
	chtRawDeflate = 0x60000001
	chdrSize      = 24

	pageSize  = 0x1000
	baseAddr  = 0x400000
	ehdrSize  = 64
	phdrSize  = 56
	shdrSize  = 64
	symSize   = 24
	relaSize  = 24

	// compressThreshold gates the optional SHF_COMPRESSED encoding noted
	// in SPEC_FULL.md §4.9; sections smaller than this are always stored
	// raw, since the compressor's header overhead would dominate.
	compressThreshold = 256
)

func name() string         { return "elf64" }
func format() objfile.Type { return objfile.TypeELF64 }

// Register installs the elf64 backend into r.
func Register(r *objfile.Registry) error {
	return r.Register(objfile.Backend{
		Name:   name,
		Format: format,
		Read:   read,
		Write:  write,
	})
}

type fileHeader struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type progHeader struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

type sectionHeader struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

type symEntry struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

type relaEntry struct {
	Offset uint64
	Info   uint64
	Addend int64
}

// chdr is Elf64_Chdr, the header prefixing an SHF_COMPRESSED section's
// payload.
type chdr struct {
	ChType      uint32
	ChReserved  uint32
	ChSize      uint64
	ChAddralign uint64
}

func read(filename string) (*objfile.Object, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if len(data) < ehdrSize {
		return nil, fmt.Errorf("elf64: file too short for an ELF header")
	}
	if data[0] != magic0 || data[1] != magic1 || data[2] != magic2 || data[3] != magic3 {
		return nil, fmt.Errorf("elf64: missing ELF magic")
	}
	if data[4] != classELF64 {
		return nil, fmt.Errorf("elf64: not a 64-bit ELF")
	}

	var hdr fileHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("elf64: reading header: %w", err)
	}

	obj := objfile.NewObject()
	obj.SetName(filename)
	obj.SetType(objfile.TypeELF64)
	obj.SetEntry(hdr.Entry)
	if hdr.Machine == emX86_64 {
		obj.SetArch(objfile.ArchX86_64)
	}

	if hdr.Shnum == 0 {
		return obj, nil
	}

	shdrs := make([]sectionHeader, hdr.Shnum)
	r := bytes.NewReader(data[hdr.Shoff:])
	for i := range shdrs {
		if err := binary.Read(r, binary.LittleEndian, &shdrs[i]); err != nil {
			return nil, fmt.Errorf("elf64: reading section header %d: %w", i, err)
		}
	}

	if int(hdr.Shstrndx) >= len(shdrs) {
		return nil, fmt.Errorf("elf64: shstrndx out of range")
	}
	shstrtab := sectionBytes(data, shdrs[hdr.Shstrndx])

	sections := make([]*objfile.Section, len(shdrs))
	var symtabIdx, strtabIdx = -1, -1
	for i, sh := range shdrs {
		secName := cstr(shstrtab, sh.Name)
		var sd []byte
		size := sh.Size
		if sh.Type != shtNobits {
			sd = sectionBytes(data, sh)
			if sh.Flags&shfCompressed != 0 {
				sd, size = decompressSectionData(sd)
			}
		}
		sec := obj.AddSection(secName, size, sh.Addr, sd, uint(sh.Entsize), uint(sh.Addralign), sectionFlagsFromELF(sh.Flags&^shfCompressed))
		sec.Type = sectionTypeFromELF(sh.Type, sh.Flags)
		sections[i] = sec
		if sh.Type == shtSymtab {
			symtabIdx = i
		}
		if secName == ".strtab" {
			strtabIdx = i
		}
	}
	// resolve Strtab weak back-reference where a section's Link names a
	// string table.
	for i, sh := range shdrs {
		if sh.Type == shtSymtab || sh.Type == shtDynsym || sh.Type == shtRela {
			if int(sh.Link) < len(sections) {
				sections[i].Strtab = sections[sh.Link]
			}
		}
	}

	var strtab []byte
	if strtabIdx >= 0 {
		strtab = sectionBytes(data, shdrs[strtabIdx])
	}

	var syms []*objfile.Symbol
	if symtabIdx >= 0 {
		raw := sectionBytes(data, shdrs[symtabIdx])
		count := len(raw) / symSize
		sr := bytes.NewReader(raw)
		for i := 0; i < count; i++ {
			var se symEntry
			if err := binary.Read(sr, binary.LittleEndian, &se); err != nil {
				break
			}
			var sec *objfile.Section
			if int(se.Shndx) > 0 && int(se.Shndx) < len(sections) {
				sec = sections[se.Shndx]
			}
			sym := obj.AddSymbol(cstr(strtab, se.Name), se.Value, symbolTypeFromELF(se.Info), se.Size, symbolFlagsFromELF(se.Info), sec)
			syms = append(syms, sym)
		}
	}

	for i, sh := range shdrs {
		if sh.Type != shtRela {
			continue
		}
		raw := sectionBytes(data, shdrs[i])
		count := len(raw) / relaSize
		rr := bytes.NewReader(raw)
		for j := 0; j < count; j++ {
			var re relaEntry
			if err := binary.Read(rr, binary.LittleEndian, &re); err != nil {
				break
			}
			symIdx := re.Info >> 32
			var sym *objfile.Symbol
			if int(symIdx) < len(syms) {
				sym = syms[symIdx]
			}
			obj.AddRelocation(re.Offset, relocTypeFromELF(uint32(re.Info)), re.Addend, sym)
		}
	}

	return obj, nil
}

func sectionBytes(data []byte, sh sectionHeader) []byte {
	start, end := sh.Offset, sh.Offset+sh.Size
	if start > uint64(len(data)) || end > uint64(len(data)) || start > end {
		return nil
	}
	return append([]byte(nil), data[start:end]...)
}

func cstr(table []byte, off uint32) string {
	if table == nil || int(off) >= len(table) {
		return ""
	}
	end := int(off)
	for end < len(table) && table[end] != 0 {
		end++
	}
	return string(table[off:end])
}

func sectionFlagsFromELF(f uint64) objfile.SectionFlag {
	var out objfile.SectionFlag
	if f&shfWrite != 0 {
		out |= objfile.SectionFlagWrite
	}
	if f&shfAlloc != 0 {
		out |= objfile.SectionFlagAlloc
	}
	if f&shfExecinstr != 0 {
		out |= objfile.SectionFlagExec
	}
	return out
}

// sectionTypeFromELF classifies a section the way readelf effectively
// does: SHT_PROGBITS alone is ambiguous between code, data and
// unallocated auxiliary content (.comment, .debug_*), so flags decide.
func sectionTypeFromELF(t uint32, flags uint64) objfile.SectionType {
	switch t {
	case shtProgbit:
		switch {
		case flags&shfExecinstr != 0:
			return objfile.SectionCode
		case flags&shfAlloc != 0:
			return objfile.SectionData
		default:
			return objfile.SectionNone
		}
	case shtNobits:
		return objfile.SectionBSS
	case shtStrtab:
		return objfile.SectionStrtab
	case shtSymtab, shtDynsym:
		return objfile.SectionSymtab
	case shtRela:
		return objfile.SectionReloc
	default:
		return objfile.SectionNone
	}
}

func symbolTypeFromELF(info uint8) objfile.SymbolType {
	switch info & 0xf {
	case 1:
		return objfile.SymbolObject
	case 2:
		return objfile.SymbolFunction
	case 3:
		return objfile.SymbolSection
	case 4:
		return objfile.SymbolFile
	default:
		return objfile.SymbolNone
	}
}

func symbolFlagsFromELF(info uint8) objfile.SymbolFlag {
	if info>>4 == 0 {
		return objfile.SymbolFlagLocal
	}
	return objfile.SymbolFlagGlobal
}

func relocTypeFromELF(info uint32) objfile.RelocType {
	switch info & 0xffffffff {
	case 1: // R_X86_64_64
		return objfile.RelocOffset
	case 2: // R_X86_64_PC32
		return objfile.RelocPCRelative
	case 7: // R_X86_64_JUMP_SLOT
		return objfile.RelocPLT
	default:
		return objfile.RelocNone
	}
}

// write lays out either a minimal static executable (no import modules)
// or a dynamically-linked one with a PLT/GOT pair built from obj's
// import table, adapted from the teacher's WriteCompleteDynamicELF and
// plt_got.go.
func write(obj *objfile.Object, filename string) error {
	text, data, bss := gatherSections(obj)
	imports := gatherImportNames(obj)

	var buf bytes.Buffer
	var err error
	if len(imports) == 0 {
		err = writeStatic(&buf, obj, text, data, bss)
	} else {
		err = writeDynamic(&buf, obj, text, data, bss, imports)
	}
	if err != nil {
		return err
	}
	if objfile.Verbose {
		fmt.Fprintf(os.Stderr, "elf64: writing %d bytes to %s\n", buf.Len(), filename)
	}
	return os.WriteFile(filename, buf.Bytes(), 0o755)
}

func gatherSections(obj *objfile.Object) (text, data []byte, bssSize uint64) {
	for s := obj.FirstSectionByType(objfile.SectionCode); s != nil; s = obj.NextSectionByType(objfile.SectionCode) {
		text = append(text, s.Data...)
	}
	for s := obj.FirstSectionByType(objfile.SectionData); s != nil; s = obj.NextSectionByType(objfile.SectionData) {
		data = append(data, s.Data...)
	}
	for s := obj.FirstSectionByType(objfile.SectionBSS); s != nil; s = obj.NextSectionByType(objfile.SectionBSS) {
		bssSize += s.Size
	}
	return
}

func gatherImportNames(obj *objfile.Object) []string {
	var names []string
	seen := map[string]bool{}
	for s := obj.FirstImport(); s != nil; s = obj.NextImport() {
		if !seen[s.Name] {
			seen[s.Name] = true
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)
	return names
}

func align(v, to uint64) uint64 {
	return (v + to - 1) &^ (to - 1)
}

// decompressSectionData reverses compressSectionData: raw is the on-disk
// payload of an SHF_COMPRESSED section (a Chdr followed by compressed
// bytes). Returns the decompressed bytes and their original size.
func decompressSectionData(raw []byte) ([]byte, uint64) {
	if len(raw) < chdrSize {
		return raw, uint64(len(raw))
	}
	var ch chdr
	binary.Read(bytes.NewReader(raw[:chdrSize]), binary.LittleEndian, &ch)
	out := decompressFlate(raw[chdrSize:], int(ch.ChSize))
	return out, ch.ChSize
}

// compressSectionData prefixes data's compressed form with a Chdr, for
// sections at least compressThreshold bytes long whose compressed form
// actually comes out smaller. ok reports whether compression was applied;
// callers fall back to raw bytes when it is false.
func compressSectionData(data []byte) (payload []byte, ok bool) {
	if len(data) < compressThreshold {
		return data, false
	}
	comp := compressFlate(data)
	if comp == nil || len(comp) >= len(data) {
		return data, false
	}
	var buf bytes.Buffer
	ch := chdr{ChType: chtRawDeflate, ChSize: uint64(len(data)), ChAddralign: 1}
	binary.Write(&buf, binary.LittleEndian, ch)
	buf.Write(comp)
	return buf.Bytes(), true
}

func writeStatic(buf *bytes.Buffer, obj *objfile.Object, text, data []byte, bssSize uint64) error {
	headersSize := uint64(ehdrSize + phdrSize) // one PT_LOAD
	textOff := align(headersSize, 16)
	textAddr := baseAddr + textOff
	dataOff := align(textOff+uint64(len(text)), 16)
	dataAddr := baseAddr + dataOff

	entry := obj.Entry()
	if entry == 0 {
		entry = textAddr
	}

	loadEnd := dataOff + uint64(len(data))

	aux := gatherAuxSections(obj)
	var shTable, shstrtab bytes.Buffer
	var shoff uint64
	var shnum, shstrndx uint16
	if len(aux) > 0 {
		shoff = buildAuxSectionTable(&shTable, &shstrtab, aux, textOff, textAddr, uint64(len(text)), dataOff, dataAddr, uint64(len(data)), bssSize, loadEnd)
		shnum = uint16(shTable.Len() / shdrSize)
		shstrndx = shnum - 1
	}

	hdr := fileHeader{
		Type: etExec, Machine: emX86_64, Version: evCurrent,
		Entry: entry, Phoff: ehdrSize, Shoff: shoff,
		Ehsize: ehdrSize, Phentsize: phdrSize, Phnum: 1,
		Shentsize: shdrSize, Shnum: shnum, Shstrndx: shstrndx,
	}
	copy(hdr.Ident[:], []byte{magic0, magic1, magic2, magic3, classELF64, dataLE, evCurrent})

	ph := progHeader{
		Type: ptLoad, Flags: 5, // R+X
		Offset: 0, Vaddr: baseAddr, Paddr: baseAddr,
		Filesz: loadEnd, Memsz: loadEnd + bssSize,
		Align: pageSize,
	}

	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, ph); err != nil {
		return err
	}
	padTo(buf, textOff)
	buf.Write(text)
	padTo(buf, dataOff)
	buf.Write(data)

	if len(aux) > 0 {
		padTo(buf, loadEnd)
		for _, a := range aux {
			buf.Write(a.payload)
		}
		padTo(buf, shoff)
		buf.Write(shTable.Bytes())
		buf.Write(shstrtab.Bytes())
	}
	return nil
}

// auxSection is a non-loaded, caller-supplied section (neither code, data
// nor bss) carried through as-is, and optionally compressed when large.
type auxSection struct {
	name       string
	payload    []byte
	rawSize    uint64
	compressed bool
}

// gatherAuxSections collects every SectionNone-typed section in object
// declaration order and applies compressSectionData to each large enough
// to be worth it.
func gatherAuxSections(obj *objfile.Object) []auxSection {
	var out []auxSection
	for s := obj.FirstSectionByType(objfile.SectionNone); s != nil; s = obj.NextSectionByType(objfile.SectionNone) {
		payload, compressed := compressSectionData(s.Data)
		out = append(out, auxSection{name: s.Name, payload: payload, rawSize: uint64(len(s.Data)), compressed: compressed})
	}
	return out
}

// buildAuxSectionTable lays out aux sections' payload offsets (the caller
// writes shTable and shstrtab's bytes after loadEnd and the payloads
// themselves), filling shTable with every section header (.text, .data,
// .bss when present, each aux section, and .shstrtab) and shstrtab with
// their names. Returns the file offset the section header table itself
// should be written at.
func buildAuxSectionTable(shTable, shstrtab *bytes.Buffer, aux []auxSection, textOff, textAddr, textSize, dataOff, dataAddr, dataSize, bssSize, loadEnd uint64) uint64 {
	shstrtab.WriteByte(0)
	nameOff := func(n string) uint32 {
		off := uint32(shstrtab.Len())
		shstrtab.WriteString(n)
		shstrtab.WriteByte(0)
		return off
	}

	write := func(sh sectionHeader) { binary.Write(shTable, binary.LittleEndian, sh) }

	// shnum counts every entry this function will emit: SHN_UNDEF, .text,
	// optionally .data and .bss, one per aux section, and .shstrtab.
	shnum := uint64(2)
	if dataSize > 0 {
		shnum++
	}
	if bssSize > 0 {
		shnum++
	}
	shnum += uint64(len(aux)) + 1

	shoff := align(loadEnd+auxPayloadSize(aux), 8)
	shstrtabOff := shoff + shnum*shdrSize

	write(sectionHeader{}) // SHN_UNDEF
	write(sectionHeader{Name: nameOff(".text"), Type: shtProgbit, Flags: shfAlloc | shfExecinstr, Addr: textAddr, Offset: textOff, Size: textSize, Addralign: 16})
	if dataSize > 0 {
		write(sectionHeader{Name: nameOff(".data"), Type: shtProgbit, Flags: shfAlloc | shfWrite, Addr: dataAddr, Offset: dataOff, Size: dataSize, Addralign: 16})
	}
	if bssSize > 0 {
		write(sectionHeader{Name: nameOff(".bss"), Type: shtNobits, Flags: shfAlloc | shfWrite, Addr: dataAddr + dataSize, Offset: dataOff + dataSize, Size: bssSize, Addralign: 1})
	}

	cur := loadEnd
	for _, a := range aux {
		sh := sectionHeader{Name: nameOff(a.name), Type: shtProgbit, Offset: cur, Size: uint64(len(a.payload)), Addralign: 1}
		if a.compressed {
			sh.Flags = shfCompressed
		}
		write(sh)
		cur += uint64(len(a.payload))
	}

	shstrtabName := nameOff(".shstrtab")
	write(sectionHeader{Name: shstrtabName, Type: shtStrtab, Offset: shstrtabOff, Size: uint64(shstrtab.Len()), Addralign: 1})

	return shoff
}

func auxPayloadSize(aux []auxSection) uint64 {
	var total uint64
	for _, a := range aux {
		total += uint64(len(a.payload))
	}
	return total
}

func padTo(buf *bytes.Buffer, offset uint64) {
	for uint64(buf.Len()) < offset {
		buf.WriteByte(0)
	}
}
