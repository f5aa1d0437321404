// Package pe implements the PE (Windows Portable Executable) backend: a
// reader that walks the DOS stub, COFF header, PE32+ optional header,
// section table and import directory into this package's object model,
// and a writer that emits a minimal PE32+ executable (one .text section,
// plus an .idata section when the object has import modules),
// adapted from the teacher's WritePEHeaderWithImports and
// BuildPEImportData. It targets x86-64 only, matching the rest of this
// module's backend set.
package pe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/xyproto/objfile"
)

const (
	dosHeaderSize = 64
	dosStubSize   = 128
	lfanewOffset  = 0x3c

	peSignatureSize     = 4
	coffHeaderSize      = 20
	optionalHeaderSize  = 240
	peSectionHeaderSize = 40

	peImageBase    = 0x140000000
	peSectionAlign = 0x1000
	peFileAlign    = 0x200

	imageFileMachineAMD64 = 0x8664
	optionalMagicPE32Plus = 0x020b
	peSignatureValue      = 0x00004550

	scnCntCode            = 0x00000020
	scnCntInitializedData = 0x00000040
	scnCntUninitData      = 0x00000080
	scnMemExecute         = 0x20000000
	scnMemRead            = 0x40000000
	scnMemWrite           = 0x80000000

	importDirectoryIndex = 1
	numDataDirectories   = 16
)

func name() string         { return "pe" }
func format() objfile.Type { return objfile.TypePE }

// Register installs the pe backend into r.
func Register(r *objfile.Registry) error {
	return r.Register(objfile.Backend{
		Name:   name,
		Format: format,
		Read:   read,
		Write:  write,
	})
}

type coffHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type dataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

type optionalHeader64 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
	DataDirectory               [numDataDirectories]dataDirectory
}

type sectionHeader struct {
	Name                 [8]byte
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLinenumbers uint32
	NumberOfRelocations  uint16
	NumberOfLinenumbers  uint16
	Characteristics      uint32
}

type importDescriptor struct {
	OriginalFirstThunk uint32
	TimeDateStamp      uint32
	ForwarderChain     uint32
	Name               uint32
	FirstThunk         uint32
}

func read(filename string) (*objfile.Object, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if len(data) < dosHeaderSize {
		return nil, fmt.Errorf("pe: file too short for a DOS header")
	}
	if binary.LittleEndian.Uint16(data[0:2]) != 0x5a4d {
		return nil, fmt.Errorf("pe: missing MZ signature")
	}
	lfanew := binary.LittleEndian.Uint32(data[lfanewOffset : lfanewOffset+4])
	peOff := int(lfanew)
	if peOff < 0 || peOff+peSignatureSize+coffHeaderSize+optionalHeaderSize > len(data) {
		return nil, fmt.Errorf("pe: e_lfanew out of range")
	}
	if binary.LittleEndian.Uint32(data[peOff:peOff+4]) != peSignatureValue {
		return nil, fmt.Errorf("pe: missing PE signature")
	}

	r := bytes.NewReader(data[peOff+peSignatureSize:])
	var coff coffHeader
	if err := binary.Read(r, binary.LittleEndian, &coff); err != nil {
		return nil, fmt.Errorf("pe: reading COFF header: %w", err)
	}
	if coff.SizeOfOptionalHeader < optionalHeaderSize {
		return nil, fmt.Errorf("pe: optional header too small, not PE32+")
	}
	var opt optionalHeader64
	if err := binary.Read(r, binary.LittleEndian, &opt); err != nil {
		return nil, fmt.Errorf("pe: reading optional header: %w", err)
	}
	if opt.Magic != optionalMagicPE32Plus {
		return nil, fmt.Errorf("pe: not PE32+")
	}

	obj := objfile.NewObject()
	obj.SetName(filename)
	obj.SetType(objfile.TypePE)
	if coff.Machine == imageFileMachineAMD64 {
		obj.SetArch(objfile.ArchX86_64)
	}
	obj.SetEntry(opt.ImageBase + uint64(opt.AddressOfEntryPoint))

	sectionTableOff := peOff + peSignatureSize + coffHeaderSize + int(coff.SizeOfOptionalHeader)
	shdrs := make([]sectionHeader, coff.NumberOfSections)
	sr := bytes.NewReader(data[sectionTableOff:])
	for i := range shdrs {
		if err := binary.Read(sr, binary.LittleEndian, &shdrs[i]); err != nil {
			return nil, fmt.Errorf("pe: reading section header %d: %w", i, err)
		}
	}

	for _, sh := range shdrs {
		secName := cstrFixed(sh.Name[:])
		var sd []byte
		isBSS := sh.Characteristics&scnCntUninitData != 0 && sh.SizeOfRawData == 0
		if !isBSS {
			sd = sectionBytes(data, sh.PointerToRawData, sh.SizeOfRawData)
		}
		flags := sectionFlagsFromPE(sh.Characteristics)
		sec := obj.AddSection(secName, uint64(sh.VirtualSize), opt.ImageBase+uint64(sh.VirtualAddress), sd, 0, 0, flags)
		sec.Type = sectionTypeFromPE(sh.Characteristics, isBSS)
	}

	if int(opt.NumberOfRvaAndSizes) > importDirectoryIndex {
		dd := opt.DataDirectory[importDirectoryIndex]
		if dd.VirtualAddress != 0 && dd.Size != 0 {
			if err := readImports(obj, data, shdrs, dd.VirtualAddress); err != nil {
				return nil, err
			}
		}
	}

	return obj, nil
}

func cstrFixed(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func sectionBytes(data []byte, off, size uint32) []byte {
	start, end := uint64(off), uint64(off)+uint64(size)
	if start > uint64(len(data)) || end > uint64(len(data)) || start > end {
		return nil
	}
	return append([]byte(nil), data[start:end]...)
}

func sectionFlagsFromPE(c uint32) objfile.SectionFlag {
	var out objfile.SectionFlag
	if c&scnMemWrite != 0 {
		out |= objfile.SectionFlagWrite
	}
	if c&scnMemExecute != 0 {
		out |= objfile.SectionFlagExec
	}
	out |= objfile.SectionFlagAlloc
	return out
}

func sectionTypeFromPE(c uint32, isBSS bool) objfile.SectionType {
	switch {
	case isBSS:
		return objfile.SectionBSS
	case c&scnCntCode != 0:
		return objfile.SectionCode
	case c&scnCntInitializedData != 0:
		return objfile.SectionData
	default:
		return objfile.SectionNone
	}
}

// rvaToOffset finds the section containing rva and converts it to a file
// offset. Returns -1 if no section covers it.
func rvaToOffset(shdrs []sectionHeader, rva uint32) int {
	for _, sh := range shdrs {
		if rva >= sh.VirtualAddress && rva < sh.VirtualAddress+sh.VirtualSize {
			return int(sh.PointerToRawData + (rva - sh.VirtualAddress))
		}
	}
	return -1
}

func readImports(obj *objfile.Object, data []byte, shdrs []sectionHeader, idtRVA uint32) error {
	off := rvaToOffset(shdrs, idtRVA)
	if off < 0 {
		return fmt.Errorf("pe: import directory RVA not covered by any section")
	}
	for {
		if off+20 > len(data) {
			return fmt.Errorf("pe: import directory runs past end of file")
		}
		var d importDescriptor
		if err := binary.Read(bytes.NewReader(data[off:off+20]), binary.LittleEndian, &d); err != nil {
			return err
		}
		off += 20
		if d.OriginalFirstThunk == 0 && d.FirstThunk == 0 && d.Name == 0 {
			break
		}
		nameOff := rvaToOffset(shdrs, d.Name)
		if nameOff < 0 {
			continue
		}
		dllName := cstrAt(data, nameOff)
		mod := obj.AddImportModule(dllName)

		thunkRVA := d.OriginalFirstThunk
		if thunkRVA == 0 {
			thunkRVA = d.FirstThunk
		}
		thunkOff := rvaToOffset(shdrs, thunkRVA)
		if thunkOff < 0 {
			continue
		}
		for i := 0; ; i++ {
			entryOff := thunkOff + i*8
			if entryOff+8 > len(data) {
				break
			}
			entry := binary.LittleEndian.Uint64(data[entryOff : entryOff+8])
			if entry == 0 {
				break
			}
			if entry&(1<<63) != 0 {
				mod.AddImportFunction(fmt.Sprintf("ordinal#%d", entry&0xffff), 0)
				continue
			}
			hintNameOff := rvaToOffset(shdrs, uint32(entry))
			if hintNameOff < 0 || hintNameOff+2 > len(data) {
				continue
			}
			funcName := cstrAt(data, hintNameOff+2)
			mod.AddImportFunction(funcName, 0)
		}
	}
	return nil
}

func cstrAt(data []byte, off int) string {
	if off < 0 || off >= len(data) {
		return ""
	}
	end := off
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[off:end])
}

func alignUp(v, to uint32) uint32 {
	return (v + to - 1) &^ (to - 1)
}

// write emits a minimal PE32+ executable: DOS stub, COFF header,
// optional header, a .text section holding every SectionCode section's
// data concatenated, and — if obj has import modules — an .idata
// section with a real import directory, built the way the teacher's
// BuildPEImportData lays one out.
func write(obj *objfile.Object, filename string) error {
	var text []byte
	for s := obj.FirstSectionByType(objfile.SectionCode); s != nil; s = obj.NextSectionByType(objfile.SectionCode) {
		text = append(text, s.Data...)
	}
	codeSize := alignUp(uint32(len(text)), peFileAlign)

	libs := gatherImportLibraries(obj)

	numSections := uint16(1)
	if len(libs) > 0 {
		numSections = 2
	}

	headerSize := alignUp(uint32(dosHeaderSize+dosStubSize+peSignatureSize+coffHeaderSize+optionalHeaderSize)+uint32(numSections)*peSectionHeaderSize, peFileAlign)

	textRawAddr := headerSize
	textVirtualAddr := uint32(peSectionAlign)

	var idata []byte
	var idataVirtualAddr, idataRawAddr, idataSize, idataRawSize uint32
	if len(libs) > 0 {
		idataVirtualAddr = textVirtualAddr + alignUp(codeSize, peSectionAlign)
		var err error
		idata, err = buildImportData(libs, idataVirtualAddr)
		if err != nil {
			return err
		}
		idataSize = uint32(len(idata))
		idataRawSize = alignUp(idataSize, peFileAlign)
		idataRawAddr = textRawAddr + codeSize
	}

	imageSize := alignUp(headerSize+codeSize+idataRawSize, peSectionAlign)

	var buf bytes.Buffer
	writeHeader(&buf, textVirtualAddr, codeSize, idataVirtualAddr, idataSize, imageSize, headerSize, numSections)

	writeSectionHeader(&buf, ".text", codeSize, textVirtualAddr, codeSize, textRawAddr, scnCntCode|scnMemExecute|scnMemRead)
	if len(libs) > 0 {
		writeSectionHeader(&buf, ".idata", idataSize, idataVirtualAddr, idataRawSize, idataRawAddr, scnCntInitializedData|scnMemRead)
	}

	padTo(&buf, textRawAddr)
	buf.Write(text)
	padTo(&buf, textRawAddr+codeSize)

	if len(libs) > 0 {
		padTo(&buf, idataRawAddr)
		buf.Write(idata)
		padTo(&buf, idataRawAddr+idataRawSize)
	}

	if objfile.Verbose {
		fmt.Fprintf(os.Stderr, "pe: writing %d bytes to %s (%d import libraries)\n", buf.Len(), filename, len(libs))
	}
	return os.WriteFile(filename, buf.Bytes(), 0o755)
}

type library struct {
	name      string
	functions []string
}

func gatherImportLibraries(obj *objfile.Object) []library {
	var libs []library
	for mod := obj.FirstImportModule(); mod != nil; mod = obj.NextImportModule() {
		lib := library{name: mod.Name}
		for s := mod.FirstSymbol(); s != nil; s = mod.NextSymbol() {
			lib.functions = append(lib.functions, s.Name)
		}
		libs = append(libs, lib)
	}
	sort.Slice(libs, func(i, j int) bool { return libs[i].name < libs[j].name })
	return libs
}

func writeHeader(buf *bytes.Buffer, entryRVA, codeSize, idataRVA, idataSize, imageSize, headersSize uint32, numSections uint16) {
	binary.Write(buf, binary.LittleEndian, uint16(0x5a4d))
	buf.Write(make([]byte, 58))
	binary.Write(buf, binary.LittleEndian, uint32(dosHeaderSize+dosStubSize))

	stub := []byte("This program requires Windows.\r\n$")
	buf.Write(stub)
	buf.Write(make([]byte, dosStubSize-len(stub)))

	binary.Write(buf, binary.LittleEndian, uint32(peSignatureValue))

	coff := coffHeader{
		Machine:              imageFileMachineAMD64,
		NumberOfSections:     numSections,
		SizeOfOptionalHeader: optionalHeaderSize,
		Characteristics:      0x0022, // EXECUTABLE_IMAGE | LARGE_ADDRESS_AWARE
	}
	binary.Write(buf, binary.LittleEndian, coff)

	opt := optionalHeader64{
		Magic:                       optionalMagicPE32Plus,
		MajorLinkerVersion:          1,
		SizeOfCode:                  codeSize,
		AddressOfEntryPoint:         entryRVA,
		BaseOfCode:                  peSectionAlign,
		ImageBase:                   peImageBase,
		SectionAlignment:            peSectionAlign,
		FileAlignment:               peFileAlign,
		MajorOperatingSystemVersion: 6,
		MajorSubsystemVersion:       6,
		SizeOfImage:                 imageSize,
		SizeOfHeaders:               headersSize,
		Subsystem:                   3, // IMAGE_SUBSYSTEM_WINDOWS_CUI
		DllCharacteristics:          0x8160,
		SizeOfStackReserve:          0x100000,
		SizeOfStackCommit:           0x1000,
		SizeOfHeapReserve:           0x100000,
		SizeOfHeapCommit:            0x1000,
		NumberOfRvaAndSizes:         numDataDirectories,
	}
	if idataSize > 0 {
		opt.DataDirectory[importDirectoryIndex] = dataDirectory{VirtualAddress: idataRVA, Size: idataSize}
	}
	binary.Write(buf, binary.LittleEndian, opt)
}

func writeSectionHeader(buf *bytes.Buffer, sectionName string, virtualSize, virtualAddr, rawSize, rawAddr, characteristics uint32) {
	var sh sectionHeader
	copy(sh.Name[:], sectionName)
	sh.VirtualSize = virtualSize
	sh.VirtualAddress = virtualAddr
	sh.SizeOfRawData = rawSize
	sh.PointerToRawData = rawAddr
	sh.Characteristics = characteristics
	binary.Write(buf, binary.LittleEndian, sh)
}

func padTo(buf *bytes.Buffer, offset uint32) {
	for uint32(buf.Len()) < offset {
		buf.WriteByte(0)
	}
}

// buildImportData lays out the .idata section: import directory table,
// import lookup tables, import address tables, hint/name entries and DLL
// name strings, following the teacher's BuildPEImportData.
func buildImportData(libs []library, idataRVA uint32) ([]byte, error) {
	if len(libs) == 0 {
		return nil, fmt.Errorf("pe: no import libraries to encode")
	}

	idtSize := uint32((len(libs) + 1) * 20)
	cur := idtSize

	type laidOut struct {
		library
		iltOffset, iatOffset, nameOffset, hintsOffset uint32
	}
	out := make([]laidOut, len(libs))
	for i, lib := range libs {
		out[i].library = lib
		out[i].iltOffset = cur
		thunkSize := uint32(len(lib.functions)+1) * 8
		cur += thunkSize
		out[i].iatOffset = cur
		cur += thunkSize
	}
	for i := range out {
		out[i].hintsOffset = cur
		for _, fn := range out[i].functions {
			cur += hintEntrySize(fn)
		}
	}
	for i := range out {
		out[i].nameOffset = cur
		cur += uint32(len(out[i].name) + 1)
	}

	var buf bytes.Buffer
	for _, lo := range out {
		d := importDescriptor{
			OriginalFirstThunk: idataRVA + lo.iltOffset,
			Name:               idataRVA + lo.nameOffset,
			FirstThunk:         idataRVA + lo.iatOffset,
		}
		binary.Write(&buf, binary.LittleEndian, d)
	}
	binary.Write(&buf, binary.LittleEndian, importDescriptor{})

	for _, lo := range out {
		hint := lo.hintsOffset
		for _, fn := range lo.functions {
			binary.Write(&buf, binary.LittleEndian, uint64(idataRVA+hint))
			hint += hintEntrySize(fn)
		}
		binary.Write(&buf, binary.LittleEndian, uint64(0))
	}
	for _, lo := range out {
		hint := lo.hintsOffset
		for _, fn := range lo.functions {
			binary.Write(&buf, binary.LittleEndian, uint64(idataRVA+hint))
			hint += hintEntrySize(fn)
		}
		binary.Write(&buf, binary.LittleEndian, uint64(0))
	}

	for _, lo := range out {
		for _, fn := range lo.functions {
			binary.Write(&buf, binary.LittleEndian, uint16(0))
			buf.WriteString(fn)
			buf.WriteByte(0)
			if hintEntrySize(fn) != uint32(2+len(fn)+1) {
				buf.WriteByte(0)
			}
		}
	}
	for _, lo := range out {
		buf.WriteString(lo.name)
		buf.WriteByte(0)
	}

	return buf.Bytes(), nil
}

func hintEntrySize(fn string) uint32 {
	n := uint32(2 + len(fn) + 1)
	if n%2 != 0 {
		n++
	}
	return n
}
