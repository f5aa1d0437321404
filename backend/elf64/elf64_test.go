package elf64

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/objfile"
)

func TestRoundTrip_StaticExecutable(t *testing.T) {
	obj := objfile.NewObject()
	obj.SetType(objfile.TypeELF64)
	obj.SetArch(objfile.ArchX86_64)
	obj.SetEntry(0)
	obj.AddSection(".text", 5, 0, []byte{0xb8, 0x2a, 0x00, 0x00, 0x00}, 0, 16, objfile.SectionFlagAlloc|objfile.SectionFlagExec)
	obj.AddSection(".data", 4, 0, []byte{1, 2, 3, 4}, 0, 8, objfile.SectionFlagAlloc|objfile.SectionFlagWrite)

	path := filepath.Join(t.TempDir(), "static.elf")
	require.NoError(t, write(obj, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, data[0:4])

	back, err := read(path)
	require.NoError(t, err)
	assert.Equal(t, objfile.TypeELF64, back.Type())
	assert.Equal(t, objfile.ArchX86_64, back.Arch())
	assert.NotZero(t, back.Entry())
}

func TestRoundTrip_DynamicExecutableWithImports(t *testing.T) {
	obj := objfile.NewObject()
	obj.SetType(objfile.TypeELF64)
	obj.SetArch(objfile.ArchX86_64)
	obj.AddSection(".text", 5, 0, []byte{0xb8, 0x2a, 0x00, 0x00, 0x00}, 0, 16, objfile.SectionFlagAlloc|objfile.SectionFlagExec)
	mod := obj.AddImportModule("libc.so.6")
	mod.AddImportFunction("printf", 0)
	mod.AddImportFunction("exit", 0)

	path := filepath.Join(t.TempDir(), "dynamic.elf")
	require.NoError(t, write(obj, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, data[0:4])
	assert.Equal(t, uint8(classELF64), data[4])

	back, err := read(path)
	require.NoError(t, err)
	assert.Equal(t, objfile.TypeELF64, back.Type())
}

func TestRead_RejectsNonELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notelf")
	require.NoError(t, os.WriteFile(path, []byte("not an elf file at all, padded out"), 0o644))
	_, err := read(path)
	assert.Error(t, err)
}

func TestRoundTrip_CompressedAuxSection(t *testing.T) {
	obj := objfile.NewObject()
	obj.SetType(objfile.TypeELF64)
	obj.SetArch(objfile.ArchX86_64)
	obj.AddSection(".text", 2, 0, []byte{0x90, 0xc3}, 0, 16, objfile.SectionFlagAlloc|objfile.SectionFlagExec)

	repeated := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 20)
	obj.AddSection(".comment", uint64(len(repeated)), 0, repeated, 0, 1, 0)

	path := filepath.Join(t.TempDir(), "compressed.elf")
	require.NoError(t, write(obj, path))

	back, err := read(path)
	require.NoError(t, err)

	comment := back.GetSectionByName(".comment")
	require.NotNil(t, comment)
	assert.Equal(t, repeated, comment.Data)
	assert.Equal(t, objfile.SectionNone, comment.Type)
}

func TestCompressSectionData_SkipsSmallSections(t *testing.T) {
	small := []byte("too small to bother")
	payload, ok := compressSectionData(small)
	assert.False(t, ok)
	assert.Equal(t, small, payload)
}

func TestGatherImportNames_DeduplicatesAndSorts(t *testing.T) {
	obj := objfile.NewObject()
	mod1 := obj.AddImportModule("libc.so.6")
	mod1.AddImportFunction("printf", 0)
	mod2 := obj.AddImportModule("libm.so.6")
	mod2.AddImportFunction("sin", 0)
	mod1.AddImportFunction("printf", 0)

	names := gatherImportNames(obj)
	assert.Equal(t, []string{"printf", "sin"}, names)
}
