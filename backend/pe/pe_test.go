package pe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/objfile"
)

func TestRoundTrip_NoImports(t *testing.T) {
	obj := objfile.NewObject()
	obj.SetType(objfile.TypePE)
	obj.SetArch(objfile.ArchX86_64)
	obj.AddSection(".text", 6, 0, []byte{0x48, 0x31, 0xc0, 0xc3, 0x90, 0x90}, 0, 0, objfile.SectionFlagAlloc|objfile.SectionFlagExec)

	path := filepath.Join(t.TempDir(), "a.exe")
	require.NoError(t, write(obj, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x5a4d), uint16(data[0])|uint16(data[1])<<8)

	back, err := read(path)
	require.NoError(t, err)
	assert.Equal(t, objfile.TypePE, back.Type())
	assert.Equal(t, objfile.ArchX86_64, back.Arch())
	require.GreaterOrEqual(t, back.SectionCount(), 1)
}

func TestRoundTrip_WithImports(t *testing.T) {
	obj := objfile.NewObject()
	obj.SetType(objfile.TypePE)
	obj.SetArch(objfile.ArchX86_64)
	obj.AddSection(".text", 2, 0, []byte{0x90, 0xc3}, 0, 0, objfile.SectionFlagAlloc|objfile.SectionFlagExec)
	mod := obj.AddImportModule("msvcrt.dll")
	mod.AddImportFunction("printf", 0)
	mod.AddImportFunction("malloc", 0)

	path := filepath.Join(t.TempDir(), "imports.exe")
	require.NoError(t, write(obj, path))

	back, err := read(path)
	require.NoError(t, err)

	found := back.FindImportModuleByName("msvcrt.dll")
	require.NotNil(t, found)

	var names []string
	for s := found.FirstSymbol(); s != nil; s = found.NextSymbol() {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"printf", "malloc"}, names)
}

func TestRead_RejectsMissingMZSignature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notpe.exe")
	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0o644))
	_, err := read(path)
	assert.Error(t, err)
}

func TestGatherImportLibraries_SortsByName(t *testing.T) {
	obj := objfile.NewObject()
	obj.AddImportModule("zlib1.dll")
	obj.AddImportModule("kernel32.dll")

	libs := gatherImportLibraries(obj)
	require.Len(t, libs, 2)
	assert.Equal(t, "kernel32.dll", libs[0].name)
	assert.Equal(t, "zlib1.dll", libs[1].name)
}
