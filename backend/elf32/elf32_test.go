package elf32

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/objfile"
)

func TestRoundTrip_StaticExecutable(t *testing.T) {
	obj := objfile.NewObject()
	obj.SetType(objfile.TypeELF32)
	obj.SetArch(objfile.ArchI386)
	obj.AddSection(".text", 5, 0, []byte{0xb8, 0x2a, 0x00, 0x00, 0x00}, 0, 16, objfile.SectionFlagAlloc|objfile.SectionFlagExec)
	obj.AddSection(".data", 2, 0, []byte{1, 2}, 0, 4, objfile.SectionFlagAlloc|objfile.SectionFlagWrite)

	path := filepath.Join(t.TempDir(), "a.elf32")
	require.NoError(t, write(obj, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, data[0:4])
	assert.Equal(t, uint8(classELF32), data[4])

	back, err := read(path)
	require.NoError(t, err)
	assert.Equal(t, objfile.TypeELF32, back.Type())
	assert.Equal(t, objfile.ArchI386, back.Arch())
}

func TestRead_RejectsWrongClass(t *testing.T) {
	data := make([]byte, ehdrSize)
	data[0], data[1], data[2], data[3] = 0x7f, 'E', 'L', 'F'
	data[4] = 2 // ELFCLASS64, not handled by this backend
	path := filepath.Join(t.TempDir(), "wrongclass")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err := read(path)
	assert.Error(t, err)
}

func TestMachineFor(t *testing.T) {
	assert.Equal(t, uint16(emARM), machineFor(objfile.ArchARM))
	assert.Equal(t, uint16(emX86), machineFor(objfile.ArchI386))
	assert.Equal(t, uint16(emX86), machineFor(objfile.ArchUnknown))
}
