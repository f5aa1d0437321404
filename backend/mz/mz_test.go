package mz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/objfile"
)

func writeStubFile(t *testing.T, lfanew uint32, size int) string {
	t.Helper()
	data := make([]byte, size)
	data[0], data[1] = 'M', 'Z'
	data[0x3c] = byte(lfanew)
	data[0x3d] = byte(lfanew >> 8)
	data[0x3e] = byte(lfanew >> 16)
	data[0x3f] = byte(lfanew >> 24)
	path := filepath.Join(t.TempDir(), "a.exe")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRead_RejectsMissingSignature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.exe")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))
	_, err := read(path)
	assert.Error(t, err)
}

func TestRead_RejectsShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.exe")
	require.NoError(t, os.WriteFile(path, []byte{'M', 'Z'}, 0o644))
	_, err := read(path)
	assert.Error(t, err)
}

func TestRead_ParsesDOSStubAsSingleSection(t *testing.T) {
	path := writeStubFile(t, 96, 128)
	obj, err := read(path)
	require.NoError(t, err)
	assert.Equal(t, objfile.TypeMZ, obj.Type())
	assert.Equal(t, objfile.ArchI386, obj.Arch())
	require.Equal(t, 1, obj.SectionCount())
	sec := obj.GetSectionByIndex(1)
	assert.Equal(t, "stub", sec.Name)
	assert.Equal(t, uint64(96), sec.Size)
}

func TestRegister_HasNoWriter(t *testing.T) {
	r := objfile.NewRegistry(4)
	require.NoError(t, Register(r))
	obj := objfile.NewObject()
	obj.SetType(objfile.TypeMZ)
	err := r.Write(obj)
	assert.ErrorIs(t, err, objfile.ErrBackendHasNoWriter)
}
