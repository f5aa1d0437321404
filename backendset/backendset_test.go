package backendset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/objfile"
)

func newRegistry(t *testing.T) *objfile.Registry {
	t.Helper()
	r := objfile.NewRegistry(objfile.DefaultMaxBackends)
	r.Init(All)
	return r
}

func TestInit_RegistersEveryShippedBackendInOrder(t *testing.T) {
	r := newRegistry(t)
	assert.Equal(t, objfile.TypeELF64, r.LookupTarget("elf64"))
	assert.Equal(t, objfile.TypeELF32, r.LookupTarget("elf32"))
	assert.Equal(t, objfile.TypePE, r.LookupTarget("pe"))
	assert.Equal(t, objfile.TypeMZ, r.LookupTarget("mz"))

	assert.Equal(t, "elf64", r.FirstTarget())
	assert.Equal(t, "elf32", r.NextTarget())
	assert.Equal(t, "pe", r.NextTarget())
	assert.Equal(t, "mz", r.NextTarget())
	assert.Equal(t, "", r.NextTarget())
}

func TestWriteThenRead_DispatchesToELF64(t *testing.T) {
	r := newRegistry(t)

	obj := objfile.NewObject()
	obj.SetType(objfile.TypeELF64)
	obj.SetArch(objfile.ArchX86_64)
	obj.AddSection(".text", 4, 0, []byte{0x90, 0x90, 0x90, 0xc3}, 0, 16, objfile.SectionFlagAlloc|objfile.SectionFlagExec)

	path := filepath.Join(t.TempDir(), "prog")
	obj.SetName(path)
	require.NoError(t, r.Write(obj))

	back, err := r.Read(path)
	require.NoError(t, err)
	assert.Equal(t, objfile.TypeELF64, back.Type())
}

func TestRead_FallsThroughToMZWhenOnlyDOSMagicMatches(t *testing.T) {
	r := newRegistry(t)

	data := make([]byte, 128)
	data[0], data[1] = 'M', 'Z'
	path := filepath.Join(t.TempDir(), "legacy.exe")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	obj, err := r.Read(path)
	require.NoError(t, err)
	assert.Equal(t, objfile.TypeMZ, obj.Type())
}
