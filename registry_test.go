package objfile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEmptyRegistryRead: scenario 1 of spec §8 — init() with no backends
// compiled in; read returns nil/error, write returns the no-backend error.
func TestEmptyRegistryRead(t *testing.T) {
	r := NewRegistry(0)
	r.Init(nil)

	obj, err := r.Read("/tmp/any")
	assert.Nil(t, obj)
	assert.ErrorIs(t, err, ErrNoBackendRecognizesFile)

	blank := NewObject()
	blank.SetType(TypeELF64)
	err = r.Write(blank)
	assert.ErrorIs(t, err, ErrNoBackendForFormat)
}

func fakeBackend(name string, format Type, canRead, canWrite bool) Backend {
	be := Backend{
		Name:   func() string { return name },
		Format: func() Type { return format },
	}
	if canRead {
		be.Read = func(filename string) (*Object, error) {
			o := NewObject()
			o.SetType(format)
			o.SetName(filename)
			return o, nil
		}
	}
	if canWrite {
		be.Write = func(obj *Object, filename string) error { return nil }
	}
	return be
}

func TestRegister_RejectsMissingFormat(t *testing.T) {
	r := NewRegistry(4)
	err := r.Register(Backend{Name: func() string { return "broken" }})
	assert.ErrorIs(t, err, ErrBackendMissingFormat)
}

func TestRegister_RejectsWhenFull(t *testing.T) {
	r := NewRegistry(1)
	require.NoError(t, r.Register(fakeBackend("a", TypeELF32, true, true)))
	err := r.Register(fakeBackend("b", TypeELF64, true, true))
	assert.ErrorIs(t, err, ErrRegistryFull)
}

func TestLookupTarget(t *testing.T) {
	r := NewRegistry(4)
	require.NoError(t, r.Register(fakeBackend("elf64", TypeELF64, true, true)))
	assert.Equal(t, TypeELF64, r.LookupTarget("elf64"))
	assert.Equal(t, TypeNone, r.LookupTarget("nonexistent"))
	assert.Equal(t, TypeNone, r.LookupTarget(""))
}

func TestFirstNextTarget(t *testing.T) {
	r := NewRegistry(4)
	require.NoError(t, r.Register(fakeBackend("mz", TypeMZ, true, false)))
	require.NoError(t, r.Register(fakeBackend("pe", TypePE, true, true)))

	assert.Equal(t, "mz", r.FirstTarget())
	assert.Equal(t, "pe", r.NextTarget())
	assert.Equal(t, "", r.NextTarget())
}

func TestWrite_NoWriterReturnsDistinctError(t *testing.T) {
	r := NewRegistry(4)
	require.NoError(t, r.Register(fakeBackend("mz", TypeMZ, true, false)))

	obj := NewObject()
	obj.SetType(TypeMZ)
	err := r.Write(obj)
	assert.ErrorIs(t, err, ErrBackendHasNoWriter)
	assert.False(t, errors.Is(err, ErrNoBackendForFormat))
}

func TestReadDispatchesInRegistrationOrder(t *testing.T) {
	r := NewRegistry(4)
	require.NoError(t, r.Register(fakeBackend("mz", TypeMZ, false, false)))
	require.NoError(t, r.Register(fakeBackend("elf64", TypeELF64, true, true)))

	obj, err := r.Read("a.out")
	require.NoError(t, err)
	assert.Equal(t, TypeELF64, obj.Type())
}

func TestInit_SkipsFailedRegistrationsNonFatally(t *testing.T) {
	r := NewRegistry(1)
	var ran []string
	inits := []BackendInitFunc{
		func(reg *Registry) error {
			ran = append(ran, "first")
			return reg.Register(fakeBackend("a", TypeELF32, true, true))
		},
		func(reg *Registry) error {
			ran = append(ran, "second")
			return reg.Register(fakeBackend("b", TypeELF64, true, true))
		},
	}
	r.Init(inits)
	assert.Equal(t, []string{"first", "second"}, ran)
	assert.Equal(t, TypeELF32, r.LookupTarget("a"))
	assert.Equal(t, TypeNone, r.LookupTarget("b"))
}
