package objfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectAccessors(t *testing.T) {
	o := NewObject()
	o.SetName("a.out")
	o.SetType(TypeELF64)
	o.SetArch(ArchX86_64)
	o.SetEntry(0x401000)

	assert.Equal(t, "a.out", o.Name())
	assert.Equal(t, TypeELF64, o.Type())
	assert.Equal(t, ArchX86_64, o.Arch())
	assert.Equal(t, uint64(0x401000), o.Entry())
}

func TestDestroy_IdempotentOnAbsentTables(t *testing.T) {
	o := NewObject()
	assert.NotPanics(t, func() {
		o.Destroy()
		o.Destroy()
	})
}

func TestDestroy_ClearsPopulatedTables(t *testing.T) {
	o := NewObject()
	o.AddSymbol("a", 0, SymbolNone, 0, 0, nil)
	sec := o.AddSection(".text", 1, 0, nil, 0, 0, 0)
	o.AddRelocation(0, RelocNone, 0, nil)
	mod := o.AddImportModule("libc.so")
	mod.AddImportFunction("printf", 0)
	_ = sec

	o.Destroy()

	assert.Equal(t, 0, o.SymbolCount())
	assert.Equal(t, 0, o.SectionCount())
	assert.Equal(t, 0, o.RelocationCount())
	assert.Equal(t, 0, o.ImportSymbolCount())
}

func TestWeakReferencesSurviveAfterLookup(t *testing.T) {
	o := NewObject()
	sec := o.AddSection(".text", 0x10, 0x1000, nil, 0, 0, 0)
	sym := o.AddSymbol("main", 0x1000, SymbolFunction, 4, 0, sec)
	reloc := o.AddRelocation(0x1000, RelocPCRelative, 0, sym)

	assert.Same(t, sec, sym.Section)
	assert.Same(t, sym, reloc.Symbol)
}
