package objfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddRelocationAndFindByOffset(t *testing.T) {
	o := NewObject()
	sym := o.AddSymbol("printf", 0, SymbolFunction, 0, SymbolFlagGlobal|SymbolFlagExternal, nil)
	r := o.AddRelocation(0x20, RelocPLT, -4, sym)

	assert.Equal(t, 1, o.RelocationCount())
	found := o.FindRelocByOffset(0x20)
	assert.Same(t, r, found)
	assert.Same(t, sym, found.Symbol)
	assert.Nil(t, o.FindRelocByOffset(0x21))
}

func TestRelocIteration(t *testing.T) {
	o := NewObject()
	o.AddRelocation(1, RelocOffset, 0, nil)
	o.AddRelocation(2, RelocPCRelative, 0, nil)

	var offsets []uint64
	for r := o.FirstReloc(); r != nil; r = o.NextReloc() {
		offsets = append(offsets, r.Offset)
	}
	assert.Equal(t, []uint64{1, 2}, offsets)
}

func TestLookupRelocType(t *testing.T) {
	assert.Equal(t, "none", LookupRelocType(RelocNone))
	assert.Equal(t, "offset", LookupRelocType(RelocOffset))
	assert.Equal(t, "pc relative", LookupRelocType(RelocPCRelative))
	assert.Equal(t, "PLT relative", LookupRelocType(RelocPLT))
	assert.Equal(t, "unknown", LookupRelocType(RelocType(99)))
}
