package objfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestImportFlatIteration: scenario 6 of spec §8 — M1=[a,b], M2=[], M3=[c];
// empty modules are skipped.
func TestImportFlatIteration(t *testing.T) {
	o := NewObject()
	m1 := o.AddImportModule("libm1.so")
	a := m1.AddImportFunction("a", 0x1000)
	b := m1.AddImportFunction("b", 0x1008)
	o.AddImportModule("libm2.so") // empty, no symbols added
	m3 := o.AddImportModule("libm3.so")
	c := m3.AddImportFunction("c", 0x2000)

	var got []*Symbol
	for s := o.FirstImport(); s != nil; s = o.NextImport() {
		got = append(got, s)
	}
	require.Len(t, got, 3)
	assert.Same(t, a, got[0])
	assert.Same(t, b, got[1])
	assert.Same(t, c, got[2])
	assert.Nil(t, o.NextImport())
}

func TestImportedSymbolFlags(t *testing.T) {
	o := NewObject()
	mod := o.AddImportModule("libc.so.6")
	s := mod.AddImportFunction("printf", 0)
	assert.Equal(t, SymbolFunction, s.Type)
	assert.Equal(t, SymbolFlagGlobal|SymbolFlagExternal, s.Flags)
}

func TestImportedSymbolsNotInMainTable(t *testing.T) {
	o := NewObject()
	mod := o.AddImportModule("libc.so.6")
	mod.AddImportFunction("printf", 0)
	assert.Equal(t, 0, o.SymbolCount())
	assert.Nil(t, o.FindSymbolByName("printf"))
}

func TestFindImportModuleByName(t *testing.T) {
	o := NewObject()
	o.AddImportModule("a.dll")
	m := o.AddImportModule("b.dll")
	assert.Same(t, m, o.FindImportModuleByName("b.dll"))
	assert.Nil(t, o.FindImportModuleByName("c.dll"))
}

func TestFindImportByAddress(t *testing.T) {
	o := NewObject()
	mod := o.AddImportModule("libc.so.6")
	s := mod.AddImportFunction("exit", 0x3000)
	assert.Same(t, s, o.FindImportByAddress(0x3000))
	assert.Nil(t, o.FindImportByAddress(0x4000))
}

func TestImportSymbolCount(t *testing.T) {
	o := NewObject()
	m1 := o.AddImportModule("a.dll")
	m1.AddImportFunction("x", 1)
	m1.AddImportFunction("y", 2)
	o.AddImportModule("b.dll")
	assert.Equal(t, 2, o.ImportSymbolCount())
}
