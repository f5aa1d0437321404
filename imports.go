package objfile

// ImportModule is an external library and the symbols the object
// imports from it.
type ImportModule struct {
	Name    string
	symbols *orderedList[*Symbol]
	symCur  *node[*Symbol]
}

// AddImportModule appends a new, initially empty, import module.
func (o *Object) AddImportModule(name string) *ImportModule {
	if o == nil {
		return nil
	}
	if o.imports == nil {
		o.imports = newOrderedList[*ImportModule]()
	}
	m := &ImportModule{Name: name}
	o.imports.append(m)
	return m
}

// FindImportModuleByName returns the first import module with an exact
// name match, or nil.
func (o *Object) FindImportModuleByName(name string) *ImportModule {
	if o == nil || o.imports == nil {
		return nil
	}
	for n := o.imports.first(); n != nil; n = n.next {
		if n.val.Name == name {
			return n.val
		}
	}
	return nil
}

// AddImportFunction appends a new imported symbol to mod. Imported
// symbols have type FUNCTION and flags GLOBAL|EXTERNAL, and are distinct
// from the object's main symbol table: they are never inserted into it.
func (mod *ImportModule) AddImportFunction(name string, addr uint64) *Symbol {
	if mod == nil {
		return nil
	}
	if mod.symbols == nil {
		mod.symbols = newOrderedList[*Symbol]()
	}
	s := &Symbol{
		Name:  name,
		Val:   addr,
		Type:  SymbolFunction,
		Flags: SymbolFlagGlobal | SymbolFlagExternal,
	}
	mod.symbols.append(s)
	return s
}

// FirstImportModule starts a traversal over modules themselves, as
// opposed to FirstImport's flat traversal over their symbols. Backends
// that must group imports by library, such as a PE import directory,
// need this; the original backend_get_first_import/_next_import pair
// has no equivalent, so this is a Go-side addition with its own cursor,
// independent of the flat one.
func (o *Object) FirstImportModule() *ImportModule {
	if o == nil || o.imports == nil {
		return nil
	}
	o.importModListCur = o.imports.first()
	if o.importModListCur == nil {
		return nil
	}
	return o.importModListCur.val
}

// NextImportModule advances the module-level cursor started by
// FirstImportModule.
func (o *Object) NextImportModule() *ImportModule {
	if o == nil || o.imports == nil || o.importModListCur == nil {
		return nil
	}
	o.importModListCur = o.importModListCur.next
	if o.importModListCur == nil {
		return nil
	}
	return o.importModListCur.val
}

// FirstSymbol starts a traversal over mod's own symbols, invalidating
// any previous cursor on mod.
func (mod *ImportModule) FirstSymbol() *Symbol {
	if mod == nil || mod.symbols == nil {
		return nil
	}
	mod.symCur = mod.symbols.first()
	if mod.symCur == nil {
		return nil
	}
	return mod.symCur.val
}

// NextSymbol advances the cursor started by FirstSymbol.
func (mod *ImportModule) NextSymbol() *Symbol {
	if mod == nil || mod.symCur == nil {
		return nil
	}
	mod.symCur = mod.symCur.next
	if mod.symCur == nil {
		return nil
	}
	return mod.symCur.val
}

// FindImportByAddress scans every module's symbols and returns the first
// one whose Val equals addr, or nil.
func (o *Object) FindImportByAddress(addr uint64) *Symbol {
	if o == nil || o.imports == nil {
		return nil
	}
	for n := o.imports.first(); n != nil; n = n.next {
		if n.val.symbols == nil {
			continue
		}
		for sn := n.val.symbols.first(); sn != nil; sn = sn.next {
			if sn.val.Val == addr {
				return sn.val
			}
		}
	}
	return nil
}

// FirstImport starts a flat traversal across all modules, invalidating
// any previous import cursor. Empty modules are skipped.
func (o *Object) FirstImport() *Symbol {
	if o == nil || o.imports == nil {
		return nil
	}
	o.importModCursor = o.imports.first()
	for o.importModCursor != nil {
		mod := o.importModCursor.val
		if mod.symbols != nil {
			o.importSymCursor = mod.symbols.first()
			if o.importSymCursor != nil {
				return o.importSymCursor.val
			}
		}
		o.importModCursor = o.importModCursor.next
	}
	o.importSymCursor = nil
	return nil
}

// NextImport advances within the current module, and on exhaustion
// advances to the next module's first symbol. Empty modules are skipped.
func (o *Object) NextImport() *Symbol {
	if o == nil || o.imports == nil || o.importModCursor == nil {
		return nil
	}
	if o.importSymCursor != nil {
		o.importSymCursor = o.importSymCursor.next
		if o.importSymCursor != nil {
			return o.importSymCursor.val
		}
	}
	o.importModCursor = o.importModCursor.next
	for o.importModCursor != nil {
		mod := o.importModCursor.val
		if mod.symbols != nil {
			o.importSymCursor = mod.symbols.first()
			if o.importSymCursor != nil {
				return o.importSymCursor.val
			}
		}
		o.importModCursor = o.importModCursor.next
	}
	o.importSymCursor = nil
	return nil
}

// ImportSymbolCount is computed on demand by flat iteration; there is no
// cached total, matching the C source.
func (o *Object) ImportSymbolCount() int {
	count := 0
	for s := o.FirstImport(); s != nil; s = o.NextImport() {
		count++
	}
	return count
}
