package objfile

// Relocation is a pending patch at an offset referencing a symbol.
type Relocation struct {
	Offset uint64
	Type   RelocType
	Addend int64
	// Symbol is a weak reference into the symbol table; the relocation
	// table does not own it and must never free it through this side.
	Symbol *Symbol
}

// AddRelocation appends a new relocation. sym is stored as a weak
// reference.
func (o *Object) AddRelocation(offset uint64, typ RelocType, addend int64, sym *Symbol) *Relocation {
	if o == nil {
		return nil
	}
	if o.relocations == nil {
		o.relocations = newOrderedList[*Relocation]()
	}
	r := &Relocation{Offset: offset, Type: typ, Addend: addend, Symbol: sym}
	o.relocations.append(r)
	return r
}

// RelocationCount returns the number of relocations in the table.
func (o *Object) RelocationCount() int {
	if o == nil || o.relocations == nil {
		return 0
	}
	return o.relocations.len()
}

// FindRelocByOffset returns the first relocation with an exact offset
// match, or nil.
func (o *Object) FindRelocByOffset(offset uint64) *Relocation {
	if o == nil || o.relocations == nil {
		return nil
	}
	for n := o.relocations.first(); n != nil; n = n.next {
		if n.val.Offset == offset {
			return n.val
		}
	}
	return nil
}

// FirstReloc starts a traversal, invalidating any previous relocation
// cursor.
func (o *Object) FirstReloc() *Relocation {
	if o == nil || o.relocations == nil {
		return nil
	}
	o.relocCursor = o.relocations.first()
	if o.relocCursor == nil {
		return nil
	}
	return o.relocCursor.val
}

// NextReloc advances the cursor started by FirstReloc.
func (o *Object) NextReloc() *Relocation {
	if o == nil || o.relocCursor == nil {
		return nil
	}
	o.relocCursor = o.relocCursor.next
	if o.relocCursor == nil {
		return nil
	}
	return o.relocCursor.val
}
