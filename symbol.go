package objfile

// Symbol is a named value within an object, optionally sized, optionally
// attributed to a section.
type Symbol struct {
	Name  string
	Val   uint64
	Type  SymbolType
	Size  uint64
	Flags SymbolFlag

	// Section is a weak reference into the owning object's section
	// table; it may be nil and must never be freed through this side.
	Section *Section

	// Src is an optional source-file attribution.
	Src *string
}

// AddSymbol appends a new symbol to the table, copying name (defaulting
// to "!" when empty, matching the C source's null-name fallback). sec is
// stored as a weak reference supplied by the caller.
func (o *Object) AddSymbol(name string, val uint64, typ SymbolType, size uint64, flags SymbolFlag, sec *Section) *Symbol {
	if o == nil {
		return nil
	}
	if o.symbols == nil {
		o.symbols = newOrderedList[*Symbol]()
	}
	if name == "" {
		name = "!"
	}
	s := &Symbol{
		Name:    name,
		Val:     val,
		Type:    typ,
		Size:    size,
		Flags:   flags,
		Section: sec,
	}
	o.symbols.append(s)
	return s
}

// SymbolCount returns the number of symbols currently in the table.
func (o *Object) SymbolCount() int {
	if o == nil || o.symbols == nil {
		return 0
	}
	return o.symbols.len()
}

// FirstSymbol starts a full-table traversal, invalidating any previous
// full-table cursor.
func (o *Object) FirstSymbol() *Symbol {
	if o == nil || o.symbols == nil {
		return nil
	}
	o.symCursor = o.symbols.first()
	if o.symCursor == nil {
		return nil
	}
	return o.symCursor.val
}

// NextSymbol advances the full-table cursor started by FirstSymbol.
func (o *Object) NextSymbol() *Symbol {
	if o == nil || o.symCursor == nil {
		return nil
	}
	o.symCursor = o.symCursor.next
	if o.symCursor == nil {
		return nil
	}
	return o.symCursor.val
}

// FindSymbolByName returns the first symbol with the given name, or nil.
func (o *Object) FindSymbolByName(name string) *Symbol {
	if o == nil || o.symbols == nil {
		return nil
	}
	for n := o.symbols.first(); n != nil; n = n.next {
		if n.val.Name == name {
			return n.val
		}
	}
	return nil
}

// FindSymbolByVal returns a symbol whose value exactly matches val (when
// the symbol is zero-sized) or whose [Val, Val+Size) interval contains
// val, or nil when no such symbol exists.
func (o *Object) FindSymbolByVal(val uint64) *Symbol {
	if o == nil || o.symbols == nil {
		return nil
	}
	for n := o.symbols.first(); n != nil; n = n.next {
		s := n.val
		if (s.Size == 0 && val == s.Val) || (val >= s.Val && val < s.Val+s.Size) {
			return s
		}
	}
	return nil
}

// FindSymbolByIndex returns the symbol at the given zero-based position,
// or nil if index is out of range.
func (o *Object) FindSymbolByIndex(index uint) *Symbol {
	if o == nil || o.symbols == nil {
		return nil
	}
	n := o.symbols.first()
	for i := uint(0); i < index; i++ {
		if n == nil {
			return nil
		}
		n = n.next
	}
	if n == nil {
		return nil
	}
	return n.val
}

// FindSymbolByValType is the conjunction of FindSymbolByVal's predicate
// and an exact type match.
func (o *Object) FindSymbolByValType(val uint64, typ SymbolType) *Symbol {
	if o == nil || o.symbols == nil {
		return nil
	}
	for n := o.symbols.first(); n != nil; n = n.next {
		s := n.val
		if ((s.Size == 0 && val == s.Val) || (val >= s.Val && val < s.Val+s.Size)) && s.Type == typ {
			return s
		}
	}
	return nil
}

// FindNearestSymbol walks the table in sequence order and returns the
// last symbol whose Val <= val, stopping at the first symbol whose
// Val > val. This assumes the table is in value-ascending order; the
// caller is responsible for calling SortSymbols first. Returns nil on an
// empty table or when no symbol precedes val.
func (o *Object) FindNearestSymbol(val uint64) *Symbol {
	if o == nil || o.symbols == nil {
		return nil
	}
	var prev *Symbol
	for n := o.symbols.first(); n != nil; n = n.next {
		if n.val.Val > val {
			return prev
		}
		prev = n.val
	}
	return prev
}

// MergeSymbol grows sym's insertion-order predecessor to absorb sym: the
// predecessor's new size becomes (sym.Val+sym.Size)-predecessor.Val, so
// any gap between them is folded into the merged symbol. sym is then
// removed from the table. Returns the predecessor, or returns sym
// unchanged if sym is the first entry (nothing to merge into), or nil if
// sym is not found.
//
// Like the C source, this relies on Symbol.Name being unique: removal is
// by name, so a duplicate name ahead of sym in the table would remove the
// wrong entry. Callers that need duplicate names must not rely on this op.
func (o *Object) MergeSymbol(sym *Symbol) *Symbol {
	if o == nil || o.symbols == nil || sym == nil {
		return nil
	}
	var prev *Symbol
	for n := o.symbols.first(); n != nil; n = n.next {
		if n.val == sym {
			if prev == nil {
				return sym
			}
			prev.Size = (sym.Val + sym.Size) - prev.Val
			o.symbols.removeMatch(func(s *Symbol) bool { return s.Name == sym.Name })
			return prev
		}
		prev = n.val
	}
	return nil
}

// SplitSymbol inserts a new symbol named name immediately after sym. The
// split point is val, which must satisfy sym.Val < val < sym.Val+sym.Size
// (not validated). The new symbol's size is sym.Size-(val-sym.Val); sym's
// size is shrunk to val-sym.Val. The new symbol inherits sym.Section, and
// its Src is a copy of sym.Src if sym.Src is non-nil (a nil Src is a
// precondition violation in the C source; here it degrades gracefully to
// a nil Src rather than undefined behavior). Returns the new symbol, or
// nil if sym is not found.
func (o *Object) SplitSymbol(sym *Symbol, name string, val uint64, typ SymbolType, flags SymbolFlag) *Symbol {
	if o == nil || o.symbols == nil || sym == nil {
		return nil
	}
	for n := o.symbols.first(); n != nil; n = n.next {
		if n.val == sym {
			newSize := sym.Size - (val - sym.Val)
			s := &Symbol{
				Name:    name,
				Val:     val,
				Type:    typ,
				Size:    newSize,
				Flags:   flags,
				Section: sym.Section,
			}
			if sym.Src != nil {
				src := *sym.Src
				s.Src = &src
			}
			o.symbols.insertAfter(n, s)
			sym.Size = val - sym.Val
			return s
		}
	}
	return nil
}

// SymbolCmpFunc orders two symbols for SortSymbols; it must return a
// negative number when a belongs before b, consistent with sort.Interface
// conventions.
type SymbolCmpFunc func(a, b *Symbol) int

// SortSymbols replaces the object's symbol table with one ordered by cmp.
// The sort is stable and performed in place on a snapshot of the current
// entries (the entries themselves are moved, never duplicated or freed).
func (o *Object) SortSymbols(cmp SymbolCmpFunc) {
	if o == nil || o.symbols == nil {
		return
	}
	entries := make([]*Symbol, 0, o.symbols.len())
	for n := o.symbols.first(); n != nil; n = n.next {
		entries = append(entries, n.val)
	}
	stableSort(entries, cmp)

	fresh := newOrderedList[*Symbol]()
	for _, s := range entries {
		fresh.append(s)
	}
	o.symbols = fresh
	o.symCursor = nil
	o.symTypedCursor = nil
}

// stableSort is a straightforward insertion sort: the object model is
// expected to hold at most a few thousand symbols, so an allocation-free
// O(n^2) sort in place is preferable to pulling in sort.SliceStable's
// reflection-based machinery for this one call site.
func stableSort(s []*Symbol, cmp SymbolCmpFunc) {
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && cmp(v, s[j]) < 0 {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
}

// RemoveSymbolByName removes the first symbol with the given name and
// returns true if one was removed.
func (o *Object) RemoveSymbolByName(name string) bool {
	if o == nil || o.symbols == nil {
		return false
	}
	_, ok := o.symbols.removeMatch(func(s *Symbol) bool { return s.Name == name })
	return ok
}

// GetSymbolIndex returns the zero-based ordinal of s by identity (not
// name equality), or IndexNotFound if s is not present.
func (o *Object) GetSymbolIndex(s *Symbol) uint {
	if o == nil || o.symbols == nil || s == nil {
		return IndexNotFound
	}
	var i uint
	for n := o.symbols.first(); n != nil; n = n.next {
		if n.val == s {
			return i
		}
		i++
	}
	return IndexNotFound
}

// SetSourceFile replaces s's owned Src field.
func (o *Object) SetSourceFile(s *Symbol, filename string) {
	if s == nil {
		return
	}
	s.Src = &filename
}

// FirstSymbolByType starts a typed traversal, invalidating any previous
// typed cursor, and returns the first symbol whose Type equals typ.
func (o *Object) FirstSymbolByType(typ SymbolType) *Symbol {
	if o == nil || o.symbols == nil {
		return nil
	}
	o.symTypedKind = typ
	n := o.symbols.first()
	for n != nil && n.val.Type != typ {
		n = n.next
	}
	o.symTypedCursor = n
	if n == nil {
		return nil
	}
	return n.val
}

// NextSymbolByType advances the typed cursor started by FirstSymbolByType.
func (o *Object) NextSymbolByType(typ SymbolType) *Symbol {
	if o == nil || o.symTypedCursor == nil {
		return nil
	}
	n := o.symTypedCursor.next
	for n != nil && n.val.Type != typ {
		n = n.next
	}
	o.symTypedCursor = n
	if n == nil {
		return nil
	}
	return n.val
}
