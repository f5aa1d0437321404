package objfile

// Section is a named, addressable region of bytes within an object.
type Section struct {
	Name       string
	Type       SectionType
	Index      uint
	Size       uint64
	Address    uint64
	Flags      SectionFlag
	EntrySize  uint
	Alignment  uint
	Data       []byte
	// Strtab is a weak back-reference to another section providing
	// strings; never ownership.
	Strtab *Section
}

// AddSection appends a new section, copying name and taking ownership of
// data (a nil slice is valid and typical for bss sections).
func (o *Object) AddSection(name string, size, address uint64, data []byte, entrySize, alignment uint, flags SectionFlag) *Section {
	if o == nil {
		return nil
	}
	if o.sections == nil {
		o.sections = newOrderedList[*Section]()
	}
	s := &Section{
		Name:      name,
		Size:      size,
		Address:   address,
		Flags:     flags,
		EntrySize: entrySize,
		Data:      data,
		Alignment: alignment,
	}
	o.sections.append(s)
	return s
}

// SectionCount returns the number of sections in the table.
func (o *Object) SectionCount() int {
	if o == nil || o.sections == nil {
		return 0
	}
	return o.sections.len()
}

// GetSectionByIndex returns the section at the given 1-based position
// (index 1 is the first section, matching the exposed API), or nil.
func (o *Object) GetSectionByIndex(index uint) *Section {
	if o == nil || o.sections == nil {
		return nil
	}
	i := uint(1)
	for n := o.sections.first(); n != nil; n = n.next {
		if i == index {
			return n.val
		}
		i++
	}
	return nil
}

// FindSectionByVal returns the section whose [Address, Address+Size)
// half-open interval contains val, or nil.
func (o *Object) FindSectionByVal(val uint64) *Section {
	if o == nil || o.sections == nil {
		return nil
	}
	for n := o.sections.first(); n != nil; n = n.next {
		s := n.val
		if s.Address <= val && val < s.Address+s.Size {
			return s
		}
	}
	return nil
}

// GetSectionByName returns the first section with an exact name match,
// or nil.
func (o *Object) GetSectionByName(name string) *Section {
	if o == nil || o.sections == nil {
		return nil
	}
	for n := o.sections.first(); n != nil; n = n.next {
		if n.val.Name == name {
			return n.val
		}
	}
	return nil
}

// GetSectionByType returns the first section of the given type, or nil.
func (o *Object) GetSectionByType(typ SectionType) *Section {
	if o == nil || o.sections == nil {
		return nil
	}
	for n := o.sections.first(); n != nil; n = n.next {
		if n.val.Type == typ {
			return n.val
		}
	}
	return nil
}

// GetSectionByAddress returns the section whose Address exactly equals
// address, or nil.
func (o *Object) GetSectionByAddress(address uint64) *Section {
	if o == nil || o.sections == nil {
		return nil
	}
	for n := o.sections.first(); n != nil; n = n.next {
		if n.val.Address == address {
			return n.val
		}
	}
	return nil
}

// GetSectionIndexByName returns the 1-based index of the first section
// with an exact name match, or -1 if none matches.
func (o *Object) GetSectionIndexByName(name string) int {
	if o == nil || o.sections == nil {
		return -1
	}
	index := 0
	for n := o.sections.first(); n != nil; n = n.next {
		if n.val.Name == name {
			return index + 1
		}
		index++
	}
	return -1
}

// FirstSection starts a full-table traversal, invalidating any previous
// full-table section cursor.
func (o *Object) FirstSection() *Section {
	if o == nil || o.sections == nil {
		return nil
	}
	o.sectionCursor = o.sections.first()
	if o.sectionCursor == nil {
		return nil
	}
	return o.sectionCursor.val
}

// NextSection advances the cursor started by FirstSection.
func (o *Object) NextSection() *Section {
	if o == nil || o.sectionCursor == nil {
		return nil
	}
	o.sectionCursor = o.sectionCursor.next
	if o.sectionCursor == nil {
		return nil
	}
	return o.sectionCursor.val
}

// FirstSectionByType starts a typed traversal, invalidating any previous
// typed section cursor, and returns the first section of the given type.
func (o *Object) FirstSectionByType(typ SectionType) *Section {
	if o == nil || o.sections == nil {
		return nil
	}
	o.sectionTypedKind = typ
	n := o.sections.first()
	for n != nil && n.val.Type != typ {
		n = n.next
	}
	o.sectionTypedCur = n
	if n == nil {
		return nil
	}
	return n.val
}

// NextSectionByType advances the cursor started by FirstSectionByType.
func (o *Object) NextSectionByType(typ SectionType) *Section {
	if o == nil || o.sectionTypedCur == nil {
		return nil
	}
	n := o.sectionTypedCur.next
	for n != nil && n.val.Type != typ {
		n = n.next
	}
	o.sectionTypedCur = n
	if n == nil {
		return nil
	}
	return n.val
}

// GetSectionSymbol walks the SECTION-typed symbols looking for one whose
// weak Section reference equals sec (identity compare); returns it or nil.
func (o *Object) GetSectionSymbol(sec *Section) *Symbol {
	if o == nil || sec == nil {
		return nil
	}
	for s := o.FirstSymbolByType(SymbolSection); s != nil; s = o.NextSymbolByType(SymbolSection) {
		if s.Section == sec {
			return s
		}
	}
	return nil
}
