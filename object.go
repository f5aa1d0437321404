package objfile

// Object is the root aggregate: one in-memory representation of an
// executable or object file. It exclusively owns its four child tables
// (symbols, sections, relocations, imports); destroying it frees the
// transitive closure (see Destroy).
type Object struct {
	name  string
	typ   Type
	arch  Arch
	entry uint64

	symbols     *orderedList[*Symbol]
	sections    *orderedList[*Section]
	relocations *orderedList[*Relocation]
	imports     *orderedList[*ImportModule]

	// Iterator cursors: one per traversal kind. Starting a new traversal
	// of a given kind invalidates the previous cursor of that kind
	// (invariant 3).
	symCursor        *node[*Symbol]
	symTypedCursor   *node[*Symbol]
	symTypedKind     SymbolType
	sectionCursor    *node[*Section]
	sectionTypedCur  *node[*Section]
	sectionTypedKind SectionType
	relocCursor      *node[*Relocation]
	importModCursor  *node[*ImportModule]
	importSymCursor  *node[*Symbol]
	importModListCur *node[*ImportModule]
}

// NewObject returns a blank object, equivalent to backend_create().
func NewObject() *Object {
	return &Object{}
}

func (o *Object) Name() string     { return o.name }
func (o *Object) SetName(n string) { o.name = n }

func (o *Object) Type() Type        { return o.typ }
func (o *Object) SetType(t Type)    { o.typ = t }
func (o *Object) Arch() Arch        { return o.arch }
func (o *Object) SetArch(a Arch)    { o.arch = a }
func (o *Object) Entry() uint64     { return o.entry }
func (o *Object) SetEntry(e uint64) { o.entry = e }

// Destroy releases every owned table. It is idempotent: calling it on an
// object with no populated tables, or calling it twice, is a no-op beyond
// the first call clearing the fields.
func (o *Object) Destroy() {
	if o == nil {
		return
	}
	o.symbols = nil
	o.sections = nil
	o.relocations = nil
	o.imports = nil
	o.symCursor = nil
	o.symTypedCursor = nil
	o.sectionCursor = nil
	o.sectionTypedCur = nil
	o.relocCursor = nil
	o.importModCursor = nil
	o.importSymCursor = nil
	o.importModListCur = nil
}
