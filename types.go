package objfile

// Type is the closed set of container formats a backend can claim.
// Extending this set means adding both a tag here and a backend that
// returns it from Format(); the registry's capacity must accommodate
// the extra registration (see DefaultMaxBackends).
type Type int

const (
	TypeNone Type = iota
	TypeMZ
	TypePE
	TypeELF32
	TypeELF64
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeMZ:
		return "mz"
	case TypePE:
		return "pe"
	case TypeELF32:
		return "elf32"
	case TypeELF64:
		return "elf64"
	default:
		return "unknown"
	}
}

// Arch is the closed set of architecture tags an Object can carry.
type Arch int

const (
	ArchUnknown Arch = iota
	ArchI386
	ArchX86_64
	ArchARM
	ArchARM64
)

func (a Arch) String() string {
	switch a {
	case ArchI386:
		return "i386"
	case ArchX86_64:
		return "x86_64"
	case ArchARM:
		return "arm"
	case ArchARM64:
		return "arm64"
	default:
		return "unknown"
	}
}

// SymbolType is the closed set of symbol kinds.
type SymbolType int

const (
	SymbolNone SymbolType = iota
	SymbolFile
	SymbolSection
	SymbolFunction
	SymbolObject
)

func (t SymbolType) String() string {
	switch t {
	case SymbolNone:
		return "none"
	case SymbolFile:
		return "file"
	case SymbolSection:
		return "section"
	case SymbolFunction:
		return "function"
	case SymbolObject:
		return "object"
	default:
		return "Unknown"
	}
}

// SymbolFlag is a bitfield of symbol attributes.
type SymbolFlag uint32

const (
	SymbolFlagGlobal SymbolFlag = 1 << iota
	SymbolFlagLocal
	SymbolFlagExternal
)

// SectionType is the closed set of section kinds.
type SectionType int

const (
	SectionNone SectionType = iota
	SectionCode
	SectionData
	SectionBSS
	SectionStrtab
	SectionSymtab
	SectionReloc
)

func (t SectionType) String() string {
	switch t {
	case SectionNone:
		return "none"
	case SectionCode:
		return "code"
	case SectionData:
		return "data"
	case SectionBSS:
		return "bss"
	case SectionStrtab:
		return "strtab"
	case SectionSymtab:
		return "symtab"
	case SectionReloc:
		return "reloc"
	default:
		return "unknown"
	}
}

// SectionFlag is a bitfield of section attributes.
type SectionFlag uint32

const (
	SectionFlagWrite SectionFlag = 1 << iota
	SectionFlagAlloc
	SectionFlagExec
)

// RelocType is the closed set of relocation kinds.
type RelocType int

const (
	RelocNone RelocType = iota
	RelocOffset
	RelocPCRelative
	RelocPLT
)

// LookupRelocType returns the fixed human-readable tag for t, or
// "unknown" for any value outside the closed set.
func LookupRelocType(t RelocType) string {
	switch t {
	case RelocNone:
		return "none"
	case RelocOffset:
		return "offset"
	case RelocPCRelative:
		return "pc relative"
	case RelocPLT:
		return "PLT relative"
	default:
		return "unknown"
	}
}

// IndexNotFound is the all-ones sentinel returned by index lookups that
// find nothing, mirroring the C source's (unsigned int)-1.
const IndexNotFound = ^uint(0)
