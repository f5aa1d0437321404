// Package objfile is an in-memory object-file model shared by the MZ, PE,
// ELF32 and ELF64 backends: sections, symbols, relocations and imports,
// plus a small registry that dispatches detection, reading and writing to
// whichever backend claims a given file.
package objfile
