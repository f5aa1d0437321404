// Package backendset holds the fixed-order list of shipped backends,
// standing in for the C source's compile-time backend_table array. A
// caller wires it into a fresh registry with:
//
//	r := objfile.NewRegistry(objfile.MaxBackendsFromEnv())
//	r.Init(backendset.All)
package backendset

import (
	"github.com/xyproto/objfile"
	"github.com/xyproto/objfile/backend/elf32"
	"github.com/xyproto/objfile/backend/elf64"
	"github.com/xyproto/objfile/backend/mz"
	"github.com/xyproto/objfile/backend/pe"
)

// All is every shipped backend's Register function, in the order
// detection should try them: most specific magic-number checks before
// the more permissive ones.
var All = []objfile.BackendInitFunc{
	elf64.Register,
	elf32.Register,
	pe.Register,
	mz.Register,
}
