package objfile

import (
	"fmt"
	"os"
)

// DefaultMaxBackends is the registry's default compile-time capacity:
// room for the four shipped backends (mz, pe, elf32, elf64) plus
// headroom for a handful more. Overridable via MaxBackendsFromEnv; see
// SPEC_FULL.md §4.10.
const DefaultMaxBackends = 8

// Backend is the capability set a format plug-in exposes upward. Read
// and Write are optional: a nil Read means "does not recognize this
// file"; a nil Write means writes to this format return
// ErrBackendHasNoWriter. Name and Format are required.
type Backend struct {
	Name   func() string
	Format func() Type
	Read   func(filename string) (*Object, error)
	Write  func(obj *Object, filename string) error
}

// Registry holds the installed backend descriptors and dispatches
// detection, reading and writing to them. The zero value is usable; it
// has DefaultMaxBackends capacity.
type Registry struct {
	maxBackends int
	backends    []Backend
	targetIter  int
}

// NewRegistry returns a registry with the given backend capacity. A
// maxBackends of 0 or less uses DefaultMaxBackends.
func NewRegistry(maxBackends int) *Registry {
	if maxBackends <= 0 {
		maxBackends = DefaultMaxBackends
	}
	return &Registry{maxBackends: maxBackends}
}

// Register appends be to the registry. It is rejected — with a
// human-readable diagnostic on stderr when Verbose is set — if the
// registry is full or be.Format is nil; registration failures are
// non-fatal, matching the C source's backend_register().
func (r *Registry) Register(be Backend) error {
	if len(r.backends) >= r.cap() {
		if Verbose {
			fmt.Fprintf(os.Stderr, "objfile: can't accept any more backends - registry is full (max=%d)\n", r.cap())
		}
		return ErrRegistryFull
	}
	if be.Format == nil {
		if Verbose {
			fmt.Fprintln(os.Stderr, "objfile: backend must implement Format()")
		}
		return ErrBackendMissingFormat
	}
	if Verbose && be.Name != nil {
		fmt.Fprintf(os.Stderr, "objfile: registering backend %s\n", be.Name())
	}
	r.backends = append(r.backends, be)
	return nil
}

func (r *Registry) cap() int {
	if r.maxBackends <= 0 {
		return DefaultMaxBackends
	}
	return r.maxBackends
}

// BackendInitFunc registers one backend into r during Init, returning an
// error if registration failed. Backend packages expose one of these so
// an integration layer can build the fixed-order init table the spec
// calls for without the core package importing every backend itself.
type BackendInitFunc func(r *Registry) error

// Init invokes each of inits in order, logging (non-fatally) any
// registration failure. This corresponds to the C source's backend_init,
// which walks a compile-time-known, fixed-order table of backend
// self-registration hooks.
func (r *Registry) Init(inits []BackendInitFunc) {
	for _, initFn := range inits {
		if initFn == nil {
			continue
		}
		if err := initFn(r); err != nil && Verbose {
			fmt.Fprintf(os.Stderr, "objfile: backend registration failed: %v\n", err)
		}
	}
}

// LookupTarget returns the format tag of the registered backend whose
// Name() matches name, or TypeNone on no match or an empty name.
func (r *Registry) LookupTarget(name string) Type {
	if name == "" {
		return TypeNone
	}
	for _, be := range r.backends {
		if be.Name != nil && be.Name() == name {
			return be.Format()
		}
	}
	return TypeNone
}

// FirstTarget starts iteration over registered backends' display names,
// sharing a single cursor with NextTarget; returns "" when there are no
// backends.
func (r *Registry) FirstTarget() string {
	r.targetIter = 0
	if len(r.backends) == 0 {
		return ""
	}
	name := r.backends[r.targetIter].Name()
	r.targetIter++
	return name
}

// NextTarget advances the cursor started by FirstTarget, returning "" when
// exhausted.
func (r *Registry) NextTarget() string {
	if r.targetIter >= len(r.backends) {
		return ""
	}
	name := r.backends[r.targetIter].Name()
	r.targetIter++
	return name
}

// Create returns a blank object.
func (r *Registry) Create() *Object {
	return NewObject()
}

// Read offers filename to each backend in registration order, returning
// the first object a backend successfully constructs. It returns
// ErrNoBackendRecognizesFile if none claims the file.
func (r *Registry) Read(filename string) (*Object, error) {
	for _, be := range r.backends {
		if be.Read == nil {
			continue
		}
		obj, err := be.Read(filename)
		if err == nil && obj != nil {
			return obj, nil
		}
	}
	return nil, ErrNoBackendRecognizesFile
}

// Write finds the backend whose Format() equals obj.Type() and delegates
// to its Write. It returns ErrNoBackendForFormat if no backend matches,
// or ErrBackendHasNoWriter if the matching backend lacks a writer.
func (r *Registry) Write(obj *Object) error {
	for _, be := range r.backends {
		if be.Format() == obj.Type() {
			if be.Write == nil {
				return ErrBackendHasNoWriter
			}
			return be.Write(obj, obj.Name())
		}
	}
	return ErrNoBackendForFormat
}
