package objfile

import "errors"

// Sentinel errors for the registry's error taxonomy (spec §7).
var (
	// ErrRegistryFull is returned by Register when the registry already
	// holds as many backends as its capacity (see NewRegistry).
	ErrRegistryFull = errors.New("objfile: registry is full")

	// ErrBackendMissingFormat is returned by Register when a backend's
	// Format() is nil (i.e. a zero-value function field was supplied).
	ErrBackendMissingFormat = errors.New("objfile: backend must implement Format()")

	// ErrNoBackendRecognizesFile is returned by Read when no registered
	// backend claims the file.
	ErrNoBackendRecognizesFile = errors.New("objfile: no backend recognizes this file")

	// ErrNoBackendForFormat is returned by Write when no registered
	// backend's Format() matches the object's Type.
	ErrNoBackendForFormat = errors.New("objfile: no backend registered for this format")

	// ErrBackendHasNoWriter is returned by Write when the matching
	// backend does not implement Write.
	ErrBackendHasNoWriter = errors.New("objfile: backend has no writer")
)
