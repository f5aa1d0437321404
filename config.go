package objfile

import "github.com/xyproto/env/v2"

// Verbose gates the fmt.Fprintf(os.Stderr, ...) tracing scattered through
// the registry and backends, mirroring the teacher's VerboseMode
// convention. It is a plain package variable rather than a field on
// Registry because the backends (separate packages, registered by
// reference) need to observe the same switch without each holding a
// pointer back to the registry that registered them.
var Verbose = false

// VerboseFromEnv reads OBJFILE_VERBOSE from the environment. Callers
// typically assign the result to Verbose at startup; the package itself
// never reads the environment implicitly.
func VerboseFromEnv() bool {
	return env.Bool("OBJFILE_VERBOSE")
}

// MaxBackendsFromEnv reads OBJFILE_MAX_BACKENDS, defaulting to
// DefaultMaxBackends when unset, and clamps the result to [1, 64].
func MaxBackendsFromEnv() int {
	const hardMaxBackends = 64
	n := env.Int("OBJFILE_MAX_BACKENDS", DefaultMaxBackends)
	if n < 1 {
		return 1
	}
	if n > hardMaxBackends {
		return hardMaxBackends
	}
	return n
}
