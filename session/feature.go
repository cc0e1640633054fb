package session

import "github.com/ggoodman/langclient-go/environment"

// Feature is a pluggable unit of protocol behavior.
//
// Initialize is called exactly once, when the Session becomes Running or
// immediately on registration if it already is. It receives the Environment
// current at that moment, must not block, and must not register further
// Features. Deinitialize releases whatever Initialize acquired; it is called
// once on Stop, must tolerate being called without a prior Initialize, and
// must not panic.
type Feature interface {
	Initialize(s *Session, env environment.Environment) error
	Deinitialize()
}

// Named is implemented by Features that want a stable name in logs.
type Named interface {
	Name() string
}

func featureName(f Feature) string {
	if n, ok := f.(Named); ok {
		return n.Name()
	}
	return "anonymous"
}
