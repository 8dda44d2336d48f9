package render

import (
	"errors"
	"fmt"
)

// Kind classifies renderer failures. Both kinds are fatal for the item being
// rendered and are never retried automatically.
type Kind int

const (
	// KindEngineUnavailable means the rendering engine could not be located
	// or started.
	KindEngineUnavailable Kind = iota + 1

	// KindRenderFailed means the engine ran but the invocation errored, or
	// its output failed validation.
	KindRenderFailed
)

func (k Kind) String() string {
	switch k {
	case KindEngineUnavailable:
		return "render_engine_unavailable"
	case KindRenderFailed:
		return "render_failed"
	default:
		return "unknown"
	}
}

// Error carries the failure kind for a render attempt.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("render: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the render failure kind from err, or zero when err did not
// originate in this package.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return 0
}
