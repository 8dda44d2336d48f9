package acc

import (
	"errors"
	"fmt"
)

// Kind classifies client failures so callers can react without parsing
// message text. Per-item export handling keys off these values.
type Kind int

const (
	// KindUnknown covers transport faults that never produced an HTTP status.
	KindUnknown Kind = iota

	// KindUnavailable marks a request that exhausted its retry budget against
	// 429/5xx responses.
	KindUnavailable

	// KindUnauthorized marks a 401 that survived a token refresh.
	KindUnauthorized

	// KindNotFound marks a 404, or a form/asset absent from its listing.
	KindNotFound

	// KindRemote marks any other non-2xx response.
	KindRemote
)

// String returns the stable label used in item diagnostics.
func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "remote_unavailable"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindRemote:
		return "remote_error"
	default:
		return "unknown"
	}
}

// Error carries the failure kind alongside diagnostics from the remote
// platform. Status and Body are zero/empty when no response was received.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("acc: %s: %s (status %d): %s", e.Op, e.Kind, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("acc: %s: %s (status %d)", e.Op, e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("acc: %s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("acc: %s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err, or KindUnknown when err did not
// originate in this package.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}
