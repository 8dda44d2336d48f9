package export

import (
	"errors"

	"github.com/goliatone/go-formexport/pkg/acc"
	"github.com/goliatone/go-formexport/pkg/render"
)

var (
	// ErrInvalidRequest rejects a malformed submission synchronously; it
	// never enters the job lifecycle.
	ErrInvalidRequest = errors.New("export: invalid request")

	// ErrNotFound means the job identifier is unknown to the store. Jobs in
	// flight at process shutdown are lost; callers must treat a missing job
	// as not found, never as an implicit failure.
	ErrNotFound = errors.New("export: job not found")

	// ErrNotReady means the job has not reached a terminal state yet.
	ErrNotReady = errors.New("export: job not finished")

	// ErrNoArtifact means the job finished without producing a deliverable,
	// which happens when every item failed.
	ErrNoArtifact = errors.New("export: job produced no artifact")
)

// FailureCancelled labels items preempted by a cancellation request.
const FailureCancelled = "cancelled"

// failureKind maps a per-item processing error onto the stable label stored
// in the item's status entry.
func failureKind(err error) string {
	if kind := acc.KindOf(err); kind != acc.KindUnknown {
		return kind.String()
	}
	if kind := render.KindOf(err); kind != 0 {
		return kind.String()
	}
	return "error"
}
