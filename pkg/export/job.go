package export

import (
	"time"
)

// Status is the overall lifecycle state of an export job.
type Status string

const (
	StatusPending             Status = "pending"
	StatusRunning             Status = "running"
	StatusCancelling          Status = "cancelling"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
)

// Terminal reports whether the job has finished; terminal jobs never mutate
// again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed:
		return true
	default:
		return false
	}
}

// Stage is the per-item processing state.
type Stage string

const (
	StageQueued    Stage = "queued"
	StageFetching  Stage = "fetching"
	StageRendering Stage = "rendering"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// Terminal reports whether the item has reached its final stage.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Item tracks one requested form within a job. Exactly one worker owns an
// item's transitions; FailureKind and Error are set only when Stage is
// StageFailed, OutputName only when StageDone.
type Item struct {
	FormID      string
	Stage       Stage
	FailureKind string
	Error       string
	OutputName  string
}

// Artifact is the final deliverable of a completed job.
type Artifact struct {
	ContentType string
	Filename    string
	Data        []byte
}

// Job is the full record of one batch export. The orchestrator owns all
// mutation; callers only ever see snapshot copies.
type Job struct {
	ID        string
	ProjectID string

	// FormIDs preserves the requested order, duplicates included. Items is
	// keyed by unique identifier, so duplicate requests share an entry.
	FormIDs []string
	Items   map[string]Item

	Status      Status
	CreatedAt   time.Time
	CompletedAt *time.Time
	Artifact    *Artifact
}

// clone deep-copies the job so snapshot readers never observe in-flight
// mutation.
func (j *Job) clone() *Job {
	cp := *j
	cp.FormIDs = append([]string(nil), j.FormIDs...)
	cp.Items = make(map[string]Item, len(j.Items))
	for id, item := range j.Items {
		cp.Items[id] = item
	}
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		cp.CompletedAt = &completed
	}
	if j.Artifact != nil {
		artifact := *j.Artifact
		artifact.Data = append([]byte(nil), j.Artifact.Data...)
		cp.Artifact = &artifact
	}
	return &cp
}

// overallStatus derives the terminal job status from its items: completed
// when every item is done, failed when every item failed, mixed outcomes
// yield completed_with_errors.
func overallStatus(items map[string]Item) Status {
	done, failed := 0, 0
	for _, item := range items {
		switch item.Stage {
		case StageDone:
			done++
		case StageFailed:
			failed++
		}
	}
	switch {
	case failed == 0:
		return StatusCompleted
	case done == 0:
		return StatusFailed
	default:
		return StatusCompletedWithErrors
	}
}
