// Package export is the pipeline core: it accepts batch export requests,
// schedules per-form aggregation and rendering across a bounded worker pool,
// tracks observable per-item progress, isolates per-item failures, and
// packages the final deliverable.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-formexport/pkg/aggregate"
	"github.com/goliatone/go-formexport/pkg/document"
	"github.com/goliatone/go-formexport/pkg/render"
)

const defaultConcurrency = 4

// Aggregator is the slice of the aggregate package the orchestrator drives.
type Aggregator interface {
	Aggregate(ctx context.Context, projectID, formID string, opts aggregate.Options) (document.FormDocument, error)
}

// Renderer is the slice of the render package the orchestrator drives.
type Renderer interface {
	Render(ctx context.Context, doc document.FormDocument, branding render.Branding) ([]byte, error)
}

// BrandingSource supplies the branding configuration read at submission
// time. Later settings changes never affect in-flight jobs.
type BrandingSource interface {
	BrandingConfig(ctx context.Context) (render.Branding, error)
}

// Option customises the orchestrator.
type Option func(*Orchestrator)

// WithStore injects a shared progress store.
func WithStore(store *Store) Option {
	return func(o *Orchestrator) {
		if store != nil {
			o.store = store
		}
	}
}

// WithBrandingSource injects the settings collaborator consulted when a
// request carries no explicit branding.
func WithBrandingSource(source BrandingSource) Option {
	return func(o *Orchestrator) {
		o.branding = source
	}
}

// WithConcurrency bounds the worker pool. Values outside 1..16 are ignored;
// keep this low enough to respect the remote API's rate limits.
func WithConcurrency(workers int) Option {
	return func(o *Orchestrator) {
		if workers >= 1 && workers <= 16 {
			o.concurrency = workers
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Orchestrator coordinates the aggregate → render → bundle pipeline for
// batch export jobs. Submission is asynchronous: callers poll Status and
// collect the deliverable with Artifact once the job is terminal.
type Orchestrator struct {
	aggregator  Aggregator
	renderer    Renderer
	store       *Store
	branding    BrandingSource
	concurrency int
	logger      *slog.Logger

	wg sync.WaitGroup
}

// New constructs an Orchestrator. Aggregator and renderer are required; the
// store defaults to a fresh in-process one.
func New(aggregator Aggregator, renderer Renderer, options ...Option) (*Orchestrator, error) {
	if aggregator == nil {
		return nil, errors.New("export: aggregator is required")
	}
	if renderer == nil {
		return nil, errors.New("export: renderer is required")
	}
	o := &Orchestrator{
		aggregator:  aggregator,
		renderer:    renderer,
		store:       NewStore(),
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(o)
		}
	}
	return o, nil
}

// Request describes one batch export.
type Request struct {
	ProjectID string

	// FormIDs lists the forms to export, in order. Duplicates are preserved
	// positionally but each identifier is processed once.
	FormIDs []string

	// Filenames optionally names each output, aligned with FormIDs. Empty
	// slice means derived names; a non-empty slice must match FormIDs in
	// length.
	Filenames []string

	// Aggregate selects relationship/asset resolution.
	Aggregate aggregate.Options

	// Branding overrides the configured BrandingSource for this job.
	Branding *render.Branding

	// Bundle selects the multi-form packaging. Defaults to BundleZIP.
	Bundle BundleMode
}

// Submit validates the request, creates the job record with every item
// queued, and returns the job identifier immediately. Processing happens on
// background workers; Submit never blocks on it.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (string, error) {
	if len(req.FormIDs) == 0 {
		return "", fmt.Errorf("%w: empty form list", ErrInvalidRequest)
	}
	if req.ProjectID == "" {
		return "", fmt.Errorf("%w: project identifier is required", ErrInvalidRequest)
	}
	if len(req.Filenames) > 0 && len(req.Filenames) != len(req.FormIDs) {
		return "", fmt.Errorf("%w: %d filenames for %d forms", ErrInvalidRequest, len(req.Filenames), len(req.FormIDs))
	}

	branding, err := o.resolveBranding(ctx, req)
	if err != nil {
		return "", fmt.Errorf("export: read branding config: %w", err)
	}

	job := &Job{
		ID:        uuid.NewString(),
		ProjectID: req.ProjectID,
		FormIDs:   append([]string(nil), req.FormIDs...),
		Items:     make(map[string]Item),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	// First occurrence wins for both processing order and custom filenames.
	var unique []string
	names := make(map[string]string)
	for i, formID := range req.FormIDs {
		if _, seen := job.Items[formID]; seen {
			continue
		}
		job.Items[formID] = Item{FormID: formID, Stage: StageQueued}
		unique = append(unique, formID)
		if len(req.Filenames) > 0 && req.Filenames[i] != "" {
			names[formID] = ensurePDFSuffix(SanitizeFilename(req.Filenames[i]))
		}
	}
	o.store.Create(job)

	o.wg.Add(1)
	go o.run(job.ID, req, unique, names, branding)

	o.logger.Info("export job submitted", "jobId", job.ID, "forms", len(unique))
	return job.ID, nil
}

// Status returns a point-in-time snapshot of the job. It never blocks on
// in-flight work, and repeated reads of a terminal job are identical.
func (o *Orchestrator) Status(jobID string) (*Job, error) {
	return o.store.Read(jobID)
}

// Artifact returns the final deliverable: ErrNotReady while processing,
// ErrNoArtifact for a terminal job where every item failed.
func (o *Orchestrator) Artifact(jobID string) (*Artifact, error) {
	job, err := o.store.Read(jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.Terminal() {
		return nil, ErrNotReady
	}
	if job.Artifact == nil {
		return nil, ErrNoArtifact
	}
	return job.Artifact, nil
}

// Cancel marks the job cancelling. Workers observe the flag between stages:
// queued items fail with a cancelled reason, items already rendering finish
// normally. Terminal jobs are left untouched.
func (o *Orchestrator) Cancel(jobID string) error {
	return o.store.UpdateJob(jobID, func(job *Job) {
		if !job.Status.Terminal() {
			job.Status = StatusCancelling
		}
	})
}

// Evict drops a terminal job record from the store.
func (o *Orchestrator) Evict(jobID string) {
	o.store.Evict(jobID)
}

// Wait blocks until every in-flight job has finished. Intended for shutdown
// and tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) resolveBranding(ctx context.Context, req Request) (render.Branding, error) {
	if req.Branding != nil {
		return *req.Branding, nil
	}
	if o.branding != nil {
		return o.branding.BrandingConfig(ctx)
	}
	return render.DefaultBranding(), nil
}

// run processes a job to completion on the worker pool. It owns every status
// transition for the job.
func (o *Orchestrator) run(jobID string, req Request, unique []string, names map[string]string, branding render.Branding) {
	defer o.wg.Done()
	logCtx := o.logger.With("jobId", jobID)

	o.store.UpdateJob(jobID, func(job *Job) {
		if job.Status == StatusPending {
			job.Status = StatusRunning
		}
	})

	results := struct {
		sync.Mutex
		rendered map[string]bundleEntry
	}{rendered: make(map[string]bundleEntry)}

	eg, ctx := errgroup.WithContext(context.Background())
	eg.SetLimit(o.concurrency)
	for _, formID := range unique {
		formID := formID
		eg.Go(func() error {
			entry, ok := o.processItem(ctx, jobID, req, formID, names[formID], branding, logCtx)
			if ok {
				results.Lock()
				results.rendered[formID] = entry
				results.Unlock()
			}
			return nil
		})
	}
	eg.Wait()

	o.finalize(jobID, req, unique, results.rendered, logCtx)
}

// processItem walks one form through fetch and render, updating its status
// entry at every transition. Failures are contained to the item.
func (o *Orchestrator) processItem(ctx context.Context, jobID string, req Request, formID, customName string, branding render.Branding, logCtx *slog.Logger) (bundleEntry, bool) {
	if o.cancelling(jobID) {
		o.failItem(jobID, formID, FailureCancelled, "export cancelled before processing")
		return bundleEntry{}, false
	}

	o.store.UpdateItem(jobID, formID, func(item *Item) { item.Stage = StageFetching })
	doc, err := o.aggregator.Aggregate(ctx, req.ProjectID, formID, req.Aggregate)
	if err != nil {
		logCtx.Warn("aggregation failed", "formId", formID, "error", err)
		o.failItem(jobID, formID, failureKind(err), err.Error())
		return bundleEntry{}, false
	}

	// Cancellation is honoured between stages, never mid-render.
	if o.cancelling(jobID) {
		o.failItem(jobID, formID, FailureCancelled, "export cancelled before rendering")
		return bundleEntry{}, false
	}

	o.store.UpdateItem(jobID, formID, func(item *Item) { item.Stage = StageRendering })
	pdf, err := o.renderer.Render(ctx, doc, branding)
	if err != nil {
		logCtx.Warn("render failed", "formId", formID, "error", err)
		o.failItem(jobID, formID, failureKind(err), err.Error())
		return bundleEntry{}, false
	}

	filename := customName
	if filename == "" {
		filename = defaultFilename(doc.Name, formID)
	}
	o.store.UpdateItem(jobID, formID, func(item *Item) {
		item.Stage = StageDone
		item.OutputName = filename
	})
	return bundleEntry{filename: filename, data: pdf}, true
}

func (o *Orchestrator) failItem(jobID, formID, kind, message string) {
	o.store.UpdateItem(jobID, formID, func(item *Item) {
		item.Stage = StageFailed
		item.FailureKind = kind
		item.Error = message
	})
}

func (o *Orchestrator) cancelling(jobID string) bool {
	status, err := o.store.Status(jobID)
	return err == nil && status == StatusCancelling
}

// finalize derives the terminal status and packages the deliverable: a
// single-form job yields raw PDF bytes, a multi-form job a ZIP archive (or
// merged PDF) containing exactly the successful items.
func (o *Orchestrator) finalize(jobID string, req Request, unique []string, rendered map[string]bundleEntry, logCtx *slog.Logger) {
	var artifact *Artifact
	var packErr error

	if len(rendered) > 0 {
		if len(req.FormIDs) == 1 {
			entry := rendered[req.FormIDs[0]]
			artifact = &Artifact{
				ContentType: ContentTypePDF,
				Filename:    entry.filename,
				Data:        entry.data,
			}
		} else {
			entries := make([]bundleEntry, 0, len(rendered))
			for _, formID := range unique {
				if entry, ok := rendered[formID]; ok {
					entries = append(entries, entry)
				}
			}
			switch req.Bundle {
			case BundleMergedPDF:
				artifact, packErr = mergeBundle(entries, len(req.FormIDs))
			default:
				artifact, packErr = zipBundle(entries, len(req.FormIDs))
			}
		}
	}

	o.store.UpdateJob(jobID, func(job *Job) {
		if packErr != nil {
			// Packaging failure downgrades every successful item's value:
			// surface it as a failed job rather than a corrupt artifact.
			job.Status = StatusFailed
		} else {
			job.Status = overallStatus(job.Items)
			job.Artifact = artifact
		}
		now := time.Now()
		job.CompletedAt = &now
	})

	if packErr != nil {
		logCtx.Error("artifact packaging failed", "error", packErr)
		return
	}
	status, _ := o.store.Status(jobID)
	logCtx.Info("export job finished", "status", status)
}
