// Package formexport turns construction site forms into branded PDF
// documents. The root package re-exports the pieces most callers need: the
// remote API client, the aggregation and rendering stages, and the batch
// export orchestrator. Everything here delegates to the pkg subpackages.
package formexport

import (
	"context"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-formexport/pkg/acc"
	"github.com/goliatone/go-formexport/pkg/aggregate"
	"github.com/goliatone/go-formexport/pkg/document"
	"github.com/goliatone/go-formexport/pkg/export"
	"github.com/goliatone/go-formexport/pkg/render"
)

// FormDocument is the normalized, render-ready form representation.
type FormDocument = document.FormDocument

// Branding carries the visual settings applied to every rendered page.
type Branding = render.Branding

// Request describes one batch export submission.
type Request = export.Request

// Job is a point-in-time snapshot of an export job.
type Job = export.Job

// Artifact is a finished job's deliverable.
type Artifact = export.Artifact

// AggregateOptions selects relationship and asset resolution during fetch.
type AggregateOptions = aggregate.Options

// TokenSource supplies and refreshes the remote API access token.
type TokenSource = acc.TokenSource

// Exporter bundles the full pipeline behind a single entry point: one remote
// client, one aggregator, one renderer, one orchestrator.
type Exporter struct {
	client       *acc.Client
	orchestrator *export.Orchestrator
}

// ExporterOptions configures NewExporter. Zero values fall back to the same
// defaults the subpackages use.
type ExporterOptions struct {
	// Tokens is required.
	Tokens acc.TokenSource

	// BaseURL overrides the remote API host, for tests and proxies.
	BaseURL string

	// ClientOptions are applied to the remote API client after BaseURL, for
	// retry and rate limit tuning.
	ClientOptions []acc.Option

	// EnginePath points at the wkhtmltopdf binary when it is not on PATH.
	EnginePath string

	// Concurrency bounds the export worker pool.
	Concurrency int

	// Branding supplies per-job branding defaults.
	Branding export.BrandingSource

	// Themes resolves named theme tokens for the renderer.
	Themes theme.ThemeSelector
}

// NewExporter wires the standard pipeline. It fails fast when the rendering
// engine cannot be located, rather than surfacing that on the first job.
func NewExporter(opts ExporterOptions) (*Exporter, error) {
	clientOpts := []acc.Option{}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, acc.WithBaseURL(opts.BaseURL))
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)
	client, err := acc.New(opts.Tokens, clientOpts...)
	if err != nil {
		return nil, err
	}

	aggregator, err := aggregate.New(client)
	if err != nil {
		return nil, err
	}

	var engineOpts []render.WKHTMLOption
	if opts.EnginePath != "" {
		engineOpts = append(engineOpts, render.WithBinaryPath(opts.EnginePath))
	}
	engine, err := render.NewWKHTMLEngine(engineOpts...)
	if err != nil {
		return nil, err
	}

	var rendererOpts []render.Option
	if opts.Themes != nil {
		rendererOpts = append(rendererOpts, render.WithThemeSelector(opts.Themes))
	}
	renderer, err := render.New(engine, rendererOpts...)
	if err != nil {
		return nil, err
	}

	orchestratorOpts := []export.Option{}
	if opts.Concurrency > 0 {
		orchestratorOpts = append(orchestratorOpts, export.WithConcurrency(opts.Concurrency))
	}
	if opts.Branding != nil {
		orchestratorOpts = append(orchestratorOpts, export.WithBrandingSource(opts.Branding))
	}
	orchestrator, err := export.New(aggregator, renderer, orchestratorOpts...)
	if err != nil {
		return nil, err
	}

	return &Exporter{client: client, orchestrator: orchestrator}, nil
}

// Client exposes the underlying remote API client, for listing projects and
// forms ahead of an export.
func (e *Exporter) Client() *acc.Client {
	return e.client
}

// Submit starts a batch export and returns its job identifier.
func (e *Exporter) Submit(ctx context.Context, req Request) (string, error) {
	return e.orchestrator.Submit(ctx, req)
}

// Status returns a snapshot of the job's progress.
func (e *Exporter) Status(jobID string) (*Job, error) {
	return e.orchestrator.Status(jobID)
}

// Artifact returns the deliverable of a terminal job.
func (e *Exporter) Artifact(jobID string) (*Artifact, error) {
	return e.orchestrator.Artifact(jobID)
}

// Cancel requests cancellation; queued items are preempted, items already
// rendering finish.
func (e *Exporter) Cancel(jobID string) error {
	return e.orchestrator.Cancel(jobID)
}

// Wait blocks until every in-flight job has finished.
func (e *Exporter) Wait() {
	e.orchestrator.Wait()
}

// ExportForm is the simplest entry point: it exports a single form
// synchronously and returns the PDF bytes.
func ExportForm(ctx context.Context, exporter *Exporter, projectID, formID string) ([]byte, error) {
	jobID, err := exporter.Submit(ctx, Request{
		ProjectID: projectID,
		FormIDs:   []string{formID},
	})
	if err != nil {
		return nil, err
	}
	exporter.Wait()
	artifact, err := exporter.Artifact(jobID)
	if err != nil {
		return nil, err
	}
	return artifact.Data, nil
}
