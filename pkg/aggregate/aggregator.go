// Package aggregate assembles normalized form documents from the remote
// platform: the form's own field values plus optional relationship and asset
// data. Sub-fetches are best-effort; only the base form fetch can fail an
// aggregation.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/goliatone/go-formexport/pkg/acc"
	"github.com/goliatone/go-formexport/pkg/document"
)

// Client is the slice of the ACC client the aggregator consumes.
type Client interface {
	Project(ctx context.Context, projectID string) (acc.ProjectRecord, error)
	Form(ctx context.Context, projectID, formID string) (acc.FormRecord, error)
	Relationships(ctx context.Context, projectID, formID string) ([]acc.RelationshipRecord, error)
	Asset(ctx context.Context, projectID, assetID string) (acc.AssetRecord, error)
	AssetContent(ctx context.Context, contentURL string) ([]byte, error)
}

// Options selects which optional data an aggregation resolves.
type Options struct {
	IncludeRelationships bool
	IncludeAssets        bool
}

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Aggregator builds FormDocument values from remote data.
type Aggregator struct {
	client Client
	logger *slog.Logger

	mu           sync.Mutex
	projectNames map[string]string
}

// New constructs an Aggregator over the given client.
func New(client Client, options ...Option) (*Aggregator, error) {
	if client == nil {
		return nil, errors.New("aggregate: client is required")
	}
	a := &Aggregator{
		client:       client,
		logger:       slog.Default(),
		projectNames: make(map[string]string),
	}
	for _, opt := range options {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Aggregate fetches the base form and, per opts, its relationships and
// assets, folding everything into a single renderable document. The base
// fetch failure propagates unchanged; every sub-fetch failure degrades into
// the document instead.
func (a *Aggregator) Aggregate(ctx context.Context, projectID, formID string, opts Options) (document.FormDocument, error) {
	form, err := a.client.Form(ctx, projectID, formID)
	if err != nil {
		return document.FormDocument{}, fmt.Errorf("aggregate form %s: %w", formID, err)
	}

	doc := normalizeForm(form)
	doc.ProjectName = a.projectName(ctx, projectID)

	if opts.IncludeRelationships || opts.IncludeAssets {
		a.resolveRelationships(ctx, projectID, formID, opts, &doc)
	}
	return doc, nil
}

// projectName resolves the project's display name once per project and
// caches it across the job's forms. Lookup failure degrades to an empty
// name; the document header simply omits it.
func (a *Aggregator) projectName(ctx context.Context, projectID string) string {
	a.mu.Lock()
	name, ok := a.projectNames[projectID]
	a.mu.Unlock()
	if ok {
		return name
	}

	record, err := a.client.Project(ctx, projectID)
	if err != nil {
		// Not cached, the next form retries the lookup.
		a.logger.Warn("project lookup failed, omitting project name", "projectId", projectID, "error", err)
		return ""
	}
	a.mu.Lock()
	a.projectNames[projectID] = record.Name
	a.mu.Unlock()
	return record.Name
}

func (a *Aggregator) resolveRelationships(ctx context.Context, projectID, formID string, opts Options, doc *document.FormDocument) {
	logCtx := a.logger.With("formId", formID)

	records, err := a.client.Relationships(ctx, projectID, formID)
	if err != nil {
		// Relationship data is supplementary; the document stays renderable
		// without it.
		logCtx.Warn("relationship listing failed, continuing without", "error", err)
		return
	}

	for _, rel := range records {
		for _, entity := range rel.Entities {
			if entity.Type == "form" && entity.ID == formID {
				continue
			}
			resolved := a.resolveEntity(ctx, projectID, rel.ID, entity, opts, logCtx)
			if opts.IncludeRelationships {
				doc.Relationships = append(doc.Relationships, resolved.rel)
			}
			if opts.IncludeAssets && resolved.asset != nil {
				doc.Assets = append(doc.Assets, *resolved.asset)
			}
		}
	}
}

type resolvedEntity struct {
	rel   document.Relationship
	asset *document.AssetRef
}

func (a *Aggregator) resolveEntity(ctx context.Context, projectID, relID string, entity acc.RelationshipEntity, opts Options, logCtx *slog.Logger) resolvedEntity {
	out := resolvedEntity{
		rel: document.Relationship{
			ID:       relID,
			Type:     entity.Type,
			EntityID: entity.ID,
			Label:    entity.ID,
		},
	}
	if entity.Type != "asset" {
		return out
	}

	record, err := a.client.Asset(ctx, projectID, entity.ID)
	if err != nil {
		// Label lookup failure degrades to the raw identifier.
		logCtx.Warn("asset lookup failed, using raw identifier", "assetId", entity.ID, "error", err)
		if opts.IncludeAssets {
			out.asset = &document.AssetRef{
				ID:      entity.ID,
				Name:    entity.ID,
				Outcome: document.AssetDegraded,
				Err:     err.Error(),
			}
		}
		return out
	}

	out.rel.Label = record.DisplayName()
	if !opts.IncludeAssets {
		return out
	}

	ref := document.AssetRef{
		ID:       record.ID,
		Name:     record.DisplayName(),
		Location: record.LocationID,
		Barcode:  record.Barcode,
		URL:      record.ContentURL,
		Outcome:  document.AssetOmitted,
	}
	switch {
	case record.ContentURL == "":
		ref.Outcome = document.AssetDegraded
		ref.Err = "asset has no downloadable content"
	default:
		content, err := a.client.AssetContent(ctx, record.ContentURL)
		if err != nil {
			logCtx.Warn("asset content fetch failed", "assetId", record.ID, "error", err)
			ref.Outcome = document.AssetDegraded
			ref.Err = err.Error()
		} else {
			ref.Outcome = document.AssetFetched
			ref.Content = content
		}
	}
	out.asset = &ref
	return out
}
