// Package render converts aggregated form documents into branded PDF byte
// streams. The markup step is deterministic for identical inputs; the actual
// HTML to PDF conversion is delegated to an injected Engine.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	theme "github.com/goliatone/go-theme"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/goliatone/go-formexport/pkg/document"
)

// Option customises a Renderer.
type Option func(*Renderer)

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the clock used for the exported-at header line, keeping
// output reproducible in tests.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// WithThemeSelector resolves branding theme names into style manifests whose
// tokens colour the document.
func WithThemeSelector(selector theme.ThemeSelector) Option {
	return func(r *Renderer) {
		r.themes = selector
	}
}

// WithOutputValidation toggles the structural check applied to engine output.
// On by default: the engine is a black box and a zero-page or truncated PDF
// should fail the item rather than ship.
func WithOutputValidation(enabled bool) Option {
	return func(r *Renderer) {
		r.validate = enabled
	}
}

// Renderer builds form markup and drives the rendering engine.
type Renderer struct {
	engine   Engine
	markup   *markupBuilder
	themes   theme.ThemeSelector
	validate bool
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a Renderer around the given engine.
func New(engine Engine, options ...Option) (*Renderer, error) {
	if engine == nil {
		return nil, errors.New("render: engine is required")
	}
	r := &Renderer{
		engine:   engine,
		validate: true,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	markup, err := newMarkupBuilder(r.now)
	if err != nil {
		return nil, err
	}
	r.markup = markup
	return r, nil
}

// Render produces the PDF bytes for one form document under the given
// branding. Engine failures and invalid output surface as *Error values; the
// caller treats both as fatal for the item without retrying.
func (r *Renderer) Render(ctx context.Context, doc document.FormDocument, branding Branding) ([]byte, error) {
	html, err := r.markup.build(doc, branding, r.resolveTokens(branding))
	if err != nil {
		return nil, err
	}

	pdf, err := r.engine.Render(ctx, html)
	if err != nil {
		var re *Error
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, &Error{Kind: KindRenderFailed, Err: err}
	}

	if r.validate {
		if err := checkPDF(pdf); err != nil {
			return nil, &Error{Kind: KindRenderFailed, Err: fmt.Errorf("engine output rejected: %w", err)}
		}
	}

	r.logger.Debug("form rendered", "formId", doc.FormID, "bytes", len(pdf))
	return pdf, nil
}

// resolveTokens looks up the branding theme's token table. Missing selectors
// or unresolved themes fall back to the built-in palette.
func (r *Renderer) resolveTokens(branding Branding) map[string]string {
	if r.themes == nil || branding.Theme == "" {
		return nil
	}
	selection, err := r.themes.Select(branding.Theme, branding.Variant)
	if err != nil || selection == nil || selection.Manifest == nil {
		r.logger.Warn("theme selection failed, using default palette", "theme", branding.Theme, "error", err)
		return nil
	}
	return selection.Manifest.Tokens
}

// checkPDF verifies the engine produced a well-formed document with at least
// one page.
func checkPDF(pdf []byte) error {
	pages, err := api.PageCount(bytes.NewReader(pdf), nil)
	if err != nil {
		return err
	}
	if pages < 1 {
		return fmt.Errorf("document has no pages")
	}
	return nil
}
