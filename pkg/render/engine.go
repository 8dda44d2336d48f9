package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Engine is the black-box HTML to PDF conversion step. Implementations must
// be safe for concurrent use; the orchestrator's workers share one instance.
type Engine interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// EnginePathEnv names the environment variable that overrides binary
// discovery for the default engine.
const EnginePathEnv = "WKHTMLTOPDF_PATH"

// wkhtmlCandidates are probed in order when neither an explicit path nor the
// environment variable is set.
var wkhtmlCandidates = []string{
	"/usr/local/bin/wkhtmltopdf",
	"/usr/bin/wkhtmltopdf",
	`C:\Program Files\wkhtmltopdf\bin\wkhtmltopdf.exe`,
}

// WKHTMLOption customises the wkhtmltopdf engine.
type WKHTMLOption func(*WKHTMLEngine)

// WithBinaryPath pins the wkhtmltopdf binary location.
func WithBinaryPath(path string) WKHTMLOption {
	return func(e *WKHTMLEngine) {
		e.path = strings.TrimSpace(path)
	}
}

// WithRenderTimeout bounds a single engine invocation.
func WithRenderTimeout(timeout time.Duration) WKHTMLOption {
	return func(e *WKHTMLEngine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithEngineLogger injects a structured logger.
func WithEngineLogger(logger *slog.Logger) WKHTMLOption {
	return func(e *WKHTMLEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WKHTMLEngine shells out to wkhtmltopdf, streaming markup through stdin and
// reading the PDF from stdout.
type WKHTMLEngine struct {
	path    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewWKHTMLEngine locates the wkhtmltopdf binary (explicit path, then the
// WKHTMLTOPDF_PATH variable, then PATH, then well-known install locations)
// and returns a ready engine. Failure to locate it surfaces
// KindEngineUnavailable.
func NewWKHTMLEngine(options ...WKHTMLOption) (*WKHTMLEngine, error) {
	e := &WKHTMLEngine{
		timeout: 2 * time.Minute,
		logger:  slog.Default(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(e)
		}
	}
	if e.path == "" {
		e.path = os.Getenv(EnginePathEnv)
	}
	if e.path == "" {
		if found, err := exec.LookPath("wkhtmltopdf"); err == nil {
			e.path = found
		}
	}
	if e.path == "" {
		for _, candidate := range wkhtmlCandidates {
			if _, err := os.Stat(candidate); err == nil {
				e.path = candidate
				break
			}
		}
	}
	if e.path == "" {
		return nil, &Error{Kind: KindEngineUnavailable, Err: fmt.Errorf("wkhtmltopdf binary not found; set %s", EnginePathEnv)}
	}
	e.logger.Debug("render engine located", "path", e.path)
	return e, nil
}

// Render converts html into PDF bytes. Invocation errors surface
// KindRenderFailed with the engine's stderr attached.
func (e *WKHTMLEngine) Render(ctx context.Context, html string) ([]byte, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, e.path, "--quiet", "--enable-local-file-access", "-", "-")
	cmd.Stdin = strings.NewReader(html)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, exec.ErrNotFound) {
			return nil, &Error{Kind: KindEngineUnavailable, Err: err}
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, &Error{Kind: KindRenderFailed, Err: fmt.Errorf("wkhtmltopdf: %s", detail)}
	}
	return stdout.Bytes(), nil
}
