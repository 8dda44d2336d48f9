// Command formexport exports construction site forms as branded PDF
// documents, either for form identifiers given on the command line or via an
// interactive picker.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	formexport "github.com/goliatone/go-formexport"
	"github.com/goliatone/go-formexport/internal/config"
	"github.com/goliatone/go-formexport/pkg/acc"
	"github.com/goliatone/go-formexport/pkg/export"
)

const pollInterval = 500 * time.Millisecond

func main() {
	configPath := flag.String("config", "formexport.yaml", "configuration file")
	projectID := flag.String("project", "", "project identifier (required)")
	formIDs := flag.String("forms", "", "comma-separated form identifiers; empty opens an interactive picker")
	outputDir := flag.String("output", "", "output directory (overrides config)")
	merge := flag.Bool("merge", false, "merge multiple forms into one PDF instead of a ZIP archive")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(context.Background(), logger, *configPath, *projectID, *formIDs, *outputDir, *merge); err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, projectID, formList, outputDir string, merge bool) error {
	if projectID == "" {
		return fmt.Errorf("-project is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if outputDir != "" {
		cfg.Export.OutputDir = outputDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	branding, err := cfg.RenderBranding()
	if err != nil {
		return err
	}

	retry := acc.DefaultRetryPolicy()
	if cfg.API.RetryAttempts > 0 {
		retry.Attempts = cfg.API.RetryAttempts
	}
	if cfg.API.RetryBaseDelay > 0 {
		retry.BaseDelay = cfg.API.RetryBaseDelay
	}
	exporter, err := formexport.NewExporter(formexport.ExporterOptions{
		Tokens:  acc.StaticTokenSource(cfg.Auth.AccessToken),
		BaseURL: cfg.API.BaseURL,
		ClientOptions: []acc.Option{
			acc.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
			acc.WithRetryPolicy(retry),
			acc.WithRateLimit(cfg.API.RatePerSecond, cfg.API.RateBurst),
		},
		EnginePath:  cfg.Export.EnginePath,
		Concurrency: cfg.Export.Concurrency,
	})
	if err != nil {
		return err
	}

	ids, err := selectForms(ctx, exporter.Client(), projectID, formList)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("no forms selected")
	}

	bundle := export.BundleZIP
	if merge {
		bundle = export.BundleMergedPDF
	}
	jobID, err := exporter.Submit(ctx, formexport.Request{
		ProjectID: projectID,
		FormIDs:   ids,
		Aggregate: formexport.AggregateOptions{
			IncludeRelationships: cfg.Export.IncludeRelationships,
			IncludeAssets:        cfg.Export.IncludeAssets,
		},
		Branding: &branding,
		Bundle:   bundle,
	})
	if err != nil {
		return err
	}
	logger.Info("export started", "jobId", jobID, "forms", len(ids))

	job, err := awaitJob(ctx, exporter, jobID, logger)
	if err != nil {
		return err
	}
	reportItems(job, logger)

	artifact, err := exporter.Artifact(jobID)
	if err != nil {
		return fmt.Errorf("collect artifact: %w", err)
	}

	path := filepath.Join(cfg.Export.OutputDir, artifact.Filename)
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("Exported %s (%d bytes)\n", path, len(artifact.Data))
	return nil
}

// selectForms resolves the requested form identifiers, falling back to an
// interactive multi-select over the project's forms.
func selectForms(ctx context.Context, client *acc.Client, projectID, formList string) ([]string, error) {
	if formList != "" {
		var ids []string
		for _, id := range strings.Split(formList, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		return ids, nil
	}

	forms, err := client.Forms(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	if len(forms) == 0 {
		return nil, fmt.Errorf("project has no forms")
	}

	labels := make([]string, len(forms))
	byLabel := make(map[string]string, len(forms))
	for i, form := range forms {
		label := fmt.Sprintf("%s (%s)", form.Name, form.ID)
		labels[i] = label
		byLabel[label] = form.ID
	}

	var picked []string
	prompt := &survey.MultiSelect{
		Message:  "Select forms to export:",
		Options:  labels,
		PageSize: 15,
	}
	if err := survey.AskOne(prompt, &picked); err != nil {
		return nil, fmt.Errorf("form selection: %w", err)
	}

	ids := make([]string, 0, len(picked))
	for _, label := range picked {
		ids = append(ids, byLabel[label])
	}
	return ids, nil
}

// awaitJob polls until the job is terminal, logging progress transitions.
func awaitJob(ctx context.Context, exporter *formexport.Exporter, jobID string, logger *slog.Logger) (*formexport.Job, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastDone := -1
	for {
		job, err := exporter.Status(jobID)
		if err != nil {
			return nil, err
		}
		done := 0
		for _, item := range job.Items {
			if item.Stage.Terminal() {
				done++
			}
		}
		if done != lastDone {
			logger.Info("export progress", "completed", done, "total", len(job.Items), "status", job.Status)
			lastDone = done
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			_ = exporter.Cancel(jobID)
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func reportItems(job *formexport.Job, logger *slog.Logger) {
	for _, item := range job.Items {
		if item.Stage == export.StageFailed {
			logger.Warn("form failed", "formId", item.FormID, "kind", item.FailureKind, "error", item.Error)
		}
	}
}
