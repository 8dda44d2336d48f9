package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Artifact content types, matching what a fronting HTTP layer would serve.
const (
	ContentTypePDF = "application/pdf"
	ContentTypeZIP = "application/zip"
)

// BundleMode selects how a multi-form job's successful renders are packaged.
type BundleMode string

const (
	// BundleZIP packages each PDF as its own archive entry. Default.
	BundleZIP BundleMode = "zip"

	// BundleMergedPDF concatenates every successful render into one
	// document, in request order.
	BundleMergedPDF BundleMode = "merged"
)

// bundleEntry is one successful render awaiting packaging.
type bundleEntry struct {
	filename string
	data     []byte
}

// SanitizeFilename neutralises path and drive separators in user or
// platform supplied names the way the original export tool does.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return replacer.Replace(strings.TrimSpace(name))
}

// defaultFilename derives an entry name from the form's display name plus a
// short identifier prefix, keeping names stable and collision-free.
func defaultFilename(formName, formID string) string {
	name := SanitizeFilename(formName)
	if name == "" {
		name = "form"
	}
	short := formID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_%s.pdf", name, short)
}

// ensurePDFSuffix appends .pdf when the sanitized custom name lacks it.
func ensurePDFSuffix(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return name
	}
	return name + ".pdf"
}

// zipBundle packages entries into a deflate-compressed archive named after
// the request size.
func zipBundle(entries []bundleEntry, requested int) (*Artifact, error) {
	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)
	for _, entry := range entries {
		writer, err := archive.Create(entry.filename)
		if err != nil {
			return nil, fmt.Errorf("export: create zip entry %q: %w", entry.filename, err)
		}
		if _, err := writer.Write(entry.data); err != nil {
			return nil, fmt.Errorf("export: write zip entry %q: %w", entry.filename, err)
		}
	}
	if err := archive.Close(); err != nil {
		return nil, fmt.Errorf("export: close zip archive: %w", err)
	}
	return &Artifact{
		ContentType: ContentTypeZIP,
		Filename:    fmt.Sprintf("forms_export_%d_forms.zip", requested),
		Data:        buf.Bytes(),
	}, nil
}

// mergeBundle concatenates every entry into a single PDF. pdfcpu's merge
// works on files, so entries are staged in a temp directory.
func mergeBundle(entries []bundleEntry, requested int) (*Artifact, error) {
	tempDir, err := os.MkdirTemp("", "formexport-merge-*")
	if err != nil {
		return nil, fmt.Errorf("export: create merge workspace: %w", err)
	}
	defer os.RemoveAll(tempDir)

	inFiles := make([]string, 0, len(entries))
	for i, entry := range entries {
		path := filepath.Join(tempDir, fmt.Sprintf("%05d.pdf", i))
		if err := os.WriteFile(path, entry.data, 0o600); err != nil {
			return nil, fmt.Errorf("export: stage %q for merge: %w", entry.filename, err)
		}
		inFiles = append(inFiles, path)
	}

	outFile := filepath.Join(tempDir, "merged.pdf")
	if err := api.MergeCreateFile(inFiles, outFile, false, nil); err != nil {
		return nil, fmt.Errorf("export: merge documents: %w", err)
	}
	merged, err := os.ReadFile(outFile)
	if err != nil {
		return nil, fmt.Errorf("export: read merged document: %w", err)
	}
	return &Artifact{
		ContentType: ContentTypePDF,
		Filename:    fmt.Sprintf("forms_export_%d_forms.pdf", requested),
		Data:        merged,
	}, nil
}
