package export

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"daily report", "daily report"},
		{"site/a:b\\c", "site_a_b_c"},
		{"  padded  ", "padded"},
		{"../../etc/passwd", ".._.._etc_passwd"},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDefaultFilenameTruncatesIdentifier(t *testing.T) {
	got := defaultFilename("Daily Report", "0a1b2c3d-4e5f-6789")
	if got != "Daily Report_0a1b2c3d.pdf" {
		t.Fatalf("defaultFilename() = %q", got)
	}
}

func TestDefaultFilenameFallsBackForEmptyName(t *testing.T) {
	got := defaultFilename("", "abcd1234")
	if got != "form_abcd1234.pdf" {
		t.Fatalf("defaultFilename() = %q", got)
	}
}

func TestEnsurePDFSuffix(t *testing.T) {
	if got := ensurePDFSuffix("report"); got != "report.pdf" {
		t.Fatalf("ensurePDFSuffix() = %q", got)
	}
	if got := ensurePDFSuffix("report.PDF"); got != "report.PDF" {
		t.Fatalf("ensurePDFSuffix() = %q", got)
	}
}

// onePagePDF builds a minimal single-page document with a valid xref table.
func onePagePDF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	offsets := make([]int, 4)
	buf.WriteString("%PDF-1.4\n")
	objects := []string{
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n",
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n",
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] >>\nendobj\n",
	}
	for i, obj := range objects {
		offsets[i+1] = buf.Len()
		buf.WriteString(obj)
	}
	xref := buf.Len()
	buf.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

func TestMergeBundleConcatenatesDocuments(t *testing.T) {
	entries := []bundleEntry{
		{filename: "a.pdf", data: onePagePDF(t)},
		{filename: "b.pdf", data: onePagePDF(t)},
	}
	artifact, err := mergeBundle(entries, 2)
	if err != nil {
		t.Fatalf("mergeBundle() error: %v", err)
	}
	if artifact.Filename != "forms_export_2_forms.pdf" {
		t.Fatalf("filename = %q", artifact.Filename)
	}
	if artifact.ContentType != ContentTypePDF {
		t.Fatalf("content type = %q", artifact.ContentType)
	}
	pages, err := api.PageCount(bytes.NewReader(artifact.Data), nil)
	if err != nil {
		t.Fatalf("page count: %v", err)
	}
	if pages != 2 {
		t.Fatalf("merged page count = %d, want 2", pages)
	}
}

func TestZipBundleNamesArchiveAfterRequestSize(t *testing.T) {
	entries := []bundleEntry{
		{filename: "a.pdf", data: []byte("%PDF-a")},
		{filename: "b.pdf", data: []byte("%PDF-b")},
	}
	artifact, err := zipBundle(entries, 3)
	if err != nil {
		t.Fatalf("zipBundle() error: %v", err)
	}
	if artifact.Filename != "forms_export_3_forms.zip" {
		t.Fatalf("filename = %q", artifact.Filename)
	}
	if artifact.ContentType != ContentTypeZIP {
		t.Fatalf("content type = %q", artifact.ContentType)
	}
	if len(artifact.Data) == 0 {
		t.Fatal("empty archive data")
	}
}
