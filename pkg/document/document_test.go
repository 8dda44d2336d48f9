package document_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formexport/pkg/document"
)

func TestLabelMapFallsBackForUnknownIdentifiers(t *testing.T) {
	labels := document.LabelMap{"sec-1": "Site Conditions"}

	if got := labels.Label("sec-1", "Section"); got != "Site Conditions" {
		t.Fatalf("Label() = %q, want %q", got, "Site Conditions")
	}
	if got := labels.Label("sec-9", "Section"); got != "Section" {
		t.Fatalf("Label() = %q, want fallback %q", got, "Section")
	}
}

func TestLabelMapLabelsKeepsUnmappedEntries(t *testing.T) {
	labels := document.LabelMap{"opt-a": "Clear"}

	got := labels.Labels([]string{"opt-a", "opt-b"})
	if diff := cmp.Diff([]string{"Clear", "opt-b"}, got); diff != "" {
		t.Fatalf("Labels() mismatch (-want +got):\n%s", diff)
	}
	if labels.Labels(nil) != nil {
		t.Fatal("Labels(nil) should be nil")
	}
}
