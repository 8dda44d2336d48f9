package aggregate_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formexport/pkg/acc"
	"github.com/goliatone/go-formexport/pkg/aggregate"
	"github.com/goliatone/go-formexport/pkg/document"
)

type stubClient struct {
	project    acc.ProjectRecord
	projectErr error
	form       acc.FormRecord
	formErr    error
	rels       []acc.RelationshipRecord
	relsErr    error
	assets     map[string]acc.AssetRecord
	assetErr   error

	content    map[string][]byte
	contentErr error

	projectCalls int
}

func (s *stubClient) Project(context.Context, string) (acc.ProjectRecord, error) {
	s.projectCalls++
	return s.project, s.projectErr
}

func (s *stubClient) Form(context.Context, string, string) (acc.FormRecord, error) {
	return s.form, s.formErr
}

func (s *stubClient) Relationships(context.Context, string, string) ([]acc.RelationshipRecord, error) {
	return s.rels, s.relsErr
}

func (s *stubClient) Asset(_ context.Context, _ string, assetID string) (acc.AssetRecord, error) {
	if s.assetErr != nil {
		return acc.AssetRecord{}, s.assetErr
	}
	record, ok := s.assets[assetID]
	if !ok {
		return acc.AssetRecord{}, &acc.Error{Kind: acc.KindNotFound, Op: "asset"}
	}
	return record, nil
}

func (s *stubClient) AssetContent(_ context.Context, contentURL string) ([]byte, error) {
	if s.contentErr != nil {
		return nil, s.contentErr
	}
	return s.content[contentURL], nil
}

func num(v float64) *float64 { return &v }

func boolp(v bool) *bool { return &v }

func TestAggregateNormalizesSectionsInOrder(t *testing.T) {
	client := &stubClient{form: acc.FormRecord{
		ID:   "F1",
		Name: "Daily Inspection",
		FormTemplate: &acc.FormTemplate{ID: "t1", IDMapping: map[string]string{
			"sec-a":  "Site Conditions",
			"item-1": "Weather",
			"opt-1":  "Sunny",
			"tab-1":  "Crew",
		}},
		PDFValues: []acc.FormValue{
			{SectionID: "sec-a", ItemID: "item-1", TextVal: "opt-1"},
			{SectionID: "sec-a", ItemID: "item-2", ItemLabel: "Temperature", NumVal: num(23.5)},
			{SectionLabel: "Safety", ItemLabel: "Cleared", BoolVal: boolp(true)},
		},
		TabularValues: map[string][]map[string]any{
			"tab-1": {{"name": "A. Mason", "hours": 8.0}},
		},
		CustomValues: []acc.FormValue{
			{ItemLabel: "Notes", TextVal: "all good"},
		},
	}}

	agg, err := aggregate.New(client)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	doc, err := agg.Aggregate(context.Background(), "proj-1", "F1", aggregate.Options{})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	want := document.FormDocument{
		FormID: "F1",
		Name:   "Daily Inspection",
		Sections: []document.Section{
			{Title: "Site Conditions", Fields: []document.Field{
				{Label: "Weather", Type: document.FieldText, Value: "Sunny"},
				{Label: "Temperature", Type: document.FieldNumber, Value: 23.5},
			}},
			{Title: "Safety", Fields: []document.Field{
				{Label: "Cleared", Type: document.FieldBool, Value: true},
			}},
			{Title: "Crew", Fields: []document.Field{
				{Label: "hours (Row 1)", Type: document.FieldNumber, Value: 8.0},
				{Label: "name (Row 1)", Type: document.FieldText, Value: "A. Mason"},
			}},
			{Title: "Custom Fields", Fields: []document.Field{
				{Label: "Notes", Type: document.FieldText, Value: "all good"},
			}},
		},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateResolvesAndCachesProjectName(t *testing.T) {
	client := &stubClient{
		project: acc.ProjectRecord{ID: "proj-1", Name: "Harbor Bridge"},
		form:    acc.FormRecord{ID: "F1", Name: "Form"},
	}
	agg, _ := aggregate.New(client)

	for i := 0; i < 3; i++ {
		doc, err := agg.Aggregate(context.Background(), "proj-1", "F1", aggregate.Options{})
		if err != nil {
			t.Fatalf("aggregate: %v", err)
		}
		if doc.ProjectName != "Harbor Bridge" {
			t.Fatalf("project name = %q, want %q", doc.ProjectName, "Harbor Bridge")
		}
	}
	if client.projectCalls != 1 {
		t.Fatalf("project fetched %d times, want 1", client.projectCalls)
	}
}

func TestAggregateProjectLookupFailureOmitsName(t *testing.T) {
	client := &stubClient{
		projectErr: &acc.Error{Kind: acc.KindUnavailable, Op: "project"},
		form:       acc.FormRecord{ID: "F1", Name: "Form"},
	}
	agg, _ := aggregate.New(client)

	doc, err := agg.Aggregate(context.Background(), "proj-1", "F1", aggregate.Options{})
	if err != nil {
		t.Fatalf("aggregate should not fail on project lookup: %v", err)
	}
	if doc.ProjectName != "" {
		t.Fatalf("project name = %q, want empty", doc.ProjectName)
	}
}

func TestAggregateBaseFetchFailurePropagatesKind(t *testing.T) {
	client := &stubClient{formErr: &acc.Error{Kind: acc.KindNotFound, Op: "form"}}
	agg, _ := aggregate.New(client)

	_, err := agg.Aggregate(context.Background(), "proj-1", "F404", aggregate.Options{})
	if kind := acc.KindOf(err); kind != acc.KindNotFound {
		t.Fatalf("expected KindNotFound to propagate, got %v (err %v)", kind, err)
	}
}

func TestAggregateRelationshipLabelDegradesToIdentifier(t *testing.T) {
	client := &stubClient{
		form: acc.FormRecord{ID: "F1", Name: "Form"},
		rels: []acc.RelationshipRecord{{
			ID: "rel-1",
			Entities: []acc.RelationshipEntity{
				{Type: "form", ID: "F1"},
				{Type: "asset", ID: "A1"},
			},
		}},
		assetErr: &acc.Error{Kind: acc.KindUnavailable, Op: "asset"},
	}
	agg, _ := aggregate.New(client)

	doc, err := agg.Aggregate(context.Background(), "proj-1", "F1", aggregate.Options{IncludeRelationships: true})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	want := []document.Relationship{{ID: "rel-1", Type: "asset", EntityID: "A1", Label: "A1"}}
	if diff := cmp.Diff(want, doc.Relationships); diff != "" {
		t.Fatalf("relationships mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateRelationshipListingFailureDegrades(t *testing.T) {
	client := &stubClient{
		form:    acc.FormRecord{ID: "F1", Name: "Form"},
		relsErr: &acc.Error{Kind: acc.KindUnavailable, Op: "relationships"},
	}
	agg, _ := aggregate.New(client)

	doc, err := agg.Aggregate(context.Background(), "proj-1", "F1", aggregate.Options{IncludeRelationships: true})
	if err != nil {
		t.Fatalf("aggregate should not fail on relationship listing: %v", err)
	}
	if len(doc.Relationships) != 0 {
		t.Fatalf("expected no relationships, got %d", len(doc.Relationships))
	}
}

func TestAggregateAssetsAreBestEffort(t *testing.T) {
	client := &stubClient{
		form: acc.FormRecord{ID: "F1", Name: "Form"},
		rels: []acc.RelationshipRecord{{
			ID: "rel-1",
			Entities: []acc.RelationshipEntity{
				{Type: "form", ID: "F1"},
				{Type: "asset", ID: "A1"},
				{Type: "asset", ID: "A2"},
			},
		}},
		assets: map[string]acc.AssetRecord{
			"A1": {ID: "A1", ClientAssetID: "PUMP-01", ContentURL: "/content/a1"},
			"A2": {ID: "A2", ClientAssetID: "PUMP-02"},
		},
		content: map[string][]byte{"/content/a1": []byte("bytes")},
	}
	agg, _ := aggregate.New(client)

	doc, err := agg.Aggregate(context.Background(), "proj-1", "F1", aggregate.Options{
		IncludeRelationships: true,
		IncludeAssets:        true,
	})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if len(doc.Assets) != 2 {
		t.Fatalf("expected 2 asset refs, got %d", len(doc.Assets))
	}
	fetched, degraded := doc.Assets[0], doc.Assets[1]
	if fetched.Outcome != document.AssetFetched || string(fetched.Content) != "bytes" {
		t.Fatalf("expected A1 fetched with content, got %+v", fetched)
	}
	if degraded.Outcome != document.AssetDegraded || degraded.Err == "" {
		t.Fatalf("expected A2 degraded with reason, got %+v", degraded)
	}
	if fetched.Name != "PUMP-01" {
		t.Fatalf("expected client asset id as display name, got %q", fetched.Name)
	}
}
