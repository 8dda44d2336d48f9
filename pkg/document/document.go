// Package document defines the normalized form representation handed from
// aggregation to rendering. A FormDocument is immutable once built: the
// aggregator constructs it and passes it by value downstream.
package document

// FieldType tags how a field value should be formatted.
type FieldType string

const (
	FieldText   FieldType = "text"
	FieldNumber FieldType = "number"
	FieldBool   FieldType = "bool"
	FieldDate   FieldType = "date"
	FieldList   FieldType = "list"
	FieldObject FieldType = "object"
)

// Field is a single labelled value. Value holds a string, float64, bool,
// []string or map[string]string depending on Type.
type Field struct {
	Label string
	Type  FieldType
	Value any
}

// Section groups fields under a titled heading, preserving the order the
// platform reported them in.
type Section struct {
	Title  string
	Fields []Field
}

// AssetOutcome records how an asset sub-fetch went. Asset fetches are
// best-effort: a failed one degrades to a placeholder instead of failing the
// aggregation.
type AssetOutcome string

const (
	// AssetFetched means Content holds the asset bytes.
	AssetFetched AssetOutcome = "fetched"
	// AssetDegraded means the fetch failed; Content is empty and Err holds
	// the reason.
	AssetDegraded AssetOutcome = "degraded"
	// AssetOmitted means assets were not requested for this aggregation.
	AssetOmitted AssetOutcome = "omitted"
)

// AssetRef points at a file linked to the form.
type AssetRef struct {
	ID       string
	Name     string
	Location string
	Barcode  string
	URL      string
	Content  []byte
	Outcome  AssetOutcome
	Err      string
}

// Relationship is a typed link from the form to another platform entity.
// Label degrades to the raw identifier when the lookup that resolves it
// fails.
type Relationship struct {
	ID       string
	Type     string
	EntityID string
	Label    string
}

// FormDocument is the aggregation result: everything the renderer needs for
// one form, in stable order.
type FormDocument struct {
	FormID        string
	Name          string
	FormDate      string
	ProjectName   string
	Sections      []Section
	Relationships []Relationship
	Assets        []AssetRef
}

// LabelMap resolves opaque platform identifiers into display labels, backed
// by the form template's id_mapping table.
type LabelMap map[string]string

// Label returns the mapped label for id, or fallback when no mapping exists.
func (m LabelMap) Label(id, fallback string) string {
	if label, ok := m[id]; ok {
		return label
	}
	return fallback
}

// Labels maps each element of values through the table, keeping unmapped
// entries as-is.
func (m LabelMap) Labels(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = m.Label(v, v)
	}
	return out
}
