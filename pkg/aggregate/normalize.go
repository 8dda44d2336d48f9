package aggregate

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-formexport/pkg/acc"
	"github.com/goliatone/go-formexport/pkg/document"
)

const (
	defaultFormName     = "Unnamed Form"
	defaultSectionTitle = "General"
	customSectionTitle  = "Custom Fields"
	defaultFieldLabel   = "Field"
)

// normalizeForm folds the three value collections of a raw form record into
// ordered sections. Section order follows first appearance; the template's
// id_mapping table resolves identifiers to display labels throughout.
func normalizeForm(form acc.FormRecord) document.FormDocument {
	labels := labelMap(form)

	name := form.Name
	if name == "" {
		name = defaultFormName
	}
	doc := document.FormDocument{
		FormID:   form.ID,
		Name:     name,
		FormDate: form.FormDate,
	}

	builder := newSectionBuilder()
	for _, item := range form.PDFValues {
		title := labels.Label(item.SectionID, sectionFallback(item.SectionLabel, defaultSectionTitle))
		builder.add(title, fieldFromValue(item, labels))
	}
	addTabular(builder, form.TabularValues, labels)
	for _, item := range form.CustomValues {
		title := labels.Label(item.SectionID, sectionFallback(item.SectionLabel, customSectionTitle))
		builder.add(title, fieldFromValue(item, labels))
	}

	doc.Sections = builder.sections()
	return doc
}

func labelMap(form acc.FormRecord) document.LabelMap {
	if form.FormTemplate != nil && len(form.FormTemplate.IDMapping) > 0 {
		return document.LabelMap(form.FormTemplate.IDMapping)
	}
	return document.LabelMap{}
}

func sectionFallback(label, fallback string) string {
	if label != "" {
		return label
	}
	return fallback
}

// fieldFromValue picks the populated value slot. The checks run in the same
// precedence the platform's own PDF export applies.
func fieldFromValue(item acc.FormValue, labels document.LabelMap) document.Field {
	field := document.Field{
		Label: labels.Label(item.ItemID, sectionFallback(item.ItemLabel, defaultFieldLabel)),
	}
	switch {
	case item.DateVal != "":
		field.Type, field.Value = document.FieldDate, item.DateVal
	case item.NumVal != nil:
		field.Type, field.Value = document.FieldNumber, *item.NumVal
	case item.BoolVal != nil:
		field.Type, field.Value = document.FieldBool, *item.BoolVal
	case len(item.ListVal) > 0:
		field.Type, field.Value = document.FieldList, labels.Labels(item.ListVal)
	case len(item.ObjVal) > 0:
		mapped := make(map[string]string, len(item.ObjVal))
		for k, v := range item.ObjVal {
			mapped[labels.Label(k, k)] = labels.Label(v, v)
		}
		field.Type, field.Value = document.FieldObject, mapped
	case item.TextVal != "":
		field.Type, field.Value = document.FieldText, labels.Label(item.TextVal, item.TextVal)
	default:
		field.Type, field.Value = document.FieldText, ""
	}
	return field
}

// addTabular flattens row-oriented sections into "<label> (Row N)" fields.
// Section and row-key order are sorted for stable output; the platform
// serves these as unordered maps.
func addTabular(builder *sectionBuilder, tabular map[string][]map[string]any, labels document.LabelMap) {
	sectionKeys := make([]string, 0, len(tabular))
	for key := range tabular {
		sectionKeys = append(sectionKeys, key)
	}
	sort.Strings(sectionKeys)

	for _, key := range sectionKeys {
		title := labels.Label(key, key)
		for rowIdx, row := range tabular[key] {
			cellKeys := make([]string, 0, len(row))
			for cell := range row {
				cellKeys = append(cellKeys, cell)
			}
			sort.Strings(cellKeys)

			for _, cell := range cellKeys {
				label := fmt.Sprintf("%s (Row %d)", labels.Label(cell, cell), rowIdx+1)
				builder.add(title, tabularField(label, row[cell], labels))
			}
		}
	}
}

func tabularField(label string, value any, labels document.LabelMap) document.Field {
	field := document.Field{Label: label}
	switch v := value.(type) {
	case bool:
		field.Type, field.Value = document.FieldBool, v
	case float64:
		field.Type, field.Value = document.FieldNumber, v
	case int:
		field.Type, field.Value = document.FieldNumber, float64(v)
	case []any:
		items := make([]string, 0, len(v))
		for _, entry := range v {
			text := fmt.Sprint(entry)
			items = append(items, labels.Label(text, text))
		}
		field.Type, field.Value = document.FieldList, items
	case map[string]any:
		mapped := make(map[string]string, len(v))
		for k, entry := range v {
			text := fmt.Sprint(entry)
			mapped[labels.Label(k, k)] = labels.Label(text, text)
		}
		field.Type, field.Value = document.FieldObject, mapped
	case nil:
		field.Type, field.Value = document.FieldText, ""
	default:
		text := fmt.Sprint(v)
		field.Type, field.Value = document.FieldText, labels.Label(text, text)
	}
	return field
}

// sectionBuilder keeps sections in first-appearance order while allowing
// later values to append into an existing section.
type sectionBuilder struct {
	order []string
	index map[string]int
	data  map[string][]document.Field
}

func newSectionBuilder() *sectionBuilder {
	return &sectionBuilder{
		index: make(map[string]int),
		data:  make(map[string][]document.Field),
	}
}

func (b *sectionBuilder) add(title string, field document.Field) {
	if _, ok := b.index[title]; !ok {
		b.index[title] = len(b.order)
		b.order = append(b.order, title)
	}
	b.data[title] = append(b.data[title], field)
}

func (b *sectionBuilder) sections() []document.Section {
	if len(b.order) == 0 {
		return nil
	}
	out := make([]document.Section, 0, len(b.order))
	for _, title := range b.order {
		out = append(out, document.Section{Title: title, Fields: b.data[title]})
	}
	return out
}
