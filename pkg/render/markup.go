package render

import (
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formexport/pkg/document"
)

//go:embed templates/form.html.tpl
var templateFS embed.FS

const (
	formTemplateName = "templates/form.html.tpl"
	emptyPlaceholder = "N/A"

	defaultAccentColor       = "#333"
	defaultSectionBackground = "#f5f5f5"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// sanitizer strips any markup from remote text before it reaches the
// document template. Field values come from a third-party platform and are
// treated as untrusted.
func sanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}

// markupBuilder turns a FormDocument plus branding into the HTML handed to
// the rendering engine. Output is deterministic for identical inputs; the
// clock is injectable so the exported-at line can be pinned in tests.
type markupBuilder struct {
	template *pongo2.Template
	now      func() time.Time
}

func newMarkupBuilder(now func() time.Time) (*markupBuilder, error) {
	if now == nil {
		now = time.Now
	}
	set := pongo2.NewSet("formexport", pongo2.NewFSLoader(templateFS))
	tmpl, err := set.FromFile(formTemplateName)
	if err != nil {
		return nil, fmt.Errorf("render: load form template: %w", err)
	}
	return &markupBuilder{template: tmpl, now: now}, nil
}

func (m *markupBuilder) build(doc document.FormDocument, branding Branding, tokens map[string]string) (string, error) {
	ctx := pongo2.Context{
		"form_name":          sanitizeText(doc.Name),
		"project_name":       sanitizeText(doc.ProjectName),
		"form_date":          sanitizeText(doc.FormDate),
		"page_margin":        branding.Margin.css(),
		"page_size":          branding.Orientation.pageSize(),
		"page_numbers":       branding.PageNumbers,
		"logo_src":           branding.logoDataURI(),
		"logo_style":         branding.logoStyle(),
		"accent_color":       tokenOr(tokens, "accent", defaultAccentColor),
		"section_background": tokenOr(tokens, "section-background", defaultSectionBackground),
		"sections":           sectionContext(doc.Sections),
		"relationships":      relationshipContext(doc.Relationships),
		"assets":             assetContext(doc.Assets),
		"exported_at":        "",
	}
	if branding.Timestamp {
		ctx["exported_at"] = m.now().Format("2006-01-02 15:04:05")
	}

	html, err := m.template.Execute(ctx)
	if err != nil {
		return "", &Error{Kind: KindRenderFailed, Err: fmt.Errorf("execute form template: %w", err)}
	}
	return html, nil
}

func tokenOr(tokens map[string]string, key, fallback string) string {
	if value, ok := tokens[key]; ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func sectionContext(sections []document.Section) []pongo2.Context {
	out := make([]pongo2.Context, 0, len(sections))
	for _, section := range sections {
		fields := make([]pongo2.Context, 0, len(section.Fields))
		for _, field := range section.Fields {
			fields = append(fields, pongo2.Context{
				"label": sanitizeText(field.Label),
				"value": formatValue(field),
			})
		}
		out = append(out, pongo2.Context{
			"title":  sanitizeText(section.Title),
			"fields": fields,
		})
	}
	return out
}

func relationshipContext(rels []document.Relationship) []pongo2.Context {
	out := make([]pongo2.Context, 0, len(rels))
	for _, rel := range rels {
		out = append(out, pongo2.Context{
			"type":      sanitizeText(rel.Type),
			"label":     sanitizeText(rel.Label),
			"entity_id": sanitizeText(rel.EntityID),
		})
	}
	return out
}

func assetContext(assets []document.AssetRef) []pongo2.Context {
	out := make([]pongo2.Context, 0, len(assets))
	for _, asset := range assets {
		note := ""
		degraded := false
		switch asset.Outcome {
		case document.AssetFetched:
			note = fmt.Sprintf("attached (%d bytes)", len(asset.Content))
		case document.AssetDegraded:
			note = "unavailable: " + sanitizeText(asset.Err)
			degraded = true
		}
		out = append(out, pongo2.Context{
			"name":     sanitizeText(asset.Name),
			"location": sanitizeText(asset.Location),
			"barcode":  sanitizeText(asset.Barcode),
			"note":     note,
			"degraded": degraded,
		})
	}
	return out
}

// formatValue flattens a typed field value into the display string the
// template embeds. Empty values render as the platform's N/A placeholder.
func formatValue(field document.Field) string {
	switch field.Type {
	case document.FieldNumber:
		if v, ok := field.Value.(float64); ok {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	case document.FieldBool:
		if v, ok := field.Value.(bool); ok {
			if v {
				return "Yes"
			}
			return "No"
		}
	case document.FieldList:
		if v, ok := field.Value.([]string); ok {
			if len(v) == 0 {
				return emptyPlaceholder
			}
			parts := make([]string, len(v))
			for i, item := range v {
				parts[i] = sanitizeText(item)
			}
			return strings.Join(parts, ", ")
		}
	case document.FieldObject:
		if v, ok := field.Value.(map[string]string); ok {
			if len(v) == 0 {
				return emptyPlaceholder
			}
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				parts = append(parts, sanitizeText(k)+": "+sanitizeText(v[k]))
			}
			return strings.Join(parts, "; ")
		}
	}

	text := strings.TrimSpace(fmt.Sprint(field.Value))
	if text == "" || field.Value == nil {
		return emptyPlaceholder
	}
	return sanitizeText(text)
}

func sanitizeText(text string) string {
	return sanitizer().Sanitize(text)
}
