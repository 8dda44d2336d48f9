package acc

// FormRecord is the raw form payload returned by the ACC Forms API. Values
// arrive split across three collections; the aggregate package folds them
// into a renderable document.
type FormRecord struct {
	ID            string                      `json:"id"`
	Name          string                      `json:"name"`
	FormDate      string                      `json:"formDate"`
	CreatedAt     string                      `json:"createdAt"`
	FormTemplate  *FormTemplate               `json:"formTemplate"`
	PDFValues     []FormValue                 `json:"pdfValues"`
	TabularValues map[string][]map[string]any `json:"tabularValues"`
	CustomValues  []FormValue                 `json:"customValues"`
}

// FormTemplate carries the template identifier and the id_mapping table used
// to resolve opaque item/section identifiers into display labels.
type FormTemplate struct {
	ID        string            `json:"id"`
	IDMapping map[string]string `json:"id_mapping"`
}

// FormValue is a single answered field. Exactly one of the *Val members is
// populated; the rest stay at their zero value.
type FormValue struct {
	ItemID       string            `json:"itemId"`
	ItemLabel    string            `json:"itemLabel"`
	SectionID    string            `json:"sectionId"`
	SectionLabel string            `json:"sectionLabel"`
	TextVal      string            `json:"textVal"`
	NumVal       *float64          `json:"numVal"`
	BoolVal      *bool             `json:"boolVal"`
	DateVal      string            `json:"dateVal"`
	ListVal      []string          `json:"listVal"`
	ObjVal       map[string]string `json:"objVal"`
}

// RelationshipRecord links a form to other entities in the platform.
type RelationshipRecord struct {
	ID       string               `json:"id"`
	Entities []RelationshipEntity `json:"entities"`
}

// RelationshipEntity is one side of a relationship.
type RelationshipEntity struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// AssetRecord describes an asset from the Assets V2 API.
type AssetRecord struct {
	ID            string `json:"id"`
	ClientAssetID string `json:"clientAssetId"`
	Description   string `json:"description"`
	LocationID    string `json:"locationId"`
	Barcode       string `json:"barcode"`
	ContentURL    string `json:"contentUrl"`
	CategoryID    string `json:"categoryId"`
	StatusID      string `json:"statusId"`
	IsActive      bool   `json:"isActive"`
}

// DisplayName prefers the client asset identifier and falls back to the
// description, matching how the platform's own UI titles assets.
func (a AssetRecord) DisplayName() string {
	if a.ClientAssetID != "" {
		return a.ClientAssetID
	}
	return a.Description
}

// ProjectRecord is the subset of project metadata the exporter needs.
type ProjectRecord struct {
	ID   string
	Name string
}
