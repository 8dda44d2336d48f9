package render

import (
	"encoding/base64"
	"fmt"
	"net/http"
)

// LogoPosition places the logo relative to the page header.
type LogoPosition string

const (
	LogoTopLeft     LogoPosition = "top-left"
	LogoTopRight    LogoPosition = "top-right"
	LogoBottomLeft  LogoPosition = "bottom-left"
	LogoBottomRight LogoPosition = "bottom-right"
)

// LogoSize selects the rendered logo dimensions.
type LogoSize string

const (
	LogoSmall  LogoSize = "small"
	LogoMedium LogoSize = "medium"
	LogoLarge  LogoSize = "large"
)

// Orientation selects the page layout.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// Margin selects the page margin preset.
type Margin string

const (
	MarginSmall  Margin = "small"
	MarginMedium Margin = "medium"
	MarginLarge  Margin = "large"
)

// Branding is the caller-configured visual customisation applied uniformly
// to every rendered PDF of a job. The orchestrator snapshots it at submission
// so later settings changes never affect in-flight work. It is read-only
// inside the renderer.
type Branding struct {
	// Logo holds the raw image bytes; nil means no logo.
	Logo []byte

	LogoPosition LogoPosition
	LogoSize     LogoSize
	Orientation  Orientation
	Margin       Margin

	// PageNumbers toggles the page counter in the footer.
	PageNumbers bool

	// Timestamp toggles the "Exported: ..." line in the header.
	Timestamp bool

	// Theme and Variant name a style manifest whose tokens colour the
	// document. Empty values fall back to the built-in palette.
	Theme   string
	Variant string
}

// DefaultBranding matches the platform's own export defaults: no logo,
// portrait A4, medium margins, page numbers and timestamp on.
func DefaultBranding() Branding {
	return Branding{
		LogoPosition: LogoTopLeft,
		LogoSize:     LogoMedium,
		Orientation:  Portrait,
		Margin:       MarginMedium,
		PageNumbers:  true,
		Timestamp:    true,
	}
}

func (s LogoSize) pixels() string {
	switch s {
	case LogoSmall:
		return "50px"
	case LogoLarge:
		return "150px"
	default:
		return "100px"
	}
}

func (m Margin) css() string {
	switch m {
	case MarginSmall:
		return "0.5in"
	case MarginLarge:
		return "1.5in"
	default:
		return "1in"
	}
}

func (o Orientation) pageSize() string {
	if o == Landscape {
		return "A4 landscape"
	}
	return "A4"
}

// logoStyle returns the inline CSS that anchors the logo; styles keep the
// logo aligned with the form name the way the platform export does.
func (b Branding) logoStyle() string {
	width := b.LogoSize.pixels()
	switch b.LogoPosition {
	case LogoTopRight:
		return fmt.Sprintf("position: absolute; top: 5px; right: 20px; max-width: %s; max-height: %s;", width, width)
	case LogoBottomLeft:
		return fmt.Sprintf("position: absolute; bottom: 20px; left: 20px; max-width: %s; max-height: %s;", width, width)
	case LogoBottomRight:
		return fmt.Sprintf("position: absolute; bottom: 20px; right: 20px; max-width: %s; max-height: %s;", width, width)
	default:
		return fmt.Sprintf("position: absolute; top: 5px; left: 20px; max-width: %s; max-height: %s;", width, width)
	}
}

// logoDataURI inlines the logo bytes so the rendering engine needs no
// network access. Empty when no logo is configured.
func (b Branding) logoDataURI() string {
	if len(b.Logo) == 0 {
		return ""
	}
	mimeType := http.DetectContentType(b.Logo)
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(b.Logo)
}
