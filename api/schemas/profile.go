// api/schemas/profile.go
package schemas

import (
	"strings"
)

// -- Extractor Schemas --

// ExtractMode defines how a matched element is turned into a field value.
type ExtractMode string

const (
	ModeText          ExtractMode = "text"
	ModeAttribute     ExtractMode = "attribute"
	ModeChildLinkURL  ExtractMode = "child-link-url"
	ModeChildLinkText ExtractMode = "child-link-text"
)

// Valid reports whether m is one of the known extraction modes.
func (m ExtractMode) Valid() bool {
	switch m {
	case ModeText, ModeAttribute, ModeChildLinkURL, ModeChildLinkText:
		return true
	}
	return false
}

func (m ExtractMode) String() string { return string(m) }

// Extractor is a single named field rule: a locator plus an extraction mode.
// FieldName and Selector must be non-empty at run time, and AttributeName must
// be non-empty iff Mode is ModeAttribute.
type Extractor struct {
	ID            string      `json:"id" validate:"-"`
	FieldName     string      `json:"fieldName" validate:"required"`
	Selector      string      `json:"selector" validate:"required"`
	Mode          ExtractMode `json:"mode" validate:"-"`
	AttributeName string      `json:"attributeName,omitempty" validate:"required_if=Mode attribute"`
}

// -- Profile Schemas --

// ExportFormat selects the encoding of the run's output file.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
)

// ParseExportFormat maps a user or file supplied value onto an ExportFormat.
// "excel" and "spreadsheet" are accepted as aliases for xlsx.
func ParseExportFormat(s string) (ExportFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, true
	case "csv":
		return FormatCSV, true
	case "xlsx", "excel", "spreadsheet":
		return FormatXLSX, true
	}
	return "", false
}

// Extension returns the file extension, including the dot, for the format.
func (f ExportFormat) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatXLSX:
		return ".xlsx"
	default:
		return ".json"
	}
}

func (f ExportFormat) String() string { return string(f) }

// Profile is the full configuration of one extraction run and the unit of
// persistence and change comparison.
type Profile struct {
	TargetURL      string       `json:"url"`
	OutputFileName string       `json:"fileName,omitempty"`
	ExportFormat   ExportFormat `json:"exportFormat"`
	Debug          bool         `json:"debugMode"`
	Extractors     []Extractor  `json:"extractors"`
	SessionID      string       `json:"sessionId,omitempty"`
}

// NewProfile returns the empty profile used at startup and after a reset.
func NewProfile() Profile {
	return Profile{
		ExportFormat: FormatJSON,
		Extractors:   []Extractor{},
	}
}

// Clone returns a deep copy of the profile. Extractors are copied by value so
// edits to the clone never reach the original.
func (p Profile) Clone() Profile {
	out := p
	if p.Extractors != nil {
		out.Extractors = make([]Extractor, len(p.Extractors))
		copy(out.Extractors, p.Extractors)
	}
	return out
}

// ExtractorIndex returns the position of the extractor with the given id, or -1.
func (p Profile) ExtractorIndex(id string) int {
	for i, e := range p.Extractors {
		if e.ID == id {
			return i
		}
	}
	return -1
}
