// File: internal/validation/validate.go

// Package validation checks extractor sets before a run is allowed to start.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

// Field names a single checked field of an extractor.
type Field string

const (
	FieldFieldName     Field = "fieldName"
	FieldSelector      Field = "selector"
	FieldAttributeName Field = "attributeName"
)

// FieldErrors records which fields of one extractor are missing.
type FieldErrors struct {
	FieldNameMissing     bool `json:"fieldNameMissing,omitempty"`
	SelectorMissing      bool `json:"selectorMissing,omitempty"`
	AttributeNameMissing bool `json:"attributeNameMissing,omitempty"`
}

// Any reports whether at least one field is flagged.
func (f FieldErrors) Any() bool {
	return f.FieldNameMissing || f.SelectorMissing || f.AttributeNameMissing
}

// ErrorSet maps extractor IDs to their field errors. Extractors without errors
// have no entry.
type ErrorSet map[string]FieldErrors

// OK is the run-permission decision: true iff no extractor has an error.
func (s ErrorSet) OK() bool { return len(s) == 0 }

// For returns the errors recorded for an extractor.
func (s ErrorSet) For(id string) FieldErrors { return s[id] }

// Clear drops one field's error for an extractor, removing the entry once it
// has no errors left.
func (s ErrorSet) Clear(id string, field Field) {
	fe, ok := s[id]
	if !ok {
		return
	}
	switch field {
	case FieldFieldName:
		fe.FieldNameMissing = false
	case FieldSelector:
		fe.SelectorMissing = false
	case FieldAttributeName:
		fe.AttributeNameMissing = false
	}
	if fe.Any() {
		s[id] = fe
		return
	}
	delete(s, id)
}

// ValidationError is returned when a run is refused because one or more
// extractors fail field checks.
type ValidationError struct {
	Errors ErrorSet
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d extractor(s) have missing fields", len(e.Errors))
}

// structValidator is safe for concurrent use and caches struct metadata.
var structValidator = validator.New()

// Validate evaluates every extractor independently and reports every missing
// field of every invalid extractor in a single pass.
func Validate(extractors []schemas.Extractor) ErrorSet {
	set := make(ErrorSet)
	for _, e := range extractors {
		if fe := ValidateExtractor(e); fe.Any() {
			set[e.ID] = fe
		}
	}
	return set
}

// ValidateExtractor checks a single extractor. Values are trimmed before the
// check, and the attribute name is only required in attribute mode.
func ValidateExtractor(e schemas.Extractor) FieldErrors {
	trimmed := schemas.Extractor{
		ID:            e.ID,
		FieldName:     strings.TrimSpace(e.FieldName),
		Selector:      strings.TrimSpace(e.Selector),
		Mode:          e.Mode,
		AttributeName: strings.TrimSpace(e.AttributeName),
	}

	var fe FieldErrors
	err := structValidator.Struct(trimmed)
	if err == nil {
		return fe
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// Only reachable on a programming error (non-struct input).
		return fe
	}
	for _, v := range verrs {
		switch v.StructField() {
		case "FieldName":
			fe.FieldNameMissing = true
		case "Selector":
			fe.SelectorMissing = true
		case "AttributeName":
			fe.AttributeNameMissing = true
		}
	}
	return fe
}
