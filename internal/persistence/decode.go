// internal/persistence/decode.go
package persistence

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

// Decode parses a profile file. Missing fields keep their defaults, unknown
// fields are ignored and fields of the wrong shape are skipped with a warning.
// Only a document that is not a JSON object is an error.
func Decode(data []byte, logger *zap.Logger) (schemas.Profile, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var doc map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return schemas.Profile{}, fmt.Errorf("profile is not a JSON object: %w", err)
	}
	if doc == nil {
		return schemas.Profile{}, errors.New("profile is not a JSON object")
	}

	p := schemas.NewProfile()
	d := decoder{logger: logger}

	d.field(doc, "url", &p.TargetURL)
	d.field(doc, "fileName", &p.OutputFileName)
	d.field(doc, "debugMode", &p.Debug)
	d.field(doc, "sessionId", &p.SessionID)

	var format string
	if d.field(doc, "exportFormat", &format) && format != "" {
		if f, ok := schemas.ParseExportFormat(format); ok {
			p.ExportFormat = f
		} else {
			logger.Warn("Unknown export format, using json", zap.String("exportFormat", format))
		}
	}

	var rawExtractors []jsoniter.RawMessage
	if d.field(doc, "extractors", &rawExtractors) {
		seen := make(map[string]bool, len(rawExtractors))
		for i, raw := range rawExtractors {
			ex, ok := d.extractor(i, raw)
			if !ok {
				continue
			}
			if seen[ex.ID] {
				logger.Warn("Duplicate extractor id, assigning a new one", zap.String("id", ex.ID))
				ex.ID = uuid.NewString()
			}
			seen[ex.ID] = true
			p.Extractors = append(p.Extractors, ex)
		}
	}
	return p, nil
}

type decoder struct {
	logger *zap.Logger
}

// field decodes doc[key] into target. It reports whether a value was taken.
func (d decoder) field(doc map[string]jsoniter.RawMessage, key string, target interface{}) bool {
	raw, ok := doc[key]
	if !ok || isNull(raw) {
		return false
	}
	if err := json.Unmarshal(raw, target); err != nil {
		d.logger.Warn("Skipping malformed profile field", zap.String("field", key), zap.Error(err))
		return false
	}
	return true
}

func (d decoder) extractor(index int, raw jsoniter.RawMessage) (schemas.Extractor, bool) {
	var doc map[string]jsoniter.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		d.logger.Warn("Skipping malformed extractor", zap.Int("index", index))
		return schemas.Extractor{}, false
	}

	sub := decoder{logger: d.logger.With(zap.Int("extractor", index))}
	var ex schemas.Extractor
	sub.field(doc, "id", &ex.ID)
	sub.field(doc, "fieldName", &ex.FieldName)
	sub.field(doc, "selector", &ex.Selector)
	sub.field(doc, "attributeName", &ex.AttributeName)

	var mode string
	sub.field(doc, "mode", &mode)
	ex.Mode = schemas.ExtractMode(mode)
	if !ex.Mode.Valid() {
		if mode != "" {
			sub.logger.Warn("Unknown extractor mode, using text", zap.String("mode", mode))
		}
		ex.Mode = schemas.ModeText
	}

	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	return ex, true
}

func isNull(raw jsoniter.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
