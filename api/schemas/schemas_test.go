package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_CloneIsIndependent(t *testing.T) {
	orig := Profile{
		TargetURL:    "shop.example.com",
		ExportFormat: FormatCSV,
		Extractors: []Extractor{
			{ID: "a", FieldName: "name", Selector: "h2", Mode: ModeText},
		},
	}
	clone := orig.Clone()
	clone.Extractors[0].Selector = "h3"
	clone.Extractors = append(clone.Extractors, Extractor{ID: "b"})
	clone.TargetURL = "other.example.com"

	assert.Equal(t, "h2", orig.Extractors[0].Selector)
	assert.Len(t, orig.Extractors, 1)
	assert.Equal(t, "shop.example.com", orig.TargetURL)

	assert.Nil(t, Profile{}.Clone().Extractors)
	assert.Equal(t, 0, orig.ExtractorIndex("a"))
	assert.Equal(t, -1, orig.ExtractorIndex("zz"))
}

func TestNewProfile(t *testing.T) {
	p := NewProfile()
	assert.Equal(t, FormatJSON, p.ExportFormat)
	assert.NotNil(t, p.Extractors)
	assert.Empty(t, p.Extractors)
	assert.False(t, p.Debug)
}

func TestParseExportFormat(t *testing.T) {
	tests := []struct {
		in   string
		want ExportFormat
		ok   bool
	}{
		{"json", FormatJSON, true},
		{" CSV ", FormatCSV, true},
		{"xlsx", FormatXLSX, true},
		{"Excel", FormatXLSX, true},
		{"spreadsheet", FormatXLSX, true},
		{"pdf", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseExportFormat(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	assert.Equal(t, ".json", FormatJSON.Extension())
	assert.Equal(t, ".csv", FormatCSV.Extension())
	assert.Equal(t, ".xlsx", FormatXLSX.Extension())
	assert.Equal(t, ".json", ExportFormat("").Extension())
}

func TestExtractMode_Valid(t *testing.T) {
	for _, m := range []ExtractMode{ModeText, ModeAttribute, ModeChildLinkURL, ModeChildLinkText} {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, ExtractMode("html").Valid())
	assert.False(t, ExtractMode("").Valid())
}

func TestResultItem_MarshalKeepsOrder(t *testing.T) {
	item := ResultItem{
		{Name: "title", Value: StringPtr("Rug \"XL\"")},
		{Name: "url", Value: nil},
		{Name: "alpha", Value: StringPtr("a")},
	}
	b, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Rug \"XL\"","url":null,"alpha":"a"}`, string(b))

	b, err = json.Marshal(ResultItem{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
}

func TestResultItem_GetAndClone(t *testing.T) {
	item := ResultItem{
		{Name: "title", Value: StringPtr("Rug")},
		{Name: "url"},
	}
	v, ok := item.Get("title")
	assert.True(t, ok)
	assert.Equal(t, "Rug", v)
	_, ok = item.Get("url")
	assert.False(t, ok)
	_, ok = item.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"title", "url"}, item.Names())

	clone := item.Clone()
	*clone[0].Value = "Lamp"
	v, _ = item.Get("title")
	assert.Equal(t, "Rug", v)
	assert.Nil(t, clone[1].Value)
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, EventComplete.Terminal())
	assert.True(t, EventFailure.Terminal())
	assert.False(t, EventLog.Terminal())
	assert.False(t, EventData.Terminal())
	assert.Len(t, AllEventKinds, 4)

	assert.True(t, RunCompleted.Terminal())
	assert.True(t, RunError.Terminal())
	assert.False(t, RunIdle.Terminal())
	assert.False(t, RunRunning.Terminal())
}
