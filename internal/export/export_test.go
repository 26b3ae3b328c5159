package export_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
	"github.com/xkilldash9x/scrapedeck/internal/export"
)

// -- Setup --

var fields = []string{"title", "price"}

func sampleItems() []schemas.ResultItem {
	return []schemas.ResultItem{
		{{Name: "title", Value: schemas.StringPtr("Lamp, \"brass\"")}, {Name: "price", Value: schemas.StringPtr("12.50")}},
		{{Name: "title", Value: schemas.StringPtr("Chair")}, {Name: "price", Value: nil}},
	}
}

// -- Tests --

func TestWriteAll_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	require.NoError(t, export.WriteAll(schemas.FormatJSON, path, fields, sampleItems()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []map[string]*string
	require.NoError(t, jsoniter.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "Lamp, \"brass\"", *decoded[0]["title"])
	assert.Nil(t, decoded[1]["price"], "absent values are written as null")
	assert.Contains(t, decoded[1], "price")
}

func TestWriteAll_JSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, export.WriteAll(schemas.FormatJSON, path, fields, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestWriteAll_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, export.WriteAll(schemas.FormatCSV, path, fields, sampleItems()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"title", "price"},
		{"Lamp, \"brass\"", "12.50"},
		{"Chair", ""},
	}, records)
}

func TestWriteAll_CSVHeaderFromFirstItem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, export.WriteAll(schemas.FormatCSV, path, nil, sampleItems()[:1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "title,price\n\"Lamp, \"\"brass\"\"\",12.50\n", string(data))
}

func TestWriteAll_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, export.WriteAll(schemas.FormatXLSX, path, fields, sampleItems()))

	wb, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"title", "price"}, rows[0])
	assert.Equal(t, []string{"Lamp, \"brass\"", "12.50"}, rows[1])
	// Trailing empty cells are trimmed by GetRows.
	assert.Equal(t, "Chair", rows[2][0])
}

func TestNew_Errors(t *testing.T) {
	_, err := export.New(schemas.FormatXLSX, "", fields)
	assert.Error(t, err, "xlsx cannot go to stdout")

	path := filepath.Join(t.TempDir(), "out.txt")
	_, err = export.New(schemas.ExportFormat("txt"), path, fields)
	assert.Error(t, err)
}
