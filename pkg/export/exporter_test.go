package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func programDataset() Dataset {
	return Dataset{
		Headers: []string{"title", "city", "enrolled"},
		Rows: []map[string]string{
			{"title": "Summer English Camp", "city": "Vancouver", "enrolled": "12"},
			{"title": "Winter Ski Camp", "city": "Calgary"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(programDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "title,city,enrolled", lines[0])
	assert.Equal(t, "Winter Ski Camp,Calgary,", lines[2])
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{}, "x")
	assert.Error(t, err)
	_, err = NewXLSXExporter().Render(Dataset{}, "x")
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(programDataset(), "Programs")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(programDataset(), "Programs")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows("Programs")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"title", "city", "enrolled"}, rows[0])
	assert.Equal(t, "Summer English Camp", rows[1][0])
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("docx")
	assert.Error(t, err)
}

func TestRendererDispatch(t *testing.T) {
	out, err := NewRenderer().Render(FormatCSV, programDataset(), "Programs")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "title,city,enrolled"))
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
}
