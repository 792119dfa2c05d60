package services

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	model "github.com/pdintel/docintel/models"
)

func TestExtractCSV(t *testing.T) {
	raw := "Part #, Description ,Qty\nABC-123,Industrial Widget,10\nXYZ-9,Bracket\n,,\n"
	extractor := &DocumentExtractor{}

	result, err := extractor.Extract(context.Background(), []byte(raw), "csv")
	assert.NoError(t, err)
	assert.Equal(t, "csv", result.Method)
	assert.Equal(t, []string{"Part #", "Description", "Qty"}, result.Columns)

	// Short rows are tolerated, fully empty rows dropped.
	assert.Len(t, result.Rows, 2)
	assert.Equal(t, "Industrial Widget", result.Rows[0]["Description"])
	assert.Equal(t, "XYZ-9", result.Rows[1]["Part #"])
	_, hasQty := result.Rows[1]["Qty"]
	assert.False(t, hasQty)

	assert.Contains(t, result.FullText, "ABC-123 | Industrial Widget | 10")
}

func TestExtractXLSXSkipsTitleRow(t *testing.T) {
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	// A title banner above the real header must not be taken as the header.
	assert.NoError(t, wb.SetCellValue(sheet, "A1", "Quote #Q-1042"))
	assert.NoError(t, wb.SetCellValue(sheet, "A2", "Part #"))
	assert.NoError(t, wb.SetCellValue(sheet, "B2", "Description"))
	assert.NoError(t, wb.SetCellValue(sheet, "C2", "Unit Cost"))
	assert.NoError(t, wb.SetCellValue(sheet, "A3", "ABC-123"))
	assert.NoError(t, wb.SetCellValue(sheet, "B3", "Industrial Widget"))
	assert.NoError(t, wb.SetCellValue(sheet, "C3", "5.00"))

	var buf bytes.Buffer
	assert.NoError(t, wb.Write(&buf))

	extractor := &DocumentExtractor{}
	result, err := extractor.Extract(context.Background(), buf.Bytes(), "xlsx")
	assert.NoError(t, err)
	assert.Equal(t, "excelize", result.Method)
	assert.Equal(t, []string{"Part #", "Description", "Unit Cost"}, result.Columns)
	assert.Len(t, result.Rows, 1)
	assert.Equal(t, "ABC-123", result.Rows[0]["Part #"])
	assert.Equal(t, "5.00", result.Rows[0]["Unit Cost"])
}

func TestExtractUnsupportedFormat(t *testing.T) {
	extractor := &DocumentExtractor{}
	var unsupported *model.UnsupportedFormatError
	_, err := extractor.Extract(context.Background(), []byte("x"), "png")
	assert.ErrorAs(t, err, &unsupported)
}

func TestExtractRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "PDF", r.FormValue("filetype"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rows":[{"Part Number":"ABC-123","Unit Price":"5.00"}],"text":"ABC-123 5.00","page_count":2}`))
	}))
	defer server.Close()

	extractor := &DocumentExtractor{client: server.Client(), apiURL: server.URL}
	result, err := extractor.Extract(context.Background(), []byte("%PDF-1.4"), "pdf")
	assert.NoError(t, err)
	assert.Equal(t, "parse_api", result.Method)
	assert.Equal(t, 2, result.PageCount)
	assert.Len(t, result.Rows, 1)
	assert.ElementsMatch(t, []string{"Part Number", "Unit Price"}, result.Columns)
	assert.Equal(t, "ABC-123 5.00", result.FullText)
}

func TestExtractRemoteErrors(t *testing.T) {
	t.Run("api error payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":"page limit exceeded"}`))
		}))
		defer server.Close()

		extractor := &DocumentExtractor{client: server.Client(), apiURL: server.URL}
		_, err := extractor.Extract(context.Background(), []byte("%PDF-1.4"), "pdf")
		assert.ErrorContains(t, err, "page limit exceeded")
	})

	t.Run("unconfigured endpoint", func(t *testing.T) {
		extractor := &DocumentExtractor{}
		_, err := extractor.Extract(context.Background(), []byte("%PDF-1.4"), "pdf")
		assert.ErrorContains(t, err, "EXTRACTION_API_URL")
	})
}

func TestSampleRows(t *testing.T) {
	x := &Extraction{Rows: []map[string]string{{"a": "1"}, {"a": "2"}, {"a": "3"}}}
	assert.Len(t, x.SampleRows(2), 2)
	assert.Len(t, x.SampleRows(5), 3)
}
