package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	model "github.com/pdintel/docintel/models"
)

// Extraction is the raw output of the extraction stage: tabular rows keyed by
// the vendor's own column headers, plus free text for retrieval.
type Extraction struct {
	Rows      []map[string]string
	Columns   []string // header order as seen in the source
	FullText  string
	PageCount int
	Method    string
}

// Extractor turns an uploaded file into raw rows and text.
type Extractor interface {
	Extract(ctx context.Context, fileBytes []byte, fileFormat string) (*Extraction, error)
}

// DocumentExtractor parses spreadsheet formats natively and sends PDF/DOCX
// files to the external parse API.
type DocumentExtractor struct {
	client *http.Client
	apiURL string
	apiKey string
}

func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{
		client: &http.Client{Timeout: 60 * time.Second},
		apiURL: os.Getenv("EXTRACTION_API_URL"),
		apiKey: os.Getenv("EXTRACTION_API_KEY"),
	}
}

func (e *DocumentExtractor) Extract(ctx context.Context, fileBytes []byte, fileFormat string) (*Extraction, error) {
	switch strings.ToLower(fileFormat) {
	case "xlsx", "xls":
		return e.extractXLSX(fileBytes)
	case "csv":
		return e.extractCSV(fileBytes)
	case "pdf", "docx", "doc":
		return e.extractRemote(ctx, fileBytes, fileFormat)
	default:
		return nil, &model.UnsupportedFormatError{Format: fileFormat}
	}
}

func (e *DocumentExtractor) extractXLSX(fileBytes []byte) (*Extraction, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	result := &Extraction{Method: "excelize"}
	var textParts []string

	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		result.PageCount++

		// Header row is the first row with at least two non-empty cells.
		headerIdx := 0
		for i, row := range rows {
			nonEmpty := 0
			for _, c := range row {
				if strings.TrimSpace(c) != "" {
					nonEmpty++
				}
			}
			if nonEmpty >= 2 {
				headerIdx = i
				break
			}
		}
		headers := make([]string, len(rows[headerIdx]))
		for i, h := range rows[headerIdx] {
			headers[i] = strings.TrimSpace(h)
		}
		result.Columns = mergeColumns(result.Columns, headers)

		for _, row := range rows[headerIdx+1:] {
			rowMap := map[string]string{}
			var rowText []string
			for j, cell := range row {
				val := strings.TrimSpace(cell)
				if j < len(headers) && headers[j] != "" && val != "" {
					rowMap[headers[j]] = val
				}
				if val != "" {
					rowText = append(rowText, val)
				}
			}
			if len(rowMap) > 0 {
				result.Rows = append(result.Rows, rowMap)
			}
			if len(rowText) > 0 {
				textParts = append(textParts, strings.Join(rowText, " | "))
			}
		}
	}

	result.FullText = strings.Join(textParts, "\n")
	return result, nil
}

func (e *DocumentExtractor) extractCSV(fileBytes []byte) (*Extraction, error) {
	reader := csv.NewReader(bytes.NewReader(fileBytes))
	reader.FieldsPerRecord = -1 // vendors pad rows unevenly

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return &Extraction{Method: "csv"}, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	result := &Extraction{Method: "csv", Columns: headers, PageCount: 1}
	var textParts []string
	for _, record := range records[1:] {
		rowMap := map[string]string{}
		var rowText []string
		for j, cell := range record {
			val := strings.TrimSpace(cell)
			if j < len(headers) && headers[j] != "" && val != "" {
				rowMap[headers[j]] = val
			}
			if val != "" {
				rowText = append(rowText, val)
			}
		}
		if len(rowMap) > 0 {
			result.Rows = append(result.Rows, rowMap)
		}
		if len(rowText) > 0 {
			textParts = append(textParts, strings.Join(rowText, " | "))
		}
	}
	result.FullText = strings.Join(textParts, "\n")
	return result, nil
}

// extractRemote sends the file to the external parse API as multipart form
// data and decodes its JSON response.
func (e *DocumentExtractor) extractRemote(ctx context.Context, fileBytes []byte, fileFormat string) (*Extraction, error) {
	if e.apiURL == "" {
		return nil, fmt.Errorf("EXTRACTION_API_URL is not configured")
	}

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	if err := w.WriteField("apikey", e.apiKey); err != nil {
		return nil, fmt.Errorf("failed to write apikey field: %w", err)
	}
	if err := w.WriteField("filetype", strings.ToUpper(fileFormat)); err != nil {
		return nil, fmt.Errorf("failed to write filetype field: %w", err)
	}
	fw, err := w.CreateFormFile("file", "document."+fileFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fw.Write(fileBytes); err != nil {
		return nil, fmt.Errorf("failed to write file bytes: %w", err)
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", e.apiURL, &b)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("parse request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("parse API returned %s: %s", resp.Status, string(bodyBytes))
		return nil, fmt.Errorf("parse API error: %s", resp.Status)
	}

	var parsed struct {
		Rows      []map[string]string `json:"rows"`
		Text      string              `json:"text"`
		PageCount int                 `json:"page_count"`
		Error     string              `json:"error"`
	}
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("invalid parse response: %s", string(bodyBytes))
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("parse API error: %s", parsed.Error)
	}

	result := &Extraction{
		Rows:      parsed.Rows,
		FullText:  parsed.Text,
		PageCount: parsed.PageCount,
		Method:    "parse_api",
	}
	for _, row := range parsed.Rows {
		for col := range row {
			result.Columns = mergeColumns(result.Columns, []string{col})
		}
	}
	return result, nil
}

// mergeColumns appends headers not already present, preserving order.
func mergeColumns(existing, headers []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[c] = true
	}
	for _, h := range headers {
		if h != "" && !seen[h] {
			existing = append(existing, h)
			seen[h] = true
		}
	}
	return existing
}

// SampleRows returns up to n rows for the mapping adapter prompt.
func (x *Extraction) SampleRows(n int) []map[string]string {
	if len(x.Rows) <= n {
		return x.Rows
	}
	return x.Rows[:n]
}
