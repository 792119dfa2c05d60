package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
)

// MappingSuggestion is the adapter's proposal for one raw column.
type MappingSuggestion struct {
	TargetField string  `json:"target_field"`
	Confidence  float64 `json:"confidence"`
}

// MappingSuggester proposes target fields for raw columns with no stored
// mapping. Used only on lookup miss.
type MappingSuggester interface {
	SuggestMapping(ctx context.Context, vendor string, rawColumns []string, sampleRows []map[string]string) (map[string]MappingSuggestion, error)
}

// AIMappingSuggester asks an OpenAI-compatible chat completions endpoint to
// map columns, with retry on rate limiting and a heuristic fallback.
type AIMappingSuggester struct {
	apiURL string
	apiKey string
	model  string
	client *http.Client
}

func NewAIMappingSuggester() *AIMappingSuggester {
	apiURL := os.Getenv("MAPPING_API_URL")
	if apiURL == "" {
		apiURL = "https://api.groq.com/openai/v1/chat/completions"
	}
	modelName := os.Getenv("MAPPING_MODEL")
	if modelName == "" {
		modelName = "llama-3.3-70b-versatile"
	}
	return &AIMappingSuggester{
		apiURL: apiURL,
		apiKey: os.Getenv("MAPPING_API_KEY"),
		model:  modelName,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// ModelName reports which model produced suggestions, for audit on the
// document record.
func (a *AIMappingSuggester) ModelName() string {
	return a.model
}

func (a *AIMappingSuggester) SuggestMapping(ctx context.Context, vendor string, rawColumns []string, sampleRows []map[string]string) (map[string]MappingSuggestion, error) {
	if a.apiKey == "" {
		log.Println("MAPPING_API_KEY is not set, using heuristic column matching")
		return heuristicSuggest(rawColumns), nil
	}

	sample, err := json.Marshal(sampleRows)
	if err != nil {
		return heuristicSuggest(rawColumns), nil
	}
	if len(sample) > 4000 {
		sample = sample[:4000]
	}

	prompt := fmt.Sprintf(`
    Map each raw column header from a %s procurement document to one of these canonical line-item fields:
    line_number, clin, slin, part_number, manufacturer, manufacturer_part_number,
    product_name, product_description, category, sub_category, quantity, unit_of_issue,
    unit_price, extended_price, discount_percent, discount_amount,
    labor_category, labor_hours, labor_rate, period_start, period_end

    Raw columns:
    %s

    Sample rows:
    %s

    Instructions:
    1. Map every column to its most likely canonical field.
    2. Assign a confidence between 0.0 and 1.0 for each mapping.
    3. Return a JSON object keyed by the raw column name, each value an object with "target_field" and "confidence".
    4. Use an empty target_field when no canonical field fits.

    Response Format:
    {
        "Unit Cost": {"target_field": "unit_price", "confidence": 0.9}
    }
    `, vendorOrUnknown(vendor), strings.Join(rawColumns, ", "), string(sample))

	reqBody, err := json.Marshal(map[string]interface{}{
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"model":       a.model,
		"temperature": 0.0,
		"max_tokens":  1024,
		"response_format": map[string]string{
			"type": "json_object",
		},
	})
	if err != nil {
		return heuristicSuggest(rawColumns), nil
	}

	const maxRetries = 3
	var resp *http.Response
	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "POST", a.apiURL, bytes.NewBuffer(reqBody))
		if err != nil {
			return nil, fmt.Errorf("failed to create mapping request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err = a.client.Do(req)
		if err == nil && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		if err != nil {
			log.Printf("mapping request failed (attempt %d): %v", attempt+1, err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		} else {
			log.Printf("mapping API rate limited (attempt %d), status: %s", attempt+1, resp.Status)
			resp.Body.Close()
			resp = nil
		}
		if attempt < maxRetries-1 {
			time.Sleep(time.Duration(2*(attempt+1)) * time.Second)
		}
	}
	if resp == nil {
		log.Println("mapping API unreachable, using heuristic column matching")
		return heuristicSuggest(rawColumns), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("mapping API returned %d, using heuristic column matching", resp.StatusCode)
		return heuristicSuggest(rawColumns), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return heuristicSuggest(rawColumns), nil
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil || len(result.Choices) == 0 {
		log.Printf("unexpected mapping API response: %s", string(body))
		return heuristicSuggest(rawColumns), nil
	}

	var suggestions map[string]MappingSuggestion
	if err := json.Unmarshal([]byte(result.Choices[0].Message.Content), &suggestions); err != nil {
		log.Printf("failed to parse mapping suggestions: %v", err)
		return heuristicSuggest(rawColumns), nil
	}

	// Only keep suggestions for the columns actually asked about.
	out := make(map[string]MappingSuggestion, len(rawColumns))
	for _, col := range rawColumns {
		if sug, ok := suggestions[col]; ok {
			out[col] = sug
		}
	}
	return out, nil
}

func vendorOrUnknown(vendor string) string {
	if vendor == "" {
		return "unknown-vendor"
	}
	return vendor
}

var columnNormalizer = regexp.MustCompile(`[^a-z0-9\s]`)

// columnMatchers pair canonical fields with header fragments commonly seen in
// vendor documents. Order matters: earlier entries win a tie.
var columnMatchers = []struct {
	field      string
	terms      []string
	confidence float64
}{
	{"extended_price", []string{"ext price", "extended", "line total", "total price", "amount"}, 0.6},
	{"unit_of_issue", []string{"uoi", "uom", "unit of issue", "unit of measure"}, 0.6},
	{"unit_price", []string{"unit price", "unit cost", "price", "rate each", "cost"}, 0.6},
	{"part_number", []string{"part", "sku", "item code", "catalog", "product id"}, 0.6},
	{"product_name", []string{"description", "item", "product", "title", "name"}, 0.55},
	{"manufacturer", []string{"mfr", "mfg", "brand", "make", "manufacturer"}, 0.6},
	{"quantity", []string{"qty", "quantity", "count", "units"}, 0.65},
	{"clin", []string{"clin", "line item no", "line no", "line number"}, 0.55},
	{"labor_category", []string{"lcat", "labor category", "role", "position"}, 0.55},
	{"labor_hours", []string{"hours", "hrs"}, 0.55},
	{"labor_rate", []string{"hourly rate", "labor rate"}, 0.6},
	{"discount_percent", []string{"discount %", "disc %", "discount percent"}, 0.6},
	{"discount_amount", []string{"discount", "disc amt"}, 0.5},
	{"category", []string{"category", "type"}, 0.5},
}

// heuristicSuggest is the offline fallback: fuzzy keyword matching against
// headers, normalized the same way the rule matcher normalizes text.
func heuristicSuggest(rawColumns []string) map[string]MappingSuggestion {
	out := make(map[string]MappingSuggestion, len(rawColumns))
	for _, col := range rawColumns {
		norm := strings.ToLower(col)
		norm = strings.ReplaceAll(norm, "-", " ")
		norm = strings.ReplaceAll(norm, "_", " ")
		norm = columnNormalizer.ReplaceAllString(norm, "")
		norm = strings.Join(strings.Fields(norm), " ")

		matched := false
		for _, m := range columnMatchers {
			for _, term := range m.terms {
				if strings.Contains(norm, term) {
					out[col] = MappingSuggestion{TargetField: m.field, Confidence: m.confidence}
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			out[col] = MappingSuggestion{TargetField: "", Confidence: 0}
		}
	}
	return out
}
