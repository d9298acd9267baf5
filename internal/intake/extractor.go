// internal/intake/extractor.go
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apphttp "marketplace-engine/internal/common/http"
	"marketplace-engine/internal/common/validation"
	"marketplace-engine/internal/models"
)

const extractPath = "/api/ai/extract-filters"

// extractionSchema is the shape accepted from the intent extractor. Filters
// are closed; vocabulary checks happen after normalization.
var extractionSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["filters"],
	"properties": {
		"normalizedQuery": {"type": "string"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"filters": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"kind": {"type": ["string", "null"]},
				"propertyType": {"type": ["string", "null"]},
				"budget": {"$ref": "#/definitions/range"},
				"size": {"$ref": "#/definitions/range"},
				"minBedrooms": {"type": ["integer", "null"], "minimum": 0},
				"minBathrooms": {"type": ["integer", "null"], "minimum": 0},
				"minParking": {"type": ["integer", "null"], "minimum": 0},
				"locations": {"type": ["array", "null"], "items": {"type": "string"}},
				"amenities": {"type": ["array", "null"], "items": {"type": "string"}}
			}
		}
	},
	"definitions": {
		"range": {
			"type": ["object", "null"],
			"additionalProperties": false,
			"properties": {
				"min": {"type": ["number", "null"], "minimum": 0},
				"max": {"type": ["number", "null"], "minimum": 0}
			}
		}
	}
}`)

// Extraction is what the intent extractor inferred from free text.
type Extraction struct {
	Filters         models.StructuredFilters `json:"filters"`
	NormalizedQuery string                   `json:"normalizedQuery"`
	Confidence      float64                  `json:"confidence"`
}

type Extractor interface {
	Extract(ctx context.Context, query string, hint models.StructuredFilters) (*Extraction, error)
}

// HTTPExtractor calls the GenAI extract-filters endpoint once per inquiry.
type HTTPExtractor struct {
	client  *apphttp.Client
	baseURL string
	apiKey  string
}

func NewHTTPExtractor(client *apphttp.Client, baseURL, apiKey string) *HTTPExtractor {
	return &HTTPExtractor{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (e *HTTPExtractor) Extract(ctx context.Context, query string, hint models.StructuredFilters) (*Extraction, error) {
	headers := map[string]string{}
	if e.apiKey != "" {
		headers["Authorization"] = "Bearer " + e.apiKey
	}

	body := map[string]interface{}{"query": query}
	if !hint.IsEmpty() {
		body["context"] = hint
	}

	data, err := e.client.PostJSON(ctx, e.baseURL+extractPath, headers, body)
	if err != nil {
		return nil, err
	}
	return decodeExtraction(data)
}

func decodeExtraction(data []byte) (*Extraction, error) {
	if err := extractionSchema.ValidateDocument(data).Err(); err != nil {
		return nil, fmt.Errorf("invalid extractor payload: %w", err)
	}

	var out Extraction
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode extractor payload: %w", err)
	}
	out.Filters.Normalize()
	if err := out.Filters.Validate(); err != nil {
		return nil, fmt.Errorf("invalid extractor filters: %w", err)
	}
	out.NormalizedQuery = strings.TrimSpace(out.NormalizedQuery)
	return &out, nil
}
