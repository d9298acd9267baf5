// internal/matching/candidates_es.go
package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ESCandidateSource reads the eligible pool from the listing index.
type ESCandidateSource struct {
	client *elasticsearch.Client
	index  string
}

func NewESCandidateSource(client *elasticsearch.Client, index string) *ESCandidateSource {
	return &ESCandidateSource{client: client, index: index}
}

type listingDocument struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	Kind         string     `json:"kind"`
	PropertyType string     `json:"property_type"`
	Price        *float64   `json:"price"`
	Size         *float64   `json:"size_sqm"`
	Bedrooms     *int       `json:"bedrooms"`
	Bathrooms    *int       `json:"bathrooms"`
	Parking      *int       `json:"parking"`
	Location     string     `json:"location"`
	Amenities    []string   `json:"amenities"`
	Published    bool       `json:"published"`
	Status       string     `json:"status"`
	Embedding    []float32  `json:"embedding"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source listingDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildEligibleQuery(tenantID string) map[string]interface{} {
	filters := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"published": true}},
		map[string]interface{}{"term": map[string]interface{}{"status": string(models.StatusActive)}},
	}
	if tenantID != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"tenant_id": tenantID}})
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
		"sort": []interface{}{
			map[string]interface{}{"updated_at": map[string]interface{}{"order": "desc", "missing": "_last"}},
			map[string]interface{}{"id": map[string]interface{}{"order": "asc"}},
		},
	}
}

func (s *ESCandidateSource) EligibleCandidates(ctx context.Context, tenantID string, limit int) ([]models.Candidate, error) {
	body, err := json.Marshal(buildEligibleQuery(tenantID))
	if err != nil {
		return nil, fmt.Errorf("encode candidate query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
		Size:  &limit,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("search candidates: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search candidates: %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode candidate hits: %w", err)
	}

	out := make([]models.Candidate, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		d := hit.Source
		id := d.ID
		if id == "" {
			id = hit.ID
		}
		c := models.Candidate{
			ID:           id,
			TenantID:     d.TenantID,
			Kind:         models.ListingKind(d.Kind),
			PropertyType: models.PropertyType(d.PropertyType),
			Price:        d.Price,
			Size:         d.Size,
			Bedrooms:     d.Bedrooms,
			Bathrooms:    d.Bathrooms,
			Parking:      d.Parking,
			Location:     d.Location,
			Published:    d.Published,
			Status:       models.ListingStatus(d.Status),
			Embedding:    d.Embedding,
			CreatedAt:    d.CreatedAt,
			UpdatedAt:    d.UpdatedAt,
		}
		if d.Amenities != nil {
			c.Amenities = make([]models.Amenity, 0, len(d.Amenities))
			for _, a := range d.Amenities {
				c.Amenities = append(c.Amenities, models.Amenity(a))
			}
		}
		out = append(out, c)
	}
	return out, nil
}
