package intake

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apphttp "marketplace-engine/internal/common/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLangchainEmbedder_EmbedQuery(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel, _ = body["model"].(string)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"model":  gotModel,
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 0, "embedding": []float32{0.1, 0.2, 0.3}},
			},
			"usage": map[string]int{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
	defer srv.Close()

	emb, err := NewLangchainEmbedder(EmbedderConfig{BaseURL: srv.URL, Model: "text-embedding-3-small"}, apphttp.NewClient(time.Second))
	require.NoError(t, err)

	vec, err := emb.EmbedQuery(context.Background(), "two bedroom\nflat")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "text-embedding-3-small", gotModel)
}

func TestLangchainEmbedder_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer srv.Close()

	emb, err := NewLangchainEmbedder(EmbedderConfig{BaseURL: srv.URL, Model: "m"}, apphttp.NewClient(time.Second))
	require.NoError(t, err)

	_, err = emb.EmbedQuery(context.Background(), "loft")
	assert.Error(t, err)
}
