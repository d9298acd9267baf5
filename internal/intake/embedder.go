// internal/intake/embedder.go
package intake

import (
	"context"
	"fmt"

	apphttp "marketplace-engine/internal/common/http"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type EmbedderConfig struct {
	BaseURL string
	Token   string
	Model   string
}

// LangchainEmbedder talks to any OpenAI-compatible embeddings endpoint.
type LangchainEmbedder struct {
	embedder embeddings.Embedder
}

func NewLangchainEmbedder(cfg EmbedderConfig, client *apphttp.Client) (*LangchainEmbedder, error) {
	token := cfg.Token
	if token == "" {
		// local OpenAI-compatible servers accept any token
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if client != nil {
		opts = append(opts, openai.WithHTTPClient(client.HTTPClient()))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &LangchainEmbedder{embedder: emb}, nil
}

func (e *LangchainEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embed query: empty vector")
	}
	return vec, nil
}
