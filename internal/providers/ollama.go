package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaEmbeddingProvider supports local embeddings via Ollama. The configured
// model must produce vectors of the corpus dimension; the manager rejects any
// other size.
type OllamaEmbeddingProvider struct {
	alias    string
	model    string
	embedder embeddings.Embedder
	err      error
}

func NewOllamaEmbeddingProvider(alias string) *OllamaEmbeddingProvider {
	baseURL := strings.TrimSpace(os.Getenv("PAPERSEARCH_OLLAMA_BASE_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	p := &OllamaEmbeddingProvider{alias: alias, model: resolveOllamaEmbedModel(alias)}
	client, err := ollama.New(
		ollama.WithServerURL(strings.TrimRight(baseURL, "/")),
		ollama.WithModel(p.model),
	)
	if err != nil {
		p.err = fmt.Errorf("create ollama client: %w", err)
		return p
	}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		p.err = fmt.Errorf("create ollama embedder: %w", err)
		return p
	}
	p.embedder = embedder
	return p
}

func (o *OllamaEmbeddingProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.model, Key: o.alias}
	return embedWith(ctx, o.embedder, o.err, info, req.Inputs)
}

func resolveOllamaEmbedModel(alias string) string {
	alias = strings.TrimSpace(alias)
	if alias != "" {
		key := "PAPERSEARCH_OLLAMA_EMBED_MODEL_" + sanitizeEnvToken(alias)
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		// Allow a direct model in the provider list, e.g. ollama:qwen3-embedding
		if strings.Contains(alias, "-") || strings.Contains(alias, "/") || strings.Contains(alias, ".") || strings.Contains(alias, ":") {
			return alias
		}
	}
	if v := strings.TrimSpace(os.Getenv("PAPERSEARCH_OLLAMA_EMBED_MODEL")); v != "" {
		return v
	}
	return "qwen3-embedding:8b"
}

func sanitizeEnvToken(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
