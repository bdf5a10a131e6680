package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

const openAIEmbedModel = "text-embedding-3-large"

// OpenAIProvider embeds through the OpenAI API. text-embedding-3-large returns
// 3072 dimensions natively.
type OpenAIProvider struct {
	keyName  string
	embedder embeddings.Embedder
	err      error
}

func NewOpenAIProvider(keyName string) *OpenAIProvider {
	p := &OpenAIProvider{keyName: keyName}
	apiKey := resolveOpenAIKey(keyName)
	if apiKey == "" {
		p.err = fmt.Errorf("openai key missing for alias %q", keyName)
		return p
	}
	baseURL := strings.TrimSpace(os.Getenv("PAPERSEARCH_OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	client, err := openai.New(
		openai.WithBaseURL(strings.TrimRight(baseURL, "/")),
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(openAIEmbedModel),
	)
	if err != nil {
		p.err = fmt.Errorf("create openai client: %w", err)
		return p
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		p.err = fmt.Errorf("create openai embedder: %w", err)
		return p
	}
	p.embedder = embedder
	return p
}

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "openai", Model: openAIEmbedModel, Key: o.keyName}
	return embedWith(ctx, o.embedder, o.err, info, req.Inputs)
}

func resolveOpenAIKey(alias string) string {
	if alias != "" {
		k := os.Getenv("PAPERSEARCH_OPENAI_KEY_" + sanitizeEnvToken(alias))
		if k != "" {
			return k
		}
	}
	return os.Getenv("OPENAI_API_KEY")
}
