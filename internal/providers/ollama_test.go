package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveOllamaEmbedModel_Default(t *testing.T) {
	t.Setenv("PAPERSEARCH_OLLAMA_EMBED_MODEL", "")
	got := resolveOllamaEmbedModel("")
	if got != "qwen3-embedding:8b" {
		t.Fatalf("expected default qwen3-embedding:8b, got %q", got)
	}
}

func TestResolveOllamaEmbedModel_Alias(t *testing.T) {
	t.Setenv("PAPERSEARCH_OLLAMA_EMBED_MODEL_BIG", "custom-model")
	if got := resolveOllamaEmbedModel("big"); got != "custom-model" {
		t.Fatalf("alias env override ignored, got %q", got)
	}
	if got := resolveOllamaEmbedModel("snowflake-arctic-embed2"); got != "snowflake-arctic-embed2" {
		t.Fatalf("direct model alias not used, got %q", got)
	}
}

func TestOllamaProviderEmbed(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		models = append(models, body.Model)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/embed":
			_, _ = w.Write([]byte(`{"model":"m","embeddings":[[0.5,0.5]]}`))
		case "/api/embeddings":
			_, _ = w.Write([]byte(`{"embedding":[0.5,0.5]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	t.Setenv("PAPERSEARCH_OLLAMA_BASE_URL", srv.URL)

	vecs, info, err := NewOllamaEmbeddingProvider("nomic-embed-text:v1.5").Embed(context.Background(), EmbedRequest{Inputs: []string{"graph"}})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{0.5, 0.5}}, vecs)
	require.Equal(t, "ollama", info.Name)
	require.Equal(t, "nomic-embed-text:v1.5", info.Model)
	require.NotEmpty(t, models)
	require.Equal(t, "nomic-embed-text:v1.5", models[0])
}

func TestOllamaProviderRejectsEmptyInput(t *testing.T) {
	_, _, err := NewOllamaEmbeddingProvider("").Embed(context.Background(), EmbedRequest{})
	require.ErrorContains(t, err, "no embedding inputs")
}
