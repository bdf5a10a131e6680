package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiProviderBatchEmbedContents(t *testing.T) {
	var got struct {
		Requests []struct {
			Model   string `json:"model"`
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			OutputDimensionality int `json:"outputDimensionality"`
		} `json:"requests"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/models/gemini-embedding-001:batchEmbedContents", r.URL.Path)
		require.Equal(t, "alias-key", r.Header.Get("x-goog-api-key"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[1,2]},{"values":[3,4]}]}`))
	}))
	defer srv.Close()
	t.Setenv("PAPERSEARCH_GEMINI_BASE_URL", srv.URL+"/")
	t.Setenv("PAPERSEARCH_GEMINI_KEY_TEAM_A", "alias-key")
	t.Setenv("GEMINI_API_KEY", "fallback-key")

	vecs, info, err := NewGeminiProvider("team-a").Embed(context.Background(), EmbedRequest{Inputs: []string{"first", "second"}, Dimension: 3072})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, vecs)
	assert.Equal(t, ProviderInfo{Name: "gemini", Model: "gemini-embedding-001", Key: "team-a"}, info)

	require.Len(t, got.Requests, 2)
	for i, text := range []string{"first", "second"} {
		assert.Equal(t, "models/gemini-embedding-001", got.Requests[i].Model)
		require.Len(t, got.Requests[i].Content.Parts, 1)
		assert.Equal(t, text, got.Requests[i].Content.Parts[0].Text)
		assert.Equal(t, 3072, got.Requests[i].OutputDimensionality)
	}
}

func TestGeminiProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "http error", status: http.StatusTooManyRequests, body: `{"error":"quota"}`, want: "gemini embedding error 429"},
		{name: "short batch", status: http.StatusOK, body: `{"embeddings":[{"values":[1]}]}`, want: "1 embeddings for 2 inputs"},
		{name: "bad json", status: http.StatusOK, body: `{`, want: "decode gemini embedding response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			t.Setenv("PAPERSEARCH_GEMINI_BASE_URL", srv.URL)
			t.Setenv("GEMINI_API_KEY", "g-key")

			_, _, err := NewGeminiProvider("").Embed(context.Background(), EmbedRequest{Inputs: []string{"a", "b"}})
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestGeminiProviderMissingKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, _, err := NewGeminiProvider("").Embed(context.Background(), EmbedRequest{Inputs: []string{"a"}})
	require.ErrorContains(t, err, "gemini key missing")
}
