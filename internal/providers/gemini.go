package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const geminiEmbedModel = "gemini-embedding-001"

// GeminiProvider calls the Generative Language batch embedding endpoint
// directly so each request can carry outputDimensionality.
type GeminiProvider struct {
	keyName string
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGeminiProvider(keyName string) *GeminiProvider {
	baseURL := strings.TrimSpace(os.Getenv("PAPERSEARCH_GEMINI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	apiKey := ""
	if keyName != "" {
		apiKey = os.Getenv("PAPERSEARCH_GEMINI_KEY_" + sanitizeEnvToken(keyName))
	}
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	return &GeminiProvider{
		keyName: keyName,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: geminiEmbedModel, Key: g.keyName}
	if g.apiKey == "" {
		return nil, info, fmt.Errorf("gemini key missing for alias %q", g.keyName)
	}
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Parts []part `json:"parts"`
	}
	type embedReq struct {
		Model                string  `json:"model"`
		Content              content `json:"content"`
		OutputDimensionality int     `json:"outputDimensionality,omitempty"`
	}
	requests := make([]embedReq, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		requests = append(requests, embedReq{
			Model:                "models/" + geminiEmbedModel,
			Content:              content{Parts: []part{{Text: in}}},
			OutputDimensionality: req.Dimension,
		})
	}
	payload, err := json.Marshal(map[string]any{"requests": requests})
	if err != nil {
		return nil, info, fmt.Errorf("encode gemini embedding request: %w", err)
	}
	url := g.baseURL + "/models/" + geminiEmbedModel + ":batchEmbedContents"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, info, fmt.Errorf("build gemini embedding request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, info, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, info, fmt.Errorf("gemini embedding error %d: %s", resp.StatusCode, string(body))
	}
	var parsed struct {
		Embeddings []struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, info, fmt.Errorf("decode gemini embedding response: %w", err)
	}
	if len(parsed.Embeddings) != len(req.Inputs) {
		return nil, info, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(parsed.Embeddings), len(req.Inputs))
	}
	out := make([][]float32, 0, len(parsed.Embeddings))
	for _, e := range parsed.Embeddings {
		out = append(out, e.Values)
	}
	return out, info, nil
}
