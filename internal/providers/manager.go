package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"papersearch/internal/config"
	"papersearch/internal/vector"

	"golang.org/x/time/rate"
)

var ErrNoEmbedding = errors.New("no embedding provider succeeded")

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

// Manager fans embedding requests out to the configured providers in
// preferred order, sharing one rate limit across all of them.
type Manager struct {
	embedProviders []NamedEmbedProvider
	limiter        *rate.Limiter
	dim            int
	logger         *slog.Logger
}

func NewManager(cfg config.Config) (*Manager, error) {
	if cfg.EmbedDim == 0 {
		cfg.EmbedDim = vector.Dim
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		dim:     cfg.EmbedDim,
		limiter: newLimiter(cfg.EmbedRatePerSec),
		logger:  slog.Default(),
	}
	refs, err := ParseProviderList(cfg.EmbedProviders)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		p, err := buildProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ref, Provider: p})
	}
	return m, nil
}

// NewManagerWith builds a manager over explicit providers.
func NewManagerWith(dim int, ratePerSec float64, providers ...NamedEmbedProvider) *Manager {
	return &Manager{
		embedProviders: providers,
		limiter:        newLimiter(ratePerSec),
		dim:            dim,
		logger:         slog.Default(),
	}
}

func newLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

func (m *Manager) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

func (m *Manager) Dim() int {
	return m.dim
}

func (m *Manager) EmbedCount() int {
	return len(m.embedProviders)
}

func (m *Manager) PreferredEmbedOrder() []int {
	return preferredOrder(len(m.embedProviders), func(i int) string { return strings.ToLower(m.embedProviders[i].Ref.Name) })
}

func preferredOrder(n int, nameAt func(i int) string) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if nameAt(i) != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if nameAt(i) == "mock" {
			out = append(out, i)
		}
	}
	return out
}

func (m *Manager) EmbedProviderRefs() []ProviderRef {
	out := make([]ProviderRef, 0, len(m.embedProviders))
	for i := range m.embedProviders {
		out = append(out, m.embedProviders[i].Ref)
	}
	return out
}

// Embed returns one vector per input from the first provider that answers with
// the right count and dimension. Context cancellation stops the failover.
func (m *Manager) Embed(ctx context.Context, operation string, inputs []string) ([][]float32, ProviderInfo, error) {
	if len(inputs) == 0 {
		return [][]float32{}, ProviderInfo{}, nil
	}
	var errs []error
	for _, i := range m.PreferredEmbedOrder() {
		np := m.embedProviders[i]
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, ProviderInfo{}, fmt.Errorf("rate limiter: %w", err)
		}
		vecs, info, err := np.Provider.Embed(ctx, EmbedRequest{Operation: operation, Inputs: inputs, Dimension: m.dim})
		if err == nil {
			err = m.checkVectors(vecs, len(inputs))
		}
		if err == nil {
			return vecs, info, nil
		}
		m.logger.Warn("embedding provider failed",
			"provider", np.Ref.Raw, "operation", operation, "error_type", ClassifyError(err), "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", np.Ref.Raw, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, ProviderInfo{}, fmt.Errorf("%w: %w", ErrNoEmbedding, errors.Join(errs...))
}

// EmbedQuery embeds a single search query.
func (m *Manager) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, _, err := m.Embed(ctx, "query", []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *Manager) checkVectors(vecs [][]float32, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("provider returned %d vectors for %d inputs", len(vecs), want)
	}
	for _, v := range vecs {
		if m.dim > 0 && len(v) != m.dim {
			return fmt.Errorf("%w: expected %d, got %d", ErrDimension, m.dim, len(v))
		}
	}
	return nil
}

func buildProvider(ref ProviderRef, dim int) (EmbeddingProvider, error) {
	switch ref.Name {
	case "mock":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	case "gemini":
		return NewGeminiProvider(ref.KeyAlias), nil
	case "ollama":
		return NewOllamaEmbeddingProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
