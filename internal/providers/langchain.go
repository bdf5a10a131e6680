package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
)

// embedWith runs one batch through a langchaingo embedder. setupErr carries a
// construction failure so it surfaces at call time, where the manager can fail
// over to the next provider.
func embedWith(ctx context.Context, e embeddings.Embedder, setupErr error, info ProviderInfo, inputs []string) ([][]float32, ProviderInfo, error) {
	if setupErr != nil {
		return nil, info, setupErr
	}
	if len(inputs) == 0 {
		return nil, info, errors.New("no embedding inputs")
	}
	vecs, err := e.EmbedDocuments(ctx, inputs)
	if err != nil {
		return nil, info, fmt.Errorf("%s embedding request failed: %w", info.Name, err)
	}
	if len(vecs) != len(inputs) {
		return nil, info, fmt.Errorf("%s returned %d embeddings for %d inputs", info.Name, len(vecs), len(inputs))
	}
	return vecs, info, nil
}
