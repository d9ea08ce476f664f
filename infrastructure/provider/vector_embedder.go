package provider

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/helixml/vidchat/domain"
)

// knownDimensions lists output sizes for common embedding models.
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	LocalEmbeddingModel:      LocalEmbeddingDimension,
	"nomic-embed-text":       768,
}

// KnownDimension returns the vector size of a known embedding model.
func KnownDimension(model string) (int, bool) {
	model = strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	d, ok := knownDimensions[model]
	return d, ok
}

// VectorEmbedder turns text into unit-length vectors of a fixed dimension.
// Inputs larger than the backend's capacity are split into batches.
type VectorEmbedder struct {
	inner     Embedder
	dimension int
}

// NewVectorEmbedder wraps inner. Known models take their dimension from
// the model name; unknown models embed one probe text. A positive dimension
// must agree with the one found, otherwise the configuration is rejected.
func NewVectorEmbedder(ctx context.Context, inner Embedder, model string, dimension int) (*VectorEmbedder, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: embedder is required", domain.ErrValidation)
	}
	native, isKnown := KnownDimension(model)
	if !isKnown {
		probed, err := probeDimension(ctx, inner)
		if err != nil {
			return nil, err
		}
		native = probed
	}
	if dimension > 0 && dimension != native {
		return nil, fmt.Errorf("%w: model %s produces %d-dimensional vectors, configured dimension is %d",
			domain.ErrValidation, model, native, dimension)
	}
	return &VectorEmbedder{inner: inner, dimension: native}, nil
}

func probeDimension(ctx context.Context, inner Embedder) (int, error) {
	resp, err := inner.Embed(ctx, NewEmbeddingRequest([]string{"dimension probe"}))
	if err != nil {
		return 0, fmt.Errorf("probe embedding dimension: %w", err)
	}
	vectors := resp.Embeddings()
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return 0, fmt.Errorf("probe embedding dimension: %w", ErrEmptyResponse)
	}
	return len(vectors[0]), nil
}

// Dimension returns the length of every vector Embed produces.
func (e *VectorEmbedder) Dimension() int { return e.dimension }

// Embed returns one normalized vector per text, in input order.
func (e *VectorEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	size := max(e.inner.Capacity(), 1)

	for start := 0; start < len(texts); start += size {
		batch := texts[start:min(start+size, len(texts))]
		resp, err := e.inner.Embed(ctx, NewEmbeddingRequest(batch))
		if err != nil {
			return nil, err
		}
		vectors := resp.Embeddings()
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
		}
		for i, vec := range vectors {
			if len(vec) != e.dimension {
				return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d",
					domain.ErrValidation, start+i, len(vec), e.dimension)
			}
			out = append(out, normalize(vec))
		}
	}
	return out, nil
}

// normalize scales vec to unit L2 length. Zero vectors are returned as is.
func normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
