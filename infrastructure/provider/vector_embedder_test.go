package provider

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/helixml/vidchat/domain"
	"github.com/helixml/vidchat/domain/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	capacity int
	dim      int
	batches  [][]string
	err      error
}

func (s *stubEmbedder) Capacity() int { return s.capacity }

func (s *stubEmbedder) Embed(_ context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	if s.err != nil {
		return EmbeddingResponse{}, s.err
	}
	texts := req.Texts()
	s.batches = append(s.batches, texts)
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, s.dim)
		vec[0] = float64(len(text))
		if s.dim > 1 {
			vec[1] = 1
		}
		out[i] = vec
	}
	return NewEmbeddingResponse(out, NewUsage(0, 0, 0)), nil
}

var _ chunk.Embedder = (*VectorEmbedder)(nil)

func TestVectorEmbedder_DimensionResolution(t *testing.T) {
	ctx := context.Background()
	stub := &stubEmbedder{capacity: 2, dim: 5}

	known, err := NewVectorEmbedder(ctx, stub, "sentence-transformers/all-mpnet-base-v2", 0)
	require.NoError(t, err)
	assert.Equal(t, 768, known.Dimension())
	assert.Empty(t, stub.batches, "known models are not probed")

	probed, err := NewVectorEmbedder(ctx, stub, "custom-model", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, probed.Dimension())
	assert.Len(t, stub.batches, 1)

	explicit, err := NewVectorEmbedder(ctx, stub, "custom-model", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, explicit.Dimension())
	assert.Len(t, stub.batches, 2, "a configured dimension is still checked against the model")
}

func TestVectorEmbedder_KnownModelMismatch(t *testing.T) {
	stub := &stubEmbedder{capacity: 2, dim: 5}
	_, err := NewVectorEmbedder(context.Background(), stub, "text-embedding-3-small", 768)
	assert.ErrorIs(t, err, domain.ErrValidation)

	e, err := NewVectorEmbedder(context.Background(), stub, "text-embedding-3-small", 1536)
	require.NoError(t, err)
	assert.Equal(t, 1536, e.Dimension())
}

func TestVectorEmbedder_UnknownModelMismatch(t *testing.T) {
	stub := &stubEmbedder{capacity: 2, dim: 384}
	_, err := NewVectorEmbedder(context.Background(), stub, "bge-small-en-v1.5", 768)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "384")
	assert.Len(t, stub.batches, 1)
}

func TestVectorEmbedder_ProbeFailure(t *testing.T) {
	stub := &stubEmbedder{capacity: 2, dim: 3, err: errors.New("offline")}
	_, err := NewVectorEmbedder(context.Background(), stub, "custom-model", 0)
	require.Error(t, err)
}

func TestVectorEmbedder_NilInner(t *testing.T) {
	_, err := NewVectorEmbedder(context.Background(), nil, "x", 3)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestVectorEmbedder_BatchesAndNormalizes(t *testing.T) {
	stub := &stubEmbedder{capacity: 2, dim: 2}
	e, err := NewVectorEmbedder(context.Background(), stub, "custom", 2)
	require.NoError(t, err)
	stub.batches = nil

	vectors, err := e.Embed(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	assert.Len(t, stub.batches, 3)
	assert.Equal(t, []string{"eeeee"}, stub.batches[2])

	for i, vec := range vectors {
		var sum float64
		for _, v := range vec {
			sum += v * v
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-9, "vector %d", i)
	}
	// Order is preserved: longer text means larger first component.
	assert.Greater(t, vectors[4][0], vectors[0][0])
}

func TestVectorEmbedder_DimensionDriftAfterConstruction(t *testing.T) {
	stub := &stubEmbedder{capacity: 4, dim: 3}
	e, err := NewVectorEmbedder(context.Background(), stub, "custom", 3)
	require.NoError(t, err)

	stub.dim = 4
	_, err = e.Embed(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestVectorEmbedder_Empty(t *testing.T) {
	stub := &stubEmbedder{capacity: 4, dim: 3}
	e, err := NewVectorEmbedder(context.Background(), stub, "custom", 3)
	require.NoError(t, err)
	stub.batches = nil

	vectors, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Empty(t, stub.batches)
}

func TestNormalize_ZeroVector(t *testing.T) {
	assert.Equal(t, []float64{0, 0}, normalize([]float64{0, 0}))
}
