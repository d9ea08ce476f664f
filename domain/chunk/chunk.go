// Package chunk provides the retrieval unit of a transcript: a span of text
// with its embedding vector, owned by exactly one video.
package chunk

import (
	"maps"

	"github.com/google/uuid"
)

// Chunk is an immutable span of transcript text plus its embedding.
type Chunk struct {
	id       string
	videoID  string
	text     string
	vector   []float64
	metadata map[string]any
}

// NewChunk creates a Chunk with a fresh identifier.
func NewChunk(videoID, text string, vector []float64, metadata map[string]any) Chunk {
	return ReconstructChunk(uuid.NewString(), videoID, text, vector, metadata)
}

// ReconstructChunk recreates a Chunk from persistence.
func ReconstructChunk(id, videoID, text string, vector []float64, metadata map[string]any) Chunk {
	v := make([]float64, len(vector))
	copy(v, vector)
	return Chunk{
		id:       id,
		videoID:  videoID,
		text:     text,
		vector:   v,
		metadata: maps.Clone(metadata),
	}
}

// ID returns the chunk identifier.
func (c Chunk) ID() string { return c.id }

// VideoID returns the owning video identifier.
func (c Chunk) VideoID() string { return c.videoID }

// Text returns the chunk text.
func (c Chunk) Text() string { return c.text }

// Vector returns a copy of the embedding vector.
func (c Chunk) Vector() []float64 {
	v := make([]float64, len(c.vector))
	copy(v, c.vector)
	return v
}

// Metadata returns a copy of the chunk metadata.
func (c Chunk) Metadata() map[string]any {
	if c.metadata == nil {
		return map[string]any{}
	}
	return maps.Clone(c.metadata)
}

// Match is a similarity search hit. Lower distance means more relevant.
type Match struct {
	id       string
	text     string
	distance float64
}

// NewMatch creates a Match.
func NewMatch(id, text string, distance float64) Match {
	return Match{id: id, text: text, distance: distance}
}

// ID returns the matched chunk identifier.
func (m Match) ID() string { return m.id }

// Text returns the matched chunk text.
func (m Match) Text() string { return m.text }

// Distance returns the L2 distance between the query and the chunk.
func (m Match) Distance() float64 { return m.distance }
