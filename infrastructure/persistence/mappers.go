package persistence

import (
	"github.com/helixml/vidchat/domain/chunk"
	"github.com/helixml/vidchat/domain/conversation"
	"github.com/helixml/vidchat/domain/video"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type videoMapper struct{}

func (videoMapper) ToDomain(e VideoModel) video.Video {
	return video.ReconstructVideo(e.ID, e.Title, e.URL, e.Description, e.Transcript, []video.Segment(e.Segments), e.Summary, e.CreatedAt)
}

func (videoMapper) ToModel(v video.Video) VideoModel {
	return VideoModel{
		ID:          v.ID(),
		Title:       v.Title(),
		URL:         v.URL(),
		Description: v.Description(),
		Transcript:  v.Transcript(),
		Segments:    datatypes.NewJSONSlice(v.Segments()),
		Summary:     v.Summary(),
		CreatedAt:   v.CreatedAt(),
	}
}

type turnMapper struct{}

func (turnMapper) ToDomain(e TurnModel) conversation.Turn {
	return conversation.ReconstructTurn(e.ID, e.VideoID, e.Content, conversation.Sender(e.Sender), e.CreatedAt)
}

func (turnMapper) ToModel(t conversation.Turn) TurnModel {
	return TurnModel{
		ID:        t.ID(),
		VideoID:   t.VideoID(),
		Content:   t.Content(),
		Sender:    string(t.Sender()),
		CreatedAt: t.CreatedAt(),
	}
}

type sqliteChunkMapper struct{}

func (sqliteChunkMapper) ToDomain(e ChunkModel) chunk.Chunk {
	return chunk.ReconstructChunk(e.ID, e.VideoID, e.Text, e.Embedding, e.Metadata)
}

func (sqliteChunkMapper) ToModel(c chunk.Chunk) ChunkModel {
	return ChunkModel{
		ID:        c.ID(),
		VideoID:   c.VideoID(),
		Text:      c.Text(),
		Embedding: Float64Slice(c.Vector()),
		Metadata:  datatypes.JSONMap(c.Metadata()),
	}
}

type pgChunkMapper struct{}

func (pgChunkMapper) ToDomain(e PgChunkModel) chunk.Chunk {
	return chunk.ReconstructChunk(e.ID, e.VideoID, e.Text, toFloat64(e.Embedding.Slice()), e.Metadata)
}

func (pgChunkMapper) ToModel(c chunk.Chunk) PgChunkModel {
	return PgChunkModel{
		ID:        c.ID(),
		VideoID:   c.VideoID(),
		Text:      c.Text(),
		Embedding: pgvector.NewVector(toFloat32(c.Vector())),
		Metadata:  datatypes.JSONMap(c.Metadata()),
	}
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
