package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/helixml/vidchat/domain/video"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// VideoModel is the GORM model for ingested videos.
type VideoModel struct {
	ID          string                            `gorm:"column:id;primaryKey;size:64"`
	Title       string                            `gorm:"column:title;not null"`
	URL         string                            `gorm:"column:url;not null"`
	Description string                            `gorm:"column:description"`
	Transcript  string                            `gorm:"column:transcript;not null"`
	Segments    datatypes.JSONSlice[video.Segment] `gorm:"column:segments"`
	Summary     string                            `gorm:"column:summary"`
	CreatedAt   time.Time                         `gorm:"column:created_at;index"`
}

// TableName returns the table name.
func (VideoModel) TableName() string { return "videos" }

// TurnModel is the GORM model for conversation turns.
type TurnModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	VideoID   string    `gorm:"column:video_id;size:64;not null;index"`
	Content   string    `gorm:"column:content;not null"`
	Sender    string    `gorm:"column:sender;size:8;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName returns the table name.
func (TurnModel) TableName() string { return "chat_turns" }

// Float64Slice stores a []float64 as JSON text.
type Float64Slice []float64

// Scan implements sql.Scanner.
func (f *Float64Slice) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Float64Slice", value)
	}
	return json.Unmarshal(data, f)
}

// Value implements driver.Valuer.
func (f Float64Slice) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	data, err := json.Marshal([]float64(f))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

const chunkTable = "transcript_chunks"

// ChunkModel is the GORM model for chunks in SQLite, where vectors are JSON.
type ChunkModel struct {
	ID        string            `gorm:"column:id;primaryKey;size:36"`
	VideoID   string            `gorm:"column:video_id;size:64;not null;index"`
	Text      string            `gorm:"column:text;not null"`
	Embedding Float64Slice      `gorm:"column:embedding;type:json;not null"`
	Metadata  datatypes.JSONMap `gorm:"column:metadata"`
}

// TableName returns the table name.
func (ChunkModel) TableName() string { return chunkTable }

// PgChunkModel is the GORM model for chunks in PostgreSQL with pgvector.
type PgChunkModel struct {
	ID        string            `gorm:"column:id;primaryKey"`
	VideoID   string            `gorm:"column:video_id"`
	Text      string            `gorm:"column:text"`
	Embedding pgvector.Vector   `gorm:"column:embedding;type:vector"`
	Metadata  datatypes.JSONMap `gorm:"column:metadata"`
}

// TableName returns the table name.
func (PgChunkModel) TableName() string { return chunkTable }
