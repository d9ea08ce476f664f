package persistence

import (
	"context"
	"fmt"

	"github.com/helixml/vidchat/domain/repository"
	"github.com/helixml/vidchat/domain/video"
	"github.com/helixml/vidchat/internal/database"
)

// VideoStore implements video.Store using GORM.
type VideoStore struct {
	database.Repository[video.Video, VideoModel]
}

// NewVideoStore creates a new VideoStore.
func NewVideoStore(db database.Database) VideoStore {
	return VideoStore{
		Repository: database.NewRepository[video.Video, VideoModel](db, videoMapper{}, "video"),
	}
}

// Get returns the video with the given id.
func (s VideoStore) Get(ctx context.Context, id string) (video.Video, error) {
	return s.FindOne(ctx, repository.WithID(id))
}

// Save inserts the video unless a record with the same id exists.
func (s VideoStore) Save(ctx context.Context, v video.Video) (bool, error) {
	return s.CreateIfAbsent(ctx, v)
}

// SaveSummary stores the cached overview summary.
func (s VideoStore) SaveSummary(ctx context.Context, id, summary string) error {
	result := s.DB(ctx).Where("id = ?", id).Update("summary", summary)
	if result.Error != nil {
		return fmt.Errorf("save summary: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: video %s", database.ErrNotFound, id)
	}
	return nil
}

// Delete removes the video record if present.
func (s VideoStore) Delete(ctx context.Context, id string) error {
	_, err := s.DeleteBy(ctx, repository.WithID(id))
	return err
}

// List returns every video's id and title, oldest first.
func (s VideoStore) List(ctx context.Context) ([]video.Listing, error) {
	var listings []video.Listing
	err := s.DB(ctx).
		Select("id", "title").
		Order("created_at ASC").
		Order("id ASC").
		Scan(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	if listings == nil {
		listings = []video.Listing{}
	}
	return listings, nil
}

var _ video.Store = VideoStore{}
