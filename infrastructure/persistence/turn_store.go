package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/helixml/vidchat/domain/conversation"
	"github.com/helixml/vidchat/domain/repository"
	"github.com/helixml/vidchat/internal/database"
	"gorm.io/gorm"
)

// TurnStore implements conversation.Store using GORM.
type TurnStore struct {
	database.Repository[conversation.Turn, TurnModel]
	db database.Database
}

// NewTurnStore creates a new TurnStore.
func NewTurnStore(db database.Database) TurnStore {
	return TurnStore{
		Repository: database.NewRepository[conversation.Turn, TurnModel](db, turnMapper{}, "turn"),
		db:         db,
	}
}

// SaveExchange writes the user turn then the bot turn atomically and
// returns both with their assigned ids.
func (s TurnStore) SaveExchange(ctx context.Context, e conversation.Exchange) (conversation.Exchange, error) {
	return database.WithTransactionResult(ctx, s.db, func(tx *gorm.DB) (conversation.Exchange, error) {
		now := time.Now().UTC()
		user := s.Mapper().ToModel(e.User())
		user.ID = 0
		user.CreatedAt = now
		if err := tx.Create(&user).Error; err != nil {
			return conversation.Exchange{}, fmt.Errorf("save user turn: %w", err)
		}

		bot := s.Mapper().ToModel(e.Bot())
		bot.ID = 0
		bot.CreatedAt = now
		if err := tx.Create(&bot).Error; err != nil {
			return conversation.Exchange{}, fmt.Errorf("save bot turn: %w", err)
		}

		return conversation.NewExchange(s.Mapper().ToDomain(user), s.Mapper().ToDomain(bot)), nil
	})
}

// Recent returns up to limit turns for the video, most recent first.
func (s TurnStore) Recent(ctx context.Context, videoID string, limit int) ([]conversation.Turn, error) {
	if limit <= 0 {
		return []conversation.Turn{}, nil
	}
	return s.Repository.Find(ctx,
		repository.WithVideoID(videoID),
		repository.WithOrderDesc("id"),
		repository.WithLimit(limit),
	)
}

// Find returns the full history for the video in chronological order.
func (s TurnStore) Find(ctx context.Context, videoID string) ([]conversation.Turn, error) {
	return s.Repository.Find(ctx,
		repository.WithVideoID(videoID),
		repository.WithOrderAsc("id"),
	)
}

// DeleteByVideo removes every turn for the video.
func (s TurnStore) DeleteByVideo(ctx context.Context, videoID string) (int64, error) {
	return s.DeleteBy(ctx, repository.WithVideoID(videoID))
}

var _ conversation.Store = TurnStore{}
