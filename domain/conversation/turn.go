// Package conversation provides chat turns and exchanges tied to a video.
package conversation

import (
	"fmt"
	"time"
)

// Sender identifies who authored a turn.
type Sender string

// Sender values.
const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Turn is a single message in a video's conversation.
type Turn struct {
	id        int64
	videoID   string
	content   string
	sender    Sender
	createdAt time.Time
}

// NewTurn creates a Turn that has not been persisted yet.
func NewTurn(videoID, content string, sender Sender) Turn {
	return Turn{
		videoID:   videoID,
		content:   content,
		sender:    sender,
		createdAt: time.Now().UTC(),
	}
}

// ReconstructTurn recreates a Turn from persistence.
func ReconstructTurn(id int64, videoID, content string, sender Sender, createdAt time.Time) Turn {
	return Turn{
		id:        id,
		videoID:   videoID,
		content:   content,
		sender:    sender,
		createdAt: createdAt,
	}
}

// ID returns the monotonic database identifier (0 if unsaved).
func (t Turn) ID() int64 { return t.id }

// VideoID returns the owning video identifier.
func (t Turn) VideoID() string { return t.videoID }

// Content returns the message text.
func (t Turn) Content() string { return t.content }

// Sender returns who authored the turn.
func (t Turn) Sender() Sender { return t.sender }

// CreatedAt returns when the turn was created.
func (t Turn) CreatedAt() time.Time { return t.createdAt }

// String renders the turn as a history line for prompting.
func (t Turn) String() string {
	return fmt.Sprintf("%s: %s", t.sender, t.content)
}

// Exchange pairs a user turn with the bot turn that answered it.
type Exchange struct {
	user Turn
	bot  Turn
}

// NewExchange creates an Exchange.
func NewExchange(user, bot Turn) Exchange {
	return Exchange{user: user, bot: bot}
}

// User returns the user turn.
func (e Exchange) User() Turn { return e.user }

// Bot returns the bot turn.
func (e Exchange) Bot() Turn { return e.bot }

// Chronological reverses a most-recent-first window into oldest-first order.
func Chronological(recentFirst []Turn) []Turn {
	out := make([]Turn, len(recentFirst))
	for i, t := range recentFirst {
		out[len(recentFirst)-1-i] = t
	}
	return out
}
