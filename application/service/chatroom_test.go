package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/helixml/vidchat/domain"
	"github.com/helixml/vidchat/domain/conversation"
	"github.com/helixml/vidchat/domain/video"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatroom_EndToEnd(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	ctx := context.Background()
	f.source.add("abc123", "The Sun", "The sun is a star.", "It is very hot.")
	f.model.classify = "question-answering"
	f.model.stream = func(prompt string) ([]string, error) {
		if strings.Contains(prompt, "The sun is a star. It is very hot.") {
			return []string{"The sun is a star, ", "and it is very hot."}, nil
		}
		return []string{"I do not know."}, nil
	}

	v, created, err := f.chatroom.Create(ctx, watchABC)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "abc123", v.ID())
	assert.Equal(t, "The Sun", v.Title())
	assert.Equal(t, "A video description.", v.Description())

	matches, err := f.chatroom.Search(ctx, "abc123", "The sun is a star. It is very hot.", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 0, matches[0].Distance(), 1e-6)

	var streamed strings.Builder
	out, err := f.chatroom.Query(ctx, "abc123", "What is the sun?", func(s string) error {
		streamed.WriteString(s)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, out.Failed)
	assert.Contains(t, streamed.String(), "star")
	assert.Contains(t, streamed.String(), "hot")

	_, turns, err := f.chatroom.Get(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, conversation.SenderUser, turns[0].Sender())
	assert.Equal(t, "What is the sun?", turns[0].Content())
	assert.Equal(t, conversation.SenderBot, turns[1].Sender())
	assert.Equal(t, streamed.String(), turns[1].Content())
}

func TestChatroom_CreateExistingIsNoop(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	ctx := context.Background()
	f.source.add("abc123", "The Sun", "The sun is a star.")

	_, created, err := f.chatroom.Create(ctx, watchABC)
	require.NoError(t, err)
	require.True(t, created)

	v, created, err := f.chatroom.Create(ctx, "https://youtu.be/abc123")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "abc123", v.ID())
	assert.Equal(t, 1, f.source.fetchCount())

	n, err := f.index.Count(ctx, "abc123")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestChatroom_ConcurrentCreateIngestsOnce(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	f.source.add("abc123", "The Sun", "The sun is a star.")

	var wg sync.WaitGroup
	results := make([]bool, 5)
	for i := range results {
		wg.Go(func() {
			_, created, err := f.chatroom.Create(context.Background(), watchABC)
			assert.NoError(t, err)
			results[i] = created
		})
	}
	wg.Wait()

	createdCount := 0
	for _, c := range results {
		if c {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount)
	assert.Equal(t, 1, f.source.fetchCount())
}

func TestChatroom_CreateErrors(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	ctx := context.Background()

	_, _, err := f.chatroom.Create(ctx, "https://example.com/watch?v=abc123")
	assert.ErrorIs(t, err, domain.ErrValidation)

	f.source.errs["abc123"] = errors.New("captions disabled")
	_, _, err = f.chatroom.Create(ctx, watchABC)
	assert.ErrorIs(t, err, domain.ErrIngestion)

	_, err = f.videos.Get(ctx, "abc123")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type failingVideoStore struct {
	video.Store
}

func (failingVideoStore) Get(context.Context, string) (video.Video, error) {
	return video.Video{}, domain.ErrNotFound
}

func (failingVideoStore) Save(context.Context, video.Video) (bool, error) {
	return false, errors.New("database locked")
}

func TestChatroom_SaveFailureRemovesChunks(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	ctx := context.Background()
	f.source.add("abc123", "The Sun", "The sun is a star.")
	f.chatroom.videos = failingVideoStore{}

	_, _, err := f.chatroom.Create(ctx, watchABC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database locked")

	n, err := f.index.Count(ctx, "abc123")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChatroom_DeleteThenReingest(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	ctx := context.Background()
	f.source.add("abc123", "The Sun", "The sun is a star. It is very hot.")
	f.source.add("other", "Penguins", "Penguins live in Antarctica.")

	_, _, err := f.chatroom.Create(ctx, watchABC)
	require.NoError(t, err)
	_, _, err = f.chatroom.Create(ctx, "https://www.youtube.com/watch?v=other")
	require.NoError(t, err)
	_, err = f.chatroom.Query(ctx, "abc123", "What is the sun?", nil)
	require.NoError(t, err)

	require.NoError(t, f.chatroom.Delete(ctx, "abc123"))
	require.NoError(t, f.chatroom.Delete(ctx, "abc123"), "delete is idempotent")

	_, _, err = f.chatroom.Get(ctx, "abc123")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	matches, err := f.index.SimilaritySearch(ctx, "The sun is a star.", "abc123", 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
	others, err := f.index.SimilaritySearch(ctx, "Penguins", "other", 10)
	require.NoError(t, err)
	assert.Len(t, others, 1)

	f.source.add("abc123", "The Sun (remastered)", "The sun is a yellow dwarf.")
	v, created, err := f.chatroom.Create(ctx, watchABC)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "The Sun (remastered)", v.Title())

	matches, err = f.index.SimilaritySearch(ctx, "The sun is a yellow dwarf.", "abc123", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "The sun is a yellow dwarf.", matches[0].Text())

	_, turns, err := f.chatroom.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestChatroom_QueryErrors(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	ctx := context.Background()

	_, err := f.chatroom.Query(ctx, "missing", "hello", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.chatroom.Query(ctx, "missing", "   ", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	empty := video.NewVideo(video.NewTranscript(watchABC, "abc123", "Empty", "", nil, nil), "")
	_, err = f.videos.Save(ctx, empty)
	require.NoError(t, err)
	_, err = f.chatroom.Query(ctx, "abc123", "hello", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestChatroom_QueryClassificationFailureApologises(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	ctx := context.Background()
	f.source.add("abc123", "The Sun", "The sun is a star.")
	_, _, err := f.chatroom.Create(ctx, watchABC)
	require.NoError(t, err)

	f.model.classErr = errors.New("model offline")
	out, err := f.chatroom.Query(ctx, "abc123", "What is the sun?", nil)
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, out.Text)
}

func TestChatroom_QueryGenerationFailureRecordsSentinel(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	ctx := context.Background()
	f.source.add("abc123", "The Sun", "The sun is a star.")
	_, _, err := f.chatroom.Create(ctx, watchABC)
	require.NoError(t, err)

	f.model.classify = "summarization"
	f.model.stream = func(string) ([]string, error) {
		return []string{"The sun"}, errors.New("stream reset")
	}
	out, err := f.chatroom.Query(ctx, "abc123", "Summarize", nil)
	require.NoError(t, err)
	assert.True(t, out.Failed)

	_, turns, err := f.chatroom.Get(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, SentinelReply, turns[1].Content())
}

func TestChatroom_QueryModelDownStreamsSentinel(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	ctx := context.Background()
	f.source.add("abc123", "The Sun", "The sun is a star.")
	_, _, err := f.chatroom.Create(ctx, watchABC)
	require.NoError(t, err)

	f.model.classify = "question-answering"
	f.model.stream = func(string) ([]string, error) {
		return nil, errors.New("model unavailable")
	}
	var streamed []string
	out, err := f.chatroom.Query(ctx, "abc123", "What is the sun?", func(s string) error {
		streamed = append(streamed, s)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, out.Failed)
	assert.Equal(t, []string{SentinelReply}, streamed)
	assert.Equal(t, 1, out.Forwarded)

	_, turns, err := f.chatroom.Get(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, SentinelReply, turns[1].Content())
}

func TestChatroom_QuerySurvivesCallerCancellation(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	f.source.add("abc123", "The Sun", "The sun is a star.")
	_, _, err := f.chatroom.Create(context.Background(), watchABC)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	f.model.classify = "summarization"
	f.model.stream = func(string) ([]string, error) {
		return []string{"one ", "two"}, nil
	}
	out, err := f.chatroom.Query(ctx, "abc123", "Summarize", func(string) error {
		cancel()
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, "one two", out.Text)

	turns, err := f.turns.Find(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestChatroom_Summarize(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	ctx := context.Background()
	f.source.add("abc123", "The Sun", "The sun is a star.")
	_, _, err := f.chatroom.Create(ctx, watchABC)
	require.NoError(t, err)

	f.model.complete = "  ### Summary\nThe sun is a star.  "
	v, err := f.chatroom.Summarize(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "### Summary\nThe sun is a star.", v.Summary())
	assert.Equal(t, v.Summary(), v.Overview())

	stored, _, err := f.chatroom.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, v.Summary(), stored.Summary())

	_, err = f.chatroom.Summarize(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChatroom_List(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	ctx := context.Background()

	list, err := f.chatroom.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	f.source.add("abc123", "The Sun", "The sun is a star.")
	_, _, err = f.chatroom.Create(ctx, watchABC)
	require.NoError(t, err)

	list, err = f.chatroom.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []video.Listing{{ID: "abc123", Title: "The Sun"}}, list)
}

func TestChatroom_CreateManyAndPlaylist(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	ctx := context.Background()
	f.source.add("one", "One", "first video")
	f.source.add("two", "Two", "second video")
	f.source.errs["bad"] = errors.New("boom")

	var progressed []string
	var mu sync.Mutex
	progress := func(url string, _ error) {
		mu.Lock()
		defer mu.Unlock()
		progressed = append(progressed, url)
	}

	out := f.chatroom.CreateMany(ctx, []string{
		"https://www.youtube.com/watch?v=one",
		"https://www.youtube.com/watch?v=bad",
	}, progress)
	assert.Len(t, out.Created, 1)
	assert.Len(t, out.Failures, 1)
	assert.Len(t, progressed, 2)

	f.source.playlist = []string{"https://www.youtube.com/watch?v=one", "https://www.youtube.com/watch?v=two"}
	out, err := f.chatroom.CreatePlaylist(ctx, "https://www.youtube.com/playlist?list=PL1", nil)
	require.NoError(t, err)
	require.Len(t, out.Created, 1)
	assert.Equal(t, "two", out.Created[0].ID())
	require.Len(t, out.Existing, 1)
	assert.Equal(t, "one", out.Existing[0].ID())
}
