package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/helixml/vidchat/domain"
	"github.com/helixml/vidchat/domain/chunk"
	"github.com/helixml/vidchat/domain/conversation"
	"github.com/helixml/vidchat/domain/intent"
	"github.com/helixml/vidchat/domain/video"
	"github.com/helixml/vidchat/infrastructure/prompt"
	"github.com/helixml/vidchat/infrastructure/provider"
	"github.com/helixml/vidchat/infrastructure/youtube"
)

// ChunkIndex is the part of the vector index a chatroom writes to.
type ChunkIndex interface {
	Retriever
	Insert(ctx context.Context, texts []string, videoID string, metadata []map[string]any) (int, error)
	Delete(ctx context.Context, videoID string) (int64, error)
}

// Describer fetches a video description. It returns "" when unavailable.
type Describer interface {
	Description(ctx context.Context, url string) string
}

// ChatroomDeps holds the collaborators of a Chatroom.
type ChatroomDeps struct {
	Ingestion  *Ingestion
	Describer  Describer
	Index      ChunkIndex
	Videos     video.Store
	Turns      conversation.Store
	Classifier *Classifier
	Router     *Router
	Recorder   *Recorder
	Model      provider.TextGenerator
	Prompts    *prompt.Catalog
	Logger     *slog.Logger
}

// Chatroom manages the lifecycle of per-video chats: ingest, query, delete.
type Chatroom struct {
	ingestion  *Ingestion
	describer  Describer
	index      ChunkIndex
	videos     video.Store
	turns      conversation.Store
	classifier *Classifier
	router     *Router
	recorder   *Recorder
	model      provider.TextGenerator
	prompts    *prompt.Catalog
	logger     *slog.Logger
	locks      *keyedMutex
}

// NewChatroom creates a Chatroom.
func NewChatroom(deps ChatroomDeps) (*Chatroom, error) {
	switch {
	case deps.Ingestion == nil:
		return nil, errors.New("NewChatroom: ingestion is required")
	case deps.Index == nil:
		return nil, errors.New("NewChatroom: index is required")
	case deps.Videos == nil:
		return nil, errors.New("NewChatroom: video store is required")
	case deps.Turns == nil:
		return nil, errors.New("NewChatroom: turn store is required")
	case deps.Classifier == nil || deps.Router == nil || deps.Recorder == nil:
		return nil, errors.New("NewChatroom: classifier, router and recorder are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Chatroom{
		ingestion:  deps.Ingestion,
		describer:  deps.Describer,
		index:      deps.Index,
		videos:     deps.Videos,
		turns:      deps.Turns,
		classifier: deps.Classifier,
		router:     deps.Router,
		recorder:   deps.Recorder,
		model:      deps.Model,
		prompts:    deps.Prompts,
		logger:     logger,
		locks:      newKeyedMutex(),
	}, nil
}

// Create ingests a video and opens its chatroom. An existing chatroom is
// returned unchanged with created set to false.
func (c *Chatroom) Create(ctx context.Context, url string) (video.Video, bool, error) {
	url = strings.TrimSpace(url)
	id, err := youtube.VideoID(url)
	if err != nil {
		return video.Video{}, false, err
	}

	unlock := c.locks.Lock(id)
	defer unlock()

	if v, err := c.videos.Get(ctx, id); err == nil {
		return v, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return video.Video{}, false, fmt.Errorf("load video %s: %w", id, err)
	}

	transcript, err := c.ingestion.Build(ctx, url)
	if err != nil {
		return video.Video{}, false, err
	}
	return c.store(ctx, transcript)
}

// BatchOutcome summarizes a multi-video ingestion.
type BatchOutcome struct {
	Created  []video.Video
	Existing []video.Video
	Failures []Failure
}

// CreateMany ingests several videos. Transcripts are fetched concurrently,
// then indexed one at a time. progress, when non-nil, is called once per URL
// after it has been stored or has failed.
func (c *Chatroom) CreateMany(ctx context.Context, urls []string, progress func(url string, err error)) BatchOutcome {
	return c.storeAll(ctx, c.ingestion.BuildMany(ctx, urls), progress)
}

// CreatePlaylist ingests every video of a playlist like CreateMany.
func (c *Chatroom) CreatePlaylist(ctx context.Context, playlistURL string, progress func(url string, err error)) (BatchOutcome, error) {
	batch, err := c.ingestion.BuildPlaylist(ctx, playlistURL)
	if err != nil {
		return BatchOutcome{}, err
	}
	return c.storeAll(ctx, batch, progress), nil
}

func (c *Chatroom) storeAll(ctx context.Context, batch BatchResult, progress func(string, error)) BatchOutcome {
	report := func(url string, err error) {
		if progress != nil {
			progress(url, err)
		}
	}

	out := BatchOutcome{Failures: append([]Failure(nil), batch.Failures...)}
	for _, f := range batch.Failures {
		report(f.URL, f.Err)
	}
	for _, t := range batch.Transcripts {
		v, created, err := c.storeLocked(ctx, t)
		switch {
		case err != nil:
			out.Failures = append(out.Failures, Failure{URL: t.URL(), Err: err})
		case created:
			out.Created = append(out.Created, v)
		default:
			out.Existing = append(out.Existing, v)
		}
		report(t.URL(), err)
	}
	return out
}

func (c *Chatroom) storeLocked(ctx context.Context, t video.Transcript) (video.Video, bool, error) {
	unlock := c.locks.Lock(t.VideoID())
	defer unlock()

	if v, err := c.videos.Get(ctx, t.VideoID()); err == nil {
		return v, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return video.Video{}, false, fmt.Errorf("load video %s: %w", t.VideoID(), err)
	}
	return c.store(ctx, t)
}

// store indexes the chunks and saves the record. The caller holds the lock.
func (c *Chatroom) store(ctx context.Context, t video.Transcript) (video.Video, bool, error) {
	var description string
	if c.describer != nil {
		description = c.describer.Description(ctx, t.URL())
	}

	texts := t.Chunks()
	metadata := make([]map[string]any, len(texts))
	for i := range metadata {
		metadata[i] = map[string]any{}
	}
	if _, err := c.index.Insert(ctx, texts, t.VideoID(), metadata); err != nil {
		return video.Video{}, false, fmt.Errorf("index transcript %s: %w", t.VideoID(), err)
	}

	v := video.NewVideo(t, description)
	created, err := c.videos.Save(ctx, v)
	if err != nil {
		if _, derr := c.index.Delete(context.WithoutCancel(ctx), t.VideoID()); derr != nil {
			err = errors.Join(err, fmt.Errorf("remove orphaned chunks: %w", derr))
		}
		return video.Video{}, false, fmt.Errorf("save video %s: %w", t.VideoID(), err)
	}
	if !created {
		// Another process won the insert. Its row is kept.
		c.logger.WarnContext(ctx, "video saved concurrently, keeping existing record", slog.String("video_id", t.VideoID()))
		existing, err := c.videos.Get(ctx, t.VideoID())
		if err != nil {
			return video.Video{}, false, fmt.Errorf("load video %s: %w", t.VideoID(), err)
		}
		return existing, false, nil
	}

	c.logger.InfoContext(ctx, "chatroom created",
		slog.String("video_id", v.ID()),
		slog.String("title", v.Title()),
		slog.Int("chunks", len(texts)),
	)
	return v, true, nil
}

// Get returns the video and its conversation in chronological order.
func (c *Chatroom) Get(ctx context.Context, id string) (video.Video, []conversation.Turn, error) {
	v, err := c.videos.Get(ctx, id)
	if err != nil {
		return video.Video{}, nil, err
	}
	turns, err := c.turns.Find(ctx, id)
	if err != nil {
		return video.Video{}, nil, fmt.Errorf("load conversation: %w", err)
	}
	return v, turns, nil
}

// List returns the id and title of every chatroom.
func (c *Chatroom) List(ctx context.Context) ([]video.Listing, error) {
	return c.videos.List(ctx)
}

// Delete removes a chatroom's chunks, conversation and record. Deleting a
// chatroom that does not exist is not an error.
func (c *Chatroom) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: video id is required", domain.ErrValidation)
	}
	unlock := c.locks.Lock(id)
	defer unlock()

	chunks, err := c.index.Delete(ctx, id)
	if err != nil {
		return err
	}
	turns, err := c.turns.DeleteByVideo(ctx, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if err := c.videos.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	c.logger.InfoContext(ctx, "chatroom deleted",
		slog.String("video_id", id),
		slog.Int64("chunks", chunks),
		slog.Int64("turns", turns),
	)
	return nil
}

// Query answers a message in a chatroom, forwarding fragments to sink as
// they are produced and recording the exchange when the answer completes.
// Once routing starts, cancelling ctx does not stop generation or
// persistence.
func (c *Chatroom) Query(ctx context.Context, id, query string, sink func(string) error) (Outcome, error) {
	if strings.TrimSpace(query) == "" {
		return Outcome{}, fmt.Errorf("%w: query is required", domain.ErrValidation)
	}
	v, err := c.videos.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if strings.TrimSpace(v.Transcript()) == "" {
		return Outcome{}, fmt.Errorf("%w: video %s has no transcript", domain.ErrValidation, id)
	}

	it, err := c.classifier.Classify(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		c.logger.ErrorContext(ctx, "intent classification failed", slog.String("video_id", id), slog.Any("error", err))
		it = intent.Unknown
	}
	c.logger.InfoContext(ctx, "query classified", slog.String("video_id", id), slog.String("intent", it.String()))

	detached := context.WithoutCancel(ctx)
	fragments := c.router.Route(detached, it, RouteContext{
		VideoID:    v.ID(),
		Title:      v.Title(),
		Summary:    v.Overview(),
		Transcript: v.Transcript(),
		Query:      query,
	})
	return c.recorder.Record(detached, id, query, fragments, sink)
}

// Search returns the transcript chunks of a video closest to query.
func (c *Chatroom) Search(ctx context.Context, id, query string, limit int) ([]chunk.Match, error) {
	if _, err := c.videos.Get(ctx, id); err != nil {
		return nil, err
	}
	return c.index.SimilaritySearch(ctx, query, id, limit)
}

// Summarize generates the overview notes of a video and caches them on the
// record.
func (c *Chatroom) Summarize(ctx context.Context, id string) (video.Video, error) {
	if c.model == nil || c.prompts == nil {
		return video.Video{}, fmt.Errorf("%w: no chat model configured", domain.ErrGeneration)
	}
	v, err := c.videos.Get(ctx, id)
	if err != nil {
		return video.Video{}, err
	}
	if strings.TrimSpace(v.Transcript()) == "" {
		return video.Video{}, fmt.Errorf("%w: video %s has no transcript", domain.ErrValidation, id)
	}

	text, err := c.prompts.Render(prompt.Overview, prompt.TranscriptData{Transcript: v.Transcript()})
	if err != nil {
		return video.Video{}, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	req := provider.NewChatCompletionRequest([]provider.Message{provider.UserMessage(text)}).
		WithTemperature(summaryTemperature)
	resp, err := c.model.ChatCompletion(ctx, req)
	if err != nil {
		return video.Video{}, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	summary := strings.TrimSpace(resp.Content())
	if err := c.videos.SaveSummary(ctx, id, summary); err != nil {
		return video.Video{}, fmt.Errorf("save summary: %w", err)
	}
	return v.WithSummary(summary), nil
}

// keyedMutex serializes work per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
