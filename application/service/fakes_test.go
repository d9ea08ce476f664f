package service

import (
	"context"
	"errors"
	"iter"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/helixml/vidchat/domain/chunk"
	domainservice "github.com/helixml/vidchat/domain/service"
	"github.com/helixml/vidchat/domain/video"
	"github.com/helixml/vidchat/infrastructure/chunking"
	"github.com/helixml/vidchat/infrastructure/persistence"
	"github.com/helixml/vidchat/infrastructure/prompt"
	"github.com/helixml/vidchat/infrastructure/provider"
	"github.com/helixml/vidchat/internal/testdb"
	"github.com/stretchr/testify/require"
)

// --- transcript source ---

type fakeSource struct {
	mu          sync.Mutex
	transcripts map[string][]video.Segment
	titles      map[string]string
	errs        map[string]error
	playlist    []string
	playlistErr error
	fetched     []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		transcripts: map[string][]video.Segment{},
		titles:      map[string]string{},
		errs:        map[string]error{},
	}
}

func (f *fakeSource) add(id, title string, lines ...string) {
	segments := make([]video.Segment, len(lines))
	for i, l := range lines {
		segments[i] = video.Segment{Text: l, Start: float64(i), Duration: 1}
	}
	f.transcripts[id] = segments
	f.titles[id] = title
}

func (f *fakeSource) Transcript(_ context.Context, videoID string) ([]video.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, videoID)
	if err, ok := f.errs[videoID]; ok {
		return nil, err
	}
	segments, ok := f.transcripts[videoID]
	if !ok {
		return nil, errors.New("no captions")
	}
	return segments, nil
}

func (f *fakeSource) Title(_ context.Context, url string) string {
	id := url[strings.LastIndex(url, "=")+1:]
	return f.titles[id]
}

func (f *fakeSource) Description(_ context.Context, _ string) string {
	return "A video description."
}

func (f *fakeSource) PlaylistVideos(_ context.Context, _ string) ([]string, error) {
	return f.playlist, f.playlistErr
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

// --- chat model ---

type fakeModel struct {
	mu       sync.Mutex
	classify string
	classErr error
	complete string
	stream   func(prompt string) ([]string, error)
	requests []provider.ChatCompletionRequest
}

func (m *fakeModel) record(req provider.ChatCompletionRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
}

func (m *fakeModel) ChatCompletion(_ context.Context, req provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	m.record(req)
	text := req.Messages()[0].Content()
	if strings.Contains(text, "Chosen Intent:") {
		if m.classErr != nil {
			return provider.ChatCompletionResponse{}, m.classErr
		}
		return provider.NewChatCompletionResponse(m.classify, "stop", provider.NewUsage(0, 0, 0)), nil
	}
	return provider.NewChatCompletionResponse(m.complete, "stop", provider.NewUsage(0, 0, 0)), nil
}

func (m *fakeModel) ChatCompletionStream(_ context.Context, req provider.ChatCompletionRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		m.record(req)
		if m.stream == nil {
			yield("ok", nil)
			return
		}
		fragments, err := m.stream(req.Messages()[0].Content())
		for _, f := range fragments {
			if !yield(f, nil) {
				return
			}
		}
		if err != nil {
			yield("", err)
		}
	}
}

func (m *fakeModel) calls() []provider.ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.ChatCompletionRequest(nil), m.requests...)
}

// --- embedder ---

// letterEmbedder maps text to a normalised letter-frequency vector.
type letterEmbedder struct{}

func (letterEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v := make([]float64, 26)
		for _, r := range strings.ToLower(text) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			}
		}
		var norm float64
		for _, x := range v {
			norm += x * x
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range v {
				v[j] /= norm
			}
		}
		out[i] = v
	}
	return out, nil
}

func (letterEmbedder) Dimension() int { return 26 }

var _ chunk.Embedder = letterEmbedder{}

// --- fixture ---

type fixture struct {
	source   *fakeSource
	model    *fakeModel
	index    *domainservice.VectorIndex
	videos   persistence.VideoStore
	turns    persistence.TurnStore
	prompts  *prompt.Catalog
	chatroom *Chatroom
}

func newFixture(t *testing.T, policy FailurePolicy) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testdb.New(t)

	chunks, err := persistence.NewSQLiteChunkStore(ctx, db, nil)
	require.NoError(t, err)
	index, err := domainservice.NewVectorIndex(chunks, letterEmbedder{}, nil)
	require.NoError(t, err)

	prompts, err := prompt.Default()
	require.NoError(t, err)

	source := newFakeSource()
	ingestion, err := NewIngestion(source, chunking.Params{Size: 1000, Overlap: 10}, 4, nil)
	require.NoError(t, err)

	f := &fixture{
		source:  source,
		model:   &fakeModel{classify: "question-answering"},
		index:   index,
		videos:  persistence.NewVideoStore(db),
		turns:   persistence.NewTurnStore(db),
		prompts: prompts,
	}
	f.chatroom, err = NewChatroom(ChatroomDeps{
		Ingestion:  ingestion,
		Describer:  source,
		Index:      index,
		Videos:     f.videos,
		Turns:      f.turns,
		Classifier: NewClassifier(f.model, prompts, nil),
		Router:     NewRouter(f.model, index, f.turns, prompts),
		Recorder:   NewRecorder(f.turns, policy, nil),
		Model:      f.model,
		Prompts:    prompts,
	})
	require.NoError(t, err)
	return f
}

func collect(seq iter.Seq2[string, error]) ([]string, error) {
	var out []string
	for s, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}

func fragmentsOf(parts []string, err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
		if err != nil {
			yield("", err)
		}
	}
}

const watchABC = "https://www.youtube.com/watch?v=abc123"
