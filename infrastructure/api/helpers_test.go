package api_test

import (
	"context"
	"iter"
	"path/filepath"
	"testing"

	"github.com/helixml/vidchat"
	"github.com/helixml/vidchat/domain/video"
	"github.com/helixml/vidchat/infrastructure/provider"
)

type stubSource struct{}

func (stubSource) Transcript(context.Context, string) ([]video.Segment, error) {
	return []video.Segment{{Text: "The sun is a star.", Start: 0, Duration: 2}}, nil
}

func (stubSource) Title(context.Context, string) string       { return "The Sun" }
func (stubSource) Description(context.Context, string) string { return "" }

func (stubSource) PlaylistVideos(context.Context, string) ([]string, error) { return nil, nil }

type stubGenerator struct{}

func (stubGenerator) ChatCompletion(context.Context, provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	return provider.NewChatCompletionResponse("general-chat", "stop", provider.NewUsage(0, 0, 0)), nil
}

func (stubGenerator) ChatCompletionStream(context.Context, provider.ChatCompletionRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !yield("Hello ", nil) {
			return
		}
		yield("there.", nil)
	}
}

type stubEmbedder struct{}

func (stubEmbedder) Capacity() int { return 16 }

func (stubEmbedder) Embed(_ context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	out := make([][]float64, len(req.Texts()))
	for i, text := range req.Texts() {
		out[i] = []float64{float64(len(text)), 1, 1}
	}
	return provider.NewEmbeddingResponse(out, provider.NewUsage(0, 0, 0)), nil
}

func newTestClient(t *testing.T) *vidchat.Client {
	t.Helper()
	dir := t.TempDir()
	client, err := vidchat.New(
		vidchat.WithSQLite(filepath.Join(dir, "test.db")),
		vidchat.WithDataDir(dir),
		vidchat.WithGenerator(stubGenerator{}),
		vidchat.WithEmbeddingProvider(stubEmbedder{}, "length"),
		vidchat.WithTranscriptSource(stubSource{}),
		vidchat.WithYouTubeRequestsPerSecond(0),
	)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
