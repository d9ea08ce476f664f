package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/helixml/vidchat/domain"
	"github.com/helixml/vidchat/domain/conversation"
	"github.com/helixml/vidchat/domain/intent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sunContext(query string) RouteContext {
	return RouteContext{
		VideoID:    "abc123",
		Title:      "The Sun",
		Summary:    "A short video about the sun.",
		Transcript: "The sun is a star. It is very hot.",
		Query:      query,
	}
}

func TestRouter_IsTotal(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	ctx := context.Background()

	intents := append(intent.All(), intent.Unknown, intent.Intent(99))
	for _, it := range intents {
		t.Run(it.String(), func(t *testing.T) {
			seq := f.chatroom.router.Route(ctx, it, sunContext("hello"))
			require.NotNil(t, seq)
			parts, err := collect(seq)
			require.NoError(t, err)
			assert.NotEmpty(t, strings.Join(parts, ""))
		})
	}
}

func TestRouter_FixedReplies(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	tests := map[intent.Intent]string{
		intent.FlashcardGeneration: FlashcardReply,
		intent.QuizGeneration:      QuizReply,
		intent.Irrelevant:          IrrelevantReply,
		intent.Unknown:             FallbackReply,
		intent.Intent(42):          FallbackReply,
	}
	for it, want := range tests {
		parts, err := collect(f.chatroom.router.Route(context.Background(), it, sunContext("q")))
		require.NoError(t, err)
		assert.Equal(t, []string{want}, parts)
	}
	assert.Empty(t, f.model.calls(), "fixed replies never call the model")
}

func TestRouter_IsLazy(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	_ = f.chatroom.router.Route(context.Background(), intent.Summarization, sunContext("summarize"))
	assert.Empty(t, f.model.calls())
}

func TestRouter_Summarization(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	_, err := collect(f.chatroom.router.Route(context.Background(), intent.Summarization, sunContext("tl;dr please")))
	require.NoError(t, err)

	calls := f.model.calls()
	require.Len(t, calls, 1)
	text := calls[0].Messages()[0].Content()
	assert.Contains(t, text, "The sun is a star. It is very hot.")
	assert.Contains(t, text, "tl;dr please")
	temp, _ := calls[0].Temperature()
	assert.InDelta(t, 0.5, temp, 1e-9)
}

func TestRouter_RetrievalStrategies(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	ctx := context.Background()
	_, err := f.index.Insert(ctx, []string{"The sun is a star.", "It is very hot."}, "abc123", nil)
	require.NoError(t, err)
	_, err = f.index.Insert(ctx, []string{"Penguins live in Antarctica."}, "other", nil)
	require.NoError(t, err)

	tests := []struct {
		it   intent.Intent
		temp float64
	}{
		{intent.SpecificSummarization, 0.5},
		{intent.QuestionAnswering, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.it.String(), func(t *testing.T) {
			f.model.requests = nil
			_, err := collect(f.chatroom.router.Route(ctx, tt.it, sunContext("What is the sun?")))
			require.NoError(t, err)

			calls := f.model.calls()
			require.Len(t, calls, 1)
			text := calls[0].Messages()[0].Content()
			assert.Contains(t, text, "The sun is a star.")
			assert.Contains(t, text, "\n-")
			assert.NotContains(t, text, "Penguins")
			temp, _ := calls[0].Temperature()
			assert.InDelta(t, tt.temp, temp, 1e-9)
		})
	}
}

func TestRouter_GeneralChatUsesRecentHistory(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	ctx := context.Background()
	for i := range 4 {
		q := "question " + string(rune('a'+i))
		_, err := f.turns.SaveExchange(ctx, conversation.NewExchange(
			conversation.NewTurn("abc123", q, conversation.SenderUser),
			conversation.NewTurn("abc123", "answer "+string(rune('a'+i)), conversation.SenderBot),
		))
		require.NoError(t, err)
	}

	_, err := collect(f.chatroom.router.Route(ctx, intent.GeneralChat, sunContext("I liked it")))
	require.NoError(t, err)

	calls := f.model.calls()
	require.Len(t, calls, 1)
	text := calls[0].Messages()[0].Content()
	assert.Contains(t, text, "The Sun")
	assert.Contains(t, text, "A short video about the sun.")
	assert.NotContains(t, text, "question b", "window holds the last five turns")
	assert.Contains(t, text, "bot: answer b")
	first := strings.Index(text, "user: question c")
	last := strings.Index(text, "bot: answer d")
	require.GreaterOrEqual(t, first, 0)
	assert.Greater(t, last, first, "history is chronological")
	temp, _ := calls[0].Temperature()
	assert.InDelta(t, 1.0, temp, 1e-9)
}

func TestRouter_StreamFailureSurfacesAsGenerationError(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	f.model.stream = func(string) ([]string, error) {
		return []string{"The sun"}, errors.New("connection reset")
	}

	parts, err := collect(f.chatroom.router.Route(context.Background(), intent.Summarization, sunContext("summarize")))
	assert.Equal(t, []string{"The sun"}, parts)
	assert.ErrorIs(t, err, domain.ErrGeneration)
}

func TestRouter_ConsumerCanStopEarly(t *testing.T) {
	f := newFixture(t, PolicySentinel)
	f.model.stream = func(string) ([]string, error) {
		return []string{"a", "b", "c"}, nil
	}

	var got []string
	for s, err := range f.chatroom.router.Route(context.Background(), intent.Summarization, sunContext("x")) {
		require.NoError(t, err)
		got = append(got, s)
		break
	}
	assert.Equal(t, []string{"a"}, got)
}
