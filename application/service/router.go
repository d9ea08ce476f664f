package service

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/helixml/vidchat/domain"
	"github.com/helixml/vidchat/domain/chunk"
	"github.com/helixml/vidchat/domain/conversation"
	"github.com/helixml/vidchat/domain/intent"
	"github.com/helixml/vidchat/infrastructure/prompt"
	"github.com/helixml/vidchat/infrastructure/provider"
)

// Fixed replies for intents that do not call the model.
const (
	FlashcardReply  = "Flashcard generation is not implemented yet."
	QuizReply       = "Quiz generation is not implemented yet."
	IrrelevantReply = "This seems unrelated to the video content. How can I help you with the video?"
	FallbackReply   = "Sorry, I'm not sure how to handle that request regarding the video."
)

// Router defaults.
const (
	DefaultHistoryWindow = 5
	summaryTemperature   = 0.5
	answerTemperature    = 1.0
	knowledgeSeparator   = "\n-"
)

// RouteContext carries everything a strategy may need about the video.
type RouteContext struct {
	VideoID    string
	Title      string
	Summary    string
	Transcript string
	Query      string
}

// Retriever finds the transcript chunks closest to a query.
type Retriever interface {
	SimilaritySearch(ctx context.Context, query, videoID string, limit int) ([]chunk.Match, error)
}

// Router selects a response strategy per intent and streams its output.
type Router struct {
	model         provider.Streamer
	index         Retriever
	turns         conversation.Store
	prompts       *prompt.Catalog
	historyWindow int
	searchLimit   int
	logger        *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithHistoryWindow sets how many recent turns general chat sees.
func WithHistoryWindow(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.historyWindow = n
		}
	}
}

// WithSearchLimit sets how many chunks retrieval strategies fetch.
func WithSearchLimit(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.searchLimit = n
		}
	}
}

// WithRouterLogger sets the logger.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRouter creates a Router.
func NewRouter(model provider.Streamer, index Retriever, turns conversation.Store, prompts *prompt.Catalog, opts ...RouterOption) *Router {
	r := &Router{
		model:         model,
		index:         index,
		turns:         turns,
		prompts:       prompts,
		historyWindow: DefaultHistoryWindow,
		searchLimit:   chunk.DefaultSearchLimit,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route returns the response fragments for a classified query. Nothing runs
// until the sequence is iterated. Failures arrive as the error half of a pair
// and end the sequence.
func (r *Router) Route(ctx context.Context, it intent.Intent, rc RouteContext) iter.Seq2[string, error] {
	switch it {
	case intent.Summarization:
		return r.generate(ctx, it, summaryTemperature, func(ctx context.Context) (string, error) {
			return r.prompts.Render(prompt.FullSummary, prompt.TranscriptData{Transcript: rc.Transcript, Query: rc.Query})
		})
	case intent.SpecificSummarization:
		return r.generate(ctx, it, summaryTemperature, func(ctx context.Context) (string, error) {
			knowledge, err := r.retrieve(ctx, rc)
			if err != nil {
				return "", err
			}
			return r.prompts.Render(prompt.RetrievalSummary, prompt.RetrievalData{Knowledge: knowledge, Query: rc.Query})
		})
	case intent.QuestionAnswering:
		return r.generate(ctx, it, answerTemperature, func(ctx context.Context) (string, error) {
			knowledge, err := r.retrieve(ctx, rc)
			if err != nil {
				return "", err
			}
			return r.prompts.Render(prompt.QuestionAnswering, prompt.RetrievalData{Knowledge: knowledge, Query: rc.Query})
		})
	case intent.GeneralChat:
		return r.generate(ctx, it, answerTemperature, func(ctx context.Context) (string, error) {
			history, err := r.history(ctx, rc.VideoID)
			if err != nil {
				return "", err
			}
			return r.prompts.Render(prompt.Chat, prompt.ChatData{
				Title:   rc.Title,
				Summary: rc.Summary,
				History: history,
				Query:   rc.Query,
			})
		})
	case intent.FlashcardGeneration:
		return fixed(FlashcardReply)
	case intent.QuizGeneration:
		return fixed(QuizReply)
	case intent.Irrelevant:
		return fixed(IrrelevantReply)
	case intent.Unknown:
		return fixed(FallbackReply)
	default:
		return fixed(FallbackReply)
	}
}

func (r *Router) generate(ctx context.Context, it intent.Intent, temperature float64, build func(context.Context) (string, error)) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		text, err := build(ctx)
		if err != nil {
			yield("", fmt.Errorf("%w: prepare %s prompt: %w", domain.ErrGeneration, it, err))
			return
		}
		if r.model == nil {
			yield("", fmt.Errorf("%w: no chat model configured", domain.ErrGeneration))
			return
		}

		r.logger.DebugContext(ctx, "generating response",
			slog.String("intent", it.String()),
			slog.Float64("temperature", temperature),
			slog.Int("prompt_length", len(text)),
		)
		req := provider.NewChatCompletionRequest([]provider.Message{provider.UserMessage(text)}).
			WithTemperature(temperature)
		for fragment, err := range r.model.ChatCompletionStream(ctx, req) {
			if err != nil {
				yield("", fmt.Errorf("%w: %w", domain.ErrGeneration, err))
				return
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

func (r *Router) retrieve(ctx context.Context, rc RouteContext) (string, error) {
	if r.index == nil {
		return "", nil
	}
	matches, err := r.index.SimilaritySearch(ctx, rc.Query, rc.VideoID, r.searchLimit)
	if err != nil {
		return "", fmt.Errorf("retrieve chunks: %w", err)
	}
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text()
	}
	return strings.Join(texts, knowledgeSeparator), nil
}

func (r *Router) history(ctx context.Context, videoID string) ([]string, error) {
	if r.turns == nil {
		return nil, nil
	}
	recent, err := r.turns.Recent(ctx, videoID, r.historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	turns := conversation.Chronological(recent)
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.String()
	}
	return lines, nil
}

func fixed(text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield(text, nil)
	}
}
