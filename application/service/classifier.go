package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/helixml/vidchat/domain"
	"github.com/helixml/vidchat/domain/intent"
	"github.com/helixml/vidchat/infrastructure/prompt"
	"github.com/helixml/vidchat/infrastructure/provider"
)

// Classifier maps a user utterance to one intent using the chat model.
type Classifier struct {
	model   provider.TextGenerator
	prompts *prompt.Catalog
	logger  *slog.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(model provider.TextGenerator, prompts *prompt.Catalog, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{model: model, prompts: prompts, logger: logger}
}

// Classify returns the intent of query. Blank input is irrelevant without a
// model call. Output that is not a known label is irrelevant. A failed model
// call returns intent.Unknown and an error wrapping domain.ErrClassification.
func (c *Classifier) Classify(ctx context.Context, query string) (intent.Intent, error) {
	if strings.TrimSpace(query) == "" {
		return intent.Irrelevant, nil
	}

	all := intent.All()
	lines := make([]prompt.IntentLine, len(all))
	for i, it := range all {
		lines[i] = prompt.IntentLine{Label: it.String(), Description: it.Description()}
	}
	text, err := c.prompts.Render(prompt.Classify, prompt.ClassifyData{Intents: lines, Query: query})
	if err != nil {
		return intent.Unknown, fmt.Errorf("%w: %w", domain.ErrClassification, err)
	}

	req := provider.NewChatCompletionRequest([]provider.Message{provider.UserMessage(text)}).
		WithTemperature(0).
		WithMaxTokens(16)
	resp, err := c.model.ChatCompletion(ctx, req)
	if err != nil {
		return intent.Unknown, fmt.Errorf("%w: %w", domain.ErrClassification, err)
	}

	label := strings.TrimSpace(resp.Content())
	it, ok := intent.Parse(label)
	if !ok {
		c.logger.WarnContext(ctx, "model returned an invalid intent, defaulting to irrelevant",
			slog.String("label", label),
			slog.String("catalog_version", intent.CatalogVersion),
		)
		return intent.Irrelevant, nil
	}
	return it, nil
}
