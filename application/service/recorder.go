package service

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/helixml/vidchat/domain"
	"github.com/helixml/vidchat/domain/conversation"
)

// SentinelReply is persisted as the bot turn when generation fails.
const SentinelReply = "We've encountered an ERROR while generating the content."

// FailurePolicy decides what is persisted when generation fails mid-stream.
type FailurePolicy int

// FailurePolicy values.
const (
	// PolicySentinel discards streamed fragments and records SentinelReply.
	PolicySentinel FailurePolicy = iota
	// PolicyKeepPartial records the fragments streamed before the failure.
	PolicyKeepPartial
)

// String returns the configuration name of the policy.
func (p FailurePolicy) String() string {
	switch p {
	case PolicyKeepPartial:
		return "keep-partial"
	default:
		return "sentinel"
	}
}

// ParseFailurePolicy maps a configuration name to a policy.
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sentinel":
		return PolicySentinel, nil
	case "keep-partial":
		return PolicyKeepPartial, nil
	default:
		return PolicySentinel, fmt.Errorf("%w: unknown persist policy %q", domain.ErrValidation, name)
	}
}

// Outcome reports what a Record call streamed and persisted.
type Outcome struct {
	Forwarded int
	Text      string
	Failed    bool
	Exchange  conversation.Exchange
}

// Recorder forwards response fragments to a sink and persists the exchange
// once the stream ends.
type Recorder struct {
	turns  conversation.Store
	policy FailurePolicy
	logger *slog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(turns conversation.Store, policy FailurePolicy, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{turns: turns, policy: policy, logger: logger}
}

// Policy returns the configured failure policy.
func (r *Recorder) Policy() FailurePolicy { return r.policy }

// Record drains fragments into sink and then commits the user and bot turns
// together. A sink error stops forwarding but draining continues, so the
// persisted answer is complete. A generation error is not returned: it
// becomes the bot turn chosen by the policy and sets Outcome.Failed. Only a
// persistence failure is returned. When generation fails before anything
// reached the sink, the sink receives SentinelReply instead, so a caller
// always gets some text.
func (r *Recorder) Record(ctx context.Context, videoID, query string, fragments iter.Seq2[string, error], sink func(string) error) (Outcome, error) {
	user := conversation.NewTurn(videoID, query, conversation.SenderUser)

	var (
		out     Outcome
		acc     strings.Builder
		sinkErr error
	)
	for fragment, err := range fragments {
		if err != nil {
			out.Failed = true
			r.logger.ErrorContext(ctx, "response generation failed",
				slog.String("video_id", videoID),
				slog.Int("forwarded", out.Forwarded),
				slog.String("policy", r.policy.String()),
				slog.Any("error", err),
			)
			break
		}
		acc.WriteString(fragment)
		if sinkErr != nil || sink == nil {
			continue
		}
		if sinkErr = sink(fragment); sinkErr != nil {
			r.logger.WarnContext(ctx, "response sink failed, draining without forwarding",
				slog.String("video_id", videoID),
				slog.Any("error", sinkErr),
			)
			continue
		}
		out.Forwarded++
	}

	out.Text = acc.String()
	if out.Failed {
		out.Text = r.failureText(out.Text)
		if out.Forwarded == 0 && sink != nil && sinkErr == nil {
			if err := sink(SentinelReply); err != nil {
				r.logger.WarnContext(ctx, "response sink failed", slog.String("video_id", videoID), slog.Any("error", err))
			} else {
				out.Forwarded++
			}
		}
	}

	bot := conversation.NewTurn(videoID, out.Text, conversation.SenderBot)
	saved, err := r.turns.SaveExchange(ctx, conversation.NewExchange(user, bot))
	if err != nil {
		return out, fmt.Errorf("save exchange: %w", err)
	}
	out.Exchange = saved
	return out, nil
}

func (r *Recorder) failureText(partial string) string {
	if r.policy == PolicyKeepPartial && partial != "" {
		return partial
	}
	return SentinelReply
}
