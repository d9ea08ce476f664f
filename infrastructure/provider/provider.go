// Package provider talks to language and embedding models: an
// OpenAI-compatible HTTP API for chat, streaming and embeddings, and a local
// hugot model for embeddings.
package provider

import (
	"context"
	"errors"
	"iter"
)

// ErrEmptyResponse is returned when the model answers with no choices.
var ErrEmptyResponse = errors.New("empty model response")

// Message is one turn of a chat prompt.
type Message struct {
	role    string
	content string
}

// NewMessage builds a message with an explicit role.
func NewMessage(role, content string) Message { return Message{role: role, content: content} }

// SystemMessage builds a system instruction.
func SystemMessage(content string) Message { return NewMessage("system", content) }

// UserMessage builds a user turn.
func UserMessage(content string) Message { return NewMessage("user", content) }

// Role is "system", "user" or "assistant".
func (m Message) Role() string { return m.role }

// Content is the message text.
func (m Message) Content() string { return m.content }

// ChatCompletionRequest carries a prompt and optional sampling settings.
// The With methods return modified copies.
type ChatCompletionRequest struct {
	messages    []Message
	maxTokens   int
	temperature *float64
}

// NewChatCompletionRequest copies messages into a request with provider
// defaults for everything else.
func NewChatCompletionRequest(messages []Message) ChatCompletionRequest {
	return ChatCompletionRequest{messages: append([]Message(nil), messages...)}
}

// WithMaxTokens caps the completion length.
func (r ChatCompletionRequest) WithMaxTokens(n int) ChatCompletionRequest {
	r.maxTokens = n
	return r
}

// WithTemperature pins the temperature. Zero means greedy decoding.
func (r ChatCompletionRequest) WithTemperature(t float64) ChatCompletionRequest {
	r.temperature = &t
	return r
}

// Messages returns a copy of the prompt.
func (r ChatCompletionRequest) Messages() []Message { return append([]Message(nil), r.messages...) }

// MaxTokens is the completion cap, 0 when unset.
func (r ChatCompletionRequest) MaxTokens() int { return r.maxTokens }

// Temperature reports the pinned temperature, if any.
func (r ChatCompletionRequest) Temperature() (float64, bool) {
	if r.temperature == nil {
		return 0, false
	}
	return *r.temperature, true
}

// ChatCompletionResponse is a complete, non-streamed answer.
type ChatCompletionResponse struct {
	content      string
	finishReason string
	usage        Usage
}

// NewChatCompletionResponse builds a response.
func NewChatCompletionResponse(content, finishReason string, usage Usage) ChatCompletionResponse {
	return ChatCompletionResponse{content: content, finishReason: finishReason, usage: usage}
}

// Content is the generated text.
func (r ChatCompletionResponse) Content() string { return r.content }

// FinishReason is the model's stop reason, such as "stop" or "length".
func (r ChatCompletionResponse) FinishReason() string { return r.finishReason }

// Usage reports token counts.
func (r ChatCompletionResponse) Usage() Usage { return r.usage }

// Usage counts tokens billed for a call.
type Usage struct {
	prompt, completion, total int
}

// NewUsage builds a Usage.
func NewUsage(prompt, completion, total int) Usage {
	return Usage{prompt: prompt, completion: completion, total: total}
}

// PromptTokens counts input tokens.
func (u Usage) PromptTokens() int { return u.prompt }

// CompletionTokens counts generated tokens.
func (u Usage) CompletionTokens() int { return u.completion }

// TotalTokens is the sum billed.
func (u Usage) TotalTokens() int { return u.total }

// EmbeddingRequest lists texts to embed.
type EmbeddingRequest struct {
	texts []string
}

// NewEmbeddingRequest copies texts into a request.
func NewEmbeddingRequest(texts []string) EmbeddingRequest {
	return EmbeddingRequest{texts: append([]string(nil), texts...)}
}

// Texts returns a copy of the inputs.
func (r EmbeddingRequest) Texts() []string { return append([]string(nil), r.texts...) }

// EmbeddingResponse holds one vector per input text, in input order.
type EmbeddingResponse struct {
	embeddings [][]float64
	usage      Usage
}

// NewEmbeddingResponse deep-copies embeddings into a response.
func NewEmbeddingResponse(embeddings [][]float64, usage Usage) EmbeddingResponse {
	return EmbeddingResponse{embeddings: cloneVectors(embeddings), usage: usage}
}

// Embeddings returns a deep copy of the vectors.
func (r EmbeddingResponse) Embeddings() [][]float64 { return cloneVectors(r.embeddings) }

// Usage reports token counts.
func (r EmbeddingResponse) Usage() Usage { return r.usage }

func cloneVectors(in [][]float64) [][]float64 {
	out := make([][]float64, len(in))
	for i, v := range in {
		out[i] = append([]float64(nil), v...)
	}
	return out
}

// TextGenerator answers a prompt in one piece.
type TextGenerator interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error)
}

// Streamer answers a prompt as a sequence of fragments. The sequence ends
// after the first error.
type Streamer interface {
	ChatCompletionStream(ctx context.Context, req ChatCompletionRequest) iter.Seq2[string, error]
}

// Generator can both complete and stream.
type Generator interface {
	TextGenerator
	Streamer
}

// Embedder turns texts into vectors. A call takes at most Capacity texts.
type Embedder interface {
	Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error)
	Capacity() int
}

// ProviderError describes a failed model call.
type ProviderError struct {
	operation  string
	statusCode int
	message    string
	cause      error
}

// NewProviderError builds a ProviderError. statusCode is 0 when the failure
// happened before an HTTP response arrived.
func NewProviderError(operation string, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{operation: operation, statusCode: statusCode, message: message, cause: cause}
}

func (e *ProviderError) Error() string {
	msg := e.operation + ": " + e.message
	if e.cause != nil && e.cause.Error() != e.message {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.cause }

// Operation names the call that failed, such as "embedding".
func (e *ProviderError) Operation() string { return e.operation }

// StatusCode is the HTTP status, 0 if none.
func (e *ProviderError) StatusCode() int { return e.statusCode }
