package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Defaults for OpenAI-compatible endpoints.
const (
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultBatchSize      = 64
)

// errEmbeddingCountMismatch indicates the API returned fewer vectors than
// requested. Retryable: some gateways return partial data behind a 200.
var errEmbeddingCountMismatch = errors.New("embedding response count mismatch")

// OpenAIProvider implements chat completion, streaming and embeddings
// against any OpenAI-compatible API.
type OpenAIProvider struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	batchSize      int
	maxRetries     int
	initialDelay   time.Duration
	backoffFactor  float64
}

// OpenAIConfig holds configuration for OpenAI provider.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
	MaxRetries     int
	InitialDelay   time.Duration
	BackoffFactor  float64
	BatchSize      int
	// CacheDir enables on-disk caching of non-streaming responses.
	CacheDir string
}

// OpenAIOption is a functional option for OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithChatModel sets the chat completion model.
func WithChatModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) { p.chatModel = model }
}

// WithEmbeddingModel sets the embedding model.
func WithEmbeddingModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) { p.embeddingModel = model }
}

// WithRetryPolicy sets the retry count, first delay and backoff multiplier.
func WithRetryPolicy(maxRetries int, initialDelay time.Duration, backoff float64) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.maxRetries = maxRetries
		p.initialDelay = initialDelay
		p.backoffFactor = backoff
	}
}

// NewOpenAIProvider creates a provider for api.openai.com.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	return newOpenAIProvider(openai.NewClient(apiKey), opts...)
}

// NewOpenAIProviderFromConfig creates a provider from configuration.
// Timeout bounds the wait for response headers so long streams are not cut off.
func NewOpenAIProviderFromConfig(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Timeout > 0 {
		transport.ResponseHeaderTimeout = cfg.Timeout
	}
	var rt http.RoundTripper = transport
	if cfg.CacheDir != "" {
		rt = NewCachingTransport(cfg.CacheDir, transport)
	}
	clientCfg.HTTPClient = &http.Client{Transport: rt}

	opts := []OpenAIOption{}
	if cfg.ChatModel != "" {
		opts = append(opts, WithChatModel(cfg.ChatModel))
	}
	if cfg.EmbeddingModel != "" {
		opts = append(opts, WithEmbeddingModel(cfg.EmbeddingModel))
	}
	p := newOpenAIProvider(openai.NewClientWithConfig(clientCfg), opts...)
	if cfg.MaxRetries > 0 {
		p.maxRetries = cfg.MaxRetries
	}
	if cfg.InitialDelay > 0 {
		p.initialDelay = cfg.InitialDelay
	}
	if cfg.BackoffFactor > 0 {
		p.backoffFactor = cfg.BackoffFactor
	}
	if cfg.BatchSize > 0 {
		p.batchSize = cfg.BatchSize
	}
	return p
}

func newOpenAIProvider(client *openai.Client, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		client:         client,
		chatModel:      DefaultChatModel,
		embeddingModel: DefaultEmbeddingModel,
		batchSize:      DefaultBatchSize,
		maxRetries:     5,
		initialDelay:   2 * time.Second,
		backoffFactor:  2.0,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EmbeddingModel returns the configured embedding model name.
func (p *OpenAIProvider) EmbeddingModel() string { return p.embeddingModel }

// Capacity returns the maximum number of texts per Embed call.
func (p *OpenAIProvider) Capacity() int { return p.batchSize }

// Close is a no-op for the OpenAI provider.
func (p *OpenAIProvider) Close() error { return nil }

func (p *OpenAIProvider) chatRequest(req ChatCompletionRequest) openai.ChatCompletionRequest {
	msgs := req.Messages()
	messages := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role(), Content: m.Content()}
	}

	out := openai.ChatCompletionRequest{
		Model:    p.chatModel,
		Messages: messages,
	}
	if req.MaxTokens() > 0 {
		out.MaxTokens = req.MaxTokens()
	}
	if t, ok := req.Temperature(); ok {
		out.Temperature = float32(t)
		// go-openai drops a zero temperature from the JSON body.
		if t == 0 {
			out.Temperature = math.SmallestNonzeroFloat32
		}
	}
	return out
}

// ChatCompletion generates a complete response.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	openaiReq := p.chatRequest(req)

	var resp openai.ChatCompletionResponse
	err := p.withRetry(ctx, func() error {
		var err error
		resp, err = p.client.CreateChatCompletion(ctx, openaiReq)
		return err
	})
	if err != nil {
		return ChatCompletionResponse{}, p.wrapError("chat_completion", err)
	}
	if len(resp.Choices) == 0 {
		return ChatCompletionResponse{}, NewProviderError("chat_completion", 0, "no choices in response", ErrEmptyResponse)
	}

	return NewChatCompletionResponse(
		resp.Choices[0].Message.Content,
		string(resp.Choices[0].FinishReason),
		NewUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens),
	), nil
}

// ChatCompletionStream generates a response as it is produced. Opening the
// stream is retried; once fragments flow, a failure ends the sequence with
// that error.
func (p *OpenAIProvider) ChatCompletionStream(ctx context.Context, req ChatCompletionRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		openaiReq := p.chatRequest(req)
		openaiReq.Stream = true

		var stream *openai.ChatCompletionStream
		err := p.withRetry(ctx, func() error {
			var err error
			stream, err = p.client.CreateChatCompletionStream(ctx, openaiReq)
			return err
		})
		if err != nil {
			yield("", p.wrapError("chat_completion_stream", err))
			return
		}
		defer func() { _ = stream.Close() }()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", p.wrapError("chat_completion_stream", err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			fragment := resp.Choices[0].Delta.Content
			if fragment == "" {
				continue
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

// Embed generates embeddings for at most Capacity texts in one API call.
func (p *OpenAIProvider) Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	texts := req.Texts()
	if len(texts) == 0 {
		return NewEmbeddingResponse([][]float64{}, NewUsage(0, 0, 0)), nil
	}
	if len(texts) > p.batchSize {
		return EmbeddingResponse{}, fmt.Errorf("embed: %d texts exceeds capacity %d", len(texts), p.batchSize)
	}

	openaiReq := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.embeddingModel),
		Input: texts,
	}

	var resp openai.EmbeddingResponse
	err := p.withRetry(ctx, func() error {
		var err error
		resp, err = p.client.CreateEmbeddings(ctx, openaiReq)
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d texts", errEmbeddingCountMismatch, len(resp.Data), len(texts))
		}
		return nil
	})
	if err != nil {
		return EmbeddingResponse{}, p.wrapError("embedding", err)
	}

	embeddings := make([][]float64, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return EmbeddingResponse{}, NewProviderError("embedding", 0, fmt.Sprintf("embedding index %d out of range", data.Index), nil)
		}
		vec := make([]float64, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float64(v)
		}
		embeddings[data.Index] = vec
	}

	return NewEmbeddingResponse(embeddings, NewUsage(resp.Usage.PromptTokens, 0, resp.Usage.TotalTokens)), nil
}

// withRetry executes fn with exponential backoff while the error is retryable.
func (p *OpenAIProvider) withRetry(ctx context.Context, fn func() error) error {
	delay := p.initialDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < p.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * p.backoffFactor)
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	if errors.Is(err, errEmbeddingCountMismatch) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var reqErr *openai.RequestError
	return errors.As(err, &reqErr)
}

func (p *OpenAIProvider) wrapError(operation string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError(operation, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(operation, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return NewProviderError(operation, 0, err.Error(), err)
}

var (
	_ Generator = (*OpenAIProvider)(nil)
	_ Embedder  = (*OpenAIProvider)(nil)
)
