package e2e_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/helixml/vidchat"
	"github.com/helixml/vidchat/infrastructure/api"
	"github.com/helixml/vidchat/infrastructure/provider"
	"github.com/helixml/vidchat/infrastructure/youtube"
	"github.com/stretchr/testify/require"
)

// letterDimension is the size of the bag-of-letters vectors served by the
// fake embedding endpoint.
const letterDimension = 26

const timedText = `<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="0.0" dur="3.0">The sun is a star at the centre of the solar system.</text>
<text start="3.0" dur="3.0">It is a nearly perfect ball of hot plasma.</text>
<text start="6.0" dur="4.0">Penguins have nothing to do with this video.</text>
</transcript>`

// TestServer runs the full HTTP API against fake YouTube and OpenAI
// backends, with a real SQLite database underneath.
type TestServer struct {
	t          *testing.T
	client     *vidchat.Client
	httpServer *httptest.Server
	youtube    *httptest.Server
	openai     *fakeOpenAI
}

// NewTestServer creates a new test server with all dependencies wired up.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	tmpDir := t.TempDir()
	yt := newFakeYouTube(t)
	oai := newFakeOpenAI(t)

	client, err := vidchat.New(
		vidchat.WithSQLite(filepath.Join(tmpDir, "test.db")),
		vidchat.WithDataDir(tmpDir),
		vidchat.WithOpenAIConfig(oai.config()),
		vidchat.WithEmbeddingProvider(provider.NewOpenAIProviderFromConfig(oai.config()), "letters"),
		vidchat.WithEmbeddingDimension(letterDimension),
		vidchat.WithTranscriptSource(youtube.NewClient(
			youtube.WithBaseURL(yt.URL),
			youtube.WithRequestsPerSecond(0),
		)),
		vidchat.WithChunking(60, 10),
	)
	require.NoError(t, err)

	apiServer := api.NewAPIServer(client, []string{"http://localhost:3000"}, "e2e")
	server := api.NewServer(":0", []string{"http://localhost:3000"}, client.Logger())
	server.Router().Mount("/", apiServer.Handler())

	ts := &TestServer{
		t:          t,
		client:     client,
		httpServer: httptest.NewServer(server.Router()),
		youtube:    yt,
		openai:     oai,
	}
	t.Cleanup(func() {
		ts.httpServer.Close()
		_ = client.Close()
	})
	return ts
}

// URL returns the full URL for the given path.
func (ts *TestServer) URL(path string) string {
	return ts.httpServer.URL + path
}

// GET performs a GET request.
func (ts *TestServer) GET(path string) *http.Response {
	ts.t.Helper()
	return ts.do(http.MethodGet, path, "")
}

// POST performs a POST request with a JSON body.
func (ts *TestServer) POST(path, body string) *http.Response {
	ts.t.Helper()
	return ts.do(http.MethodPost, path, body)
}

// DELETE performs a DELETE request.
func (ts *TestServer) DELETE(path string) *http.Response {
	ts.t.Helper()
	return ts.do(http.MethodDelete, path, "")
}

func (ts *TestServer) do(method, path, body string) *http.Response {
	ts.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ts.t.Context(), method, ts.URL(path), rd)
	require.NoError(ts.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// DecodeJSON decodes the response body into v.
func (ts *TestServer) DecodeJSON(resp *http.Response, v any) {
	ts.t.Helper()
	require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(v))
}

// ReadBody returns the response body as a string.
func (ts *TestServer) ReadBody(resp *http.Response) string {
	ts.t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	return string(b)
}

// newFakeYouTube serves one watch page with English captions, one without
// captions, and a two-video playlist.
func newFakeYouTube(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("v") {
		case "sun123":
			_, _ = fmt.Fprintf(w, `<html><head><title>All About The Sun - YouTube</title></head><body>
<script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[
{"baseUrl":"%s/api/timedtext?v=sun123&lang=en","languageCode":"en"}
]}},"videoDetails":{"shortDescription":"A tour of our star."}};</script>
</body></html>`, srv.URL)
		case "mute456":
			_, _ = fmt.Fprint(w, `<html><head><title>Silent Film - YouTube</title></head><body></body></html>`)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, timedText)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// fakeOpenAI mimics the chat completion and embedding endpoints. Plain
// completions answer with label; streamed completions yield fragments.
type fakeOpenAI struct {
	srv *httptest.Server

	mu         sync.Mutex
	label      string
	fragments  []string
	prompts    []string
	streamDown bool
}

func newFakeOpenAI(t *testing.T) *fakeOpenAI {
	t.Helper()
	f := &fakeOpenAI{
		label:     "question-answering",
		fragments: []string{"The sun ", "is a star."},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/embeddings"):
			f.writeEmbeddings(w, body)
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			f.record(body)
			if stream, _ := body["stream"].(bool); stream {
				if f.isStreamDown() {
					http.Error(w, `{"error":{"message":"model unavailable","type":"server_error"}}`, http.StatusServiceUnavailable)
					return
				}
				f.writeStream(w)
				return
			}
			f.writeCompletion(w)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOpenAI) config() provider.OpenAIConfig {
	return provider.OpenAIConfig{
		APIKey:         "test-key",
		BaseURL:        f.srv.URL + "/v1",
		ChatModel:      "test-chat",
		EmbeddingModel: "letters",
		MaxRetries:     1,
		InitialDelay:   time.Millisecond,
		BackoffFactor:  1,
	}
}

func (f *fakeOpenAI) setLabel(label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.label = label
}

// setStreamDown makes every streamed completion fail before its first chunk.
func (f *fakeOpenAI) setStreamDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamDown = down
}

func (f *fakeOpenAI) isStreamDown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamDown
}

// lastPrompt returns the content of the most recent streamed request.
func (f *fakeOpenAI) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeOpenAI) record(body map[string]any) {
	if stream, _ := body["stream"].(bool); !stream {
		return
	}
	var parts []string
	messages, _ := body["messages"].([]any)
	for _, m := range messages {
		msg, _ := m.(map[string]any)
		content, _ := msg["content"].(string)
		parts = append(parts, content)
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, strings.Join(parts, "\n"))
	f.mu.Unlock()
}

func (f *fakeOpenAI) writeEmbeddings(w http.ResponseWriter, body map[string]any) {
	inputs, _ := body["input"].([]any)
	data := make([]map[string]any, len(inputs))
	for i, in := range inputs {
		text, _ := in.(string)
		data[i] = map[string]any{
			"object":    "embedding",
			"index":     i,
			"embedding": letters(text),
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  body["model"],
		"usage":  map[string]int{"prompt_tokens": len(inputs), "total_tokens": len(inputs)},
	})
}

func (f *fakeOpenAI) writeCompletion(w http.ResponseWriter) {
	f.mu.Lock()
	label := f.label
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": label},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 5, "completion_tokens": 1, "total_tokens": 6},
	})
}

func (f *fakeOpenAI) writeStream(w http.ResponseWriter) {
	f.mu.Lock()
	fragments := append([]string(nil), f.fragments...)
	f.mu.Unlock()
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, frag := range fragments {
		chunk, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion.chunk",
			"choices": []map[string]any{{"index": 0, "delta": map[string]string{"content": frag}}},
		})
		_, _ = fmt.Fprintf(w, "data: %s\n\n", chunk)
		if flusher != nil {
			flusher.Flush()
		}
	}
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
}

// letters counts each ASCII letter of text. The extra 1 keeps blank text
// off the zero vector.
func letters(text string) []float64 {
	v := make([]float64, letterDimension)
	v[0] = 1
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}
