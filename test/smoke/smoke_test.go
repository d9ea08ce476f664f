// Package smoke provides smoke tests for a running vidchat server.
// The server address is read from VIDCHAT_SMOKE_URL and defaults to
// http://127.0.0.1:8080. Set VIDCHAT_SMOKE_VIDEO to a YouTube URL with
// captions to also exercise ingestion and chat.
package smoke

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBaseURL = "http://127.0.0.1:8080"

var httpClient = &http.Client{Timeout: 5 * time.Minute}

func baseURL() string {
	if u := os.Getenv("VIDCHAT_SMOKE_URL"); u != "" {
		return strings.TrimRight(u, "/")
	}
	return defaultBaseURL
}

func request(t *testing.T, method, path, body string, header http.Header) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, baseURL()+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestSmoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping smoke test in short mode")
	}
	probe, err := http.Get(baseURL() + "/healthz")
	if err != nil {
		t.Skipf("no vidchat server at %s: %v", baseURL(), err)
	}
	_ = probe.Body.Close()

	t.Run("health", func(t *testing.T) {
		resp := request(t, http.MethodGet, "/healthz", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("chatroom_not_found", func(t *testing.T) {
		resp := request(t, http.MethodGet, "/api/chatrooms/does-not-exist", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("list_chatrooms", func(t *testing.T) {
		resp := request(t, http.MethodGet, "/api/chatrooms/", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var rooms []map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	})

	t.Run("mcp_initialize", func(t *testing.T) {
		msg := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"smoke","version":"1.0.0"}}}`
		resp := request(t, http.MethodPost, "/mcp", msg, http.Header{
			"Accept": {"application/json, text/event-stream"},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"vidchat"`)
	})

	videoURL := os.Getenv("VIDCHAT_SMOKE_VIDEO")
	if videoURL == "" {
		t.Log("VIDCHAT_SMOKE_VIDEO not set, skipping ingestion")
		return
	}

	var id string
	t.Run("create_chatroom", func(t *testing.T) {
		payload, _ := json.Marshal(map[string]string{"url": videoURL})
		resp := request(t, http.MethodPost, "/api/chatrooms/", string(payload), nil)
		require.Contains(t, []int{http.StatusCreated, http.StatusOK}, resp.StatusCode)
		var room struct {
			ID         string `json:"id"`
			Transcript string `json:"transcript"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&room))
		require.NotEmpty(t, room.ID)
		require.NotEmpty(t, room.Transcript)
		id = room.ID
	})
	require.NotEmpty(t, id, "chatroom creation failed")

	t.Run("query", func(t *testing.T) {
		resp := request(t, http.MethodPost, "/api/chatrooms/"+id+"/query", `{"query":"What is this video about?"}`, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var answer bytes.Buffer
		_, err := io.Copy(&answer, resp.Body)
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(answer.String()))
	})

	t.Run("conversation_recorded", func(t *testing.T) {
		resp := request(t, http.MethodGet, "/api/chatrooms/"+id, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var room struct {
			Messages []struct {
				SentBy string `json:"sent_by"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&room))
		require.GreaterOrEqual(t, len(room.Messages), 2)
		assert.Equal(t, "bot", room.Messages[len(room.Messages)-1].SentBy)
	})
}
