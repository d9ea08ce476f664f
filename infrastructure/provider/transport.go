package provider

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// CachingTransport is an http.RoundTripper that replays successful
// responses from disk. Entries are keyed by method, URL and request body.
// Server-sent event streams pass through untouched. Cache failures fall
// back to the inner transport.
type CachingTransport struct {
	inner http.RoundTripper
	dir   string
}

// NewCachingTransport stores entries under dir. A nil inner uses
// http.DefaultTransport.
func NewCachingTransport(dir string, inner http.RoundTripper) *CachingTransport {
	if inner == nil {
		inner = http.DefaultTransport
	}
	_ = os.MkdirAll(dir, 0o755)
	return &CachingTransport{inner: inner, dir: dir}
}

type cacheEntry struct {
	Status int                 `json:"status"`
	Header map[string][]string `json:"header"`
	Body   string              `json:"body"`
}

// RoundTrip implements http.RoundTripper.
func (t *CachingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if streaming(req) {
		return t.inner.RoundTrip(req)
	}

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		_ = req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	path := filepath.Join(t.dir, entryKey(req.Method, req.URL.String(), body)+".json")
	if resp, ok := t.load(path, req); ok {
		return resp, nil
	}

	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	payload, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	t.store(path, resp.StatusCode, resp.Header, payload)

	resp.Body = io.NopCloser(bytes.NewReader(payload))
	return resp, nil
}

func streaming(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "text/event-stream")
}

func entryKey(method, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(url))
	h.Write([]byte{'\n'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (t *CachingTransport) load(path string, req *http.Request) (*http.Response, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	body, err := base64.StdEncoding.DecodeString(entry.Body)
	if err != nil {
		return nil, false
	}
	return &http.Response{
		StatusCode: entry.Status,
		Header:     entry.Header,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    req,
	}, true
}

func (t *CachingTransport) store(path string, status int, header http.Header, body []byte) {
	data, err := json.Marshal(cacheEntry{
		Status: status,
		Header: header,
		Body:   base64.StdEncoding.EncodeToString(body),
	})
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o644)
}
