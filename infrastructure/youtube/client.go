package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Client defaults.
const (
	DefaultBaseURL           = "https://www.youtube.com"
	DefaultRequestsPerSecond = 2.0
	defaultTimeout           = 10 * time.Second
	maxPageSize              = 8 << 20
	pageCacheSize            = 32
	pageCacheTTL             = 5 * time.Minute
	userAgent                = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

var (
	// ErrNoTranscript indicates the video has no caption track.
	ErrNoTranscript = errors.New("no transcript available")

	// ErrRateLimited indicates YouTube answered 429.
	ErrRateLimited = errors.New("rate limited by youtube")
)

// Client talks to YouTube's public watch, playlist and timedtext pages.
// Every outbound request passes through a shared throttle. Watch pages are
// cached briefly so title, description and transcript lookups for one
// video share a single fetch.
type Client struct {
	http     *http.Client
	baseURL  string
	throttle *throttle
	logger   *slog.Logger
	pages    *expirable.LRU[string, []byte]
	inflight singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithBaseURL points the client at another host, such as a test server.
func WithBaseURL(base string) Option {
	return func(cl *Client) { cl.baseURL = strings.TrimRight(base, "/") }
}

// WithRequestsPerSecond sets the outbound request rate. Zero disables throttling.
func WithRequestsPerSecond(rps float64) Option {
	return func(cl *Client) { cl.throttle = newThrottle(rps) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: defaultTimeout},
		baseURL:  DefaultBaseURL,
		throttle: newThrottle(DefaultRequestsPerSecond),
		logger:   slog.Default(),
		pages:    expirable.NewLRU[string, []byte](pageCacheSize, nil, pageCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) watchPage(ctx context.Context, videoID string) ([]byte, error) {
	if page, ok := c.pages.Get(videoID); ok {
		return page, nil
	}
	v, err, _ := c.inflight.Do(videoID, func() (any, error) {
		if page, ok := c.pages.Get(videoID); ok {
			return page, nil
		}
		page, err := c.get(ctx, c.baseURL+"/watch?v="+url.QueryEscape(videoID))
		if err != nil {
			return nil, err
		}
		c.pages.Add(videoID, page)
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.throttle.Backoff(retryAfter(resp.Header.Get("Retry-After")))
		return nil, fmt.Errorf("get %s: %w", target, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: unexpected status %d", target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	return body, nil
}

func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}
