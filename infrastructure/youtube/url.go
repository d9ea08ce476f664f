// Package youtube fetches captions and page metadata for YouTube videos.
package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/helixml/vidchat/domain"
)

// WatchPrefix is the canonical watch URL prefix.
const WatchPrefix = "https://www.youtube.com/watch?v="

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var watchHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
}

// WatchURL returns the canonical watch URL for a video id.
func WatchURL(videoID string) string {
	return WatchPrefix + videoID
}

// VideoID extracts the video id from a watch or youtu.be URL.
func VideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", domain.ErrValidation)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return "", fmt.Errorf("%w: malformed url %q", domain.ErrValidation, raw)
	}

	var id string
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case watchHosts[host] && u.Path == "/watch":
		id = u.Query().Get("v")
	default:
		return "", fmt.Errorf("%w: not a YouTube watch url %q", domain.ErrValidation, raw)
	}

	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("%w: missing or invalid video id in %q", domain.ErrValidation, raw)
	}
	return id, nil
}

// PlaylistID extracts the list id from a playlist URL.
func PlaylistID(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !watchHosts[strings.ToLower(u.Hostname())] || u.Path != "/playlist" {
		return "", fmt.Errorf("%w: not a YouTube playlist url %q", domain.ErrValidation, raw)
	}
	id := u.Query().Get("list")
	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("%w: missing or invalid playlist id in %q", domain.ErrValidation, raw)
	}
	return id, nil
}

// IsPlaylist reports whether raw is a playlist URL.
func IsPlaylist(raw string) bool {
	_, err := PlaylistID(raw)
	return err == nil
}
