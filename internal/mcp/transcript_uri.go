package mcp

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	uriScheme = "vidchat"

	// TranscriptTemplate is the URI template of plain transcript resources.
	TranscriptTemplate = uriScheme + "://videos/{video_id}/transcript"
	// SegmentsTemplate is the URI template of timed segment resources.
	SegmentsTemplate = uriScheme + "://videos/{video_id}/segments"
)

// TranscriptURI addresses the transcript of one ingested video.
// Immutable value object, methods return copies.
type TranscriptURI struct {
	videoID    string
	timestamps bool
}

// NewTranscriptURI creates a TranscriptURI for a video.
func NewTranscriptURI(videoID string) TranscriptURI {
	return TranscriptURI{videoID: videoID}
}

// ParseTranscriptURI parses a vidchat://videos/{id}/transcript or
// vidchat://videos/{id}/segments URI.
func ParseTranscriptURI(raw string) (TranscriptURI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return TranscriptURI{}, fmt.Errorf("parse transcript uri: %w", err)
	}
	if u.Scheme != uriScheme || u.Host != "videos" {
		return TranscriptURI{}, fmt.Errorf("not a transcript uri: %s", raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || (parts[1] != "transcript" && parts[1] != "segments") {
		return TranscriptURI{}, fmt.Errorf("not a transcript uri: %s", raw)
	}
	return TranscriptURI{
		videoID:    parts[0],
		timestamps: parts[1] == "segments",
	}, nil
}

// WithTimestamps returns a copy that addresses the timed segments.
func (u TranscriptURI) WithTimestamps() TranscriptURI {
	u.timestamps = true
	return u
}

// VideoID returns the addressed video.
func (u TranscriptURI) VideoID() string { return u.videoID }

// Timestamps reports whether timed segments were requested.
func (u TranscriptURI) Timestamps() bool { return u.timestamps }

// String builds the vidchat:// URI string.
func (u TranscriptURI) String() string {
	if u.timestamps {
		return fmt.Sprintf("%s://videos/%s/segments", uriScheme, u.videoID)
	}
	return fmt.Sprintf("%s://videos/%s/transcript", uriScheme, u.videoID)
}
