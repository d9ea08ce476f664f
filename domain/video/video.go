// Package video provides the video record and its transient transcript.
package video

import (
	"strings"
	"time"
)

// Segment is one timestamped caption line.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// JoinSegments concatenates segment text with single spaces.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}

// Transcript is the output of one ingestion. It is not persisted as is.
type Transcript struct {
	url      string
	videoID  string
	title    string
	content  string
	chunks   []string
	segments []Segment
}

// NewTranscript creates a Transcript.
func NewTranscript(url, videoID, title, content string, chunks []string, segments []Segment) Transcript {
	c := make([]string, len(chunks))
	copy(c, chunks)
	s := make([]Segment, len(segments))
	copy(s, segments)
	return Transcript{
		url:      url,
		videoID:  videoID,
		title:    title,
		content:  content,
		chunks:   c,
		segments: s,
	}
}

// URL returns the source URL.
func (t Transcript) URL() string { return t.url }

// VideoID returns the video identifier.
func (t Transcript) VideoID() string { return t.videoID }

// Title returns the video title, or empty if it could not be fetched.
func (t Transcript) Title() string { return t.title }

// Content returns the full transcript text.
func (t Transcript) Content() string { return t.content }

// Chunks returns the ordered chunk texts.
func (t Transcript) Chunks() []string {
	c := make([]string, len(t.chunks))
	copy(c, t.chunks)
	return c
}

// Segments returns the timestamped segments.
func (t Transcript) Segments() []Segment {
	s := make([]Segment, len(t.segments))
	copy(s, t.segments)
	return s
}

// Video is the persisted record of an ingested video.
type Video struct {
	id          string
	title       string
	url         string
	description string
	transcript  string
	segments    []Segment
	summary     string
	createdAt   time.Time
}

// NewVideo builds a Video record from an ingested transcript.
func NewVideo(t Transcript, description string) Video {
	return Video{
		id:          t.videoID,
		title:       t.title,
		url:         t.url,
		description: description,
		transcript:  t.content,
		segments:    t.Segments(),
		createdAt:   time.Now().UTC(),
	}
}

// ReconstructVideo recreates a Video from persistence.
func ReconstructVideo(id, title, url, description, transcript string, segments []Segment, summary string, createdAt time.Time) Video {
	s := make([]Segment, len(segments))
	copy(s, segments)
	return Video{
		id:          id,
		title:       title,
		url:         url,
		description: description,
		transcript:  transcript,
		segments:    s,
		summary:     summary,
		createdAt:   createdAt,
	}
}

// ID returns the video identifier.
func (v Video) ID() string { return v.id }

// Title returns the video title.
func (v Video) Title() string { return v.title }

// URL returns the watch URL.
func (v Video) URL() string { return v.url }

// Description returns the video description.
func (v Video) Description() string { return v.description }

// Transcript returns the full transcript text.
func (v Video) Transcript() string { return v.transcript }

// Segments returns the timestamped transcript.
func (v Video) Segments() []Segment {
	s := make([]Segment, len(v.segments))
	copy(s, v.segments)
	return s
}

// Summary returns the cached overview summary, if any.
func (v Video) Summary() string { return v.summary }

// CreatedAt returns when the record was created.
func (v Video) CreatedAt() time.Time { return v.createdAt }

// Overview returns the best available short description for prompting:
// the cached summary, falling back to the description.
func (v Video) Overview() string {
	if v.summary != "" {
		return v.summary
	}
	return v.description
}

// WithSummary returns a copy with the given summary.
func (v Video) WithSummary(summary string) Video {
	v.summary = summary
	return v
}

// Listing is the id and title of a video, used for chatroom lists.
type Listing struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
