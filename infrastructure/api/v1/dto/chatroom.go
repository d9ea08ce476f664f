// Package dto holds the request and response bodies of the v1 API.
package dto

import (
	"github.com/helixml/vidchat/infrastructure/api/jsonapi"
)

// CreateChatroomRequest is the body of POST /api/chatrooms/.
type CreateChatroomRequest struct {
	URL string `json:"url"`
}

// QueryRequest is the body of POST /api/chatrooms/{id}/query.
type QueryRequest struct {
	Query string `json:"query"`
}

// Segment is one timestamped caption line.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// VidChat is a video record as returned by the API.
type VidChat struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	URL           string           `json:"url"`
	Description   string           `json:"description"`
	Transcript    string           `json:"transcript"`
	TranscriptWTS []Segment        `json:"transcript_wts"`
	Summary       string           `json:"summary,omitempty"`
	CreatedAt     jsonapi.DateTime `json:"created_at"`
}

// ChatroomListItem is one entry of GET /api/chatrooms/.
type ChatroomListItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Message is one conversation turn.
type Message struct {
	ID        int64            `json:"id"`
	VidID     string           `json:"vid_id"`
	Content   string           `json:"content"`
	SentBy    string           `json:"sent_by"`
	CreatedAt jsonapi.DateTime `json:"created_at"`
}

// ChatroomResponse is the body of GET /api/chatrooms/{id}.
type ChatroomResponse struct {
	VidChat  VidChat   `json:"vid_chat"`
	Messages []Message `json:"messages"`
}
