// Package v1 provides the v1 API routes.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/helixml/vidchat/application/service"
	"github.com/helixml/vidchat/domain/conversation"
	"github.com/helixml/vidchat/domain/video"
	"github.com/helixml/vidchat/infrastructure/api/jsonapi"
	"github.com/helixml/vidchat/infrastructure/api/middleware"
	"github.com/helixml/vidchat/infrastructure/api/v1/dto"
	"github.com/helixml/vidchat/internal/log"
)

const maxBodyBytes = 1 << 20

// Chatrooms is the chatroom service the routes delegate to.
type Chatrooms interface {
	Create(ctx context.Context, url string) (video.Video, bool, error)
	List(ctx context.Context) ([]video.Listing, error)
	Get(ctx context.Context, id string) (video.Video, []conversation.Turn, error)
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, id, query string, sink func(string) error) (service.Outcome, error)
	Summarize(ctx context.Context, id string) (video.Video, error)
}

// ChatroomsRouter handles chatroom API endpoints.
type ChatroomsRouter struct {
	chatrooms Chatrooms
	logger    *slog.Logger
}

// NewChatroomsRouter creates a new ChatroomsRouter.
func NewChatroomsRouter(chatrooms Chatrooms, logger *slog.Logger) *ChatroomsRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatroomsRouter{
		chatrooms: chatrooms,
		logger:    logger,
	}
}

// Routes returns the chi router for chatroom endpoints.
func (r *ChatroomsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Post("/", r.Create)
	router.Get("/{id}", r.Get)
	router.Delete("/{id}", r.Delete)
	router.Post("/{id}/query", r.Query)
	router.Post("/{id}/summary", r.Summarize)

	return router
}

// Create handles POST /api/chatrooms/. It answers 201 for a new chatroom and
// 200 when the video was already ingested.
//
//	@Summary		Create chatroom
//	@Description	Ingest a YouTube video and open a chatroom for it
//	@Tags			chatrooms
//	@Accept			json
//	@Produce		json
//	@Param			body	body		dto.CreateChatroomRequest	true	"Video URL"
//	@Success		200		{object}	dto.VidChat
//	@Success		201		{object}	dto.VidChat
//	@Failure		400		{object}	jsonapi.Document
//	@Failure		502		{object}	jsonapi.Document
//	@Router			/chatrooms/ [post]
func (r *ChatroomsRouter) Create(w http.ResponseWriter, req *http.Request) {
	var body dto.CreateChatroomRequest
	if err := decode(w, req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	v, created, err := r.chatrooms.Create(req.Context(), body.URL)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	middleware.WriteJSON(w, status, videoToDTO(v))
}

// List handles GET /api/chatrooms/.
//
//	@Summary	List chatrooms
//	@Tags		chatrooms
//	@Produce	json
//	@Success	200	{array}		dto.ChatroomListItem
//	@Failure	500	{object}	jsonapi.Document
//	@Router		/chatrooms/ [get]
func (r *ChatroomsRouter) List(w http.ResponseWriter, req *http.Request) {
	listings, err := r.chatrooms.List(req.Context())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	items := make([]dto.ChatroomListItem, len(listings))
	for i, l := range listings {
		items[i] = dto.ChatroomListItem{ID: l.ID, Title: l.Title}
	}
	middleware.WriteJSON(w, http.StatusOK, items)
}

// Get handles GET /api/chatrooms/{id}.
//
//	@Summary		Get chatroom
//	@Description	Get a video record with its conversation history
//	@Tags			chatrooms
//	@Produce		json
//	@Param			id	path		string	true	"Video ID"
//	@Success		200	{object}	dto.ChatroomResponse
//	@Failure		404	{object}	jsonapi.Document
//	@Router			/chatrooms/{id} [get]
func (r *ChatroomsRouter) Get(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	v, turns, err := r.chatrooms.Get(req.Context(), id)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	messages := make([]dto.Message, len(turns))
	for i, t := range turns {
		messages[i] = turnToDTO(t)
	}
	middleware.WriteJSON(w, http.StatusOK, dto.ChatroomResponse{
		VidChat:  videoToDTO(v),
		Messages: messages,
	})
}

// Delete handles DELETE /api/chatrooms/{id}.
//
//	@Summary	Delete chatroom
//	@Tags		chatrooms
//	@Param		id	path	string	true	"Video ID"
//	@Success	204
//	@Failure	404	{object}	jsonapi.Document
//	@Router		/chatrooms/{id} [delete]
func (r *ChatroomsRouter) Delete(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	if err := r.chatrooms.Delete(req.Context(), id); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Query handles POST /api/chatrooms/{id}/query. The answer is streamed as
// plain text, flushed fragment by fragment.
//
//	@Summary		Query chatroom
//	@Description	Ask a question about the video; the answer streams as plain text
//	@Tags			chatrooms
//	@Accept			json
//	@Produce		plain
//	@Param			id		path		string				true	"Video ID"
//	@Param			body	body		dto.QueryRequest	true	"Question"
//	@Success		200		{string}	string
//	@Failure		404		{object}	jsonapi.Document
//	@Failure		503		{object}	jsonapi.Document
//	@Router			/chatrooms/{id}/query [post]
func (r *ChatroomsRouter) Query(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	ctx := log.WithVideoID(req.Context(), id)

	var body dto.QueryRequest
	if err := decode(w, req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	rc := http.NewResponseController(w)
	started := false
	sink := func(fragment string) error {
		if !started {
			started = true
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
		}
		if _, err := w.Write([]byte(fragment)); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		return nil
	}

	out, err := r.chatrooms.Query(ctx, id, body.Query, sink)
	if err != nil {
		if started {
			r.logger.ErrorContext(ctx, "query finished with an error after streaming", slog.Any("error", err))
			return
		}
		middleware.WriteError(w, req.WithContext(ctx), err, r.logger)
		return
	}
	if !started && out.Text != "" {
		_ = sink(out.Text)
	}
	if !started {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	}
	r.logger.DebugContext(ctx, "query answered",
		slog.Int("fragments", out.Forwarded),
		slog.Bool("failed", out.Failed),
	)
}

// Summarize handles POST /api/chatrooms/{id}/summary.
//
//	@Summary		Summarize chatroom
//	@Description	Generate and store a summary of the video transcript
//	@Tags			chatrooms
//	@Produce		json
//	@Param			id	path		string	true	"Video ID"
//	@Success		200	{object}	dto.VidChat
//	@Failure		404	{object}	jsonapi.Document
//	@Router			/chatrooms/{id}/summary [post]
func (r *ChatroomsRouter) Summarize(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	v, err := r.chatrooms.Summarize(req.Context(), id)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, videoToDTO(v))
}

func decode(w http.ResponseWriter, req *http.Request, into any) error {
	if ct := req.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return middleware.NewAPIError(http.StatusUnsupportedMediaType, "request body must be application/json", nil)
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(into); err != nil {
		return middleware.NewAPIError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), err)
	}
	return nil
}

func videoToDTO(v video.Video) dto.VidChat {
	segments := v.Segments()
	out := make([]dto.Segment, len(segments))
	for i, s := range segments {
		out[i] = dto.Segment{Text: s.Text, Start: s.Start, Duration: s.Duration}
	}
	return dto.VidChat{
		ID:            v.ID(),
		Title:         v.Title(),
		URL:           v.URL(),
		Description:   v.Description(),
		Transcript:    v.Transcript(),
		TranscriptWTS: out,
		Summary:       v.Summary(),
		CreatedAt:     jsonapi.NewDateTime(v.CreatedAt()),
	}
}

func turnToDTO(t conversation.Turn) dto.Message {
	return dto.Message{
		ID:        t.ID(),
		VidID:     t.VideoID(),
		Content:   t.Content(),
		SentBy:    string(t.Sender()),
		CreatedAt: jsonapi.NewDateTime(t.CreatedAt()),
	}
}
