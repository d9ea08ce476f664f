// Package mcp provides Model Context Protocol server functionality.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/helixml/vidchat/application/service"
	"github.com/helixml/vidchat/domain"
	"github.com/helixml/vidchat/domain/chunk"
	"github.com/helixml/vidchat/domain/conversation"
	"github.com/helixml/vidchat/domain/video"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Chatrooms provides the chatroom operations exposed as MCP tools.
type Chatrooms interface {
	List(ctx context.Context) ([]video.Listing, error)
	Get(ctx context.Context, id string) (video.Video, []conversation.Turn, error)
	Search(ctx context.Context, id, query string, limit int) ([]chunk.Match, error)
	Query(ctx context.Context, id, query string, sink func(string) error) (service.Outcome, error)
}

// Server wraps the MCP server with vidchat-specific tools.
type Server struct {
	mcpServer *server.MCPServer
	chatrooms Chatrooms
	version   string
	logger    *slog.Logger
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(chatrooms Chatrooms, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		chatrooms: chatrooms,
		version:   version,
		logger:    logger,
	}

	mcpServer := server.NewMCPServer(
		"vidchat",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Tools for asking questions about ingested YouTube videos. "+
			"Call list_videos first to find a video_id."),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("get_version",
		mcp.WithDescription("Get the vidchat server version"),
	), s.handleGetVersion)

	mcpServer.AddTool(mcp.NewTool("list_videos",
		mcp.WithDescription("List the ingested videos with their ids and titles"),
	), s.handleListVideos)

	mcpServer.AddTool(mcp.NewTool("search_transcript",
		mcp.WithDescription("Find the transcript passages of a video closest to a query"),
		mcp.WithString("video_id",
			mcp.Required(),
			mcp.Description("The id of an ingested video"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to look for"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Number of passages to return (default: %d)", chunk.DefaultSearchLimit)),
		),
	), s.handleSearchTranscript)

	mcpServer.AddTool(mcp.NewTool("ask_video",
		mcp.WithDescription("Ask a question about a video. The exchange is recorded in the video's chat history."),
		mcp.WithString("video_id",
			mcp.Required(),
			mcp.Description("The id of an ingested video"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question or message"),
		),
	), s.handleAskVideo)
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(TranscriptTemplate, "transcript",
			mcp.WithTemplateDescription("Full transcript of an ingested video"),
			mcp.WithTemplateMIMEType("text/plain"),
		),
		s.handleTranscript,
	)
	mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(SegmentsTemplate, "segments",
			mcp.WithTemplateDescription("Timed transcript segments of an ingested video"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleTranscript,
	)
}

func (s *Server) handleGetVersion(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.version), nil
}

func (s *Server) handleListVideos(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	listings, err := s.chatrooms.List(ctx)
	if err != nil {
		s.logger.Error("list videos failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("list videos failed: %v", err)), nil
	}
	if len(listings) == 0 {
		return mcp.NewToolResultText("no videos ingested"), nil
	}

	var b strings.Builder
	for _, l := range listings {
		fmt.Fprintf(&b, "%s\t%s\n", l.ID, l.Title)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleSearchTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("video_id")
	if err != nil {
		return mcp.NewToolResultError("video_id is required"), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}
	limit := request.GetInt("limit", chunk.DefaultSearchLimit)

	matches, err := s.chatrooms.Search(ctx, id, query, limit)
	if err != nil {
		return s.toolError(ctx, "search", id, err), nil
	}

	type passage struct {
		ID       string  `json:"id"`
		Text     string  `json:"text"`
		Distance float64 `json:"distance"`
	}
	results := make([]passage, len(matches))
	for i, m := range matches {
		results[i] = passage{ID: m.ID(), Text: m.Text(), Distance: m.Distance()}
	}

	jsonBytes, err := json.Marshal(results)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleAskVideo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("video_id")
	if err != nil {
		return mcp.NewToolResultError("video_id is required"), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}

	out, err := s.chatrooms.Query(ctx, id, query, nil)
	if err != nil {
		return s.toolError(ctx, "ask", id, err), nil
	}
	return mcp.NewToolResultText(out.Text), nil
}

func (s *Server) handleTranscript(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri, err := ParseTranscriptURI(request.Params.URI)
	if err != nil {
		return nil, err
	}
	v, _, err := s.chatrooms.Get(ctx, uri.VideoID())
	if err != nil {
		return nil, fmt.Errorf("read transcript %s: %w", uri.VideoID(), err)
	}

	if !uri.Timestamps() {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "text/plain",
				Text:     v.Transcript(),
			},
		}, nil
	}

	data, err := json.Marshal(v.Segments())
	if err != nil {
		return nil, fmt.Errorf("marshal segments: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// toolError maps a chatroom error onto a tool error result. Only unexpected
// failures are logged.
func (s *Server) toolError(ctx context.Context, op, id string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("video not found: %s", id))
	case errors.Is(err, domain.ErrValidation):
		return mcp.NewToolResultError(err.Error())
	}
	s.logger.ErrorContext(ctx, op+" failed", slog.String("video_id", id), slog.Any("error", err))
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", op, err))
}

// MCPServer returns the underlying MCP server for HTTP mounting.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
