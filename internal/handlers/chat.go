package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"nim-chat/internal/contextutil"
	"nim-chat/internal/service"
	"nim-chat/internal/session"
)

// ChatHandler handles HTTP requests for chat.
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// ChatRequest represents the HTTP request payload for chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse represents the HTTP response payload for chat.
type ChatResponse struct {
	Reply   string         `json:"reply"`
	History []TurnResponse `json:"history"`
}

// streamChunk is the payload of one SSE "message" event.
type streamChunk struct {
	Content string `json:"content"`
}

// ServeHTTP handles HTTP requests for chat.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, ok := sessionOrError(w, r)
	if !ok {
		return
	}

	// Check if streaming is requested
	if r.URL.Query().Get("stream") == "true" {
		h.handleStreamingChat(w, r, sess, req)
		return
	}

	svcResp, err := h.chatService.ProcessChat(ctx, sess, service.ChatRequest{Message: req.Message})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to process chat request")
		return
	}

	writeJSON(ctx, w, http.StatusOK, ChatResponse{
		Reply:   svcResp.Reply,
		History: toTurnResponses(svcResp.History),
	})
}

// handleStreamingChat handles streaming chat requests using Server-Sent Events.
// Each content delta is a JSON "message" event; the stream ends with a "done"
// event carrying the recorded history, or an "error" event in place of the reply.
func (h *ChatHandler) handleStreamingChat(w http.ResponseWriter, r *http.Request, sess *session.Session, req ChatRequest) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.ErrorContext(ctx, "streaming not supported by response writer")
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	// Set up Server-Sent Events headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	svcResp, err := h.chatService.StreamChat(ctx, sess, service.ChatRequest{Message: req.Message}, func(chunk string) error {
		if err := writeEvent(w, "message", streamChunk{Content: chunk}); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	if err != nil {
		logger.ErrorContext(ctx, "error streaming chat", "error", err)
		_ = writeEvent(w, "error", ErrorResponse{Error: UserMessage(err)})
		flusher.Flush()
		return
	}

	_ = writeEvent(w, "done", ChatResponse{
		Reply:   svcResp.Reply,
		History: toTurnResponses(svcResp.History),
	})
	flusher.Flush()
}

// writeEvent writes one SSE event with a JSON payload. JSON encoding keeps
// newlines inside the payload off the wire framing.
func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
