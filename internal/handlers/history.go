package handlers

import (
	"net/http"

	"nim-chat/internal/service"
)

// HistoryHandler serves and resets the session's conversation.
type HistoryHandler struct {
	chatService service.ChatService
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(chatService service.ChatService) *HistoryHandler {
	return &HistoryHandler{chatService: chatService}
}

// HistoryResponse is the conversation in display order.
type HistoryResponse struct {
	Turns []TurnResponse `json:"turns"`
}

// Get returns the conversation.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrError(w, r)
	if !ok {
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, HistoryResponse{Turns: toTurnResponses(sess.Turns())})
}

// Reset clears the conversation and returns the (empty) history.
func (h *HistoryHandler) Reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrError(w, r)
	if !ok {
		return
	}
	h.chatService.ResetChat(r.Context(), sess)
	writeJSON(r.Context(), w, http.StatusOK, HistoryResponse{Turns: toTurnResponses(sess.Turns())})
}
