package handlers

import (
	"encoding/json"
	"net/http"

	"nim-chat/internal/contextutil"
	"nim-chat/internal/sampling"
	"nim-chat/internal/service"
)

// SettingsHandler reads and changes the session's sampling parameters.
type SettingsHandler struct {
	chatService service.ChatService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(chatService service.ChatService) *SettingsHandler {
	return &SettingsHandler{chatService: chatService}
}

// SettingsResponse is the session's current sampling config.
type SettingsResponse struct {
	Config sampling.Config `json:"config"`
}

// Get returns the current config.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrError(w, r)
	if !ok {
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, SettingsResponse{Config: sess.Config()})
}

// Update applies a partial change. Out-of-range numbers are clamped to the
// control bounds; an unknown model is rejected.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := sessionOrError(w, r)
	if !ok {
		return
	}

	var update sampling.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "invalid settings body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := h.chatService.UpdateSettings(ctx, sess, update)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to update settings")
		return
	}
	writeJSON(ctx, w, http.StatusOK, SettingsResponse{Config: cfg})
}

// Controls returns the model list and slider ranges.
func (h *SettingsHandler) Controls(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, h.chatService.Controls())
}
