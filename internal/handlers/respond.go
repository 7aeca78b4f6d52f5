package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"nim-chat/internal/contextutil"
	"nim-chat/internal/llm"
	"nim-chat/internal/service"
	"nim-chat/internal/session"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TurnResponse is one message of the conversation as returned by the API.
type TurnResponse struct {
	Role    string `json:"role"`
	Label   string `json:"label"`
	Content string `json:"content"`
}

func toTurnResponses(turns []session.Turn) []TurnResponse {
	out := make([]TurnResponse, 0, len(turns))
	for _, turn := range turns {
		out = append(out, TurnResponse{
			Role:    string(turn.Role),
			Label:   turn.Role.Label(),
			Content: turn.Content,
		})
	}
	return out
}

// writeJSON writes v with the given status.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

// classifyError maps service errors to an HTTP status and a message safe to show the user.
func classifyError(err error, defaultMsg string) (int, string) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, fmt.Sprintf("Validation error: %s", validationErr.Error())
	}

	// Check for wrapped errors
	if errors.Is(err, service.ErrInvalidInput) {
		return http.StatusBadRequest, "Invalid input"
	}

	if errors.Is(err, service.ErrNotFound) {
		return http.StatusNotFound, "Chat session not found; open the chat page to start one"
	}

	if errors.Is(err, service.ErrMissingCredential) {
		return http.StatusServiceUnavailable, "The NVIDIA API key is not configured (set NVIDIA_API_KEY)"
	}

	if errors.Is(err, service.ErrExternalService) {
		var statusErr *llm.StatusError
		if errors.As(err, &statusErr) {
			return http.StatusBadGateway, fmt.Sprintf("The model endpoint returned HTTP %d: %s",
				statusErr.StatusCode, truncate(statusErr.Body, 200))
		}
		return http.StatusBadGateway, "The model endpoint request failed"
	}

	// Default to internal server error
	return http.StatusInternalServerError, defaultMsg
}

// UserMessage is the message shown to the user for a failed turn.
func UserMessage(err error) string {
	_, msg := classifyError(err, "Failed to process chat request")
	return msg
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// handleServiceError maps service errors to appropriate HTTP status codes and responses.
func handleServiceError(w http.ResponseWriter, ctx context.Context, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "service error", "error", err)

	status, msg := classifyError(err, defaultMsg)
	writeError(w, status, msg)
}

// sessionOrError returns the request's session or writes a 404 when the
// request carries no live session.
func sessionOrError(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := contextutil.SessionFromContext(r.Context())
	if !ok {
		handleServiceError(w, r.Context(), fmt.Errorf("chat session: %w", service.ErrNotFound), "Session unavailable")
		return nil, false
	}
	return sess, true
}
