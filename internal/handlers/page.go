package handlers

import (
	"embed"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"

	"nim-chat/internal/contextutil"
	"nim-chat/internal/render"
	"nim-chat/internal/sampling"
	"nim-chat/internal/service"
	"nim-chat/internal/session"
)

//go:embed templates/chat.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/chat.html"))

const pageTitle = "NVIDIA NIM Chatbot"

// PageHandler serves the browser chat UI. Form posts redirect back to the page.
type PageHandler struct {
	chatService   service.ChatService
	markdown      *render.Markdown
	hasCredential bool
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(chatService service.ChatService, markdown *render.Markdown, hasCredential bool) *PageHandler {
	return &PageHandler{
		chatService:   chatService,
		markdown:      markdown,
		hasCredential: hasCredential,
	}
}

type bubble struct {
	Role  string
	Label string
	HTML  template.HTML
}

type pageData struct {
	Title             string
	Turns             []bubble
	Failure           *session.Failure
	Config            sampling.Config
	Controls          sampling.Controls
	CredentialMissing bool
}

// Show renders the conversation, the settings sidebar and the input form.
func (h *PageHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := sessionOrError(w, r)
	if !ok {
		return
	}

	turns := sess.Turns()
	data := pageData{
		Title:             pageTitle,
		Turns:             make([]bubble, 0, len(turns)),
		Config:            sess.Config(),
		Controls:          h.chatService.Controls(),
		CredentialMissing: !h.hasCredential,
	}
	for _, turn := range turns {
		data.Turns = append(data.Turns, bubble{
			Role:  string(turn.Role),
			Label: turn.Role.Label(),
			HTML:  h.markdown.RenderOrEscape(turn.Content),
		})
	}
	if f, ok := sess.TakeFailure(); ok {
		data.Failure = &f
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTemplate.Execute(w, data); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to render page", "error", err)
	}
}

// Send runs one turn from the input form. A failed turn is shown once on the
// next render and leaves the history unchanged.
func (h *PageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := sessionOrError(w, r)
	if !ok {
		return
	}

	message := r.PostFormValue("message")
	if strings.TrimSpace(message) == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if _, err := h.chatService.ProcessChat(ctx, sess, service.ChatRequest{Message: message}); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "chat turn failed", "error", err)
		sess.SetFailure(message, UserMessage(err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Settings applies the sidebar form.
func (h *PageHandler) Settings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := sessionOrError(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form")
		return
	}
	update, err := parseSettingsForm(r)
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "invalid settings form", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.chatService.UpdateSettings(ctx, sess, update); err != nil {
		handleServiceError(w, ctx, err, "Failed to update settings")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Reset clears the conversation from the sidebar button.
func (h *PageHandler) Reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrError(w, r)
	if !ok {
		return
	}
	h.chatService.ResetChat(r.Context(), sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// parseSettingsForm reads the fields present in the form. Absent fields stay
// unchanged.
func parseSettingsForm(r *http.Request) (sampling.Update, error) {
	var update sampling.Update

	if v := strings.TrimSpace(r.PostForm.Get("model")); v != "" {
		update.Model = &v
	}

	floats := []struct {
		name string
		dst  **float64
	}{
		{"temperature", &update.Temperature},
		{"top_p", &update.TopP},
		{"repetition_penalty", &update.RepetitionPenalty},
	}
	for _, f := range floats {
		v, ok, err := formFloat(r, f.name)
		if err != nil {
			return sampling.Update{}, err
		}
		if ok {
			*f.dst = &v
		}
	}

	ints := []struct {
		name string
		dst  **int
	}{
		{"top_k", &update.TopK},
		{"max_output_tokens", &update.MaxOutputTokens},
	}
	for _, f := range ints {
		v, ok, err := formFloat(r, f.name)
		if err != nil {
			return sampling.Update{}, err
		}
		if ok {
			n := sampling.RoundInt(v)
			*f.dst = &n
		}
	}

	return update, nil
}

func formFloat(r *http.Request, name string) (float64, bool, error) {
	raw := strings.TrimSpace(r.PostForm.Get(name))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, true, nil
}
