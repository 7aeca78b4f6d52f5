package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"nim-chat/internal/handlers"
	"nim-chat/internal/metrics"
	"nim-chat/internal/render"
	"nim-chat/internal/service"
	"nim-chat/internal/session"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	ChatService service.ChatService
	Sessions    *session.Manager
	Models      handlers.ModelLister
	Metrics     *metrics.Metrics
	Markdown    *render.Markdown

	// APIKey is only checked for presence and passed to the model listing.
	APIKey       string
	CookieSecure bool
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)
	r.Use(CrossOriginGuard)

	markdown := deps.Markdown
	if markdown == nil {
		markdown = render.NewMarkdown()
	}

	chatHandler := handlers.NewChatHandler(deps.ChatService)
	historyHandler := handlers.NewHistoryHandler(deps.ChatService)
	settingsHandler := handlers.NewSettingsHandler(deps.ChatService)
	pageHandler := handlers.NewPageHandler(deps.ChatService, markdown, deps.APIKey != "")
	healthHandler := handlers.NewHealthHandler(deps.Models, deps.APIKey, deps.ChatService.Controls().Models)

	// Session-free routes
	r.Method(http.MethodGet, "/api/health", healthHandler)
	r.Get("/api/controls", settingsHandler.Controls)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// Routes that start a session for a new visitor
	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(deps.Sessions, deps.CookieSecure))

		// Browser UI
		r.Get("/", pageHandler.Show)
		r.Post("/chat", pageHandler.Send)
		r.Post("/settings", pageHandler.Settings)
		r.Post("/reset", pageHandler.Reset)

		// JSON API
		r.Method(http.MethodPost, "/api/chat", chatHandler)
		r.Put("/api/settings", settingsHandler.Update)
	})

	// Routes that only act on an existing session and answer 404 without one
	r.Group(func(r chi.Router) {
		r.Use(SessionLookup(deps.Sessions))

		r.Get("/api/history", historyHandler.Get)
		r.Delete("/api/history", historyHandler.Reset)
		r.Get("/api/settings", settingsHandler.Get)
	})

	return r
}
