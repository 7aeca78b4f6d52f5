package http

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nim-chat/internal/contextutil"
	"nim-chat/internal/sampling"
	"nim-chat/internal/session"
)

func TestLoggerMiddleware(t *testing.T) {
	var got *slog.Logger
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = contextutil.LoggerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	middleware := LoggerMiddleware(handler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	middleware.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("LoggerMiddleware() status = %v, want %v", w.Code, http.StatusOK)
	}
	if got == nil {
		t.Fatal("LoggerMiddleware() should add logger to context")
	}
	if got == slog.Default() {
		t.Error("LoggerMiddleware() should add a request-scoped logger, got the default")
	}
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		statusCode int
	}{
		{
			name:       "regular request",
			method:     http.MethodPost,
			path:       "/api/chat",
			statusCode: http.StatusOK,
		},
		{
			name:       "health check skipped",
			method:     http.MethodGet,
			path:       "/api/health",
			statusCode: http.StatusOK,
		},
		{
			name:       "unhealthy health check logged",
			method:     http.MethodGet,
			path:       "/api/health",
			statusCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			middleware := RequestLogger(handler)
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			middleware.ServeHTTP(w, req)

			if w.Code != tt.statusCode {
				t.Errorf("RequestLogger() status = %v, want %v", w.Code, tt.statusCode)
			}
		})
	}
}

func TestResponseWriter_WriteHeader(t *testing.T) {
	w := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("responseWriter.WriteHeader() statusCode = %v, want %v", rw.statusCode, http.StatusNotFound)
	}

	if w.Code != http.StatusNotFound {
		t.Errorf("responseWriter.WriteHeader() underlying status = %v, want %v", w.Code, http.StatusNotFound)
	}
}

func TestResponseWriter_Flush(t *testing.T) {
	w := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	var _ http.Flusher = rw
	rw.Flush()

	if !w.Flushed {
		t.Error("responseWriter.Flush() should flush the underlying writer")
	}
}

func TestCORS(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	middleware := CORS(handler)

	tests := []struct {
		name           string
		method         string
		origin         string
		wantStatusCode int
		checkHeaders   func(*httptest.ResponseRecorder) bool
	}{
		{
			name:           "preflight OPTIONS",
			method:         http.MethodOptions,
			origin:         "http://localhost:3000",
			wantStatusCode: http.StatusNoContent,
			checkHeaders: func(w *httptest.ResponseRecorder) bool {
				return w.Header().Get("Access-Control-Allow-Origin") != ""
			},
		},
		{
			name:           "request with origin",
			method:         http.MethodPost,
			origin:         "http://localhost:3000",
			wantStatusCode: http.StatusOK,
			checkHeaders: func(w *httptest.ResponseRecorder) bool {
				return w.Header().Get("Access-Control-Allow-Origin") == "http://localhost:3000" &&
					w.Header().Get("Access-Control-Allow-Credentials") == ""
			},
		},
		{
			name:           "unknown origin gets no credentialed grant",
			method:         http.MethodGet,
			origin:         "https://attacker.example",
			wantStatusCode: http.StatusOK,
			checkHeaders: func(w *httptest.ResponseRecorder) bool {
				return w.Header().Get("Access-Control-Allow-Credentials") == ""
			},
		},
		{
			name:           "request without origin",
			method:         http.MethodPost,
			origin:         "",
			wantStatusCode: http.StatusOK,
			checkHeaders: func(w *httptest.ResponseRecorder) bool {
				return w.Header().Get("Access-Control-Allow-Origin") == "*"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()

			middleware.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Errorf("CORS() status = %v, want %v", w.Code, tt.wantStatusCode)
			}

			if tt.checkHeaders != nil && !tt.checkHeaders(w) {
				t.Error("CORS() header validation failed")
			}
		})
	}
}

func TestCORS_Headers(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	middleware := CORS(handler)

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()

	middleware.ServeHTTP(w, req)

	headers := map[string]string{
		"Access-Control-Allow-Origin":  "http://localhost:3000",
		"Access-Control-Allow-Methods": "GET, POST, PUT, DELETE, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type, Authorization",
		"Access-Control-Max-Age":       "3600",
	}

	for header, wantValue := range headers {
		gotValue := w.Header().Get(header)
		if gotValue != wantValue {
			t.Errorf("CORS() header %s = %v, want %v", header, gotValue, wantValue)
		}
	}
}

func TestSessionMiddleware(t *testing.T) {
	sessions := session.NewManager(sampling.DefaultControls().Defaults(), time.Hour)

	var seen *session.Session
	handler := SessionMiddleware(sessions, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := contextutil.SessionFromContext(r.Context())
		if !ok {
			t.Fatal("SessionMiddleware() should put a session in the context")
		}
		seen = sess
		w.WriteHeader(http.StatusOK)
	}))

	// First request: no cookie, a session is created and the cookie set.
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("SessionMiddleware() set %d cookies, want 1", len(cookies))
	}
	cookie := cookies[0]
	if cookie.Name != SessionCookieName {
		t.Errorf("cookie name = %q, want %q", cookie.Name, SessionCookieName)
	}
	if !cookie.HttpOnly || !cookie.Secure {
		t.Errorf("cookie HttpOnly=%v Secure=%v, want both true", cookie.HttpOnly, cookie.Secure)
	}
	if seen == nil || cookie.Value != seen.ID {
		t.Fatalf("cookie value %q does not match session", cookie.Value)
	}
	first := seen

	// Second request with the cookie: same session, no new cookie.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen != first {
		t.Error("SessionMiddleware() should reuse the session named by the cookie")
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("SessionMiddleware() should not reset the cookie for a known session")
	}

	// Ended session: a fresh one replaces it.
	sessions.End(first.ID)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen == first {
		t.Error("SessionMiddleware() should start a new session after the old one ended")
	}
	if len(w.Result().Cookies()) != 1 {
		t.Error("SessionMiddleware() should set a cookie for the replacement session")
	}
}

func TestSessionLookup(t *testing.T) {
	sessions := session.NewManager(sampling.DefaultControls().Defaults(), time.Hour)
	live := sessions.Create()

	var (
		seen  *session.Session
		found bool
	)
	handler := SessionLookup(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, found = contextutil.SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name      string
		cookie    string
		wantFound bool
	}{
		{"no cookie", "", false},
		{"unknown session", "stale-id", false},
		{"live session", live.ID, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, found = nil, false
			req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if found != tt.wantFound {
				t.Errorf("SessionLookup() session found = %v, want %v", found, tt.wantFound)
			}
			if tt.wantFound && seen != live {
				t.Error("SessionLookup() attached the wrong session")
			}
			if len(w.Result().Cookies()) != 0 {
				t.Error("SessionLookup() should never set a cookie")
			}
		})
	}

	if sessions.Len() != 1 {
		t.Errorf("live sessions = %d, want 1", sessions.Len())
	}
}

func TestCrossOriginGuard(t *testing.T) {
	var called bool
	handler := CrossOriginGuard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		method     string
		headers    map[string]string
		wantStatus int
	}{
		{"safe method from anywhere", http.MethodGet, map[string]string{"Sec-Fetch-Site": "cross-site"}, http.StatusOK},
		{"non-browser client", http.MethodPost, nil, http.StatusOK},
		{"same origin", http.MethodPost, map[string]string{"Sec-Fetch-Site": "same-origin"}, http.StatusOK},
		{"matching origin header", http.MethodPost, map[string]string{"Origin": "http://example.com"}, http.StatusOK},
		{"cross site", http.MethodPost, map[string]string{"Sec-Fetch-Site": "cross-site"}, http.StatusForbidden},
		{"foreign origin header", http.MethodPut, map[string]string{"Origin": "https://attacker.example"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest(tt.method, "http://example.com/chat", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("CrossOriginGuard() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if called != (tt.wantStatus == http.StatusOK) {
				t.Errorf("CrossOriginGuard() called next = %v", called)
			}
		})
	}
}
