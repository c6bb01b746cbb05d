package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"jamati/internal/config"
	"jamati/internal/i18n"
	"jamati/internal/lecture"
	appLog "jamati/internal/log"
	"jamati/internal/notify"
	"jamati/internal/persisted"
)

// Deps are the long-lived components the HTTP surface drives.
type Deps struct {
	Config      *config.Config
	Lectures    *lecture.Store
	Resolver    *i18n.Resolver
	SummaryTime *persisted.Value[string]
	Scheduler   *notify.Scheduler
}

// Server exposes the schedule page and the JSON API.
type Server struct {
	cfg         *config.Config
	lectures    *lecture.Store
	resolver    *i18n.Resolver
	summaryTime *persisted.Value[string]
	scheduler   *notify.Scheduler
	now         func() time.Time
	greet       bool

	mux *http.ServeMux
}

// Option customizes NewServer.
type Option func(*Server)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithoutGreeting renders the page without consuming the first-visit
// greeting, for snapshot capture.
func WithoutGreeting() Option {
	return func(s *Server) { s.greet = false }
}

// NewServer constructs a new Server.
func NewServer(d Deps, opts ...Option) *Server {
	s := &Server{
		cfg:         d.Config,
		lectures:    d.Lectures,
		resolver:    d.Resolver,
		summaryTime: d.SummaryTime,
		scheduler:   d.Scheduler,
		now:         time.Now,
		greet:       true,
		mux:         http.NewServeMux(),
	}
	if s.cfg == nil {
		s.cfg = config.DefaultConfig()
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Routes returns the unauthenticated handler, used for local snapshot
// capture.
func (s *Server) Routes() http.Handler { return s.mux }

// Handler returns the handler served on the configured listen address.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Jamati", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, s.Handler())
}

// Serve serves h on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /lectures", s.handleFormAdd)
	s.mux.HandleFunc("POST /lectures/{id}/delete", s.handleFormDelete)
	s.mux.HandleFunc("POST /language", s.handleFormLanguage)
	s.mux.HandleFunc("POST /notifications", s.handleFormNotifications)

	s.mux.HandleFunc("GET /api/lectures", s.handleListLectures)
	s.mux.HandleFunc("POST /api/lectures", s.handleAddLecture)
	s.mux.HandleFunc("DELETE /api/lectures/{id}", s.handleDeleteLecture)
	s.mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	s.mux.HandleFunc("GET /api/settings/language", s.handleGetLanguage)
	s.mux.HandleFunc("PUT /api/settings/language", s.handlePutLanguage)
	s.mux.HandleFunc("GET /api/settings/summary-time", s.handleGetSummaryTime)
	s.mux.HandleFunc("PUT /api/settings/summary-time", s.handlePutSummaryTime)
	s.mux.HandleFunc("GET /api/notifications/permission", s.handleGetPermission)
	s.mux.HandleFunc("POST /api/notifications/permission", s.handleRequestPermission)
	s.mux.HandleFunc("GET /api/calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("GET /api/i18n", s.handleI18n)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ready reports whether the translation dictionaries have finished loading.
func (s *Server) ready() bool {
	select {
	case <-s.resolver.Ready():
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errResp struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}
