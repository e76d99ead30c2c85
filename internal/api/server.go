package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.io/infrasutra/emlconvert/internal/auth"
	"github.io/infrasutra/emlconvert/internal/config"
	"github.io/infrasutra/emlconvert/internal/convert"
	"github.io/infrasutra/emlconvert/internal/sse"
	"github.io/infrasutra/emlconvert/internal/store"
	webassets "github.io/infrasutra/emlconvert/web"
)

const uiMissing = "UI not built. Add the upload page to ./web/dist."

type ctxKey struct{}

type Server struct {
	cfg       config.Config
	store     *store.Store
	auth      *auth.Manager
	hub       *sse.Hub
	converter *convert.Service
	logger    *slog.Logger
	router    chi.Router
	staticFS  fs.FS
	staticOK  bool
}

func NewServer(cfg config.Config, store *store.Store, authManager *auth.Manager, hub *sse.Hub, converter *convert.Service, logger *slog.Logger) *Server {
	staticFS, err := webassets.Dist()
	staticOK := err == nil
	if err != nil {
		logger.Warn("ui assets not embedded", "error", err)
	}
	server := &Server{
		cfg:       cfg,
		store:     store,
		auth:      authManager,
		hub:       hub,
		converter: converter,
		logger:    logger,
		staticFS:  staticFS,
		staticOK:  staticOK,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(server.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", server.handleHealth)
	r.Get("/ready", server.handleReady)
	r.Route("/api", func(r chi.Router) {
		r.NotFound(http.NotFound)
		r.Post("/login", server.handleLogin)
		r.Post("/logout", server.handleLogout)
		r.Group(func(r chi.Router) {
			r.Use(server.requireSession)
			r.Get("/me", server.handleMe)
			r.Post("/convert", server.handleConvert)
			r.Get("/conversions", server.handleConversions)
			r.Get("/conversions/{id}", server.handleConversion)
			r.Delete("/conversions/{id}", server.handleConversionDelete)
			r.Get("/conversions/{id}/{format}", server.handleDownload)
			r.Get("/stream", server.handleStream)
			r.Get("/ws", server.handleWS)
		})
	})
	r.NotFound(server.serveStatic)
	server.router = r
	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", humanize.Bytes(uint64(ww.BytesWritten())),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, err := s.sessionEmail(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, email)))
	})
}

func ownerFrom(ctx context.Context) string {
	email, _ := ctx.Value(ctxKey{}).(string)
	return email
}

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	if !s.staticOK {
		s.respondText(w, http.StatusNotFound, uiMissing)
		return
	}

	cleaned := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if cleaned == "" {
		cleaned = webassets.IndexFile
	}
	if s.serveEmbeddedFile(w, r, cleaned) {
		return
	}
	if strings.HasPrefix(cleaned, "assets/") {
		http.NotFound(w, r)
		return
	}
	if s.serveEmbeddedFile(w, r, webassets.IndexFile) {
		return
	}
	s.respondText(w, http.StatusNotFound, uiMissing)
}

func (s *Server) serveEmbeddedFile(w http.ResponseWriter, r *http.Request, name string) bool {
	file, err := s.staticFS.Open(name)
	if err != nil {
		return false
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		return false
	}

	if seeker, ok := file.(io.ReadSeeker); ok {
		http.ServeContent(w, r, info.Name(), info.ModTime(), seeker)
		return true
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return false
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), bytes.NewReader(data))
	return true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	email, err := auth.NormalizeEmail(payload.Email)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	now := time.Now()
	if err := s.store.UpsertUser(r.Context(), email, now); err != nil {
		s.logger.Error("save user", "error", err)
		http.Error(w, "unable to save user", http.StatusInternalServerError)
		return
	}
	token, err := s.auth.Issue(email, now)
	if err != nil {
		http.Error(w, "unable to create session", http.StatusInternalServerError)
		return
	}
	s.setSessionCookie(w, token, now)
	s.respondJSON(w, http.StatusOK, map[string]string{"email": email})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.auth.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	formats := s.converter.DefaultFormats()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"email":          ownerFrom(r.Context()),
		"defaultFormats": formats,
		"maxUpload":      humanize.IBytes(uint64(s.cfg.MaxUploadBytes)),
	})
}

func (s *Server) sessionEmail(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.auth.CookieName())
	if err != nil {
		return "", auth.ErrMissingToken
	}
	return s.auth.Parse(cookie.Value, time.Now())
}

func (s *Server) setSessionCookie(w http.ResponseWriter, value string, now time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.auth.CookieName(),
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.auth.MaxAge().Seconds()),
		Expires:  now.Add(s.auth.MaxAge()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondText(w, http.StatusOK, "ok")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check", "error", err)
		s.respondText(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.respondText(w, http.StatusOK, "ready")
}

func (s *Server) respondText(w http.ResponseWriter, status int, payload string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}
