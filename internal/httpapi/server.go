// Package httpapi exposes the coordinator over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abelbrown/dealfeed/internal/coord"
	"github.com/abelbrown/dealfeed/internal/logging"
	"github.com/abelbrown/dealfeed/internal/model"
)

// StaleHeader is set on refresh responses that carry the previous feed.
const StaleHeader = "X-Feed-Stale"

// Feeds is the part of the coordinator the endpoint needs.
type Feeds interface {
	Current() model.Feed
	Refresh(ctx context.Context) (model.Feed, error)
	Status() coord.Status
}

// Server serves the read and refresh routes.
type Server struct {
	feeds          Feeds
	refreshTimeout time.Duration
	log            *log.Logger
}

// New creates a Server. refreshTimeout bounds a manual rebuild; 0 means one
// minute.
func New(feeds Feeds, refreshTimeout time.Duration) *Server {
	if refreshTimeout <= 0 {
		refreshTimeout = time.Minute
	}
	return &Server{feeds: feeds, refreshTimeout: refreshTimeout, log: logging.WithPrefix("http")}
}

// Routes returns the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Get("/feed", s.feed)
	r.Post("/refresh", s.refresh)
	r.Get("/status", s.status)
	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) feed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.feeds.Current())
}

// refresh outlives a disconnecting client: the build is shared with any other
// waiter, so it runs under a detached context bounded by refreshTimeout.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.refreshTimeout)
	defer cancel()

	feed, err := s.feeds.Refresh(ctx)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, feed)
	case errors.Is(err, coord.ErrEmptyPool):
		w.Header().Set(StaleHeader, "true")
		writeJSON(w, http.StatusOK, feed)
	case errors.Is(err, coord.ErrBuildCancelled):
		w.Header().Set(StaleHeader, "true")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Feed: &feed})
	default:
		s.log.Error("refresh failed", "request", middleware.GetReqID(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error(), Feed: &feed})
	}
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.feeds.Status())
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start), "request", middleware.GetReqID(r.Context()))
	})
}

type errorBody struct {
	Error string      `json:"error"`
	Feed  *model.Feed `json:"feed,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
