// Package server exposes cached topic items over a read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matheuskafuri/intelfeed/internal/cache"
)

// Service is the read side of the intel service.
type Service interface {
	ListAllSubscribedTopics(ctx context.Context) ([]string, error)
	GetCachedItems(ctx context.Context, topic string) ([]cache.EnrichedItem, error)
	IsStale(ctx context.Context, topic string) (bool, error)
}

// Pinger reports backing store health.
type Pinger func(ctx context.Context) error

type Server struct {
	svc     Service
	ping    Pinger
	router  chi.Router
	version string
	started time.Time
	log     *slog.Logger
}

// New creates a Server. ping may be nil when there is no store to check.
func New(svc Service, ping Pinger, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		svc:     svc,
		ping:    ping,
		version: version,
		started: time.Now(),
		log:     log,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/topics", s.handleTopics)
		r.Get("/topics/{topic}/items", s.handleItems)
		r.Get("/topics/{topic}/stale", s.handleStale)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeOK := true
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.log.Warn("health check failed", slog.Any("error", err))
			storeOK = false
		}
	}
	status := http.StatusOK
	if !storeOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":  map[bool]string{true: "ok", false: "degraded"}[storeOK],
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"store":   storeOK,
	})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.svc.ListAllSubscribedTopics(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if topics == nil {
		topics = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	topic, ok := topicParam(w, r)
	if !ok {
		return
	}
	var tier cache.Tier
	if q := r.URL.Query().Get("tier"); q != "" {
		t, err := cache.ParseTier(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		tier = t
	}

	items, err := s.svc.GetCachedItems(r.Context(), topic)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	tiers := make(map[cache.Tier]int, len(cache.Tiers))
	for _, g := range cache.GroupByTier(items) {
		tiers[g.Tier] = len(g.Items)
	}
	if tier != "" {
		items = cache.FilterTier(items, tier)
	}
	if items == nil {
		items = []cache.EnrichedItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"topic": topic,
		"count": len(items),
		"tiers": tiers,
		"items": items,
	})
}

func (s *Server) handleStale(w http.ResponseWriter, r *http.Request) {
	topic, ok := topicParam(w, r)
	if !ok {
		return
	}
	stale, err := s.svc.IsStale(r.Context(), topic)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topic": topic, "stale": stale})
}

// topicParam returns the decoded {topic} segment. chi matches against
// RawPath when the request has one, leaving the segment escaped.
func topicParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "topic")
	if r.URL.RawPath == "" {
		return raw, true
	}
	topic, err := url.PathUnescape(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid topic"})
		return "", false
	}
	return topic, true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Any("error", err),
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
