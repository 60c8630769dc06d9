// Package server exposes the read-only HTTP API over the pre-aggregated
// store. It never writes; the indexing pipeline is the only writer.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/maruto/dlstats/internal/cache"
	"github.com/maruto/dlstats/internal/store"
)

// Server provides the HTTP API.
type Server struct {
	store     store.Store
	analytics *cache.Cache[[]byte]
	port      int
	log       zerolog.Logger
}

// New creates a new HTTP server. The analytics cache bounds how often the
// read path hits the store for the per-period analytics payloads.
func New(st store.Store, ttl time.Duration, port int, log zerolog.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store:     st,
		analytics: cache.New[[]byte](ttl, nil),
		port:      port,
		log:       log,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/top", s.handleTop)
	mux.HandleFunc("/api/v1/home", s.handleHome)
	mux.HandleFunc("/api/v1/analytics", s.handleAnalytics)
	mux.HandleFunc("/api/v1/titles/", s.handleTitle)
	mux.HandleFunc("/api/v1/search", s.handleSearch)
	return mux
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.log.Info().Str("addr", addr).Msg("server listening")
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	gs, err := s.store.GlobalStats(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": gs})
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	ct := store.ContentType(r.URL.Query().Get("type"))
	if ct == "" {
		ct = store.TypeBase
	}
	if !ct.Valid() || ct == store.TypeAll {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid content type"})
		return
	}
	limit := intParam(r, "limit", 50)

	rows, err := s.store.TopRankings(r.Context(), period, ct, limit)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows, "count": len(rows)})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	rows, err := s.store.HomeRankings(r.Context(), period)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows, "count": len(rows)})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	period, ok := periodParam(w, r)
	if !ok {
		return
	}

	key := "analytics:" + string(period)
	if data, ok := s.analytics.Get(key); ok {
		writeRawJSON(w, data)
		return
	}

	data, found, err := s.store.AnalyticsCache(r.Context(), period)
	if err != nil {
		s.serverError(w, err)
		return
	}
	if !found {
		// No rollup yet: a valid, empty result.
		data = []byte(`{"daily_stats":[],"monthly_stats":[],"type_stats":[]}`)
	}
	s.analytics.Set(key, data)
	writeRawJSON(w, data)
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	tid := strings.TrimPrefix(r.URL.Path, "/api/v1/titles/")
	if tid == "" || strings.Contains(tid, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid title identifier"})
		return
	}

	t, err := s.store.GetTitle(r.Context(), tid)
	if err != nil {
		s.serverError(w, err)
		return
	}
	if t == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "title not found"})
		return
	}

	facts, err := s.store.TitleFacts(r.Context(), tid)
	if err != nil {
		s.serverError(w, err)
		return
	}
	rankings, err := s.store.TitleRankings(r.Context(), tid)
	if err != nil {
		s.serverError(w, err)
		return
	}

	perDate := make(map[string]int64, len(facts))
	for _, f := range facts {
		perDate[f.Date] = f.Count
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"title":    t,
			"per_date": perDate,
			"rankings": rankings,
		},
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing query"})
		return
	}
	limit := intParam(r, "limit", 50)

	rows, err := s.store.SearchTitles(r.Context(), query, limit)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows, "count": len(rows)})
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.log.Error().Err(err).Msg("query failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

// periodParam parses the period query parameter, defaulting to all-time.
func periodParam(w http.ResponseWriter, r *http.Request) (store.Period, bool) {
	period := store.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = store.PeriodAll
	}
	if !period.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid period"})
		return "", false
	}
	return period, true
}

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeRawJSON(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
