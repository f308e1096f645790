// Package api serves the dashboard JSON API under /api/v1 together with the
// event stream, health and metrics endpoints and the embedded page.
package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"partsdash/internal/config"
	"partsdash/internal/dashboard"
	"partsdash/internal/dealer"
	"partsdash/internal/prediction"
	"partsdash/internal/supervisor"
)

const (
	// APIPrefix is the base path for all API endpoints.
	APIPrefix = "/api/v1"

	// Cache duration for overview responses (prevents refresh storms).
	overviewCacheDuration   = 2 * time.Second
	maxOverviewCacheEntries = 256

	maxBodyBytes = 64 << 10
)

var errNotFile = errors.New("not a file")

// Deps are the components the server routes to. Bus, Metrics, Health and
// Assets may be nil; their endpoints then answer 503.
type Deps struct {
	Config       config.Config
	Orchestrator *prediction.Orchestrator
	Bulk         *prediction.BulkFetcher
	Dashboard    *dashboard.Service
	Dealer       *dealer.Selector
	Bus          *supervisor.EventBus
	Metrics      *supervisor.Metrics
	Health       *supervisor.HealthChecker
	Assets       fs.FS
	Logger       *slog.Logger
}

// Server handles dashboard API requests.
type Server struct {
	cfg     config.Config
	orch    *prediction.Orchestrator
	bulk    *prediction.BulkFetcher
	dash    *dashboard.Service
	dealer  *dealer.Selector
	bus     *supervisor.EventBus
	metrics *supervisor.Metrics
	health  *supervisor.HealthChecker
	assets  fs.FS
	logger  *slog.Logger

	// Overview cache to prevent refresh storms
	overviewCache   map[string]*cachedOverview
	overviewCacheMu sync.RWMutex
}

type cachedOverview struct {
	data      dashboard.Overview
	expiresAt time.Time
}

// NewServer creates a new API server.
func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Server{
		cfg:           d.Config,
		orch:          d.Orchestrator,
		bulk:          d.Bulk,
		dash:          d.Dashboard,
		dealer:        d.Dealer,
		bus:           d.Bus,
		metrics:       d.Metrics,
		health:        d.Health,
		assets:        d.Assets,
		logger:        d.Logger,
		overviewCache: make(map[string]*cachedOverview),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		s.cors,
	)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Get("/dealer", s.handleGetDealer)
		r.Put("/dealer", s.handlePutDealer)

		r.Post("/predictions", s.handleSubmitPrediction)
		r.Get("/predictions", s.handleListPredictions)
		r.Delete("/predictions", s.handleClearPredictions)
		r.Get("/predictions/export", s.handleExportPredictions)

		r.Post("/top100", s.handleFetchTop100)
		r.Get("/top100", s.handleGetTop100)
		r.Get("/top100/summary", s.handleTop100Summary)
		r.Get("/top100/export", s.handleExportTop100)

		r.Get("/overview", s.handleOverview)
		r.Get("/part-lists", s.handlePartLists)
		r.Get("/part-lists/{kind}/export", s.handleExportPartList)

		r.Get("/config", s.handleConfig)
	})

	r.Get("/events", s.handleSSEEvents)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/healthz/backend", s.handleHealthzBackend)
	r.Get("/*", s.handlePage)

	return r
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.CORSAllowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.cfg.CORSAllowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Helper functions

func (s *Server) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// parseInt returns def for a missing or malformed value.
func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
