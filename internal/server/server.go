package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hazz-dev/statusroll/internal/checker"
	"github.com/hazz-dev/statusroll/internal/config"
	"github.com/hazz-dev/statusroll/internal/engine"
	"github.com/hazz-dev/statusroll/internal/history"
	"github.com/hazz-dev/statusroll/internal/probe"
)

const defaultHistoryDays = 30

// Source gives the server read access to the current probes and their history.
// *engine.Engine implements it.
type Source interface {
	Config() *config.Config
	Probes() ([]probe.Spec, error)
	Store() history.Store
}

// Server holds the chi router and its dependencies.
type Server struct {
	src    Source
	router chi.Router
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	lastRun *runInfo
}

// New creates a new Server and registers all routes.
func New(src Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		src:    src,
		router: chi.NewRouter(),
		logger: logger,
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

// SetClock replaces the clock used to decide which day is today.
func (s *Server) SetClock(now func() time.Time) {
	s.now = now
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

// RecordRun remembers the outcome of the latest run for /api/health.
func (s *Server) RecordRun(rep engine.Report, err error) {
	info := &runInfo{
		RunID:     rep.RunID,
		Date:      rep.Date,
		Timestamp: rep.Timestamp,
		Up:        rep.Up,
		Degraded:  rep.Degraded,
		Down:      rep.Down,
	}
	if err != nil {
		info.Error = err.Error()
	}
	s.mu.Lock()
	s.lastRun = info
	s.mu.Unlock()
}

func (s *Server) registerRoutes() {
	origins := s.src.Config().Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/probes", s.handleListProbes)
	r.Get("/api/probes/{id}/history", s.handleProbeHistory)
	r.Get("/api/days", s.handleListDays)
	r.Get("/api/days/{date}", s.handleGetDay)
	r.Get("/metrics", s.handleMetrics)
}

// --- Response helpers ---

type envelope struct {
	Data  any    `json:"data"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

// --- Handlers ---

type runInfo struct {
	RunID     string    `json:"runId"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
	Up        int       `json:"up"`
	Degraded  int       `json:"degraded"`
	Down      int       `json:"down"`
	Error     string    `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	last := s.lastRun
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(struct {
		Status  string   `json:"status"`
		LastRun *runInfo `json:"lastRun"`
	}{"ok", last})
}

type probeDetail struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Group      string              `json:"group,omitempty"`
	Kind       probe.Kind          `json:"kind"`
	Status     string              `json:"status"`
	StatusCode int                 `json:"statusCode,omitempty"`
	LastCheck  *time.Time          `json:"lastCheck"`
	Today      *history.DaySummary `json:"today"`
}

func (s *Server) handleListProbes(w http.ResponseWriter, r *http.Request) {
	specs, err := s.src.Probes()
	if err != nil {
		s.logger.Error("resolving probes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	today, err := s.loadDay(r, history.DateKey(s.now()))
	if err != nil {
		s.logger.Error("loading today's record", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	details := make([]probeDetail, 0, len(specs))
	for _, spec := range specs {
		d := probeDetail{
			ID:     spec.ID,
			Name:   spec.Name,
			Group:  spec.Group,
			Kind:   spec.Kind,
			Status: "unknown",
		}
		if today != nil {
			if sum, ok := today.Summary[spec.ID]; ok {
				d.Today = &sum
			}
			if res, ts, ok := latestResult(today, spec.ID); ok {
				d.Status = string(res.Status)
				d.StatusCode = res.StatusCode
				d.LastCheck = &ts
			}
		}
		details = append(details, d)
	}

	writeJSON(w, http.StatusOK, details)
}

type dayPoint struct {
	Date    string             `json:"date"`
	Summary history.DaySummary `json:"summary"`
}

func (s *Server) handleProbeHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	specs, err := s.src.Probes()
	if err != nil {
		s.logger.Error("resolving probes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !hasProbe(specs, id) {
		writeError(w, http.StatusNotFound, "probe not found")
		return
	}

	maxDays := s.src.Config().Storage.RetentionDays
	if maxDays <= 0 {
		maxDays = config.DefaultRetentionDays
	}
	days := defaultHistoryDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid days parameter")
			return
		}
		days = n
	}
	days = min(days, maxDays+1)

	today := s.now().UTC()
	points := make([]dayPoint, 0, days)
	// Oldest first.
	for i := days - 1; i >= 0; i-- {
		date := history.DateKey(today.AddDate(0, 0, -i))
		rec, err := s.loadDay(r, date)
		if err != nil {
			s.logger.Error("loading daily record", "date", date, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if rec == nil {
			continue
		}
		if sum, ok := rec.Summary[id]; ok {
			points = append(points, dayPoint{Date: date, Summary: sum})
		}
	}

	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleListDays(w http.ResponseWriter, r *http.Request) {
	dates, err := s.src.Store().Dates(r.Context())
	if err != nil {
		s.logger.Error("listing dates", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, http.StatusOK, dates)
}

func (s *Server) handleGetDay(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse(history.DateLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	rec, err := s.src.Store().Load(r.Context(), date)
	switch {
	case errors.Is(err, history.ErrNotFound):
		writeError(w, http.StatusNotFound, "no record for date")
		return
	case errors.Is(err, history.ErrCorrupt):
		s.logger.Warn("daily record unreadable", "date", date, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "record unreadable")
		return
	case err != nil:
		s.logger.Error("loading daily record", "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// loadDay returns nil without error when the day has no readable record.
func (s *Server) loadDay(r *http.Request, date string) (*history.DailyRecord, error) {
	rec, err := s.src.Store().Load(r.Context(), date)
	switch {
	case errors.Is(err, history.ErrNotFound):
		return nil, nil
	case errors.Is(err, history.ErrCorrupt):
		s.logger.Warn("skipping unreadable daily record", "date", date, "error", err)
		return nil, nil
	case err != nil:
		return nil, err
	}
	return rec, nil
}

// latestResult finds the most recent result for id in rec.
func latestResult(rec *history.DailyRecord, id string) (checker.CheckResult, time.Time, bool) {
	for i := len(rec.Entries) - 1; i >= 0; i-- {
		if res, ok := rec.Entries[i].Results[id]; ok {
			return res, rec.Entries[i].Timestamp, true
		}
	}
	return checker.CheckResult{}, time.Time{}, false
}

func hasProbe(specs []probe.Spec, id string) bool {
	for _, s := range specs {
		if s.ID == id {
			return true
		}
	}
	return false
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
