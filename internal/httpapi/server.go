package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/servicecheck/internal/domain"
	apimw "github.com/hamed0406/servicecheck/internal/httpapi/middleware"
	"github.com/hamed0406/servicecheck/internal/repo"
)

// DeepChecker runs an uncommitted, handshake-enabled check of one target.
type DeepChecker interface {
	DeepCheck(ctx context.Context, t domain.Target) (domain.CheckResult, error)
}

// Monitor is the runtime switch for periodic checking.
type Monitor interface {
	Enabled() bool
	SetEnabled(on bool)
	TriggerNow() bool
	Running() bool
}

type Server struct {
	Logger  *zap.Logger
	Store   repo.StatusStore
	Checker DeepChecker
	Monitor Monitor
	Stream  http.Handler
}

func NewServer(l *zap.Logger, store repo.StatusStore, checker DeepChecker, monitor Monitor, stream http.Handler) *Server {
	return &Server{Logger: l, Store: store, Checker: checker, Monitor: monitor, Stream: stream}
}

// Router wires every endpoint. An empty allowedOrigins allows any origin.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, rpm, burst int) http.Handler {
	r := chi.NewRouter()
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(rpm, burst))
		r.Use(apimw.RequireAny(keys))

		r.Get("/targets", s.handleListTargets)
		r.Get("/targets/{name}", s.handleGetTarget)
		r.Get("/cycles/latest", s.handleLatestCycle)
		r.Get("/monitoring", s.handleGetMonitoring)
		if s.Stream != nil {
			r.Get("/stream", s.Stream.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAdmin(keys))
			r.Put("/targets/{name}/selected", s.handleSetSelected)
			r.Put("/areas/{name}/selected", s.handleSetAreaSelected)
			r.Post("/targets/{name}/check", s.handleDeepCheck)
			r.Put("/monitoring", s.handleSetMonitoring)
			r.Post("/monitoring/trigger", s.handleTrigger)
		})
	})

	return r
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Store.List(r.Context())
	if err != nil {
		s.Logger.Warn("list_targets_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	out := make([]targetView, 0, len(rows))
	for _, row := range rows {
		out = append(out, newTargetView(row))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	row, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newTargetView(*row))
}

type selectedPayload struct {
	Selected *bool `json:"selected"`
}

func (s *Server) handleSetSelected(w http.ResponseWriter, r *http.Request) {
	var p selectedPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Selected == nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	name := chi.URLParam(r, "name")
	if err := s.Store.SetSelected(r.Context(), name, *p.Selected); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown target")
			return
		}
		writeError(w, http.StatusInternalServerError, "update error")
		return
	}
	s.Logger.Info("target_selection_changed", zap.String("target", name), zap.Bool("selected", *p.Selected))

	row, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newTargetView(*row))
}

type areaSelectionView struct {
	Area     string `json:"area"`
	Selected bool   `json:"selected"`
	Targets  int    `json:"targets"`
}

func (s *Server) handleSetAreaSelected(w http.ResponseWriter, r *http.Request) {
	var p selectedPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Selected == nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	area := chi.URLParam(r, "name")
	n, err := s.Store.SetAreaSelected(r.Context(), area, *p.Selected)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown area")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "update error")
		return
	}
	s.Logger.Info("area_selection_changed", zap.String("area", area), zap.Bool("selected", *p.Selected), zap.Int("targets", n))
	writeJSON(w, http.StatusOK, areaSelectionView{Area: area, Selected: *p.Selected, Targets: n})
}

func (s *Server) handleDeepCheck(w http.ResponseWriter, r *http.Request) {
	if s.Checker == nil {
		writeError(w, http.StatusServiceUnavailable, "checks unavailable")
		return
	}
	row, ok := s.lookup(w, r)
	if !ok {
		return
	}
	res, err := s.Checker.DeepCheck(r.Context(), row.Target)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.Logger.Info("deep_check",
		zap.String("target", row.Target.Name),
		zap.String("status", string(res.Status)),
		zap.String("diagnostic", res.Probe.Diagnostic),
	)
	writeJSON(w, http.StatusOK, newResultView(res))
}

func (s *Server) handleLatestCycle(w http.ResponseWriter, r *http.Request) {
	c, err := s.Store.LatestCycle(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cycle error")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "no cycle yet")
		return
	}
	writeJSON(w, http.StatusOK, newCycleView(c))
}

type monitoringPayload struct {
	Enabled *bool `json:"enabled"`
}

type monitoringView struct {
	Enabled bool `json:"enabled"`
	Running bool `json:"running"`
}

func (s *Server) handleGetMonitoring(w http.ResponseWriter, r *http.Request) {
	if s.Monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "monitoring unavailable")
		return
	}
	writeJSON(w, http.StatusOK, monitoringView{Enabled: s.Monitor.Enabled(), Running: s.Monitor.Running()})
}

func (s *Server) handleSetMonitoring(w http.ResponseWriter, r *http.Request) {
	if s.Monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "monitoring unavailable")
		return
	}
	var p monitoringPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Enabled == nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	s.Monitor.SetEnabled(*p.Enabled)
	writeJSON(w, http.StatusOK, monitoringView{Enabled: s.Monitor.Enabled(), Running: s.Monitor.Running()})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if s.Monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "monitoring unavailable")
		return
	}
	queued := s.Monitor.TriggerNow()
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*repo.TargetState, bool) {
	row, err := s.Store.Get(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown target")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup error")
		return nil, false
	}
	return row, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
