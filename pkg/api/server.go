// Package api exposes the orchestrator over HTTP: a REST surface for
// operators, a WebSocket feed for dashboards, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jihwankim/aegis/pkg/logging"
	"github.com/jihwankim/aegis/pkg/model"
	"github.com/jihwankim/aegis/pkg/orchestrator"
)

// Server serves the orchestrator HTTP API
type Server struct {
	orch   *orchestrator.Orchestrator
	logger *logging.Logger
	hub    *Hub
	router chi.Router
}

// NewServer creates the API server around a running orchestrator
func NewServer(orch *orchestrator.Orchestrator, logger *logging.Logger) *Server {
	s := &Server{
		orch:   orch,
		logger: logger,
		hub:    NewHub(logger),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/fleet", s.handleFleet)
	r.Post("/emergencies", s.handleCreateEmergency)
	r.Get("/emergencies", s.handleListEmergencies)
	r.Get("/emergencies/{emergencyID}", s.handleGetEmergency)
	r.Post("/emergencies/{emergencyID}/resolve", s.handleResolveEmergency)
	r.Handle("/metrics", promhttp.HandlerFor(orch.Metrics().Registry(), promhttp.HandlerOpts{}))
	r.Get("/ws", s.hub.HandleWS)

	s.router = r
	return s
}

// Handler returns the HTTP handler, used directly in tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves the API until the context is cancelled. It also forwards
// orchestrator events to WebSocket clients.
func (s *Server) Run(ctx context.Context, addr string) error {
	go s.hub.Forward(ctx, s.orch.Events())

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type emergencyCreateRequest struct {
	EmergencyType string               `json:"emergency_type"`
	Severity      int                  `json:"severity"`
	Latitude      float64              `json:"latitude"`
	Longitude     float64              `json:"longitude"`
	Address       string               `json:"address"`
	Description   string               `json:"description"`
	UnitsRequired *model.UnitsRequired `json:"units_required"`
	ReportedBy    string               `json:"reported_by"`
}

type emergencyResponse struct {
	model.Emergency
	DispatchID       string   `json:"dispatch_id,omitempty"`
	AssignedVehicles []string `json:"assigned_vehicles"`
}

type resolveResponse struct {
	EmergencyID      string   `json:"emergency_id"`
	Status           string   `json:"status"`
	ReleasedVehicles []string `json:"released_vehicles"`
}

type fleetResponse struct {
	Summary  *orchestrator.FleetSummary    `json:"summary"`
	Vehicles []model.VehicleStatusSnapshot `json:"vehicles"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	summary, err := s.orch.Summary(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	vehicles, err := s.orch.Snapshots(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, fleetResponse{Summary: summary, Vehicles: vehicles})
}

func (s *Server) handleCreateEmergency(w http.ResponseWriter, r *http.Request) {
	var req emergencyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	emergencyType, ok := model.ParseEmergencyType(req.EmergencyType)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown emergency_type: "+req.EmergencyType)
		return
	}
	if req.Severity == 0 {
		req.Severity = 3
	}
	if req.ReportedBy == "" {
		req.ReportedBy = "operator"
	}

	location := model.GeoLocation{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Timestamp: time.Now().UTC(),
	}
	var units model.UnitsRequired
	if req.UnitsRequired != nil {
		units = *req.UnitsRequired
	}

	emergency := model.NewEmergency(emergencyType, req.Severity, location, units)
	emergency.Address = req.Address
	emergency.Description = req.Description
	emergency.ReportedBy = req.ReportedBy

	dispatch, err := s.orch.ProcessEmergency(r.Context(), emergency)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := emergencyResponse{
		Emergency:        *emergency,
		DispatchID:       dispatch.DispatchID,
		AssignedVehicles: dispatch.VehicleIDs(),
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListEmergencies(w http.ResponseWriter, r *http.Request) {
	emergencies, err := s.orch.Emergencies(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	statusFilter := r.URL.Query().Get("status")
	out := make([]emergencyResponse, 0, len(emergencies))
	for _, e := range emergencies {
		if statusFilter != "" && string(e.Status) != statusFilter {
			continue
		}
		resp := emergencyResponse{Emergency: e, AssignedVehicles: []string{}}
		if d, err := s.orch.Dispatch(r.Context(), e.EmergencyID); err == nil {
			resp.DispatchID = d.DispatchID
			resp.AssignedVehicles = d.VehicleIDs()
		}
		out = append(out, resp)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetEmergency(w http.ResponseWriter, r *http.Request) {
	emergencyID := chi.URLParam(r, "emergencyID")
	e, err := s.orch.Emergency(r.Context(), emergencyID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmergencyNotFound) {
			s.writeError(w, http.StatusNotFound, "Emergency not found")
			return
		}
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	resp := emergencyResponse{Emergency: *e, AssignedVehicles: []string{}}
	if d, err := s.orch.Dispatch(r.Context(), emergencyID); err == nil {
		resp.DispatchID = d.DispatchID
		resp.AssignedVehicles = d.VehicleIDs()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolveEmergency(w http.ResponseWriter, r *http.Request) {
	emergencyID := chi.URLParam(r, "emergencyID")
	released, err := s.orch.ResolveEmergency(r.Context(), emergencyID)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrEmergencyNotFound):
			s.writeError(w, http.StatusNotFound, "Emergency not found")
		case errors.Is(err, orchestrator.ErrEmergencyResolved):
			s.writeError(w, http.StatusConflict, "Emergency already resolved")
		default:
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
		}
		return
	}

	s.writeJSON(w, http.StatusOK, resolveResponse{
		EmergencyID:      emergencyID,
		Status:           string(model.EmergencyResolved),
		ReleasedVehicles: released,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}
