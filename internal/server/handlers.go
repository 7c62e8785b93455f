package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/econext/gm3-gateway/internal/bus"
	"github.com/econext/gm3-gateway/internal/model"
)

// handleHealth answers GET /health. Status is "healthy" when connected with
// a non-empty parameter catalog, "degraded" when connected but the catalog
// is still empty (mid-discovery),
// "unhealthy" when disconnected. Grounded on main.py:health().
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	st := s.sup.Status()

	status := "unhealthy"
	switch {
	case st.Connected && st.ParametersCount > 0:
		status = "healthy"
	case st.Connected:
		status = "degraded"
	}

	var lastUpdate time.Time
	if !st.LastUpdate.IsZero() {
		lastUpdate = st.LastUpdate
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:              status,
		ControllerConnected: st.Connected,
		ParametersCount:     st.ParametersCount,
		LastUpdate:          lastUpdate,
	})
}

// handleParameters answers GET /parameters: a snapshot of the cache keyed
// by stored index, so a controller and panel parameter sharing a name never
// collide. Grounded on api/routes.py's index_str-keyed response.
func (s *Server) handleParameters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	all := s.cache.GetAll()
	out := make(map[string]ParameterDTO, len(all))
	for _, p := range all {
		out[strconv.Itoa(p.StoredIndex)] = ParameterDTO{
			StoredIndex: p.StoredIndex,
			Name:        p.Name,
			Unit:        p.Unit,
			Value:       p.Value,
			UpdatedAt:   p.UpdatedAt,
		}
	}
	s.writeJSON(w, http.StatusOK, ParametersResponse{Parameters: out, Count: len(out)})
}

// handleParameterPath dispatches POST /parameters/{name} (write) and
// POST /parameters/{name}/refresh (on-demand re-read) to their handlers.
func (s *Server) handleParameterPath(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/refresh") {
		s.handleRefreshParameter(w, r)
		return
	}
	s.handleWriteParameter(w, r)
}

// handleRefreshParameter answers POST /parameters/{name}/refresh: an
// on-demand re-read of one parameter outside the regular poll cycle.
// Grounded on handler.py:read_params, wired via bus.Handler.RefreshParam.
func (s *Server) handleRefreshParameter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/parameters/"), "/refresh")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	updated, err := s.handler.RefreshParam(r.Context(), name)
	if err != nil {
		var verr *bus.ValidationError
		if errors.As(err, &verr) {
			s.writeJSON(w, http.StatusNotFound, APIError{Error: verr.Error()})
			return
		}
		s.writeJSON(w, http.StatusServiceUnavailable, APIError{Error: err.Error()})
		return
	}

	dto := ParameterDTO{
		StoredIndex: updated.StoredIndex,
		Name:        updated.Name,
		Unit:        updated.Unit,
		Value:       updated.Value,
		UpdatedAt:   updated.UpdatedAt,
	}
	s.writeJSON(w, http.StatusOK, dto)
	s.hub.Broadcast(WSMessage{Type: "parameter_updated", Data: dto})
}

// handleWriteParameter answers POST /parameters/{name}. Grounded on
// spec.md §6's write-endpoint contract: 404 if the parameter is not in the
// cache, 400 on a range/type error, 503 if the write could not be
// acknowledged.
func (s *Server) handleWriteParameter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/parameters/")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	old, ok := s.cache.GetByName(name)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, APIError{Error: fmt.Sprintf("parameter not found: %s", name)})
		return
	}

	var req WriteParamRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, APIError{Error: "invalid request body"})
		return
	}

	if err := s.handler.WriteParam(r.Context(), name, req.Value); err != nil {
		var verr *bus.ValidationError
		if errors.As(err, &verr) {
			s.writeJSON(w, http.StatusBadRequest, APIError{Error: verr.Error()})
			return
		}
		s.writeJSON(w, http.StatusServiceUnavailable, APIError{Error: err.Error()})
		return
	}

	updated, _ := s.cache.GetByName(name)
	s.writeJSON(w, http.StatusOK, WriteParamResponse{
		Name:     name,
		OldValue: old.Value,
		NewValue: updated.Value,
	})

	s.hub.Broadcast(WSMessage{Type: "parameter_updated", Data: ParameterDTO{
		StoredIndex: updated.StoredIndex,
		Name:        updated.Name,
		Unit:        updated.Unit,
		Value:       updated.Value,
		UpdatedAt:   updated.UpdatedAt,
	}})
}

// handleAlarms answers GET /alarms: the current alarm list, newest first.
func (s *Server) handleAlarms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	alarms := s.handler.Alarms()
	out := make([]AlarmDTO, 0, len(alarms))
	for _, a := range alarms {
		dto := AlarmDTO{Code: a.Code, FromDate: formatAlarmDate(a.FromDate)}
		if a.ToDate != nil {
			to := formatAlarmDate(*a.ToDate)
			dto.ToDate = &to
		}
		out = append(out, dto)
	}
	s.writeJSON(w, http.StatusOK, AlarmsResponse{Alarms: out, Count: len(out)})
}

func formatAlarmDate(d model.AlarmDate) string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second)
}
