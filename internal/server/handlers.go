package server

import (
	"encoding/json"
	"fmt"
	"humidcast/internal/models"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 365
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to write JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to the Humidity Prediction API. Use /predict_all to get predictions.",
	})
}

// handleHealth returns the server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handlePredictAll returns every sensor's latest forecast, or its error
// string. Before the first publish the mapping is empty.
func (s *Server) handlePredictAll(w http.ResponseWriter, r *http.Request) {
	snap, err := s.readSnapshot()
	if err != nil {
		s.logger.Error("prediction cache unreadable", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snap.Predictions())
}

// readSnapshot turns a failing cache read into an error.
func (s *Server) readSnapshot() (snap models.Snapshot, err error) {
	if s.cache == nil {
		return snap, fmt.Errorf("prediction cache not available")
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("prediction cache read failed: %v", p)
		}
	}()
	return s.cache.ReadAll(), nil
}

// handlePrediction returns the detailed result for one sensor
func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	sensorID := chi.URLParam(r, "sensorID")
	result, ok := s.cache.Get(sensorID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no prediction for sensor "+sensorID)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleHistory returns stored past results for one sensor
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "forecast history is not enabled")
		return
	}

	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 1 || l > maxHistoryLimit {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit))
			return
		}
		limit = l
	}

	sensorID := chi.URLParam(r, "sensorID")
	results, err := s.history.SensorHistory(r.Context(), sensorID, limit)
	if err != nil {
		s.logger.Error("failed to read forecast history", "sensor", sensorID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read forecast history")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"sensor_id": sensorID,
		"count":     len(results),
		"history":   results,
	})
}

// handleStatus reports the refresh loop's state and the last cycle
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.readSnapshot()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ok, failed := snap.Counts()

	resp := map[string]any{
		"cache": map[string]any{
			"cycle_id":     snap.CycleID,
			"generated_at": snap.GeneratedAt,
			"sensors":      len(snap.Results),
			"succeeded":    ok,
			"failed":       failed,
		},
	}
	if s.status != nil {
		resp["scheduler"] = s.status.State()
	}
	s.writeJSON(w, http.StatusOK, resp)
}
