package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/terra-clan/grade-compass/internal/analytics"
	"github.com/terra-clan/grade-compass/internal/catalog"
	"github.com/terra-clan/grade-compass/internal/compass"
	"github.com/terra-clan/grade-compass/internal/models"
	"github.com/terra-clan/grade-compass/internal/selection"
	"github.com/terra-clan/grade-compass/internal/viewmodel"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// parseSelection reads the comma-separated g parameter.
// Absent returns nil (the default pair); present but blank returns an empty slice.
func parseSelection(values url.Values) []string {
	raw, ok := values["g"]
	if !ok {
		return nil
	}

	ids := []string{}
	for _, v := range raw {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks, healthy := s.health.Status(r.Context())
	if !healthy {
		slog.Warn("readiness check failed", "checks", checks)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(apiResponse{
			Success: false,
			Data:    map[string]interface{}{"status": "not_ready", "checks": checks},
			Error:   &apiError{Code: "not_ready", Message: "service not ready"},
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"checks": checks,
	})
}

// Session handlers

type meResponse struct {
	*models.Principal
	IsAdmin bool `json:"is_admin"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	respondJSON(w, http.StatusOK, meResponse{
		Principal: p,
		IsAdmin:   s.gate.Policy().IsAdmin(p),
	})
}

// Selection handlers

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	session, err := compass.NewSession(s.catalog, PrincipalFromContext(r.Context()), nil, parseSelection(r.URL.Query()))
	if err != nil {
		respondSelectionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, session.View().Snapshot())
}

// ToggleRequest is the body of POST /api/v1/selection/toggle.
// A missing selection means the default pair.
type ToggleRequest struct {
	Selection []string `json:"selection" validate:"omitempty,dive,required"`
	ID        string   `json:"id" validate:"required"`
}

// ToggleResponse is the result of a toggle
type ToggleResponse struct {
	Selection []string           `json:"selection"`
	View      viewmodel.Snapshot `json:"view"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := s.validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "id is required")
		return
	}

	session, err := compass.NewSession(s.catalog, PrincipalFromContext(r.Context()), s.sink, req.Selection)
	if err != nil {
		respondSelectionError(w, err)
		return
	}

	view, err := session.Toggle(req.ID)
	if err != nil {
		respondSelectionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ToggleResponse{
		Selection: session.Selection(),
		View:      view.Snapshot(),
	})
}

func respondSelectionError(w http.ResponseWriter, err error) {
	if errors.Is(err, selection.ErrInvalidArgument) || errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusBadRequest, "invalid_grade", err.Error())
		return
	}
	slog.Error("failed to build view", "error", err)
	respondError(w, http.StatusInternalServerError, "internal_error", "failed to build view")
}

// Analytics handlers

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		if errors.Is(err, analytics.ErrUnavailable) {
			slog.Error("analytics unavailable", "error", err)
			respondError(w, http.StatusServiceUnavailable, "analytics_unavailable", "analytics store unavailable")
			return
		}
		slog.Error("failed to load stats", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load stats")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
