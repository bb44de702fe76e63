package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/grade-compass/internal/catalog"
	"github.com/terra-clan/grade-compass/internal/viewmodel"
)

// Catalog handlers: the fixed grade table and scale definitions

func (s *Server) handleListGrades(w http.ResponseWriter, r *http.Request) {
	grades := s.catalog.All()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"grades": grades,
		"total":  len(grades),
	})
}

func (s *Server) handleGetGrade(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	grade, err := s.catalog.Lookup(id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "grade not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get grade")
		return
	}
	respondJSON(w, http.StatusOK, grade)
}

func (s *Server) handleListScales(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"scales": viewmodel.Scales(),
	})
}
