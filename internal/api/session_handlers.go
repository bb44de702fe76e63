package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/terra-clan/grade-compass/internal/analytics"
	"github.com/terra-clan/grade-compass/internal/catalog"
	"github.com/terra-clan/grade-compass/internal/compass"
	"github.com/terra-clan/grade-compass/internal/models"
	"github.com/terra-clan/grade-compass/internal/selection"
	"github.com/terra-clan/grade-compass/internal/viewmodel"
)

// --- Compass pages (domain-gated) ---

// compassView is the data of the compass-body fragment
type compassView struct {
	Grades         []*catalog.Grade
	Selected       map[string]bool
	SelectionParam string
	View           viewmodel.Snapshot
}

func (s *Server) compassView(session *compass.Session) compassView {
	ids := session.Selection()
	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}

	return compassView{
		Grades:         s.catalog.All(),
		Selected:       selected,
		SelectionParam: strings.Join(ids, ","),
		View:           session.View().Snapshot(),
	}
}

// handleCompassPage renders the selection carried in ?g= and records a visit
func (s *Server) handleCompassPage(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())

	session, err := compass.NewSession(s.catalog, p, s.sink, parseSelection(r.URL.Query()))
	if err != nil {
		s.renderSelectionError(w, r, err)
		return
	}

	s.sink.TrackVisit(p)
	s.pages.render(w, http.StatusOK, pageCompass, s.page(r, "Compare", s.compassView(session)))
}

// handleCompassToggle applies the posted toggle to the posted selection
func (s *Server) handleCompassToggle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}

	ids := parseSelection(r.PostForm)
	if ids == nil {
		ids = []string{}
	}

	session, err := compass.NewSession(s.catalog, PrincipalFromContext(r.Context()), s.sink, ids)
	if err != nil {
		s.renderSelectionError(w, r, err)
		return
	}

	if id := r.PostForm.Get("toggle"); id != "" {
		if _, err := session.Toggle(id); err != nil {
			s.renderSelectionError(w, r, err)
			return
		}
	}

	s.pages.render(w, http.StatusOK, pageCompass, s.page(r, "Compare", s.compassView(session)))
}

func (s *Server) renderSelectionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, selection.ErrInvalidArgument) || errors.Is(err, catalog.ErrNotFound) {
		s.renderError(w, r, http.StatusBadRequest, "Unknown grade level.")
		return
	}
	slog.Error("failed to build compass view", "error", err)
	s.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
}

// --- Analytics page (admin-gated) ---

type analyticsView struct {
	Stats  *models.Stats
	Notice string
}

func (s *Server) handleAnalyticsPage(w http.ResponseWriter, r *http.Request) {
	view := analyticsView{}

	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		slog.Error("failed to load analytics", "error", err)
		view.Stats = &models.Stats{}
		view.Notice = "Analytics are temporarily unavailable. Showing empty results."
		if !errors.Is(err, analytics.ErrUnavailable) {
			view.Notice = "Analytics could not be loaded. Showing empty results."
		}
	} else {
		view.Stats = stats
	}

	s.pages.render(w, http.StatusOK, pageAnalytics, s.page(r, "Analytics", view))
}
