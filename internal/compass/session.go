// Package compass ties one user's grade selection to its derived view and to
// the analytics sink.
package compass

import (
	"github.com/terra-clan/grade-compass/internal/analytics"
	"github.com/terra-clan/grade-compass/internal/catalog"
	"github.com/terra-clan/grade-compass/internal/models"
	"github.com/terra-clan/grade-compass/internal/selection"
	"github.com/terra-clan/grade-compass/internal/viewmodel"
)

// Session is one principal's interactive comparison.
// It has a single writer and is not safe for concurrent use.
type Session struct {
	catalog   *catalog.Catalog
	principal *models.Principal
	state     *selection.State
	view      *viewmodel.View
}

// NewSession starts a session. With no ids the default pair is selected;
// a non-nil empty ids starts with nothing selected.
// Every later toggle that leaves grades selected is reported to sink.
func NewSession(cat *catalog.Catalog, principal *models.Principal, sink analytics.Sink, ids []string) (*Session, error) {
	var state *selection.State
	if ids == nil {
		state = selection.New(cat)
	} else {
		var err error
		state, err = selection.FromIDs(cat, ids)
		if err != nil {
			return nil, err
		}
	}

	s := &Session{
		catalog:   cat,
		principal: principal,
		state:     state,
	}

	if sink != nil {
		state.Observe(func(c selection.Change) {
			if len(c.Selection) > 0 {
				sink.TrackComparison(principal, c.Selection)
			}
		})
	}

	if err := s.rebuild(); err != nil {
		return nil, err
	}
	return s, nil
}

// Toggle flips id and returns the recomputed view.
// An unknown id leaves the session unchanged.
func (s *Session) Toggle(id string) (*viewmodel.View, error) {
	if err := s.state.Toggle(id); err != nil {
		return nil, err
	}
	if err := s.rebuild(); err != nil {
		return nil, err
	}
	return s.view, nil
}

// View returns the view of the current selection
func (s *Session) View() *viewmodel.View {
	return s.view
}

// Selection returns the selected ids in rank order
func (s *Session) Selection() []string {
	return s.state.Current()
}

// Principal returns the session owner
func (s *Session) Principal() *models.Principal {
	return s.principal
}

func (s *Session) rebuild() error {
	view, err := viewmodel.Build(s.catalog, s.state.Current())
	if err != nil {
		return err
	}
	s.view = view
	return nil
}
