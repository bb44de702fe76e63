// Package selection tracks which grades a session has chosen to compare.
package selection

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/terra-clan/grade-compass/internal/catalog"
)

// ErrInvalidArgument is returned when an id is not a catalog grade
var ErrInvalidArgument = errors.New("invalid grade id")

// DefaultIDs are preselected when a session starts
var DefaultIDs = []string{"G6", "G7"}

// Change describes one toggle
type Change struct {
	ID        string
	Added     bool
	Selection []string // canonical order, after the toggle
}

// Observer is notified synchronously after every successful toggle
type Observer func(Change)

// State is the set of selected grade ids of one session.
// It has a single writer and is not safe for concurrent use.
type State struct {
	catalog   *catalog.Catalog
	selected  map[string]struct{}
	observers []Observer
}

// New returns a state with the default pair selected
func New(cat *catalog.Catalog) *State {
	s := &State{
		catalog:  cat,
		selected: make(map[string]struct{}, cat.Len()),
	}
	for _, id := range DefaultIDs {
		if cat.Contains(id) {
			s.selected[id] = struct{}{}
		}
	}
	return s
}

// FromIDs returns a state with exactly the given ids selected.
// Duplicates collapse; an unknown id fails the whole call.
func FromIDs(cat *catalog.Catalog, ids []string) (*State, error) {
	s := &State{
		catalog:  cat,
		selected: make(map[string]struct{}, len(ids)),
	}
	for _, id := range ids {
		if !cat.Contains(id) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidArgument, id)
		}
		s.selected[id] = struct{}{}
	}
	return s, nil
}

// Observe registers fn for subsequent toggles
func (s *State) Observe(fn Observer) {
	s.observers = append(s.observers, fn)
}

// Toggle adds id when absent and removes it when present
func (s *State) Toggle(id string) error {
	if !s.catalog.Contains(id) {
		return fmt.Errorf("%w: %q", ErrInvalidArgument, id)
	}

	_, present := s.selected[id]
	if present {
		delete(s.selected, id)
	} else {
		s.selected[id] = struct{}{}
	}

	s.notify(Change{ID: id, Added: !present, Selection: s.Current()})
	return nil
}

// Current returns the selected ids in ascending rank order
func (s *State) Current() []string {
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	SortByRank(ids)
	return ids
}

// Contains reports whether id is selected
func (s *State) Contains(id string) bool {
	_, ok := s.selected[id]
	return ok
}

// Len returns the number of selected ids
func (s *State) Len() int {
	return len(s.selected)
}

// Empty reports whether nothing is selected
func (s *State) Empty() bool {
	return len(s.selected) == 0
}

func (s *State) notify(change Change) {
	for _, fn := range s.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("selection observer panicked", "panic", r, "grade", change.ID)
				}
			}()
			fn(change)
		}()
	}
}

// SortByRank orders grade ids by their embedded numeric rank.
// Ids without a rank sort last, by string.
func SortByRank(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		ri, okI := catalog.Rank(ids[i])
		rj, okJ := catalog.Rank(ids[j])
		switch {
		case okI && okJ:
			if ri != rj {
				return ri < rj
			}
			return ids[i] < ids[j]
		case okI:
			return true
		case okJ:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}
