package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/grade-compass/internal/models"
)

// MemoryRepository keeps analytics events in process memory.
// Used when no database is configured and in tests.
type MemoryRepository struct {
	mu          sync.RWMutex
	now         func() time.Time
	signIns     []models.SignInEvent
	visits      []models.VisitEvent
	comparisons []models.ComparisonEvent
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

// WithClock replaces the timestamp source
func (r *MemoryRepository) WithClock(now func() time.Time) *MemoryRepository {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	return r
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// HealthCheck implements health.Checker
func (r *MemoryRepository) HealthCheck(ctx context.Context) error {
	return r.Ping(ctx)
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}

// InsertSignIn stores a sign-in event
func (r *MemoryRepository) InsertSignIn(ctx context.Context, e *models.SignInEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Timestamp = r.now().UTC()
	r.signIns = append(r.signIns, *e)
	return nil
}

// InsertVisit stores a page visit event
func (r *MemoryRepository) InsertVisit(ctx context.Context, e *models.VisitEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Timestamp = r.now().UTC()
	r.visits = append(r.visits, *e)
	return nil
}

// InsertComparison stores a grade comparison event
func (r *MemoryRepository) InsertComparison(ctx context.Context, e *models.ComparisonEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Grades = append([]string(nil), e.Grades...)
	e.GradeCount = len(e.Grades)
	e.Timestamp = r.now().UTC()
	r.comparisons = append(r.comparisons, *e)
	return nil
}

// ListSignIns returns every sign-in, oldest first
func (r *MemoryRepository) ListSignIns(ctx context.Context) ([]*models.SignInEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]*models.SignInEvent, len(r.signIns))
	for i := range r.signIns {
		e := r.signIns[i]
		events[i] = &e
	}
	return events, nil
}

// CountVisits returns the number of recorded visits
func (r *MemoryRepository) CountVisits(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.visits), nil
}

// ListComparisons returns every comparison, oldest first
func (r *MemoryRepository) ListComparisons(ctx context.Context) ([]*models.ComparisonEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]*models.ComparisonEvent, len(r.comparisons))
	for i := range r.comparisons {
		events[i] = cloneComparison(r.comparisons[i])
	}
	return events, nil
}

// RecentComparisons returns up to limit comparisons, newest first
func (r *MemoryRepository) RecentComparisons(ctx context.Context, limit int) ([]*models.ComparisonEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.comparisons)
	if limit < n {
		n = limit
	}
	if n < 0 {
		n = 0
	}

	events := make([]*models.ComparisonEvent, 0, n)
	for i := len(r.comparisons) - 1; i >= 0 && len(events) < n; i-- {
		events = append(events, cloneComparison(r.comparisons[i]))
	}
	return events, nil
}

// PruneBefore deletes events of every kind recorded before cutoff
func (r *MemoryRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64

	signIns := r.signIns[:0]
	for _, e := range r.signIns {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		signIns = append(signIns, e)
	}
	r.signIns = signIns

	visits := r.visits[:0]
	for _, e := range r.visits {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		visits = append(visits, e)
	}
	r.visits = visits

	comparisons := r.comparisons[:0]
	for _, e := range r.comparisons {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		comparisons = append(comparisons, e)
	}
	r.comparisons = comparisons

	return removed, nil
}

func cloneComparison(e models.ComparisonEvent) *models.ComparisonEvent {
	e.Grades = append([]string(nil), e.Grades...)
	return &e
}
