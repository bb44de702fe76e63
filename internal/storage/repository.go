package storage

import (
	"context"
	"errors"
	"time"

	"github.com/terra-clan/grade-compass/internal/models"
)

// ErrUnavailable wraps failures of the backing store
var ErrUnavailable = errors.New("analytics store unavailable")

// Repository defines the interface for analytics event persistence.
// Insert methods assign the event timestamp (and the id when empty).
type Repository interface {
	// Writes
	InsertSignIn(ctx context.Context, e *models.SignInEvent) error
	InsertVisit(ctx context.Context, e *models.VisitEvent) error
	InsertComparison(ctx context.Context, e *models.ComparisonEvent) error

	// Reads
	ListSignIns(ctx context.Context) ([]*models.SignInEvent, error)
	CountVisits(ctx context.Context) (int, error)
	// ListComparisons returns every comparison, oldest first
	ListComparisons(ctx context.Context) ([]*models.ComparisonEvent, error)
	// RecentComparisons returns up to limit comparisons, newest first
	RecentComparisons(ctx context.Context, limit int) ([]*models.ComparisonEvent, error)

	// Retention
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
