package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/grade-compass/internal/models"
	"github.com/terra-clan/grade-compass/internal/storage"
)

const (
	// TopLimit is the number of most compared grade sets reported
	TopLimit = 10
	// RecentLimit is the number of latest comparisons reported
	RecentLimit = 10
)

// ErrUnavailable is returned when the event store cannot be read
var ErrUnavailable = errors.New("analytics unavailable")

// StatsCache stores the last computed Stats
type StatsCache interface {
	// Get returns ok=false on a miss
	Get(ctx context.Context) (stats *models.Stats, ok bool, err error)
	Set(ctx context.Context, stats *models.Stats) error
}

// Service is the analytics read surface
type Service struct {
	repo  storage.Repository
	cache StatsCache
	now   func() time.Time
}

// NewService creates a read surface over repo; cache may be nil
func NewService(repo storage.Repository, cache StatsCache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		now:   time.Now,
	}
}

// Stats returns the dashboard summary, from cache when available
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx)
		if err != nil {
			slog.Warn("stats cache read failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	var (
		signIns     []*models.SignInEvent
		visits      int
		comparisons []*models.ComparisonEvent
		recent      []*models.ComparisonEvent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		signIns, err = s.repo.ListSignIns(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		visits, err = s.repo.CountVisits(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		comparisons, err = s.repo.ListComparisons(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.repo.RecentComparisons(gctx, RecentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	stats := Summarize(signIns, visits, comparisons, recent)
	stats.GeneratedAt = s.now().UTC()

	if s.cache != nil {
		if err := s.cache.Set(ctx, stats); err != nil {
			slog.Warn("stats cache write failed", "error", err)
		}
	}

	return stats, nil
}

// Summarize aggregates raw events into Stats.
// comparisons must be oldest first; recent may be in any order.
func Summarize(signIns []*models.SignInEvent, visits int, comparisons, recent []*models.ComparisonEvent) *models.Stats {
	users := make(map[string]struct{}, len(signIns))
	for _, e := range signIns {
		users[e.UserID] = struct{}{}
	}

	return &models.Stats{
		TotalSignIns:     len(signIns),
		UniqueUsers:      len(users),
		TotalVisits:      visits,
		TotalComparisons: len(comparisons),
		TopCombinations:  TopCombinations(comparisons, TopLimit),
		Recent:           latest(recent, RecentLimit),
	}
}

// TopCombinations counts identical grade sets and returns the limit most
// frequent. Equal counts keep the order in which each set first appeared.
func TopCombinations(comparisons []*models.ComparisonEvent, limit int) []models.ComboCount {
	index := make(map[string]int)
	combos := make([]models.ComboCount, 0)

	for _, e := range comparisons {
		key := e.Combination()
		if i, ok := index[key]; ok {
			combos[i].Count++
			continue
		}
		index[key] = len(combos)
		combos = append(combos, models.ComboCount{
			Grades: append([]string(nil), e.Grades...),
			Count:  1,
		})
	}

	sort.SliceStable(combos, func(i, j int) bool {
		return combos[i].Count > combos[j].Count
	})

	if limit >= 0 && len(combos) > limit {
		combos = combos[:limit]
	}
	return combos
}

func latest(events []*models.ComparisonEvent, limit int) []models.ComparisonEvent {
	sorted := make([]models.ComparisonEvent, len(events))
	for i, e := range events {
		sorted[i] = *e
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
