// Package analytics records usage events and aggregates them for the admin dashboard.
package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/terra-clan/grade-compass/internal/models"
	"github.com/terra-clan/grade-compass/internal/selection"
	"github.com/terra-clan/grade-compass/internal/storage"
)

// Sink accepts analytics events. Calls never block and never fail the caller.
type Sink interface {
	TrackSignIn(p *models.Principal)
	TrackVisit(p *models.Principal)
	TrackComparison(p *models.Principal, grades []string)
}

// ErrClosed is returned by Close when called twice
var ErrClosed = errors.New("dispatcher already closed")

// DispatcherConfig tunes the write queue
type DispatcherConfig struct {
	QueueSize    int
	WriteTimeout time.Duration
}

type event struct {
	kind      models.EventKind
	principal models.Principal
	grades    []string
}

// Dispatcher is a Sink that writes events to a Repository from a single
// background worker. A full queue drops the event.
type Dispatcher struct {
	repo         storage.Repository
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan event
	done   chan struct{}

	dropped atomic.Int64
	written atomic.Int64
}

// NewDispatcher creates a dispatcher; call Start to begin writing
func NewDispatcher(repo storage.Repository, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	return &Dispatcher{
		repo:         repo,
		writeTimeout: cfg.WriteTimeout,
		queue:        make(chan event, cfg.QueueSize),
		done:         make(chan struct{}),
	}
}

// Start begins the write worker in a goroutine
func (d *Dispatcher) Start() {
	go d.run()
}

// TrackSignIn records a successful sign-in
func (d *Dispatcher) TrackSignIn(p *models.Principal) {
	d.enqueue(models.EventSignIn, p, nil)
}

// TrackVisit records a compass page load
func (d *Dispatcher) TrackVisit(p *models.Principal) {
	d.enqueue(models.EventVisit, p, nil)
}

// TrackComparison records the grades currently compared.
// Grades are stored in rank order; an empty set is ignored.
func (d *Dispatcher) TrackComparison(p *models.Principal, grades []string) {
	if len(grades) == 0 {
		return
	}
	sorted := append([]string(nil), grades...)
	selection.SortByRank(sorted)
	d.enqueue(models.EventComparison, p, sorted)
}

// Dropped returns how many events were discarded because the queue was full or closed
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Written returns how many events reached the repository
func (d *Dispatcher) Written() int64 {
	return d.written.Load()
}

func (d *Dispatcher) enqueue(kind models.EventKind, p *models.Principal, grades []string) {
	if p == nil {
		slog.Debug("analytics event without principal ignored", "kind", kind)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		return
	}

	select {
	case d.queue <- event{kind: kind, principal: *p, grades: grades}:
	default:
		d.dropped.Add(1)
		slog.Warn("analytics queue full, event dropped", "kind", kind, "user", p.MaskedEmail())
	}
}

// run drains the queue until it is closed
func (d *Dispatcher) run() {
	defer close(d.done)

	slog.Info("analytics dispatcher started", "queue_size", cap(d.queue))

	for e := range d.queue {
		d.write(e)
	}

	slog.Info("analytics dispatcher stopped",
		"written", d.written.Load(),
		"dropped", d.dropped.Load(),
	)
}

func (d *Dispatcher) write(e event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	var err error
	switch e.kind {
	case models.EventSignIn:
		err = d.repo.InsertSignIn(ctx, &models.SignInEvent{UserID: e.principal.UserID, Email: e.principal.Email})
	case models.EventVisit:
		err = d.repo.InsertVisit(ctx, &models.VisitEvent{UserID: e.principal.UserID, Email: e.principal.Email})
	case models.EventComparison:
		err = d.repo.InsertComparison(ctx, &models.ComparisonEvent{
			UserID: e.principal.UserID,
			Email:  e.principal.Email,
			Grades: e.grades,
		})
	}

	if err != nil {
		slog.Error("failed to record analytics event",
			"error", err,
			"kind", e.kind,
			"user", e.principal.MaskedEmail(),
		)
		return
	}
	d.written.Add(1)
}

// Close stops accepting events and waits for queued ones to be written.
// It returns ctx.Err() if the queue is not drained before ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		slog.Warn("analytics queue not drained before shutdown", "pending", len(d.queue))
		return ctx.Err()
	}
}
