package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/grade-compass/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 10
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 1
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// HealthCheck implements health.Checker
func (r *PostgresRepository) HealthCheck(ctx context.Context) error {
	return r.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Writes ---

// InsertSignIn stores a sign-in event
func (r *PostgresRepository) InsertSignIn(ctx context.Context, e *models.SignInEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	query := `
		INSERT INTO analytics_signins (id, user_id, email)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	if err := r.pool.QueryRow(ctx, query, e.ID, e.UserID, e.Email).Scan(&e.Timestamp); err != nil {
		return fmt.Errorf("%w: failed to insert sign-in: %v", ErrUnavailable, err)
	}
	return nil
}

// InsertVisit stores a page visit event
func (r *PostgresRepository) InsertVisit(ctx context.Context, e *models.VisitEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	query := `
		INSERT INTO analytics_visits (id, user_id, email)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	if err := r.pool.QueryRow(ctx, query, e.ID, e.UserID, e.Email).Scan(&e.Timestamp); err != nil {
		return fmt.Errorf("%w: failed to insert visit: %v", ErrUnavailable, err)
	}
	return nil
}

// InsertComparison stores a grade comparison event
func (r *PostgresRepository) InsertComparison(ctx context.Context, e *models.ComparisonEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.GradeCount = len(e.Grades)

	query := `
		INSERT INTO analytics_comparisons (id, user_id, email, grades, grade_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query, e.ID, e.UserID, e.Email, e.Grades, e.GradeCount).Scan(&e.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: failed to insert comparison: %v", ErrUnavailable, err)
	}
	return nil
}

// --- Reads ---

// ListSignIns returns every sign-in, oldest first
func (r *PostgresRepository) ListSignIns(ctx context.Context) ([]*models.SignInEvent, error) {
	query := `
		SELECT id, user_id, email, created_at
		FROM analytics_signins
		ORDER BY created_at, seq
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list sign-ins: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var events []*models.SignInEvent
	for rows.Next() {
		var e models.SignInEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.Email, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan sign-in: %w", err)
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

// CountVisits returns the number of recorded visits
func (r *PostgresRepository) CountVisits(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM analytics_visits`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count visits: %v", ErrUnavailable, err)
	}
	return count, nil
}

// ListComparisons returns every comparison, oldest first
func (r *PostgresRepository) ListComparisons(ctx context.Context) ([]*models.ComparisonEvent, error) {
	query := `
		SELECT id, user_id, email, grades, grade_count, created_at
		FROM analytics_comparisons
		ORDER BY created_at, seq
	`
	return r.queryComparisons(ctx, query)
}

// RecentComparisons returns up to limit comparisons, newest first
func (r *PostgresRepository) RecentComparisons(ctx context.Context, limit int) ([]*models.ComparisonEvent, error) {
	query := `
		SELECT id, user_id, email, grades, grade_count, created_at
		FROM analytics_comparisons
		ORDER BY created_at DESC, seq DESC
		LIMIT $1
	`
	return r.queryComparisons(ctx, query, limit)
}

func (r *PostgresRepository) queryComparisons(ctx context.Context, query string, args ...interface{}) ([]*models.ComparisonEvent, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query comparisons: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.ComparisonEvent, error) {
		var e models.ComparisonEvent
		err := row.Scan(&e.ID, &e.UserID, &e.Email, &e.Grades, &e.GradeCount, &e.Timestamp)
		return &e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan comparisons: %w", err)
	}

	return events, nil
}

// --- Retention ---

// PruneBefore deletes events of every kind recorded before cutoff
func (r *PostgresRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int64
	for _, table := range []string{"analytics_signins", "analytics_visits", "analytics_comparisons"} {
		result, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE created_at < $1`, table), cutoff)
		if err != nil {
			return 0, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		total += result.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}

	return total, nil
}
