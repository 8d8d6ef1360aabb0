package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/profile-service/internal/domain"
)

var _ OutcomeRepository = (*PgOutcomeRepository)(nil)

// maxListLimit caps ListRecent.
const maxListLimit = 500

// PgOutcomeRepository is the PostgreSQL OutcomeRepository.
type PgOutcomeRepository struct {
	db DBTX
}

// NewPgOutcomeRepository creates an outcome repository.
func NewPgOutcomeRepository(db DBTX) *PgOutcomeRepository {
	return &PgOutcomeRepository{db: db}
}

// Record inserts o. Empty error and zero status code are stored as NULL.
func (r *PgOutcomeRepository) Record(ctx context.Context, o *domain.RefreshOutcome) error {
	if o == nil || o.SessionID == "" {
		return domain.NewValidationError("session_id", "session ID is required")
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO refresh_outcomes (id, session_id, outcome, attempt, reason, error, status_code, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if _, err := r.db.Exec(ctx, query,
		o.ID, o.SessionID, o.Outcome, o.Attempt, o.Reason,
		nullString(o.Error), nullInt(o.StatusCode), o.Duration.Milliseconds(), o.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to record refresh outcome: %w", err)
	}
	return nil
}

// ListRecent returns the newest outcomes of sessionID.
func (r *PgOutcomeRepository) ListRecent(ctx context.Context, sessionID string, limit int) ([]*domain.RefreshOutcome, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	query := `
		SELECT id, session_id, outcome, attempt, reason, COALESCE(error, ''), COALESCE(status_code, 0), duration_ms, created_at
		FROM refresh_outcomes
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*domain.RefreshOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan refresh outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refresh outcomes: %w", err)
	}
	return outcomes, nil
}

func scanOutcome(row pgx.Row) (*domain.RefreshOutcome, error) {
	var (
		o          domain.RefreshOutcome
		durationMs int64
	)
	if err := row.Scan(&o.ID, &o.SessionID, &o.Outcome, &o.Attempt, &o.Reason,
		&o.Error, &o.StatusCode, &durationMs, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.Duration = time.Duration(durationMs) * time.Millisecond
	return &o, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
