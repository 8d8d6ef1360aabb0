package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/profile-service/internal/domain"
)

var _ SnapshotRepository = (*PgSnapshotRepository)(nil)

// PgSnapshotRepository is the PostgreSQL SnapshotRepository.
type PgSnapshotRepository struct {
	db DBTX
}

// NewPgSnapshotRepository creates a snapshot repository.
func NewPgSnapshotRepository(db DBTX) *PgSnapshotRepository {
	return &PgSnapshotRepository{db: db}
}

// Save inserts snap. The profile is stored as JSONB.
func (r *PgSnapshotRepository) Save(ctx context.Context, snap *domain.ProfileSnapshot) error {
	if snap == nil || snap.Profile == nil {
		return domain.NewValidationError("profile", "snapshot has no profile")
	}
	if snap.SessionID == "" {
		return domain.NewValidationError("session_id", "session ID is required")
	}
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}

	body, err := json.Marshal(snap.Profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	query := `
		INSERT INTO profile_snapshots (id, session_id, fiscal_code, version, profile, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.Exec(ctx, query,
		snap.ID, snap.SessionID, snap.Profile.FiscalCode, snap.Profile.Version, body, snap.FetchedAt,
	); err != nil {
		return fmt.Errorf("failed to save profile snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recently fetched snapshot of sessionID.
func (r *PgSnapshotRepository) Latest(ctx context.Context, sessionID string) (*domain.ProfileSnapshot, error) {
	query := `
		SELECT id, session_id, profile, fetched_at
		FROM profile_snapshots
		WHERE session_id = $1
		ORDER BY fetched_at DESC
		LIMIT 1`

	var (
		snap domain.ProfileSnapshot
		body []byte
	)
	err := r.db.QueryRow(ctx, query, sessionID).Scan(&snap.ID, &snap.SessionID, &body, &snap.FetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("profile snapshot", sessionID)
		}
		return nil, fmt.Errorf("failed to get latest profile snapshot: %w", err)
	}

	var p domain.Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode stored profile: %w", err)
	}
	snap.Profile = &p
	return &snap, nil
}

// Prune keeps the keep most recent snapshots of sessionID and deletes the rest.
func (r *PgSnapshotRepository) Prune(ctx context.Context, sessionID string, keep int) (int64, error) {
	if keep < 1 {
		return 0, domain.NewValidationError("keep", "must be at least 1")
	}

	query := `
		DELETE FROM profile_snapshots
		WHERE session_id = $1
		  AND id NOT IN (
			SELECT id FROM profile_snapshots
			WHERE session_id = $1
			ORDER BY fetched_at DESC
			LIMIT $2
		  )`

	tag, err := r.db.Exec(ctx, query, sessionID, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune profile snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteSession removes every snapshot of sessionID.
func (r *PgSnapshotRepository) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM profile_snapshots WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete profile snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}
