// Package repository persists profile snapshots and refresh outcomes in
// PostgreSQL.
//
// Repositories accept a DBTX so they run against the pool, inside a
// transaction from database.DB.WithTransaction, or against pgxmock in tests:
//
//	db, _ := database.New(ctx, &cfg.Database, logger)
//	snapshots := repository.NewPgSnapshotRepository(db)
//	outcomes := repository.NewPgOutcomeRepository(db)
//
// Lookups that find nothing return a *domain.NotFoundError, which matches
// domain.ErrNotFound with errors.Is.
package repository

import (
	"context"

	"github.com/helixir/profile-service/internal/database"
	"github.com/helixir/profile-service/internal/domain"
)

// DBTX is the query surface shared by the pool and transactions.
type DBTX = database.DBTX

// SnapshotRepository stores profile snapshots per session.
type SnapshotRepository interface {
	// Save inserts a snapshot.
	Save(ctx context.Context, snap *domain.ProfileSnapshot) error
	// Latest returns the most recent snapshot of the session.
	Latest(ctx context.Context, sessionID string) (*domain.ProfileSnapshot, error)
	// Prune deletes all but the keep most recent snapshots of the session.
	Prune(ctx context.Context, sessionID string, keep int) (int64, error)
	// DeleteSession deletes every snapshot of the session.
	DeleteSession(ctx context.Context, sessionID string) (int64, error)
}

// OutcomeRepository stores the outcome of every refresh invocation.
type OutcomeRepository interface {
	// Record inserts an outcome. A zero ID or CreatedAt is filled in.
	Record(ctx context.Context, o *domain.RefreshOutcome) error
	// ListRecent returns up to limit outcomes of the session, newest first.
	ListRecent(ctx context.Context, sessionID string, limit int) ([]*domain.RefreshOutcome, error)
}
