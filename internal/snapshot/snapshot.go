// Package snapshot persists successfully loaded profiles and restores the
// latest one into the store at startup.
package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/repository"
)

// DefaultKeep is how many snapshots per session are retained.
const DefaultKeep = 10

// Hydrator accepts a restored profile.
type Hydrator interface {
	Hydrate(p *domain.Profile) bool
}

// Transactor runs fn inside a database transaction. *database.DB
// implements it.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Recorder saves a snapshot for every profile.load_success signal.
type Recorder struct {
	repo      repository.SnapshotRepository
	tx        Transactor
	sessionID string
	keep      int
	logger    zerolog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithTransactor makes the insert and the prune of a snapshot commit
// together, so the retained history never exceeds keep.
func WithTransactor(tx Transactor) Option {
	return func(r *Recorder) { r.tx = tx }
}

// NewRecorder creates a Recorder keeping at most keep snapshots. A keep
// below one means DefaultKeep.
func NewRecorder(repo repository.SnapshotRepository, sessionID string, keep int, logger zerolog.Logger, opts ...Option) *Recorder {
	if keep < 1 {
		keep = DefaultKeep
	}
	r := &Recorder{
		repo:      repo,
		sessionID: sessionID,
		keep:      keep,
		logger:    logger.With().Str("component", "snapshot_recorder").Str("session_id", sessionID).Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restore loads the latest snapshot of the session into h. A session without
// snapshots is not an error.
func (r *Recorder) Restore(ctx context.Context, h Hydrator) (bool, error) {
	snap, err := r.repo.Latest(ctx, r.sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !h.Hydrate(snap.Profile) {
		return false, nil
	}
	r.logger.Info().Time("fetched_at", snap.FetchedAt).Msg("profile restored from snapshot")
	return true, nil
}

// Run consumes signals until ctx is done or signals is closed. Storage
// errors are logged and do not stop the loop.
func (r *Recorder) Run(ctx context.Context, signals <-chan domain.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-signals:
			if !ok {
				return nil
			}
			switch s.Type {
			case domain.SignalProfileLoadSuccess:
				r.save(ctx, s.Profile)
			case domain.SignalSessionExpired:
				if _, err := r.repo.DeleteSession(ctx, r.sessionID); err != nil {
					r.logger.Error().Err(err).Msg("failed to delete snapshots of expired session")
				}
			}
		}
	}
}

func (r *Recorder) save(ctx context.Context, p *domain.Profile) {
	if p == nil {
		return
	}
	snap := domain.NewProfileSnapshot(r.sessionID, p)

	var pruned int64
	persist := func(repo repository.SnapshotRepository) error {
		if err := repo.Save(ctx, snap); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		n, err := repo.Prune(ctx, r.sessionID, r.keep)
		if err != nil {
			return fmt.Errorf("prune snapshots: %w", err)
		}
		pruned = n
		return nil
	}

	var err error
	if r.tx != nil {
		err = r.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
			return persist(repository.NewPgSnapshotRepository(tx))
		})
	} else {
		err = persist(r.repo)
	}
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to persist profile snapshot")
		return
	}
	r.logger.Debug().Int64("pruned", pruned).Msg("profile snapshot saved")
}
