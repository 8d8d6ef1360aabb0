package session

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/helixir/profile-service/internal/domain"
)

// ExpiryHandler clears the stored token when the backend reports the session
// as expired, so later refreshes short-circuit without a network call.
type ExpiryHandler struct {
	store     TokenStore
	sessionID string
	logger    zerolog.Logger
}

// NewExpiryHandler creates an ExpiryHandler for sessionID.
func NewExpiryHandler(store TokenStore, sessionID string, logger zerolog.Logger) *ExpiryHandler {
	return &ExpiryHandler{
		store:     store,
		sessionID: sessionID,
		logger:    logger.With().Str("component", "session_expiry").Str("session_id", sessionID).Logger(),
	}
}

// Run consumes signals until ctx is done or signals is closed.
func (h *ExpiryHandler) Run(ctx context.Context, signals <-chan domain.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-signals:
			if !ok {
				return nil
			}
			if s.Type != domain.SignalSessionExpired {
				continue
			}
			if err := h.store.Delete(ctx, h.sessionID); err != nil {
				h.logger.Error().Err(err).Msg("failed to clear expired session token")
				continue
			}
			h.logger.Info().Msg("session expired, token cleared")
		}
	}
}
