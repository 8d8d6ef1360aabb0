// Package userdata loads the status of the citizen's data processing
// requests, such as an account deletion.
package userdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/profile-service/internal/backend"
	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/observability"
	"github.com/helixir/profile-service/internal/profile"
	"github.com/helixir/profile-service/internal/saga"
)

// Fetcher performs one data request status call.
type Fetcher interface {
	GetUserDataProcessing(ctx context.Context, token domain.SessionToken, choice domain.UserDataProcessingChoice) (*backend.UserDataProcessingResponse, error)
}

// Outcome labels used in logs and metrics.
const (
	outcomeLoaded    = "loaded"
	outcomeNotFound  = "not_requested"
	outcomeExpired   = "session_expired"
	outcomeFailed    = "failure"
	outcomeAbandoned = "abandoned"
)

// Loader loads one data request status per invocation and dispatches
// exactly one terminal signal.
type Loader struct {
	credentials profile.CredentialProvider
	fetcher     Fetcher
	dispatcher  profile.Dispatcher
	metrics     *observability.Metrics
	logger      zerolog.Logger
}

// NewLoader creates a Loader.
func NewLoader(credentials profile.CredentialProvider, fetcher Fetcher, dispatcher profile.Dispatcher, metrics *observability.Metrics, logger zerolog.Logger) *Loader {
	return &Loader{
		credentials: credentials,
		fetcher:     fetcher,
		dispatcher:  dispatcher,
		metrics:     metrics,
		logger:      logger.With().Str("component", "user_data_loader").Logger(),
	}
}

// Load fetches the status of the given choice.
//
//   - 200 dispatches load_success with the value.
//   - 404 dispatches load_success with nil: no request of that kind exists.
//   - 401 or an absent credential dispatches session.expired.
//   - anything else dispatches load_failure.
//
// The load_request signal that triggers a load doubles as its loading
// marker, so Load does not dispatch it.
func (l *Loader) Load(ctx context.Context, choice domain.UserDataProcessingChoice) {
	start := time.Now()
	outcome := l.load(ctx, choice)
	l.metrics.RecordUserDataLoad(string(choice), outcome)

	logger := observability.LoggerFromContext(ctx, l.logger)
	logger.Info().
		Str("choice", string(choice)).
		Str("outcome", outcome).
		Dur("duration", time.Since(start)).
		Msg("user data processing load finished")
}

func (l *Loader) load(ctx context.Context, choice domain.UserDataProcessingChoice) string {
	token, err := l.credentials.Token(ctx)
	if ctx.Err() != nil {
		return outcomeAbandoned
	}
	if err != nil && !errors.Is(err, domain.ErrNoCredential) {
		l.dispatch(ctx, domain.UserDataLoadFailure(choice, fmt.Errorf("resolving credential: %w", err)))
		return outcomeFailed
	}
	if token.IsZero() {
		l.dispatch(ctx, domain.SessionExpired())
		return outcomeExpired
	}

	resp, err := l.fetcher.GetUserDataProcessing(ctx, token, choice)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return outcomeAbandoned
	}
	if err != nil {
		l.dispatch(ctx, domain.UserDataLoadFailure(choice, err))
		return outcomeFailed
	}

	switch resp.StatusCode {
	case http.StatusOK:
		l.dispatch(ctx, domain.UserDataLoadSuccess(choice, resp.UserData))
		return outcomeLoaded
	case http.StatusNotFound:
		l.dispatch(ctx, domain.UserDataLoadSuccess(choice, nil))
		return outcomeNotFound
	case http.StatusUnauthorized:
		l.dispatch(ctx, domain.SessionExpired())
		return outcomeExpired
	default:
		l.dispatch(ctx, domain.UserDataLoadFailure(choice, domain.NewUnexpectedStatusError(backend.SourceName, resp.StatusCode)))
		return outcomeFailed
	}
}

func (l *Loader) dispatch(ctx context.Context, s domain.Signal) {
	if ctx.Err() != nil {
		return
	}
	l.dispatcher.Dispatch(ctx, s)
}

// Watch loads the requested choice for every load_request signal received
// on triggers, with take-latest semantics. The load_request signal itself is
// the loading marker, so it is not dispatched again.
func (l *Loader) Watch(ctx context.Context, triggers <-chan domain.Signal) error {
	l.logger.Info().Msg("user data watcher started")
	defer l.logger.Info().Msg("user data watcher stopped")

	return saga.TakeLatest(ctx, triggers, func(ctx context.Context, s domain.Signal) {
		if s.Type != domain.SignalUserDataLoadRequest || !s.Choice.IsValid() {
			return
		}
		l.Load(ctx, s.Choice)
	})
}
