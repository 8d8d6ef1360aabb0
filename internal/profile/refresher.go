// Package profile implements the profile refresh workflow.
//
// A refresh resolves the session credential, calls the backend once,
// interprets the response and dispatches exactly one terminal signal:
// profile.load_success, session.expired or profile.load_failure. A failure
// may be followed, after the retry delay, by a profile.refresh_requested
// re-trigger. An invocation whose context is cancelled dispatches nothing
// more and returns OutcomeAbandoned.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/profile-service/internal/backend"
	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/observability"
	"github.com/helixir/profile-service/internal/saga"
)

// CredentialProvider resolves the current session token.
// An empty token or an error wrapping domain.ErrNoCredential means absent.
type CredentialProvider interface {
	Token(ctx context.Context) (domain.SessionToken, error)
}

// CredentialProviderFunc adapts a function to CredentialProvider.
type CredentialProviderFunc func(ctx context.Context) (domain.SessionToken, error)

// Token calls f.
func (f CredentialProviderFunc) Token(ctx context.Context) (domain.SessionToken, error) {
	return f(ctx)
}

// Authenticator obtains a fresh token when none is available.
type Authenticator interface {
	Authenticate(ctx context.Context) (domain.SessionToken, error)
}

// ProfileFetcher performs one get-profile call.
type ProfileFetcher interface {
	GetProfile(ctx context.Context, token domain.SessionToken) (*backend.ProfileResponse, error)
}

// Dispatcher receives the signals emitted by the workflow.
type Dispatcher interface {
	Dispatch(ctx context.Context, s domain.Signal)
}

// OutcomeRecorder persists how finished invocations ended.
type OutcomeRecorder interface {
	Record(ctx context.Context, o *domain.RefreshOutcome) error
}

// RefreshRequest is one trigger of the workflow.
type RefreshRequest struct {
	// Attempt is the 1-based position of this invocation in its trigger chain.
	Attempt int
	// Reason explains what triggered the refresh.
	Reason string
}

// RequestFromSignal builds a request from a refresh_requested signal.
func RequestFromSignal(s domain.Signal) RefreshRequest {
	return RefreshRequest{Attempt: s.Attempt, Reason: s.Reason}
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithAuthenticator sets the delegate called when no credential is available.
func WithAuthenticator(a Authenticator) Option {
	return func(r *Refresher) { r.authenticator = a }
}

// WithRetryPolicy sets the retry policy. The default is DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *Refresher) { r.policy = p }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Refresher) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Refresher) { r.logger = l }
}

// WithOutcomeRecorder records every finished invocation, including
// abandoned ones. Recording errors are logged and otherwise ignored.
func WithOutcomeRecorder(rec OutcomeRecorder) Option {
	return func(r *Refresher) { r.outcomes = rec }
}

// WithSessionID names the session the refresher works for in logs and
// recorded outcomes.
func WithSessionID(id string) Option {
	return func(r *Refresher) { r.sessionID = id }
}

// withSleep replaces the delay implementation in tests.
func withSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Refresher) { r.sleep = sleep }
}

// Refresher runs the profile refresh workflow.
// It is safe for concurrent use; each Refresh call is independent.
type Refresher struct {
	credentials   CredentialProvider
	authenticator Authenticator
	fetcher       ProfileFetcher
	dispatcher    Dispatcher
	policy        RetryPolicy
	outcomes      OutcomeRecorder
	sessionID     string
	metrics       *observability.Metrics
	logger        zerolog.Logger
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewRefresher creates a Refresher.
func NewRefresher(credentials CredentialProvider, fetcher ProfileFetcher, dispatcher Dispatcher, opts ...Option) *Refresher {
	r := &Refresher{
		credentials: credentials,
		fetcher:     fetcher,
		dispatcher:  dispatcher,
		policy:      DefaultRetryPolicy(),
		logger:      zerolog.Nop(),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "profile_refresher").Logger()
	if r.sessionID != "" {
		r.logger = observability.WithSessionContext(r.logger, r.sessionID)
	}
	return r
}

// Policy returns the retry policy in use.
func (r *Refresher) Policy() RetryPolicy {
	return r.policy
}

// Refresh runs one invocation of the workflow.
func (r *Refresher) Refresh(ctx context.Context, req RefreshRequest) Result {
	if req.Attempt < 1 {
		req.Attempt = 1
	}
	start := time.Now()
	logger := observability.WithRefreshContext(observability.LoggerFromContext(ctx, r.logger), req.Attempt, req.Reason)
	r.metrics.RecordRefreshStarted(req.Reason)

	res := r.run(ctx, req, logger)
	res.Attempt = req.Attempt

	r.metrics.RecordRefreshOutcome(res.Outcome.String(), time.Since(start).Seconds())
	if res.Outcome == OutcomeAbandoned {
		r.metrics.RecordSuperseded()
	}

	ev := logger.Info()
	if res.Err != nil {
		ev = logger.Warn().Err(res.Err)
	}
	ev.Str("outcome", res.Outcome.String()).
		Bool("retry_scheduled", res.RetryScheduled).
		Dur("duration", time.Since(start)).
		Msg("profile refresh finished")

	r.recordOutcome(ctx, req, res, time.Since(start), logger)
	return res
}

// recordOutcome hands res to the outcome recorder. It runs detached from
// cancellation so abandoned invocations are recorded too.
func (r *Refresher) recordOutcome(ctx context.Context, req RefreshRequest, res Result, elapsed time.Duration, logger zerolog.Logger) {
	if r.outcomes == nil {
		return
	}
	o := &domain.RefreshOutcome{
		SessionID: r.sessionID,
		Outcome:   res.Outcome.String(),
		Attempt:   req.Attempt,
		Reason:    req.Reason,
		Duration:  elapsed,
	}
	if o.SessionID == "" {
		o.SessionID = observability.SessionIDFromContext(ctx)
	}
	if res.Err != nil {
		o.Error = res.Err.Error()
		var apiErr *domain.ExternalAPIError
		if errors.As(res.Err, &apiErr) {
			o.StatusCode = apiErr.StatusCode
		}
	}
	if err := r.outcomes.Record(context.WithoutCancel(ctx), o); err != nil {
		logger.Warn().Err(err).Msg("failed to record refresh outcome")
	}
}

func (r *Refresher) run(ctx context.Context, req RefreshRequest, logger zerolog.Logger) Result {
	m := NewMachine()

	token, err := r.resolveCredential(ctx)
	if ctx.Err() != nil {
		m.must(StateAbandoned)
		return Abandoned()
	}
	if err != nil {
		if !errors.Is(err, domain.ErrNoCredential) {
			return r.fail(ctx, m, req, Failure(fmt.Errorf("resolving credential: %w", err)), logger)
		}
		logger.Info().Msg("no session credential, reporting session expired")
		m.must(StateExpired)
		r.dispatch(ctx, domain.SessionExpired())
		return NotAuthenticated()
	}

	m.must(StateFetching)
	r.dispatch(ctx, domain.ProfileLoadRequest())

	resp, err := r.fetcher.GetProfile(ctx, token)
	if ctx.Err() != nil {
		m.must(StateAbandoned)
		return Abandoned()
	}

	res := Interpret(resp, err)
	switch res.Outcome {
	case OutcomeSuccess:
		m.must(StateSucceeded)
		r.dispatch(ctx, domain.ProfileLoadSuccess(res.Profile))
		return res

	case OutcomeNotAuthenticated:
		m.must(StateExpired)
		r.dispatch(ctx, domain.SessionExpired())
		return res
	}

	return r.fail(ctx, m, req, res, logger)
}

// fail reports a failure and, when the policy allows, re-triggers the
// refresh after the retry delay.
func (r *Refresher) fail(ctx context.Context, m *Machine, req RefreshRequest, res Result, logger zerolog.Logger) Result {
	m.must(StateFailed)
	r.dispatch(ctx, domain.ProfileLoadFailure(res.Err))

	if !r.policy.ShouldRetry(req.Attempt) {
		if r.policy.Exhausted(req.Attempt) {
			r.metrics.RecordRetriesExhausted()
			logger.Warn().Int("max_attempts", r.policy.MaxAttempts).Msg("refresh retries exhausted")
		}
		return res
	}

	m.must(StateRetrying)
	delay := r.policy.DelayFor(req.Attempt)
	logger.Debug().Dur("delay", delay).Msg("waiting before re-triggering refresh")
	if err := r.sleep(ctx, delay); err != nil {
		m.must(StateAbandoned)
		return Result{Outcome: OutcomeAbandoned, Err: res.Err}
	}

	r.dispatch(ctx, domain.ProfileRefreshRequested(req.Attempt+1, domain.RefreshReasonRetry))
	r.metrics.RecordRetryScheduled()
	res.RetryScheduled = true
	return res
}

// resolveCredential returns the session token, falling back to the
// authenticator. A missing token is reported as domain.ErrNoCredential.
func (r *Refresher) resolveCredential(ctx context.Context) (domain.SessionToken, error) {
	token, err := r.credentials.Token(ctx)
	if err != nil && !errors.Is(err, domain.ErrNoCredential) {
		return "", err
	}
	if err == nil && !token.IsZero() {
		return token, nil
	}

	if r.authenticator == nil {
		return "", domain.ErrNoCredential
	}
	token, err = r.authenticator.Authenticate(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("authentication failed")
		return "", fmt.Errorf("%w: %w", domain.ErrNoCredential, err)
	}
	if token.IsZero() {
		return "", domain.ErrNoCredential
	}
	return token, nil
}

// dispatch emits s unless the invocation has been superseded.
func (r *Refresher) dispatch(ctx context.Context, s domain.Signal) {
	if ctx.Err() != nil {
		return
	}
	r.dispatcher.Dispatch(ctx, s)
}

// Watch runs a refresh for every refresh_requested signal received on
// triggers, with take-latest semantics. It returns when ctx is done or
// triggers is closed.
func (r *Refresher) Watch(ctx context.Context, triggers <-chan domain.Signal) error {
	r.logger.Info().Msg("refresh watcher started")
	defer r.logger.Info().Msg("refresh watcher stopped")

	return saga.TakeLatest(ctx, triggers, func(ctx context.Context, s domain.Signal) {
		if s.Type != domain.SignalProfileRefreshRequested {
			return
		}
		r.Refresh(ctx, RequestFromSignal(s))
	})
}

// sleepContext waits for d, returning early with the context error.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
