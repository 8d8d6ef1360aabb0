// Package activities implements the Temporal activities of the durable
// profile refresh workflow.
package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/observability"
	"github.com/helixir/profile-service/internal/outbox"
	"github.com/helixir/profile-service/internal/profile"
	"github.com/helixir/profile-service/internal/temporal"
)

// TokenSource resolves the stored token of a session.
type TokenSource interface {
	Get(ctx context.Context, sessionID string) (domain.SessionToken, error)
}

// SignalPublisher publishes signals to the event stream.
type SignalPublisher interface {
	Publish(ctx context.Context, params outbox.EmitParams) error
}

// FetchProfileInput is the input of FetchProfile.
type FetchProfileInput struct {
	SessionID string
	Attempt   int
}

// FetchProfileOutput reports the interpreted result of one profile call.
// The session token never leaves the activity.
type FetchProfileOutput struct {
	// Outcome is the string form of a profile.Outcome.
	Outcome    string
	Profile    *domain.Profile
	Error      string
	StatusCode int
	// NoCredential is set when no token was stored, in which case no call
	// was made and no loading marker was published.
	NoCredential bool
}

// SignalInput is the serializable form of a domain.Signal.
type SignalInput struct {
	SessionID string
	Type      domain.SignalType
	Profile   *domain.Profile
	Error     string
	Attempt   int
	Reason    string
}

// Signal converts the input back into a domain signal.
func (in SignalInput) Signal() domain.Signal {
	s := domain.Signal{
		Type:    in.Type,
		Profile: in.Profile,
		Attempt: in.Attempt,
		Reason:  in.Reason,
	}
	if in.Error != "" {
		s.Err = errors.New(in.Error)
	}
	return s
}

// RecordOutcomeInput is the input of RecordOutcome.
type RecordOutcomeInput struct {
	SessionID  string
	Outcome    string
	Attempt    int
	Reason     string
	Error      string
	StatusCode int
	Duration   time.Duration
}

// ProfileActivities holds the dependencies of the refresh activities.
// Methods are registered with the worker under the names in package temporal.
type ProfileActivities struct {
	tokens    TokenSource
	fetcher   profile.ProfileFetcher
	publisher SignalPublisher
	outcomes  profile.OutcomeRecorder
	metrics   *observability.Metrics
}

// NewProfileActivities creates the activities. outcomes may be nil.
func NewProfileActivities(tokens TokenSource, fetcher profile.ProfileFetcher, publisher SignalPublisher, outcomes profile.OutcomeRecorder, metrics *observability.Metrics) *ProfileActivities {
	return &ProfileActivities{
		tokens:    tokens,
		fetcher:   fetcher,
		publisher: publisher,
		outcomes:  outcomes,
		metrics:   metrics,
	}
}

// FetchProfile resolves the session token, publishes the loading marker and
// performs exactly one profile call.
func (a *ProfileActivities) FetchProfile(ctx context.Context, in FetchProfileInput) (*FetchProfileOutput, error) {
	logger := activity.GetLogger(ctx)
	info := activity.GetInfo(ctx)

	token, err := a.tokens.Get(ctx, in.SessionID)
	if err == nil && token.IsZero() {
		err = domain.ErrNoCredential
	}
	if err != nil {
		if errors.Is(err, domain.ErrNoCredential) {
			logger.Info("no session credential", "sessionID", in.SessionID)
			return &FetchProfileOutput{Outcome: profile.OutcomeNotAuthenticated.String(), NoCredential: true}, nil
		}
		return &FetchProfileOutput{
			Outcome: profile.OutcomeFailure.String(),
			Error:   fmt.Sprintf("resolving credential: %v", err),
		}, nil
	}

	if err := a.publisher.Publish(ctx, outbox.EmitParams{
		SessionID:  in.SessionID,
		Signal:     domain.ProfileLoadRequest(),
		WorkflowID: info.WorkflowExecution.ID,
	}); err != nil {
		return nil, fmt.Errorf("publish loading marker: %w", err)
	}

	resp, err := a.fetcher.GetProfile(ctx, token)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	res := profile.Interpret(resp, err)

	out := &FetchProfileOutput{Outcome: res.Outcome.String(), Profile: res.Profile}
	if res.Err != nil {
		out.Error = res.Err.Error()
		var apiErr *domain.ExternalAPIError
		if errors.As(res.Err, &apiErr) {
			out.StatusCode = apiErr.StatusCode
		}
	}
	logger.Info("profile fetched", "sessionID", in.SessionID, "attempt", in.Attempt, "outcome", out.Outcome)
	return out, nil
}

// PublishSignal publishes one signal of the workflow's session.
func (a *ProfileActivities) PublishSignal(ctx context.Context, in SignalInput) error {
	err := a.publisher.Publish(ctx, outbox.EmitParams{
		SessionID:  in.SessionID,
		Signal:     in.Signal(),
		WorkflowID: activity.GetInfo(ctx).WorkflowExecution.ID,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", in.Type, err)
	}
	a.metrics.RecordSignalDispatched(string(in.Type))
	return nil
}

// RecordOutcome persists the outcome of one attempt. Without a recorder it
// only updates metrics.
func (a *ProfileActivities) RecordOutcome(ctx context.Context, in RecordOutcomeInput) error {
	a.metrics.RecordRefreshOutcome(in.Outcome, in.Duration.Seconds())
	if a.outcomes == nil {
		return nil
	}
	return a.outcomes.Record(ctx, &domain.RefreshOutcome{
		SessionID:  in.SessionID,
		Outcome:    in.Outcome,
		Attempt:    in.Attempt,
		Reason:     in.Reason,
		Error:      in.Error,
		StatusCode: in.StatusCode,
		Duration:   in.Duration,
	})
}

// ActivityRegistrar is the activity half of temporal.Registrar. The SDK's
// activity test environment implements it too.
type ActivityRegistrar interface {
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register registers the activities on r under their public names.
func (a *ProfileActivities) Register(r ActivityRegistrar) {
	r.RegisterActivityWithOptions(a.FetchProfile, activity.RegisterOptions{Name: temporal.ActivityFetchProfile})
	r.RegisterActivityWithOptions(a.PublishSignal, activity.RegisterOptions{Name: temporal.ActivityPublishSignal})
	r.RegisterActivityWithOptions(a.RecordOutcome, activity.RegisterOptions{Name: temporal.ActivityRecordOutcome})
}
