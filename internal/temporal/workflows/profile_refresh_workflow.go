// Package workflows implements the durable profile refresh workflow.
package workflows

import (
	"errors"
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/profile"
	"github.com/helixir/profile-service/internal/temporal"
	"github.com/helixir/profile-service/internal/temporal/activities"
)

// Activity timeouts. The profile call itself is bounded by the backend
// client configuration; these only bound a stuck worker.
const (
	fetchTimeout   = 2 * time.Minute
	publishTimeout = 30 * time.Second
)

// Workflow states reported by QueryRefreshStatus.
const (
	stateFetching  = "fetching"
	stateRetrying  = "retrying"
	stateSucceeded = "succeeded"
	stateExpired   = "expired"
	stateFailed    = "failed"
)

// RefreshResult is the result of a run that did not continue as new.
type RefreshResult struct {
	Outcome string
	Attempt int
	Error   string
}

// Register registers the workflow and its activities on r.
func Register(r temporal.Registrar, acts *activities.ProfileActivities) {
	r.RegisterWorkflowWithOptions(ProfileRefreshWorkflow, workflow.RegisterOptions{Name: temporal.ProfileRefreshWorkflowName})
	acts.Register(r)
}

// ProfileRefreshWorkflow runs one attempt of a refresh chain. It emits
// exactly one terminal signal. After a failure that the retry policy allows
// to be retried it sleeps, emits profile.refresh_requested and continues as
// new with the next attempt number.
func ProfileRefreshWorkflow(ctx workflow.Context, in temporal.RefreshWorkflowInput) (*RefreshResult, error) {
	logger := workflow.GetLogger(ctx)
	if in.Attempt < 1 {
		in.Attempt = 1
	}
	if in.Reason == "" {
		in.Reason = domain.RefreshReasonUser
	}

	status := temporal.RefreshStatus{
		SessionID: in.SessionID,
		Attempt:   in.Attempt,
		Reason:    in.Reason,
		State:     stateFetching,
	}
	if err := workflow.SetQueryHandler(ctx, temporal.QueryRefreshStatus, func() (temporal.RefreshStatus, error) {
		return status, nil
	}); err != nil {
		return nil, err
	}

	fetchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: fetchTimeout,
		RetryPolicy:         &sdktemporal.RetryPolicy{MaximumAttempts: 1},
	})
	// Only the backend call is single-shot. Signal delivery and outcome
	// recording retry.
	publishCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: publishTimeout,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	})

	started := workflow.Now(ctx)
	publish := func(s activities.SignalInput) error {
		s.SessionID = in.SessionID
		return workflow.ExecuteActivity(publishCtx, temporal.ActivityPublishSignal, s).Get(ctx, nil)
	}
	record := func(out *activities.FetchProfileOutput) {
		err := workflow.ExecuteActivity(publishCtx, temporal.ActivityRecordOutcome, activities.RecordOutcomeInput{
			SessionID:  in.SessionID,
			Outcome:    out.Outcome,
			Attempt:    in.Attempt,
			Reason:     in.Reason,
			Error:      out.Error,
			StatusCode: out.StatusCode,
			Duration:   workflow.Now(ctx).Sub(started),
		}).Get(ctx, nil)
		if err != nil {
			logger.Warn("failed to record refresh outcome", "error", err)
		}
	}

	var out activities.FetchProfileOutput
	err := workflow.ExecuteActivity(fetchCtx, temporal.ActivityFetchProfile, activities.FetchProfileInput{
		SessionID: in.SessionID,
		Attempt:   in.Attempt,
	}).Get(ctx, &out)
	if err != nil {
		var canceled *sdktemporal.CanceledError
		if errors.As(err, &canceled) {
			return nil, err
		}
		out = activities.FetchProfileOutput{Outcome: profile.OutcomeFailure.String(), Error: err.Error()}
	}

	result := &RefreshResult{Outcome: out.Outcome, Attempt: in.Attempt, Error: out.Error}
	status.Outcome = out.Outcome
	status.Error = out.Error

	switch out.Outcome {
	case profile.OutcomeSuccess.String():
		status.State = stateSucceeded
		if err := publish(activities.SignalInput{Type: domain.SignalProfileLoadSuccess, Profile: out.Profile}); err != nil {
			return nil, err
		}
		record(&out)
		return result, nil

	case profile.OutcomeNotAuthenticated.String():
		status.State = stateExpired
		if err := publish(activities.SignalInput{Type: domain.SignalSessionExpired}); err != nil {
			return nil, err
		}
		record(&out)
		return result, nil
	}

	status.State = stateFailed
	if err := publish(activities.SignalInput{Type: domain.SignalProfileLoadFailure, Error: out.Error}); err != nil {
		return nil, err
	}
	record(&out)

	if !in.Retry.ShouldRetry(in.Attempt) {
		if in.Retry.Exhausted(in.Attempt) {
			logger.Warn("refresh retries exhausted", "attempt", in.Attempt, "maxAttempts", in.Retry.MaxAttempts)
		}
		return result, nil
	}

	delay := in.Retry.DelayFor(in.Attempt)
	status.State = stateRetrying
	status.RetryAt = workflow.Now(ctx).Add(delay)
	logger.Info("waiting before re-triggering refresh", "attempt", in.Attempt, "delay", delay)

	if err := workflow.Sleep(ctx, delay); err != nil {
		return nil, err
	}

	next := in
	next.Attempt = in.Attempt + 1
	next.Reason = domain.RefreshReasonRetry
	if err := publish(activities.SignalInput{
		Type:    domain.SignalProfileRefreshRequested,
		Attempt: next.Attempt,
		Reason:  next.Reason,
	}); err != nil {
		return nil, err
	}

	return nil, workflow.NewContinueAsNewError(ctx, temporal.ProfileRefreshWorkflowName, next)
}
