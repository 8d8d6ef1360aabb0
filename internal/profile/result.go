package profile

import (
	"github.com/helixir/profile-service/internal/domain"
)

// Outcome classifies how one refresh invocation ended.
type Outcome int

const (
	// OutcomeSuccess means the backend returned a valid profile.
	OutcomeSuccess Outcome = iota + 1
	// OutcomeNotAuthenticated means the session is missing or was rejected.
	OutcomeNotAuthenticated
	// OutcomeFailure means the refresh failed for any other reason.
	OutcomeFailure
	// OutcomeAbandoned means a newer trigger superseded the invocation.
	OutcomeAbandoned
)

// String returns the metrics and log label of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotAuthenticated:
		return "not_authenticated"
	case OutcomeFailure:
		return "failure"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Result is the outcome of one refresh invocation. It is produced fresh per
// invocation and never persisted by the workflow itself.
type Result struct {
	Outcome Outcome

	// Profile is set on OutcomeSuccess.
	Profile *domain.Profile

	// Err is set on OutcomeFailure, and on OutcomeAbandoned when the
	// invocation was superseded while waiting to retry a failure.
	Err error

	// Attempt is the attempt number of the invocation.
	Attempt int

	// RetryScheduled reports that a refresh_requested re-trigger was emitted.
	RetryScheduled bool
}

// Success returns a successful result.
func Success(p *domain.Profile) Result {
	return Result{Outcome: OutcomeSuccess, Profile: p}
}

// NotAuthenticated returns the result for a missing or rejected session.
func NotAuthenticated() Result {
	return Result{Outcome: OutcomeNotAuthenticated}
}

// Failure returns a failed result carrying err.
func Failure(err error) Result {
	return Result{Outcome: OutcomeFailure, Err: err}
}

// Abandoned returns the result of a superseded invocation.
func Abandoned() Result {
	return Result{Outcome: OutcomeAbandoned}
}
