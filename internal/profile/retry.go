package profile

import (
	"math"
	"time"

	"github.com/helixir/profile-service/internal/config"
)

// RetryMode selects what happens after a failed refresh.
type RetryMode string

const (
	// RetryModeTerminal reports the failure and stops.
	RetryModeTerminal RetryMode = config.RetryModeTerminal
	// RetryModeRetry reports the failure, waits and re-triggers the refresh.
	RetryModeRetry RetryMode = config.RetryModeRetry
)

// Backoff selects how the delay grows with the attempt number.
type Backoff string

const (
	BackoffConstant    Backoff = config.BackoffConstant
	BackoffLinear      Backoff = config.BackoffLinear
	BackoffExponential Backoff = config.BackoffExponential
)

// DefaultRetryDelay is the wait before a failed refresh is re-triggered.
const DefaultRetryDelay = 6000 * time.Millisecond

// DefaultMaxAttempts bounds a trigger chain unless configured otherwise.
const DefaultMaxAttempts = 5

// RetryPolicy decides whether and when a failed refresh is re-triggered.
type RetryPolicy struct {
	Mode RetryMode

	// Delay is the base wait before a re-trigger.
	Delay time.Duration

	// MaxAttempts bounds the attempts of one trigger chain, the first
	// included. Zero means unbounded.
	MaxAttempts int

	Backoff Backoff

	// MaxDelay caps the computed delay. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Mode:        RetryModeRetry,
		Delay:       DefaultRetryDelay,
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     BackoffConstant,
	}
}

// TerminalPolicy returns a policy that never re-triggers.
func TerminalPolicy() RetryPolicy {
	return RetryPolicy{Mode: RetryModeTerminal}
}

// RetryPolicyFromConfig builds a policy from validated configuration.
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		Mode:        RetryMode(cfg.Mode),
		Delay:       cfg.Delay,
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     Backoff(cfg.Backoff),
		MaxDelay:    cfg.MaxDelay,
	}
}

// ShouldRetry reports whether a failure of the given attempt is re-triggered.
func (p RetryPolicy) ShouldRetry(attempt int) bool {
	if p.Mode != RetryModeRetry {
		return false
	}
	return p.MaxAttempts == 0 || attempt < p.MaxAttempts
}

// Exhausted reports whether a failure of the given attempt hit the bound
// while retries were enabled.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return p.Mode == RetryModeRetry && !p.ShouldRetry(attempt)
}

// DelayFor returns the wait after the failure of the given 1-based attempt.
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var d time.Duration
	switch p.Backoff {
	case BackoffLinear:
		d = p.Delay * time.Duration(attempt)
	case BackoffExponential:
		f := float64(p.Delay) * math.Pow(2, float64(attempt-1))
		if f > float64(math.MaxInt64) {
			d = time.Duration(math.MaxInt64)
		} else {
			d = time.Duration(f)
		}
	default:
		d = p.Delay
	}

	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
