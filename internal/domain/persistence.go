package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProfileSnapshot is a persisted copy of a successfully loaded profile.
type ProfileSnapshot struct {
	ID        uuid.UUID
	SessionID string
	Profile   *Profile
	FetchedAt time.Time
}

// NewProfileSnapshot creates a snapshot of p taken now.
func NewProfileSnapshot(sessionID string, p *Profile) *ProfileSnapshot {
	return &ProfileSnapshot{
		ID:        uuid.New(),
		SessionID: sessionID,
		Profile:   p,
		FetchedAt: time.Now().UTC(),
	}
}

// RefreshOutcome records how one refresh invocation ended.
type RefreshOutcome struct {
	ID         uuid.UUID
	SessionID  string
	Outcome    string
	Attempt    int
	Reason     string
	Error      string
	StatusCode int
	Duration   time.Duration
	CreatedAt  time.Time
}
