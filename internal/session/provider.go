package session

import (
	"context"

	"github.com/helixir/profile-service/internal/domain"
)

// Provider resolves the token of one session. It satisfies
// profile.CredentialProvider.
type Provider struct {
	store     TokenStore
	sessionID string
}

// NewProvider creates a Provider for sessionID.
func NewProvider(store TokenStore, sessionID string) *Provider {
	return &Provider{store: store, sessionID: sessionID}
}

// Token returns the current token of the session.
func (p *Provider) Token(ctx context.Context) (domain.SessionToken, error) {
	return p.store.Get(ctx, p.sessionID)
}

// SessionID returns the session the provider reads.
func (p *Provider) SessionID() string {
	return p.sessionID
}
