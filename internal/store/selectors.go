package store

import (
	"github.com/helixir/profile-service/internal/domain"
)

func profileOf(s State) (*domain.Profile, bool) {
	p, ok := s.Profile.Value()
	return p, ok && p != nil
}

// ProfileEmail returns the profile email, if any.
func ProfileEmail(s State) (string, bool) {
	p, ok := profileOf(s)
	if !ok || !p.HasEmail() {
		return "", false
	}
	return *p.Email, true
}

// HasProfileEmail reports whether the profile carries an email.
func HasProfileEmail(s State) bool {
	_, ok := ProfileEmail(s)
	return ok
}

// IsEmailValidated reports whether the profile email has been validated.
func IsEmailValidated(s State) bool {
	p, ok := profileOf(s)
	return ok && p.IsEmailValidated
}

// NameSurname returns the display name of the citizen.
func NameSurname(s State) (string, bool) {
	p, ok := profileOf(s)
	if !ok {
		return "", false
	}
	name := p.NameSurname()
	return name, name != ""
}

// FiscalCode returns the fiscal code of the citizen.
func FiscalCode(s State) (string, bool) {
	p, ok := profileOf(s)
	if !ok || p.FiscalCode == "" {
		return "", false
	}
	return p.FiscalCode, true
}

// DeletionStatus returns the pot of the account deletion request.
// A Some pot holding nil means no deletion was requested.
func DeletionStatus(s State) Pot[*domain.UserDataProcessing] {
	return s.UserData(domain.UserDataProcessingDelete)
}
