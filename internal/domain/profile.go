// Package domain provides domain models for the Profile Service.
package domain

import (
	"regexp"
	"strings"
)

// SessionToken is the opaque credential of a signed-in citizen.
// The zero value means no credential is available.
type SessionToken string

// IsZero reports whether the token is absent.
func (t SessionToken) IsZero() bool {
	return strings.TrimSpace(string(t)) == ""
}

// Redacted returns a form of the token that is safe to log.
func (t SessionToken) Redacted() string {
	if t.IsZero() {
		return ""
	}
	if len(t) <= 4 {
		return "****"
	}
	return "****" + string(t[len(t)-4:])
}

// fiscalCodePattern matches the shape of an Italian fiscal code, including
// omocodia substitutions in the numeric positions.
var fiscalCodePattern = regexp.MustCompile(`^[A-Z]{6}[0-9LMNPQRSTUV]{2}[ABCDEHLMPRST][0-9LMNPQRSTUV]{2}[A-Z][0-9LMNPQRSTUV]{3}[A-Z]$`)

// IsValidFiscalCode reports whether code has the shape of an Italian fiscal code.
func IsValidFiscalCode(code string) bool {
	return fiscalCodePattern.MatchString(code)
}

// Profile is the citizen profile returned by the backend.
// A Profile is an immutable snapshot of one successful call.
type Profile struct {
	Name               string   `json:"name" validate:"required"`
	FamilyName         string   `json:"family_name" validate:"required"`
	FiscalCode         string   `json:"fiscal_code" validate:"required,fiscalcode"`
	Email              *string  `json:"email,omitempty" validate:"omitempty,email"`
	IsEmailValidated   bool     `json:"is_email_validated"`
	IsEmailEnabled     bool     `json:"is_email_enabled"`
	IsInboxEnabled     bool     `json:"is_inbox_enabled"`
	IsWebhookEnabled   bool     `json:"is_webhook_enabled"`
	AcceptedTOSVersion *int     `json:"accepted_tos_version,omitempty" validate:"omitempty,gte=0"`
	PreferredLanguages []string `json:"preferred_languages,omitempty" validate:"dive,required"`
	SpidEmail          *string  `json:"spid_email,omitempty" validate:"omitempty,email"`
	DateOfBirth        *string  `json:"date_of_birth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Version            int      `json:"version" validate:"gte=0"`
}

// NameSurname returns the display name of the citizen.
func (p *Profile) NameSurname() string {
	return strings.TrimSpace(p.Name + " " + p.FamilyName)
}

// HasEmail reports whether the profile carries a non-empty email.
func (p *Profile) HasEmail() bool {
	return p.Email != nil && *p.Email != ""
}

// EmailOrEmpty returns the email or the empty string when none is set.
func (p *Profile) EmailOrEmpty() string {
	if p.Email == nil {
		return ""
	}
	return *p.Email
}
