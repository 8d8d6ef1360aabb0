// Package view maps the store state to the profile screen model.
package view

import (
	"fmt"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/store"
)

// Status is the overall state of the screen.
type Status string

const (
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusReady   Status = "ready"
)

// Item keys. Labels are stable keys; localization happens in the client.
const (
	ItemNameSurname    = "name_surname"
	ItemFiscalCode     = "fiscal_code"
	ItemEmail          = "email"
	ItemDeletionStatus = "deletion_status"
)

// Values used when an item has no concrete value.
const (
	ValueNotAvailable = "not_available"
	ValueNotRequested = "not_requested"
	ValueLoading      = "loading"
	ValueError        = "error"
)

// Action is a user action offered by the screen.
type Action string

const (
	ActionRetryProfile        Action = "retry_profile"
	ActionRetryDeletionStatus Action = "retry_deletion_status"
)

// Item is one labeled row of the screen.
type Item struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ProfileScreen is the rendered profile screen.
type ProfileScreen struct {
	Status         Status   `json:"status"`
	Items          []Item   `json:"items"`
	Actions        []Action `json:"actions"`
	SessionExpired bool     `json:"session_expired"`
	Error          string   `json:"error,omitempty"`
}

// Render builds the screen from a snapshot. It has no side effects.
func Render(s store.State) ProfileScreen {
	screen := ProfileScreen{
		Status:         statusOf(s.Profile),
		Items:          []Item{},
		Actions:        []Action{},
		SessionExpired: s.Session.Expired,
	}

	if screen.Status == StatusError {
		if err := s.Profile.Err(); err != nil {
			screen.Error = err.Error()
		}
		screen.Actions = append(screen.Actions, ActionRetryProfile)
	}

	if name, ok := store.NameSurname(s); ok {
		screen.Items = append(screen.Items, Item{Label: ItemNameSurname, Value: name})
	}
	if code, ok := store.FiscalCode(s); ok {
		screen.Items = append(screen.Items, Item{Label: ItemFiscalCode, Value: code})
	}

	email := ValueNotAvailable
	if e, ok := store.ProfileEmail(s); ok {
		email = e
	}
	screen.Items = append(screen.Items, Item{Label: ItemEmail, Value: email})

	deletion := store.DeletionStatus(s)
	screen.Items = append(screen.Items, Item{Label: ItemDeletionStatus, Value: deletionValue(deletion)})
	if deletion.IsError() {
		screen.Actions = append(screen.Actions, ActionRetryDeletionStatus)
	}

	return screen
}

func statusOf(p store.Pot[*domain.Profile]) Status {
	switch p.Kind() {
	case store.PotSome:
		return StatusReady
	case store.PotNoneError, store.PotSomeError:
		return StatusError
	default:
		// An empty pot only exists before the startup refresh lands.
		return StatusLoading
	}
}

func deletionValue(p store.Pot[*domain.UserDataProcessing]) string {
	switch p.Kind() {
	case store.PotSome:
		v, _ := p.Value()
		if v == nil {
			return ValueNotRequested
		}
		return string(v.Status)
	case store.PotNoneError, store.PotSomeError:
		return ValueError
	default:
		return ValueLoading
	}
}

// ActionSignal returns the signal to dispatch for a user action.
func ActionSignal(a Action) (domain.Signal, error) {
	switch a {
	case ActionRetryProfile:
		return domain.ProfileRefreshRequested(1, domain.RefreshReasonUser), nil
	case ActionRetryDeletionStatus:
		return domain.UserDataLoadRequest(domain.UserDataProcessingDelete), nil
	default:
		return domain.Signal{}, domain.NewValidationError("action", fmt.Sprintf("unknown action %q", a))
	}
}
