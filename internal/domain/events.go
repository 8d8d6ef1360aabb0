package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AggregateTypeSession is the aggregate type of all events emitted by the service.
const AggregateTypeSession = "session"

// OutboxEvent represents a signal serialized for publication.
type OutboxEvent struct {
	EventID       string
	EventVersion  int
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       []byte
	Metadata      map[string]interface{}
	CreatedAt     time.Time
}

// NewOutboxEvent creates a new outbox event with the given parameters.
// The payload is JSON-serialized automatically.
func NewOutboxEvent(eventType, aggregateID, aggregateType string, payload interface{}) (*OutboxEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		EventID:       uuid.New().String(),
		EventVersion:  1,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payloadBytes,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// WithMetadata sets the metadata on the event.
func (e *OutboxEvent) WithMetadata(metadata map[string]interface{}) *OutboxEvent {
	e.Metadata = metadata
	return e
}

// ProfileLoadedPayload is the payload for profile.load_success events.
type ProfileLoadedPayload struct {
	Profile *Profile `json:"profile"`
}

// LoadFailedPayload is the payload for the load_failure events.
type LoadFailedPayload struct {
	Error  string                   `json:"error"`
	Choice UserDataProcessingChoice `json:"choice,omitempty"`
}

// RefreshRequestedPayload is the payload for profile.refresh_requested events.
type RefreshRequestedPayload struct {
	Attempt int    `json:"attempt"`
	Reason  string `json:"reason"`
}

// UserDataLoadedPayload is the payload for user_data_processing.load_success events.
type UserDataLoadedPayload struct {
	Choice   UserDataProcessingChoice `json:"choice"`
	UserData *UserDataProcessing      `json:"user_data,omitempty"`
}

// ChoicePayload is the payload for user_data_processing.load_request events.
type ChoicePayload struct {
	Choice UserDataProcessingChoice `json:"choice"`
}

// NewSignalEvent converts a signal into an outbox event for the given session.
func NewSignalEvent(sessionID string, s Signal) (*OutboxEvent, error) {
	var payload interface{}
	switch s.Type {
	case SignalProfileLoadSuccess:
		payload = ProfileLoadedPayload{Profile: s.Profile}
	case SignalProfileLoadFailure, SignalUserDataLoadFailure:
		payload = LoadFailedPayload{Error: s.ErrorMessage(), Choice: s.Choice}
	case SignalProfileRefreshRequested:
		payload = RefreshRequestedPayload{Attempt: s.Attempt, Reason: s.Reason}
	case SignalUserDataLoadSuccess:
		payload = UserDataLoadedPayload{Choice: s.Choice, UserData: s.UserData}
	case SignalUserDataLoadRequest:
		payload = ChoicePayload{Choice: s.Choice}
	case SignalProfileLoadRequest, SignalSessionExpired:
		payload = struct{}{}
	default:
		return nil, fmt.Errorf("unknown signal type %q", s.Type)
	}
	return NewOutboxEvent(string(s.Type), sessionID, AggregateTypeSession, payload)
}

// SignalFromEvent rebuilds the signal an event was created from.
func SignalFromEvent(e *OutboxEvent) (Signal, error) {
	s := Signal{Type: SignalType(e.EventType)}
	var err error
	switch s.Type {
	case SignalProfileLoadSuccess:
		var p ProfileLoadedPayload
		err = json.Unmarshal(e.Payload, &p)
		s.Profile = p.Profile
	case SignalProfileLoadFailure, SignalUserDataLoadFailure:
		var p LoadFailedPayload
		err = json.Unmarshal(e.Payload, &p)
		s.Err = errors.New(p.Error)
		s.Choice = p.Choice
	case SignalProfileRefreshRequested:
		var p RefreshRequestedPayload
		err = json.Unmarshal(e.Payload, &p)
		s.Attempt = p.Attempt
		s.Reason = p.Reason
	case SignalUserDataLoadSuccess:
		var p UserDataLoadedPayload
		err = json.Unmarshal(e.Payload, &p)
		s.Choice = p.Choice
		s.UserData = p.UserData
	case SignalUserDataLoadRequest:
		var p ChoicePayload
		err = json.Unmarshal(e.Payload, &p)
		s.Choice = p.Choice
	case SignalProfileLoadRequest, SignalSessionExpired:
	default:
		return Signal{}, fmt.Errorf("unknown event type %q", e.EventType)
	}
	if err != nil {
		return Signal{}, fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return s, nil
}
