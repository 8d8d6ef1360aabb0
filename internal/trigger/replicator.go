package trigger

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/outbox"
	"github.com/helixir/profile-service/internal/profile"
)

// Replicator feeds the signals published by durable refreshes of a session
// back into that session's store. Events without a workflow ID were
// dispatched locally and are ignored. Re-triggers are ignored too: the
// workflow continues as new on its own.
type Replicator struct {
	reader     MessageReader
	dispatcher profile.Dispatcher
	sessionID  string
	logger     zerolog.Logger
}

// NewReplicator creates a Replicator reading the event topic.
func NewReplicator(reader MessageReader, dispatcher profile.Dispatcher, sessionID string, logger zerolog.Logger) *Replicator {
	return &Replicator{
		reader:     reader,
		dispatcher: dispatcher,
		sessionID:  sessionID,
		logger:     logger.With().Str("component", "event_replicator").Logger(),
	}
}

// Run replicates events until ctx is cancelled or the reader is closed.
func (r *Replicator) Run(ctx context.Context) error {
	r.logger.Info().Msg("starting event replicator")

	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			r.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		if _, err := r.replicate(ctx, msg.Value); err != nil {
			r.logger.Error().Err(err).
				Int64("offset", msg.Offset).
				Msg("failed to replicate event")
		}
	}
}

// replicate reports whether the event was dispatched.
func (r *Replicator) replicate(ctx context.Context, value []byte) (bool, error) {
	event, err := outbox.ParseMessage(value)
	if err != nil {
		return false, err
	}
	if event.AggregateID != r.sessionID {
		return false, nil
	}
	workflowID, _ := event.Metadata["workflow_id"].(string)
	if workflowID == "" {
		return false, nil
	}
	if event.EventType == string(domain.SignalProfileRefreshRequested) {
		return false, nil
	}

	s, err := domain.SignalFromEvent(event)
	if err != nil {
		return false, err
	}
	s.Replicated = true
	r.logger.Debug().
		Str("workflow_id", workflowID).
		Str("signal", string(s.Type)).
		Msg("replicating durable signal")
	r.dispatcher.Dispatch(ctx, s)
	return true, nil
}

// Close closes the Kafka reader.
func (r *Replicator) Close() error {
	return r.reader.Close()
}
