// Package trigger consumes Kafka topics that drive the refresh workflow:
// refresh commands from other services and the events of durable refreshes.
package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/profile"
	"github.com/helixir/profile-service/internal/temporal"
)

// Command targets.
const (
	TargetProfile        = "profile"
	TargetDeletionStatus = "deletion_status"
)

// RefreshCommand is the JSON body of a message on the command topic.
type RefreshCommand struct {
	// SessionID addresses the session. Empty means the listener's session.
	SessionID string `json:"session_id"`
	// Target is TargetProfile (the default) or TargetDeletionStatus.
	Target string `json:"target"`
	// Durable runs the profile refresh as a Temporal workflow.
	Durable bool   `json:"durable"`
	Reason  string `json:"reason"`
}

// MessageReader is the subset of *kafka.Reader used by the consumers.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ReaderConfig holds configuration for a Kafka reader.
type ReaderConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the topic to consume.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
}

// NewKafkaReader creates a consumer-group reader for cfg.Topic.
func NewKafkaReader(cfg ReaderConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
}

// DurableStarter starts durable refresh workflows.
type DurableStarter interface {
	StartRefresh(ctx context.Context, in temporal.RefreshWorkflowInput) (workflowID, runID string, err error)
}

// Listener turns refresh commands into triggers of the session's workflows.
type Listener struct {
	reader     MessageReader
	dispatcher profile.Dispatcher
	sessionID  string
	durable    DurableStarter
	retry      profile.RetryPolicy
	logger     zerolog.Logger
}

// Option configures a Listener.
type Option func(*Listener)

// WithDurableStarter enables durable commands, started with the given retry policy.
func WithDurableStarter(s DurableStarter, retry profile.RetryPolicy) Option {
	return func(l *Listener) {
		l.durable = s
		l.retry = retry
	}
}

// NewListener creates a command listener for sessionID.
func NewListener(reader MessageReader, dispatcher profile.Dispatcher, sessionID string, logger zerolog.Logger, opts ...Option) *Listener {
	l := &Listener{
		reader:     reader,
		dispatcher: dispatcher,
		sessionID:  sessionID,
		logger:     logger.With().Str("component", "command_listener").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run starts the listener loop. Blocks until ctx is cancelled or the reader
// is closed.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting command listener")

	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("command listener stopped via context cancellation")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received refresh command")

		var cmd RefreshCommand
		if err := json.Unmarshal(msg.Value, &cmd); err != nil {
			l.logger.Error().Err(err).
				Str("raw_value", string(msg.Value)).
				Msg("failed to unmarshal refresh command")
			continue
		}

		if err := l.handle(ctx, cmd); err != nil {
			l.logger.Error().Err(err).
				Str("session_id", cmd.SessionID).
				Str("target", cmd.Target).
				Msg("failed to handle refresh command")
		}
	}
}

func (l *Listener) handle(ctx context.Context, cmd RefreshCommand) error {
	if cmd.SessionID == "" {
		cmd.SessionID = l.sessionID
	}
	if cmd.SessionID != l.sessionID {
		l.logger.Debug().Str("session_id", cmd.SessionID).Msg("command for another session, skipping")
		return nil
	}
	if cmd.Reason == "" {
		cmd.Reason = domain.RefreshReasonCommand
	}

	switch cmd.Target {
	case "", TargetProfile:
		if !cmd.Durable {
			l.dispatcher.Dispatch(ctx, domain.ProfileRefreshRequested(1, cmd.Reason))
			return nil
		}
		if l.durable == nil {
			return errors.New("durable refresh is not configured")
		}
		workflowID, runID, err := l.durable.StartRefresh(ctx, temporal.RefreshWorkflowInput{
			SessionID: cmd.SessionID,
			Attempt:   1,
			Reason:    cmd.Reason,
			Retry:     l.retry,
		})
		if err != nil {
			return fmt.Errorf("start durable refresh: %w", err)
		}
		l.logger.Info().
			Str("workflow_id", workflowID).
			Str("run_id", runID).
			Msg("started durable refresh")
		return nil
	case TargetDeletionStatus:
		l.dispatcher.Dispatch(ctx, domain.UserDataLoadRequest(domain.UserDataProcessingDelete))
		return nil
	default:
		return fmt.Errorf("unknown command target %q", cmd.Target)
	}
}

// Close closes the Kafka reader.
func (l *Listener) Close() error {
	l.logger.Info().Msg("closing command listener")
	return l.reader.Close()
}
