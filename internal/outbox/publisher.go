package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/observability"
)

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// WriterConfig configures the Kafka writer.
type WriterConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
}

// NewKafkaWriter creates a writer that keys messages by session so that the
// events of one session stay ordered within a partition.
func NewKafkaWriter(cfg WriterConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}
}

// wireEvent is the JSON shape of a published event.
type wireEvent struct {
	EventID       string                 `json:"event_id"`
	EventVersion  int                    `json:"event_version"`
	EventType     string                 `json:"event_type"`
	AggregateID   string                 `json:"aggregate_id"`
	AggregateType string                 `json:"aggregate_type"`
	Payload       json.RawMessage        `json:"payload"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// Publisher publishes signals to Kafka.
type Publisher struct {
	emitter   *Emitter
	writer    MessageWriter
	sessionID string
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewPublisher creates a Publisher for the events of sessionID.
func NewPublisher(emitter *Emitter, writer MessageWriter, sessionID string, metrics *observability.Metrics, logger zerolog.Logger) *Publisher {
	return &Publisher{
		emitter:   emitter,
		writer:    writer,
		sessionID: sessionID,
		metrics:   metrics,
		logger:    logger.With().Str("component", "signal_publisher").Logger(),
	}
}

// Message builds the Kafka message for an event.
func Message(event *domain.OutboxEvent) (kafka.Message, error) {
	value, err := json.Marshal(wireEvent{
		EventID:       event.EventID,
		EventVersion:  event.EventVersion,
		EventType:     event.EventType,
		AggregateID:   event.AggregateID,
		AggregateType: event.AggregateType,
		Payload:       event.Payload,
		Metadata:      event.Metadata,
		CreatedAt:     event.CreatedAt,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: value,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}, nil
}

// ParseMessage decodes the value of a message written by Message.
func ParseMessage(value []byte) (*domain.OutboxEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(value, &w); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if w.EventType == "" || w.AggregateID == "" {
		return nil, fmt.Errorf("event is missing type or aggregate")
	}
	return &domain.OutboxEvent{
		EventID:       w.EventID,
		EventVersion:  w.EventVersion,
		AggregateID:   w.AggregateID,
		AggregateType: w.AggregateType,
		EventType:     w.EventType,
		Payload:       w.Payload,
		Metadata:      w.Metadata,
		CreatedAt:     w.CreatedAt,
	}, nil
}

// Publish emits and writes one event.
func (p *Publisher) Publish(ctx context.Context, params EmitParams) error {
	if params.SessionID == "" {
		params.SessionID = p.sessionID
	}
	if params.CorrelationID == "" {
		params.CorrelationID = observability.RequestIDFromContext(ctx)
	}
	signalType := string(params.Signal.Type)

	event, err := p.emitter.Emit(params)
	if err != nil {
		p.metrics.RecordSignalPublishFailed(signalType)
		return fmt.Errorf("emit event: %w", err)
	}
	msg, err := Message(event)
	if err != nil {
		p.metrics.RecordSignalPublishFailed(signalType)
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.RecordSignalPublishFailed(signalType)
		return fmt.Errorf("write event %s: %w", event.EventID, err)
	}

	p.metrics.RecordSignalPublished(signalType)
	p.logger.Debug().
		Str("event_id", event.EventID).
		Str("event_type", event.EventType).
		Msg("signal published")
	return nil
}

// PublishSignal publishes s for the publisher's session.
func (p *Publisher) PublishSignal(ctx context.Context, s domain.Signal) error {
	return p.Publish(ctx, EmitParams{Signal: s})
}

// Run publishes every signal received until ctx is done or signals is
// closed. Replicated signals are skipped. Publish failures are logged and
// do not stop the loop.
func (p *Publisher) Run(ctx context.Context, signals <-chan domain.Signal) error {
	p.logger.Info().Msg("signal publisher started")
	defer p.logger.Info().Msg("signal publisher stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-signals:
			if !ok {
				return nil
			}
			if s.Replicated {
				continue
			}
			if err := p.PublishSignal(ctx, s); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.logger.Error().Err(err).Str("signal", string(s.Type)).Msg("failed to publish signal")
			}
		}
	}
}

// Close closes the underlying writer.
func (p *Publisher) Close() error {
	p.logger.Info().Msg("closing signal publisher")
	return p.writer.Close()
}
