package outbox

import (
	"fmt"

	"github.com/helixir/profile-service/internal/domain"
)

const defaultServiceName = "profile-service"

// EmitterConfig configures the Emitter with service context.
type EmitterConfig struct {
	// ServiceName identifies the source service in event metadata.
	ServiceName string
}

// EmitParams contains the parameters for emitting an event.
type EmitParams struct {
	// SessionID is the aggregate ID of the event.
	SessionID string
	// Signal is the signal being published.
	Signal domain.Signal
	// CorrelationID for request tracing (optional).
	CorrelationID string
	// WorkflowID of the durable workflow that produced the signal (optional).
	WorkflowID string
}

// Emitter turns signals into outbox events enriched with service context.
type Emitter struct {
	config EmitterConfig
}

// NewEmitter creates a new Emitter with the given service configuration.
func NewEmitter(config EmitterConfig) *Emitter {
	if config.ServiceName == "" {
		config.ServiceName = defaultServiceName
	}
	return &Emitter{config: config}
}

// Emit creates an event from the given parameters.
func (e *Emitter) Emit(params EmitParams) (*domain.OutboxEvent, error) {
	if params.SessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if params.Signal.Type == "" {
		return nil, fmt.Errorf("signal type is required")
	}

	event, err := domain.NewSignalEvent(params.SessionID, params.Signal)
	if err != nil {
		return nil, fmt.Errorf("build event: %w", err)
	}

	metadata := map[string]interface{}{
		"source": e.config.ServiceName,
	}
	if params.CorrelationID != "" {
		metadata["correlation_id"] = params.CorrelationID
	}
	if params.WorkflowID != "" {
		metadata["workflow_id"] = params.WorkflowID
	}

	return event.WithMetadata(metadata), nil
}
