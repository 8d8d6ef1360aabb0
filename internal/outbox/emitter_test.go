package outbox

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/profile-service/internal/domain"
)

func TestNewEmitter(t *testing.T) {
	t.Run("uses default service name", func(t *testing.T) {
		e := NewEmitter(EmitterConfig{})
		assert.Equal(t, "profile-service", e.config.ServiceName)
	})

	t.Run("keeps configured service name", func(t *testing.T) {
		e := NewEmitter(EmitterConfig{ServiceName: "profile-worker"})
		assert.Equal(t, "profile-worker", e.config.ServiceName)
	})
}

func TestEmitter_Emit(t *testing.T) {
	e := NewEmitter(EmitterConfig{ServiceName: "profile-service"})

	t.Run("builds failure event", func(t *testing.T) {
		event, err := e.Emit(EmitParams{
			SessionID:     "default",
			Signal:        domain.ProfileLoadFailure(errors.New("response status 500")),
			CorrelationID: "req-1",
		})
		require.NoError(t, err)

		_, err = uuid.Parse(event.EventID)
		assert.NoError(t, err)
		assert.Equal(t, "profile.load_failure", event.EventType)
		assert.Equal(t, "default", event.AggregateID)
		assert.Equal(t, domain.AggregateTypeSession, event.AggregateType)
		assert.Equal(t, "profile-service", event.Metadata["source"])
		assert.Equal(t, "req-1", event.Metadata["correlation_id"])
		assert.NotContains(t, event.Metadata, "workflow_id")

		var payload domain.LoadFailedPayload
		require.NoError(t, json.Unmarshal(event.Payload, &payload))
		assert.Equal(t, "response status 500", payload.Error)
	})

	t.Run("records workflow id", func(t *testing.T) {
		event, err := e.Emit(EmitParams{
			SessionID:  "default",
			Signal:     domain.SessionExpired(),
			WorkflowID: "profile-refresh-default",
		})
		require.NoError(t, err)
		assert.Equal(t, "profile-refresh-default", event.Metadata["workflow_id"])
	})

	t.Run("requires session id", func(t *testing.T) {
		_, err := e.Emit(EmitParams{Signal: domain.SessionExpired()})
		assert.EqualError(t, err, "session_id is required")
	})

	t.Run("requires signal type", func(t *testing.T) {
		_, err := e.Emit(EmitParams{SessionID: "default"})
		assert.EqualError(t, err, "signal type is required")
	})

	t.Run("rejects unknown signal", func(t *testing.T) {
		_, err := e.Emit(EmitParams{SessionID: "default", Signal: domain.Signal{Type: "profile.exploded"}})
		assert.Error(t, err)
	})
}
