package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("stores and retrieves request ID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-123")
		assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		assert.Equal(t, "", RequestIDFromContext(context.Background()))
	})
}

func TestSessionIDContext(t *testing.T) {
	ctx := WithSessionID(context.Background(), "session-1")
	assert.Equal(t, "session-1", SessionIDFromContext(ctx))
	assert.Equal(t, "", SessionIDFromContext(context.Background()))
}

func TestWorkflowContext(t *testing.T) {
	t.Run("stores and retrieves workflow and run IDs", func(t *testing.T) {
		ctx := WithWorkflow(context.Background(), "wf-123", "run-456")

		workflowID, runID := WorkflowFromContext(ctx)
		assert.Equal(t, "wf-123", workflowID)
		assert.Equal(t, "run-456", runID)
	})

	t.Run("returns empty strings when not set", func(t *testing.T) {
		workflowID, runID := WorkflowFromContext(context.Background())
		assert.Empty(t, workflowID)
		assert.Empty(t, runID)
	})
}

func TestContextKeyIsolation(t *testing.T) {
	// A plain string key with the same text must not collide.
	ctx := context.WithValue(context.Background(), "request_id", "collision") //nolint:staticcheck
	assert.Equal(t, "", RequestIDFromContext(ctx))
}
