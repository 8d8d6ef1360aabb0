package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"github.com/helixir/profile-service/internal/config"
	"github.com/helixir/profile-service/internal/profile"
)

func TestTemporalError(t *testing.T) {
	t.Run("Error includes all fields", func(t *testing.T) {
		err := &TemporalError{
			Op:         "StartRefresh",
			Kind:       ErrWorkflowNotFound,
			WorkflowID: "profile-refresh-sess-1",
			RunID:      "run-456",
			Err:        errors.New("underlying error"),
		}

		msg := err.Error()
		assert.Contains(t, msg, "StartRefresh")
		assert.Contains(t, msg, "workflow not found")
		assert.Contains(t, msg, "profile-refresh-sess-1")
		assert.Contains(t, msg, "run-456")
		assert.Contains(t, msg, "underlying error")
	})

	t.Run("Error without workflow IDs", func(t *testing.T) {
		msg := (&TemporalError{Op: "Health", Kind: ErrConnectionFailed}).Error()
		assert.Contains(t, msg, "Health")
		assert.Contains(t, msg, "connection failed")
		assert.NotContains(t, msg, "workflowID")
	})

	t.Run("Is matches Kind and Unwrap returns cause", func(t *testing.T) {
		cause := errors.New("cause")
		err := &TemporalError{Op: "Test", Kind: ErrWorkflowNotFound, Err: cause}

		assert.True(t, errors.Is(err, ErrWorkflowNotFound))
		assert.False(t, errors.Is(err, ErrConnectionFailed))
		assert.Equal(t, cause, errors.Unwrap(err))
		assert.True(t, IsWorkflowNotFound(err))
	})
}

func TestWrapTemporalError(t *testing.T) {
	assert.Nil(t, wrapTemporalError("Test", nil, "", ""))

	tests := []struct {
		name string
		err  error
		kind error
	}{
		{name: "not found", err: serviceerror.NewNotFound("not found"), kind: ErrWorkflowNotFound},
		{name: "already started", err: serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "", ""), kind: ErrWorkflowAlreadyStarted},
		{name: "namespace", err: serviceerror.NewNamespaceNotFound("default"), kind: ErrNamespaceNotFound},
		{name: "invalid argument", err: serviceerror.NewInvalidArgument("bad"), kind: ErrInvalidArgument},
		{name: "deadline", err: context.DeadlineExceeded, kind: ErrDeadlineExceeded},
		{name: "query failed", err: serviceerror.NewQueryFailed("panic in handler"), kind: ErrQueryFailed},
		{name: "unknown", err: errors.New("dial tcp: refused"), kind: ErrConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := wrapTemporalError("Test", tt.err, "wf-1", "")

			var te *TemporalError
			require.True(t, errors.As(result, &te))
			assert.Equal(t, tt.kind, te.Kind)
			assert.Equal(t, "wf-1", te.WorkflowID)
		})
	}
}

func TestClientConfigFromConfig(t *testing.T) {
	cfg := ClientConfigFromConfig(config.TemporalConfig{
		HostPort:  "temporal:7233",
		Namespace: "profiles",
		TaskQueue: "profile-refresh",
	})

	assert.Equal(t, "temporal:7233", cfg.HostPort)
	assert.Equal(t, "profiles", cfg.Namespace)
	assert.Equal(t, "profile-refresh", cfg.TaskQueue)
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "profile-refresh-sess-1", WorkflowID("sess-1"))
	assert.NotEqual(t, WorkflowID("a"), WorkflowID("b"))
}

func TestProfileWorkflowClient_StartRefresh(t *testing.T) {
	t.Run("starts with terminate-existing policy", func(t *testing.T) {
		mc := &mocks.Client{}
		run := &mocks.WorkflowRun{}
		run.On("GetRunID").Return("run-1")

		in := RefreshWorkflowInput{SessionID: "sess-1", Reason: "user", Retry: profile.DefaultRetryPolicy()}
		expected := in
		expected.Attempt = 1

		mc.On("ExecuteWorkflow", mock.Anything, mock.MatchedBy(func(opts client.StartWorkflowOptions) bool {
			return opts.ID == "profile-refresh-sess-1" &&
				opts.TaskQueue == "profile-refresh" &&
				opts.WorkflowIDConflictPolicy == enumspb.WORKFLOW_ID_CONFLICT_POLICY_TERMINATE_EXISTING
		}), ProfileRefreshWorkflowName, expected).Return(run, nil)

		c := NewProfileWorkflowClient(mc, ClientConfig{TaskQueue: "profile-refresh"})
		workflowID, runID, err := c.StartRefresh(context.Background(), in)
		require.NoError(t, err)

		assert.Equal(t, "profile-refresh-sess-1", workflowID)
		assert.Equal(t, "run-1", runID)
		mc.AssertExpectations(t)
	})

	t.Run("maps start errors", func(t *testing.T) {
		mc := &mocks.Client{}
		mc.On("ExecuteWorkflow", mock.Anything, mock.Anything, ProfileRefreshWorkflowName, mock.Anything).
			Return(nil, serviceerror.NewNamespaceNotFound("profiles"))

		c := NewProfileWorkflowClient(mc, ClientConfig{TaskQueue: "profile-refresh"})
		_, _, err := c.StartRefresh(context.Background(), RefreshWorkflowInput{SessionID: "sess-1"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNamespaceNotFound))
	})

	t.Run("requires a session", func(t *testing.T) {
		c := NewProfileWorkflowClient(&mocks.Client{}, ClientConfig{})
		_, _, err := c.StartRefresh(context.Background(), RefreshWorkflowInput{})
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})
}

func TestProfileWorkflowClient_QueryStatus(t *testing.T) {
	mc := &mocks.Client{}
	mc.On("QueryWorkflow", mock.Anything, "profile-refresh-sess-1", "", QueryRefreshStatus).
		Return(nil, serviceerror.NewNotFound("workflow execution not found"))

	c := NewProfileWorkflowClient(mc, ClientConfig{})
	status, err := c.QueryStatus(context.Background(), "sess-1")
	require.Error(t, err)
	assert.Nil(t, status)
	assert.True(t, IsWorkflowNotFound(err))
}

func TestProfileWorkflowClient_CancelRefresh(t *testing.T) {
	mc := &mocks.Client{}
	mc.On("CancelWorkflow", mock.Anything, "profile-refresh-sess-1", "").Return(nil)

	c := NewProfileWorkflowClient(mc, ClientConfig{})
	require.NoError(t, c.CancelRefresh(context.Background(), "sess-1"))
	mc.AssertExpectations(t)
}

func TestProfileWorkflowClient_Closed(t *testing.T) {
	mc := &mocks.Client{}
	mc.On("Close").Return().Once()

	c := NewProfileWorkflowClient(mc, ClientConfig{})
	c.Close()
	c.Close()
	mc.AssertNumberOfCalls(t, "Close", 1)

	ctx := context.Background()

	_, _, err := c.StartRefresh(ctx, RefreshWorkflowInput{SessionID: "sess-1"})
	assert.True(t, errors.Is(err, ErrClientClosed))

	assert.True(t, errors.Is(c.CancelRefresh(ctx, "sess-1"), ErrClientClosed))

	_, err = c.DescribeRefresh(ctx, "sess-1")
	assert.True(t, errors.Is(err, ErrClientClosed))

	_, err = c.QueryStatus(ctx, "sess-1")
	assert.True(t, errors.Is(err, ErrClientClosed))

	assert.True(t, errors.Is(c.Health(ctx), ErrClientClosed))
}

func TestNewProfileWorkflowClient_Defaults(t *testing.T) {
	c := NewProfileWorkflowClient(nil, ClientConfig{TaskQueue: "q"})
	assert.Equal(t, "q", c.TaskQueue())
	assert.Equal(t, DefaultHealthCheckTimeout, c.healthCheckTimeout)

	c = NewProfileWorkflowClient(nil, ClientConfig{HealthCheckTimeout: time.Second})
	assert.Equal(t, time.Second, c.healthCheckTimeout)
}
