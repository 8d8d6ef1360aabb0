package temporal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/helixir/profile-service/internal/config"
	"github.com/helixir/profile-service/internal/observability"
	"github.com/helixir/profile-service/internal/profile"
)

// DefaultHealthCheckTimeout bounds Health.
const DefaultHealthCheckTimeout = 5 * time.Second

// workflowIDPrefix prefixes the session ID to form the workflow ID, so that
// there is at most one running refresh per session.
const workflowIDPrefix = "profile-refresh-"

var (
	// ErrWorkflowNotFound indicates the workflow execution was not found.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowAlreadyStarted indicates a workflow with the same ID is already running.
	ErrWorkflowAlreadyStarted = errors.New("workflow already started")

	// ErrQueryFailed indicates the workflow query failed.
	ErrQueryFailed = errors.New("query failed")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("client closed")

	// ErrConnectionFailed indicates a connection failure to the Temporal server.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrNamespaceNotFound indicates the namespace does not exist.
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrInvalidArgument indicates an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDeadlineExceeded indicates the operation deadline was exceeded.
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)

// TemporalError wraps a Temporal error with the operation and workflow it
// concerns.
type TemporalError struct {
	Op         string
	Kind       error
	WorkflowID string
	RunID      string
	Err        error
}

// Error returns the error message.
func (e *TemporalError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.WorkflowID != "" {
		msg += fmt.Sprintf(" [workflowID=%s", e.WorkflowID)
		if e.RunID != "" {
			msg += fmt.Sprintf(", runID=%s", e.RunID)
		}
		msg += "]"
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *TemporalError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches the error kind.
func (e *TemporalError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrapTemporalError maps a Temporal SDK error onto the sentinel kinds.
func wrapTemporalError(op string, err error, workflowID, runID string) error {
	if err == nil {
		return nil
	}

	te := &TemporalError{Op: op, WorkflowID: workflowID, RunID: runID, Err: err}

	var (
		notFound          *serviceerror.NotFound
		alreadyStarted    *serviceerror.WorkflowExecutionAlreadyStarted
		namespaceNotFound *serviceerror.NamespaceNotFound
		invalidArgument   *serviceerror.InvalidArgument
		deadlineExceeded  *serviceerror.DeadlineExceeded
		queryFailed       *serviceerror.QueryFailed
	)

	switch {
	case errors.As(err, &notFound):
		te.Kind = ErrWorkflowNotFound
	case errors.As(err, &alreadyStarted):
		te.Kind = ErrWorkflowAlreadyStarted
	case errors.As(err, &namespaceNotFound):
		te.Kind = ErrNamespaceNotFound
	case errors.As(err, &invalidArgument):
		te.Kind = ErrInvalidArgument
	case errors.As(err, &deadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		te.Kind = ErrDeadlineExceeded
	case errors.As(err, &queryFailed):
		te.Kind = ErrQueryFailed
	default:
		te.Kind = ErrConnectionFailed
	}

	return te
}

// IsWorkflowNotFound reports whether err means the workflow does not exist.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// ClientConfig contains configuration for the Temporal client.
type ClientConfig struct {
	HostPort  string
	Namespace string
	TaskQueue string

	// HealthCheckTimeout defaults to DefaultHealthCheckTimeout.
	HealthCheckTimeout time.Duration
}

// ClientConfigFromConfig builds a ClientConfig from service configuration.
func ClientConfigFromConfig(cfg config.TemporalConfig) ClientConfig {
	return ClientConfig{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		TaskQueue: cfg.TaskQueue,
	}
}

// NewClient dials the Temporal server, routing SDK logs through logger.
func NewClient(cfg ClientConfig, logger zerolog.Logger) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    observability.NewTemporalLogger(logger.With().Str("component", "temporal").Logger()),
	})
	if err != nil {
		return nil, fmt.Errorf("create Temporal client: %w", err)
	}
	return c, nil
}

// RefreshWorkflowInput starts or continues a durable refresh chain.
type RefreshWorkflowInput struct {
	SessionID string
	Attempt   int
	Reason    string
	Retry     profile.RetryPolicy
}

// RefreshStatus is the answer to QueryRefreshStatus.
type RefreshStatus struct {
	SessionID string    `json:"session_id"`
	Attempt   int       `json:"attempt"`
	Reason    string    `json:"reason"`
	State     string    `json:"state"`
	Outcome   string    `json:"outcome,omitempty"`
	Error     string    `json:"error,omitempty"`
	RetryAt   time.Time `json:"retry_at"`
}

// WorkflowID returns the ID of the refresh workflow of sessionID.
func WorkflowID(sessionID string) string {
	return workflowIDPrefix + sessionID
}

// WorkflowDescription contains information about a workflow execution.
type WorkflowDescription struct {
	WorkflowID string     `json:"workflow_id"`
	RunID      string     `json:"run_id"`
	Status     string     `json:"status"`
	StartTime  time.Time  `json:"start_time"`
	CloseTime  *time.Time `json:"close_time,omitempty"`
}

// ProfileWorkflowClient starts and inspects durable refresh workflows.
type ProfileWorkflowClient struct {
	mu                 sync.RWMutex
	client             client.Client
	taskQueue          string
	healthCheckTimeout time.Duration
	closed             bool
}

// NewProfileWorkflowClient wraps c.
func NewProfileWorkflowClient(c client.Client, cfg ClientConfig) *ProfileWorkflowClient {
	timeout := cfg.HealthCheckTimeout
	if timeout == 0 {
		timeout = DefaultHealthCheckTimeout
	}
	return &ProfileWorkflowClient{
		client:             c,
		taskQueue:          cfg.TaskQueue,
		healthCheckTimeout: timeout,
	}
}

// Close closes the underlying Temporal client. It is idempotent.
func (c *ProfileWorkflowClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.client != nil {
		c.client.Close()
	}
	c.closed = true
}

func (c *ProfileWorkflowClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// TaskQueue returns the task queue workflows are started on.
func (c *ProfileWorkflowClient) TaskQueue() string {
	return c.taskQueue
}

// Health checks the connection to the Temporal server.
func (c *ProfileWorkflowClient) Health(ctx context.Context) error {
	if c.isClosed() {
		return &TemporalError{Op: "Health", Kind: ErrClientClosed}
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.healthCheckTimeout)
	defer cancel()

	if _, err := c.client.CheckHealth(checkCtx, &client.CheckHealthRequest{}); err != nil {
		return wrapTemporalError("Health", err, "", "")
	}
	return nil
}

// StartRefresh starts the refresh workflow of in.SessionID. A refresh
// already running for the session is terminated and replaced, so the latest
// trigger always wins.
func (c *ProfileWorkflowClient) StartRefresh(ctx context.Context, in RefreshWorkflowInput) (workflowID, runID string, err error) {
	workflowID = WorkflowID(in.SessionID)
	if c.isClosed() {
		return "", "", &TemporalError{Op: "StartRefresh", Kind: ErrClientClosed, WorkflowID: workflowID}
	}
	if in.SessionID == "" {
		return "", "", &TemporalError{Op: "StartRefresh", Kind: ErrInvalidArgument, Err: errors.New("session ID is required")}
	}
	if in.Attempt < 1 {
		in.Attempt = 1
	}

	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.taskQueue,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_TERMINATE_EXISTING,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}

	run, err := c.client.ExecuteWorkflow(ctx, options, ProfileRefreshWorkflowName, in)
	if err != nil {
		return "", "", wrapTemporalError("StartRefresh", err, workflowID, "")
	}
	return workflowID, run.GetRunID(), nil
}

// CancelRefresh cancels the running refresh of sessionID.
func (c *ProfileWorkflowClient) CancelRefresh(ctx context.Context, sessionID string) error {
	workflowID := WorkflowID(sessionID)
	if c.isClosed() {
		return &TemporalError{Op: "CancelRefresh", Kind: ErrClientClosed, WorkflowID: workflowID}
	}
	if err := c.client.CancelWorkflow(ctx, workflowID, ""); err != nil {
		return wrapTemporalError("CancelRefresh", err, workflowID, "")
	}
	return nil
}

// DescribeRefresh returns the latest run of the refresh of sessionID.
func (c *ProfileWorkflowClient) DescribeRefresh(ctx context.Context, sessionID string) (*WorkflowDescription, error) {
	workflowID := WorkflowID(sessionID)
	if c.isClosed() {
		return nil, &TemporalError{Op: "DescribeRefresh", Kind: ErrClientClosed, WorkflowID: workflowID}
	}

	resp, err := c.client.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return nil, wrapTemporalError("DescribeRefresh", err, workflowID, "")
	}

	info := resp.GetWorkflowExecutionInfo()
	desc := &WorkflowDescription{
		WorkflowID: workflowID,
		RunID:      info.GetExecution().GetRunId(),
		Status:     info.GetStatus().String(),
		StartTime:  info.GetStartTime().AsTime(),
	}
	if info.GetCloseTime() != nil {
		closeTime := info.GetCloseTime().AsTime()
		desc.CloseTime = &closeTime
	}
	return desc, nil
}

// QueryStatus asks the running refresh of sessionID for its status.
func (c *ProfileWorkflowClient) QueryStatus(ctx context.Context, sessionID string) (*RefreshStatus, error) {
	workflowID := WorkflowID(sessionID)
	if c.isClosed() {
		return nil, &TemporalError{Op: "QueryStatus", Kind: ErrClientClosed, WorkflowID: workflowID}
	}

	resp, err := c.client.QueryWorkflow(ctx, workflowID, "", QueryRefreshStatus)
	if err != nil {
		return nil, wrapTemporalError("QueryStatus", err, workflowID, "")
	}

	var status RefreshStatus
	if err := resp.Get(&status); err != nil {
		return nil, &TemporalError{
			Op:         "QueryStatus",
			Kind:       ErrQueryFailed,
			WorkflowID: workflowID,
			Err:        fmt.Errorf("decode query result: %w", err),
		}
	}
	return &status, nil
}
