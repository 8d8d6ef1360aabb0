package temporal

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	// TaskQueue is the name of the task queue to poll.
	TaskQueue string

	// MaxConcurrentActivityExecutionSize defaults to 100.
	MaxConcurrentActivityExecutionSize int

	// MaxConcurrentWorkflowTaskExecutionSize defaults to 50.
	MaxConcurrentWorkflowTaskExecutionSize int

	// MaxConcurrentActivityTaskPollers defaults to 4.
	MaxConcurrentActivityTaskPollers int

	// MaxConcurrentWorkflowTaskPollers defaults to 2.
	MaxConcurrentWorkflowTaskPollers int
}

// DefaultWorkerConfig returns a WorkerConfig with default values.
func DefaultWorkerConfig(taskQueue string) WorkerConfig {
	return WorkerConfig{
		TaskQueue:                              taskQueue,
		MaxConcurrentActivityExecutionSize:     100,
		MaxConcurrentWorkflowTaskExecutionSize: 50,
		MaxConcurrentActivityTaskPollers:       4,
		MaxConcurrentWorkflowTaskPollers:       2,
	}
}

// workerOptionsFromConfig builds worker.Options, applying defaults for zero fields.
func workerOptionsFromConfig(cfg WorkerConfig) worker.Options {
	def := DefaultWorkerConfig(cfg.TaskQueue)
	pick := func(v, fallback int) int {
		if v == 0 {
			return fallback
		}
		return v
	}
	return worker.Options{
		MaxConcurrentActivityExecutionSize:     pick(cfg.MaxConcurrentActivityExecutionSize, def.MaxConcurrentActivityExecutionSize),
		MaxConcurrentWorkflowTaskExecutionSize: pick(cfg.MaxConcurrentWorkflowTaskExecutionSize, def.MaxConcurrentWorkflowTaskExecutionSize),
		MaxConcurrentActivityTaskPollers:       pick(cfg.MaxConcurrentActivityTaskPollers, def.MaxConcurrentActivityTaskPollers),
		MaxConcurrentWorkflowTaskPollers:       pick(cfg.MaxConcurrentWorkflowTaskPollers, def.MaxConcurrentWorkflowTaskPollers),
	}
}

// Registrar is the registration surface shared by worker.Worker and the
// SDK test environments.
type Registrar interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// WorkerManager manages the lifecycle of a Temporal worker.
type WorkerManager struct {
	worker    worker.Worker
	taskQueue string
}

// NewWorkerManager creates a worker polling cfg.TaskQueue.
func NewWorkerManager(c client.Client, cfg WorkerConfig) (*WorkerManager, error) {
	if cfg.TaskQueue == "" {
		return nil, errors.New("task queue is required")
	}
	return &WorkerManager{
		worker:    worker.New(c, cfg.TaskQueue, workerOptionsFromConfig(cfg)),
		taskQueue: cfg.TaskQueue,
	}, nil
}

// Registrar returns the worker for workflow and activity registration.
func (m *WorkerManager) Registrar() Registrar {
	return m.worker
}

// TaskQueue returns the configured task queue name.
func (m *WorkerManager) TaskQueue() string {
	return m.taskQueue
}

// Start runs the worker until ctx is cancelled or the worker fails.
func (m *WorkerManager) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.worker.Run(worker.InterruptCh())
	}()

	select {
	case <-ctx.Done():
		m.worker.Stop()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Stop stops the worker gracefully.
func (m *WorkerManager) Stop() {
	m.worker.Stop()
}
