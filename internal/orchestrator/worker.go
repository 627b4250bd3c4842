package orchestrator

import (
	"context"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// GenerateTaskArgs is the queue payload: just the task id, since the task
// row already holds everything else. Kind must stay stable across deploys.
type GenerateTaskArgs struct {
	TaskID uuid.UUID `json:"task_id"`
}

func (GenerateTaskArgs) Kind() string { return "generate_task" }

// TaskRunner is the contract the worker needs from the orchestrator.
type TaskRunner interface {
	Execute(ctx context.Context, taskID uuid.UUID) error
}

// GenerateTaskWorker is the River worker that drives queued tasks to a
// terminal state. River delivers at least once; Execute tolerates duplicate
// triggers.
type GenerateTaskWorker struct {
	river.WorkerDefaults[GenerateTaskArgs]
	runner TaskRunner
}

func NewGenerateTaskWorker(runner TaskRunner) *GenerateTaskWorker {
	return &GenerateTaskWorker{runner: runner}
}

func (w *GenerateTaskWorker) Work(ctx context.Context, job *river.Job[GenerateTaskArgs]) error {
	return w.runner.Execute(ctx, job.Args.TaskID)
}
