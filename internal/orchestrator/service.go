package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pathwise/backend/internal/ledger"
	"github.com/pathwise/backend/internal/models"
	"github.com/pathwise/backend/internal/notify"
)

const defaultTaskTimeout = 2 * time.Minute

// TaskStore is the task repository interface the orchestrator owns all
// status transitions through.
type TaskStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int, stage string) error
	Complete(ctx context.Context, id uuid.UUID, resultID uuid.UUID) (bool, error)
	Fail(ctx context.Context, id uuid.UUID, reason string) (bool, error)
}

// GuideStore exposes the generation-lock transitions on the guide resource.
type GuideStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Guide, error)
	TryStartGeneration(ctx context.Context, id uuid.UUID) (bool, error)
	CompleteGeneration(ctx context.Context, id uuid.UUID, content json.RawMessage, resultID uuid.UUID) error
	FailGeneration(ctx context.Context, id uuid.UUID) error
}

// ArtifactStore persists generation results.
type ArtifactStore interface {
	Create(ctx context.Context, a *models.Artifact) error
}

// Ledger debits task costs before any paid work happens.
type Ledger interface {
	Debit(ctx context.Context, userID uuid.UUID, cost int64, reason string, resourceID *uuid.UUID) (int64, error)
}

// PayloadValidator rejects malformed payloads before any side effect.
type PayloadValidator interface {
	ValidateInput(ctx context.Context, taskType string, payload json.RawMessage) error
}

// InsertGenerateTaskTxFunc enqueues the generation job within the given
// transaction. Provided by main as a closure over river.Client.InsertTx.
type InsertGenerateTaskTxFunc func(ctx context.Context, tx pgx.Tx, args GenerateTaskArgs) error

// Service drives the task lifecycle: queued -> processing -> completed or
// failed. It is the only writer of task status.
type Service struct {
	tasks     TaskStore
	guides    GuideStore
	artifacts ArtifactStore
	ledger    Ledger
	validator PayloadValidator
	executors map[string]Executor
	notifier  notify.Notifier
	insertJob InsertGenerateTaskTxFunc
	logger    *slog.Logger
	timeout   time.Duration
}

func NewService(
	tasks TaskStore,
	guides GuideStore,
	artifacts ArtifactStore,
	l Ledger,
	validator PayloadValidator,
	executors map[string]Executor,
	notifier notify.Notifier,
	insertJob InsertGenerateTaskTxFunc,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tasks:     tasks,
		guides:    guides,
		artifacts: artifacts,
		ledger:    l,
		validator: validator,
		executors: executors,
		notifier:  notifier,
		insertJob: insertJob,
		logger:    logger,
		timeout:   defaultTaskTimeout,
	}
}

// Submit validates the request and creates a queued task, enqueuing the
// generation job in the same transaction so the two commit together.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, taskType string, payload json.RawMessage) (uuid.UUID, error) {
	if _, ok := models.TaskCosts[taskType]; !ok {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}
	if _, ok := s.executors[taskType]; !ok {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}
	if s.validator != nil {
		if err := s.validator.ValidateInput(ctx, taskType, payload); err != nil {
			return uuid.Nil, err
		}
	}

	task := &models.Task{
		ID:      uuid.New(),
		UserID:  userID,
		Type:    taskType,
		Status:  models.TaskStatusQueued,
		Stage:   "Queued",
		Payload: payload,
	}

	tx, err := s.tasks.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin submit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.tasks.CreateTx(ctx, tx, task); err != nil {
		return uuid.Nil, fmt.Errorf("create task: %w", err)
	}
	if err := s.insertJob(ctx, tx, GenerateTaskArgs{TaskID: task.ID}); err != nil {
		return uuid.Nil, fmt.Errorf("enqueue generation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit submit tx: %w", err)
	}
	return task.ID, nil
}

// GetTask returns the task for status polling.
func (s *Service) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

// Execute runs one task end to end. Safe under at-least-once triggering: a
// task already claimed or terminal is a no-op. Errors before the claim
// propagate to the job queue, which redelivers against the still-queued
// task. Once the claim succeeds, every failure is terminal and recorded on
// the task: a redelivery cannot re-enter a claimed task, so returning an
// error to the queue would leave it in processing forever.
func (s *Service) Execute(ctx context.Context, taskID uuid.UUID) error {
	claimed, err := s.tasks.Claim(ctx, taskID)
	if err != nil {
		return fmt.Errorf("claim task %s: %w", taskID, err)
	}
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if !claimed {
			return fmt.Errorf("load task %s: %w", taskID, err)
		}
		if _, ferr := s.tasks.Fail(ctx, taskID, fmt.Sprintf("load task: %v", err)); ferr != nil {
			return fmt.Errorf("load task %s: %w", taskID, err)
		}
		return nil
	}
	if !claimed {
		s.logger.Info("duplicate task trigger ignored", "task_id", taskID, "status", task.Status)
		return nil
	}

	executor, ok := s.executors[task.Type]
	if !ok {
		return s.failTask(ctx, task, fmt.Sprintf("no executor for task type %q", task.Type))
	}

	// Generation-lock types are keyed by a shared guide resource: acquire
	// the lock (or reuse the cached result) before any tokens are charged.
	var guideID *uuid.UUID
	if requiresGuide(task.Type) {
		gid, cachedResult, lockErr := s.acquireGuide(ctx, task)
		if lockErr != nil {
			if errors.Is(lockErr, ErrGenerationInProgress) {
				return s.failTask(ctx, task, ErrGenerationInProgress.Error())
			}
			return s.failTask(ctx, task, lockErr.Error())
		}
		if cachedResult != nil {
			return s.completeTask(ctx, task, *cachedResult)
		}
		guideID = &gid
	}

	cost := models.TaskCosts[task.Type]
	if _, err := s.ledger.Debit(ctx, task.UserID, cost, "task:"+task.Type, guideID); err != nil {
		if guideID != nil {
			s.releaseGuide(context.WithoutCancel(ctx), *guideID)
		}
		if ledger.IsInsufficientBalance(err) || errors.Is(err, ledger.ErrAccountNotFound) {
			// The AI provider is never called.
			return s.failTask(ctx, task, err.Error())
		}
		return s.failTask(ctx, task, fmt.Sprintf("debit failed: %v", err))
	}

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report := func(progress int, stage string) {
		if perr := s.tasks.UpdateProgress(ctx, task.ID, progress, stage); perr != nil {
			s.logger.Error("progress update failed", "task_id", task.ID, "error", perr)
		}
	}

	content, execErr := executor.Execute(execCtx, task, report)
	if execErr != nil {
		// Tokens are charged on attempt, not on success; the debit stays.
		if guideID != nil {
			s.releaseGuide(context.WithoutCancel(ctx), *guideID)
		}
		return s.failTask(ctx, task, execErr.Error())
	}

	artifact := &models.Artifact{
		ID:       uuid.New(),
		UserID:   task.UserID,
		TaskType: task.Type,
		Content:  content,
	}
	if err := s.artifacts.Create(ctx, artifact); err != nil {
		if guideID != nil {
			s.releaseGuide(context.WithoutCancel(ctx), *guideID)
		}
		return s.failTask(ctx, task, fmt.Sprintf("persist result: %v", err))
	}
	if guideID != nil {
		if err := s.guides.CompleteGeneration(ctx, *guideID, content, artifact.ID); err != nil {
			// The lock goes back to failed so a later task regenerates; the
			// stored artifact stays orphaned.
			s.releaseGuide(context.WithoutCancel(ctx), *guideID)
			return s.failTask(ctx, task, fmt.Sprintf("record guide result: %v", err))
		}
	}
	return s.completeTask(ctx, task, artifact.ID)
}

// acquireGuide resolves the guide the task targets and takes the generation
// lock. Returns the cached artifact id instead when a previous generation
// already completed.
func (s *Service) acquireGuide(ctx context.Context, task *models.Task) (uuid.UUID, *uuid.UUID, error) {
	gid, err := guideIDFromPayload(task.Payload)
	if err != nil {
		return uuid.Nil, nil, err
	}
	guide, err := s.guides.GetByID(ctx, gid)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("load guide %s: %w", gid, err)
	}
	if guide.GenerationStatus == models.GenerationCompleted && guide.ResultID != nil {
		return gid, guide.ResultID, nil
	}

	started, err := s.guides.TryStartGeneration(ctx, gid)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("lock guide %s: %w", gid, err)
	}
	if !started {
		// Lost the race: either another claimant is generating, or it just
		// finished and the result is now cached.
		guide, err = s.guides.GetByID(ctx, gid)
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("reload guide %s: %w", gid, err)
		}
		if guide.GenerationStatus == models.GenerationCompleted && guide.ResultID != nil {
			return gid, guide.ResultID, nil
		}
		return uuid.Nil, nil, ErrGenerationInProgress
	}
	return gid, nil, nil
}

func (s *Service) releaseGuide(ctx context.Context, guideID uuid.UUID) {
	if err := s.guides.FailGeneration(ctx, guideID); err != nil {
		s.logger.Error("release generation lock failed", "guide_id", guideID, "error", err)
	}
}

func (s *Service) completeTask(ctx context.Context, task *models.Task, resultID uuid.UUID) error {
	ok, err := s.tasks.Complete(ctx, task.ID, resultID)
	if err != nil {
		return fmt.Errorf("complete task %s: %w", task.ID, err)
	}
	if !ok {
		s.logger.Warn("task no longer completable", "task_id", task.ID)
		return nil
	}
	s.logger.Info("task completed", "task_id", task.ID, "type", task.Type, "result_id", resultID)
	if s.notifier != nil {
		event := notify.Event{UserID: task.UserID, TaskType: task.Type, TaskID: task.ID}
		if nerr := s.notifier.TaskCompleted(ctx, event); nerr != nil {
			// Notification delivery is best-effort; never fail the task.
			s.logger.Error("completion notification failed", "task_id", task.ID, "error", nerr)
		}
	}
	return nil
}

func (s *Service) failTask(ctx context.Context, task *models.Task, reason string) error {
	ok, err := s.tasks.Fail(ctx, task.ID, reason)
	if err != nil {
		return fmt.Errorf("fail task %s: %w", task.ID, err)
	}
	if ok {
		s.logger.Warn("task failed", "task_id", task.ID, "type", task.Type, "reason", reason)
	}
	return nil
}

func requiresGuide(taskType string) bool {
	return taskType == models.TaskTypePrepGuide || taskType == models.TaskTypeTrainingSlideshow
}

func guideIDFromPayload(payload json.RawMessage) (uuid.UUID, error) {
	var p struct {
		GuideID uuid.UUID `json:"guide_id"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return uuid.Nil, fmt.Errorf("parse payload: %w", err)
	}
	if p.GuideID == uuid.Nil {
		return uuid.Nil, errors.New("payload missing guide_id")
	}
	return p.GuideID, nil
}
