package orchestrator

import "errors"

// ErrGenerationInProgress is returned when another invocation already holds
// the generation lock for the target resource. Callers should poll the
// resource rather than resubmit.
var ErrGenerationInProgress = errors.New("generation already in progress")

// ErrUnknownTaskType rejects a submission whose type has no executor.
var ErrUnknownTaskType = errors.New("unknown task type")

// ErrTaskNotFound is returned for lookups of nonexistent tasks.
var ErrTaskNotFound = errors.New("task not found")
