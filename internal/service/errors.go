// Package service runs repository ingestion jobs.
package service

import (
	"errors"
	"fmt"
)

// Error classes. Fatal classes abort the job; the rest degrade a stage.
var (
	// ErrClone is fatal: nothing can be extracted without a working copy.
	ErrClone = errors.New("clone failed")

	// ErrExtraction degrades the stage to an empty result.
	ErrExtraction = errors.New("extraction failed")

	// ErrFormatting is per entity: the entity is skipped and counted.
	ErrFormatting = errors.New("formatting failed")

	// ErrStore is fatal: documents that never reach storage are never indexed.
	ErrStore = errors.New("document upload failed")

	// ErrSyncTrigger is logged only; the sync can be retried out of band.
	ErrSyncTrigger = errors.New("knowledge index sync failed")

	// ErrCancelled marks a job abandoned between stages.
	ErrCancelled = errors.New("cancelled")

	// ErrInvalidTransition indicates a status change that would move backwards
	// or leave a terminal state.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrInvalidRequest indicates a submission that cannot be run.
	ErrInvalidRequest = errors.New("invalid ingestion request")

	// ErrPoolOverloaded indicates the worker pool rejected the job.
	ErrPoolOverloaded = errors.New("worker pool overloaded")
)

// StageError ties an error class to the stage that produced it.
type StageError struct {
	Stage string
	Class error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Class)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Class, e.Err)
}

// Unwrap exposes both the class and the cause to errors.Is and errors.As.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Class}
	}
	return []error{e.Class, e.Err}
}

func stageError(stage string, class, err error) error {
	return &StageError{Stage: stage, Class: class, Err: err}
}
