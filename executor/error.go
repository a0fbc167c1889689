package executor

import (
	"fmt"
	"time"
)

// ErrRejected is returned when a task is submitted after a task failed or
// after the executor was released.
type ErrRejected struct{}

func (ErrRejected) Error() string {
	return "the executor does not accept tasks anymore"
}

// ErrCancelled is returned to a waiter whose task was dropped without
// running.
type ErrCancelled struct{}

func (ErrCancelled) Error() string {
	return "the task was cancelled"
}

type ErrReleaseTimeout struct {
	Timeout time.Duration
}

func (e ErrReleaseTimeout) Error() string {
	return fmt.Sprintf("release timed out after %v", e.Timeout)
}

type ErrPanic struct {
	Value any
}

func (e ErrPanic) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}
