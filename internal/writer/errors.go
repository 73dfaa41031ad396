package writer

import "errors"

var (
	ErrPoolNotStarted     = errors.New("writer pool not started")
	ErrPoolStopped        = errors.New("writer pool stopped")
	ErrPoolAlreadyStarted = errors.New("writer pool already started")
	ErrQueueFull          = errors.New("writer pool queue full")
	ErrNilProcessor       = errors.New("processor function cannot be nil")
	ErrStopTimeout        = errors.New("timeout waiting for workers to stop")
	ErrTaskPanic          = errors.New("task panicked")
)
