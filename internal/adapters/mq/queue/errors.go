package queue

import "errors"

var (
	// ErrFull means the queue is at capacity and the event was dropped.
	ErrFull = errors.New("change queue full")
	// ErrClosed means the queue no longer accepts events.
	ErrClosed = errors.New("change queue closed")
)
