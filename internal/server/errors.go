package server

import "errors"

var (
	// ErrQueueFull indicates the dispatcher cannot accept new jobs right now.
	ErrQueueFull = errors.New("job queue is full")
	// ErrQueueClosed indicates the dispatcher has been shut down.
	ErrQueueClosed = errors.New("job queue is closed")
)
