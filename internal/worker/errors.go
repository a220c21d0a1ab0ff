package worker

import "errors"

var (
	// ErrQueueSaturated is returned by Send when the inbox stayed full
	// for every retry
	ErrQueueSaturated = errors.New("worker queue saturated")

	// ErrWorkerClosed is returned once the worker stopped accepting work
	ErrWorkerClosed = errors.New("worker closed")

	// ErrSubscriptionClosed is returned by Recv after the subscription or
	// its worker closed
	ErrSubscriptionClosed = errors.New("subscription closed")
)
