// Package queue carries batch-analysis jobs from the API (or the cron
// scheduler) to the worker.
package queue

import "context"

// Message is one received queue entry. Handle is what the backend needs
// to delete the entry once the job finished.
type Message struct {
	Body   []byte
	Handle string
}

// Queue is the job transport boundary. Send enqueues one job, Receive
// fetches up to max pending messages, Delete acknowledges a finished one.
// A message that is never deleted is redelivered by the backend.
type Queue interface {
	Send(ctx context.Context, job BatchJob) error
	Receive(ctx context.Context, max int) ([]Message, error)
	Delete(ctx context.Context, handle string) error
}
