package queue

import (
	"context"
	"strconv"
	"sync"
)

// MemoryQueue keeps jobs in memory. Used in tests and in single-process
// dev setups where the API and worker share a binary. Received messages
// move to an in-flight set until deleted; there is no redelivery timer.
type MemoryQueue struct {
	mu       sync.Mutex
	pending  []Message
	inflight map[string]Message
	seq      int
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{inflight: make(map[string]Message)}
}

func (q *MemoryQueue) Send(ctx context.Context, job BatchJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := EncodeJob(job)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	q.pending = append(q.pending, Message{
		Body:   payload,
		Handle: "mem-" + strconv.Itoa(q.seq),
	})
	return nil
}

func (q *MemoryQueue) Receive(ctx context.Context, max int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if max <= 0 {
		max = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	n := max
	if n > len(q.pending) {
		n = len(q.pending)
	}
	out := make([]Message, n)
	copy(out, q.pending[:n])
	q.pending = q.pending[n:]
	for _, m := range out {
		q.inflight[m.Handle] = m
	}
	return out, nil
}

func (q *MemoryQueue) Delete(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, handle)
	return nil
}

// Len reports pending (not yet received) messages.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight reports received but not yet deleted messages.
func (q *MemoryQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

var _ Queue = (*MemoryQueue)(nil)
