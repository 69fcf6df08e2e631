package workerproc

import (
	"context"
	"errors"
	"time"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/queue"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/telemetry"
)

// DefaultIdleWait is how long Consume sleeps after an empty receive.
const DefaultIdleWait = 2 * time.Second

// Consume drains the queue until ctx is done. Jobs run one at a time; the
// pipeline already parallelizes within a job, and a second concurrent
// window would thrash the shared LLM rate budget. Malformed messages are
// deleted so they cannot loop forever; jobs that fail mid-run are left on
// the queue for redelivery.
func Consume(ctx context.Context, q queue.Queue, p *Processor, idleWait time.Duration) {
	if idleWait <= 0 {
		idleWait = DefaultIdleWait
	}
	for {
		if ctx.Err() != nil {
			return
		}
		msgs, err := q.Receive(ctx, 1)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			telemetry.Warn("queue receive failed", map[string]any{"error": err.Error()})
			sleepCtx(ctx, idleWait)
			continue
		}
		if len(msgs) == 0 {
			sleepCtx(ctx, idleWait)
			continue
		}
		for _, msg := range msgs {
			handleOne(ctx, q, p, msg)
		}
	}
}

func handleOne(ctx context.Context, q queue.Queue, p *Processor, msg queue.Message) {
	err := p.HandleMessage(ctx, msg.Body)
	if err == nil {
		deleteMessage(ctx, q, msg)
		return
	}
	if poison(err) {
		telemetry.Error("batch job dropped", map[string]any{
			"handle": msg.Handle,
			"error":  err.Error(),
		})
		deleteMessage(ctx, q, msg)
		return
	}
	telemetry.Error("batch job failed, left for redelivery", map[string]any{
		"handle": msg.Handle,
		"error":  err.Error(),
	})
}

// poison reports whether the message can never succeed: empty payloads,
// undecodable JSON, jobs that fail validation.
func poison(err error) bool {
	var empty ErrEmptyBody
	var decode ErrDecode
	var invalid ErrInvalidJob
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &invalid)
}

func deleteMessage(ctx context.Context, q queue.Queue, msg queue.Message) {
	if msg.Handle == "" {
		return
	}
	if err := q.Delete(ctx, msg.Handle); err != nil {
		telemetry.Warn("queue delete failed", map[string]any{
			"handle": msg.Handle,
			"error":  err.Error(),
		})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
