// Package workerproc turns one queue message into a finished batch run:
// decode the job, stream the window's chats through the pipeline, persist
// the results and archive the raw output.
package workerproc

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/analysis"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/chats"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/queue"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/storage/object"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/telemetry"
)

// MessageMeta captures payload details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body []byte) MessageMeta {
	if len(body) == 0 {
		return MessageMeta{}
	}
	sum := sha256.Sum256(body)
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode job"
	}
	return "decode job: " + e.Err.Error()
}

// ErrInvalidJob indicates a decoded job that fails validation.
type ErrInvalidJob struct {
	JobID string
	Err   error
}

func (e ErrInvalidJob) Error() string {
	if e.Err == nil {
		return "invalid job"
	}
	return "invalid job: " + e.Err.Error()
}

// ErrProcess indicates the batch run failed after a valid job was parsed.
// Messages that fail here stay on the queue for redelivery.
type ErrProcess struct {
	JobID string
	Err   error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process job"
	}
	return "process job: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// ParseJob validates and decodes the queue payload.
func ParseJob(body []byte) (queue.BatchJob, MessageMeta, error) {
	meta := ComputeMeta(body)
	if len(bytes.TrimSpace(body)) == 0 {
		return queue.BatchJob{}, meta, ErrEmptyBody{Meta: meta}
	}

	job, err := queue.DecodeJob(body)
	if err != nil {
		return queue.BatchJob{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if err := job.Validate(); err != nil {
		return job, meta, ErrInvalidJob{JobID: job.JobID, Err: err}
	}
	return job, meta, nil
}

// SourceFactory builds the chat source for one job's window.
type SourceFactory func(ctx context.Context, job queue.BatchJob) (chats.Source, error)

// Processor executes parsed batch jobs.
type Processor struct {
	Pipeline  *analysis.Pipeline
	Repo      analysis.Repo
	NewSource SourceFactory

	// Archive receives the full batch output as JSON after a successful
	// save. Optional; archiving problems are logged, never fatal.
	Archive object.Store

	ChunkSize         int
	Concurrency       int
	CheckpointEnabled bool
}

func NewProcessor(pipeline *analysis.Pipeline, repo analysis.Repo, newSource SourceFactory) *Processor {
	return &Processor{
		Pipeline:          pipeline,
		Repo:              repo,
		NewSource:         newSource,
		ChunkSize:         analysis.DefaultChunkSize,
		CheckpointEnabled: true,
	}
}

// HandleMessage parses and runs one queue payload. A nil error means the
// message may be deleted from the queue.
func (p *Processor) HandleMessage(ctx context.Context, body []byte) error {
	job, meta, err := ParseJob(body)
	if err != nil {
		return err
	}

	telemetry.Info("batch job received", map[string]any{
		"jobId":       job.JobID,
		"windowStart": job.WindowStart.Format(time.RFC3339),
		"windowEnd":   job.WindowEnd.Format(time.RFC3339),
		"maxChats":    job.MaxChats,
		"bodySha":     meta.BodySHA,
	})

	if err := p.Run(ctx, job); err != nil {
		return ErrProcess{JobID: job.JobID, Err: err}
	}
	return nil
}

// Run executes one job: analyze the window, persist results, archive raw
// output. Chat-level failures are accounted inside the report; only
// infrastructure errors (source, storage, cancellation) come back as
// errors.
func (p *Processor) Run(ctx context.Context, job queue.BatchJob) error {
	if p.Pipeline == nil || p.Repo == nil || p.NewSource == nil {
		return errors.New("processor not configured")
	}

	source, err := p.NewSource(ctx, job)
	if err != nil {
		return fmt.Errorf("build source: %w", err)
	}
	if closer, ok := source.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	report, err := p.Pipeline.RunBatch(ctx, source, analysis.Options{
		Concurrency:       p.Concurrency,
		CheckpointEnabled: p.CheckpointEnabled,
		WindowStart:       job.WindowStart,
		WindowEnd:         job.WindowEnd,
		MaxChats:          job.MaxChats,
	})
	if err != nil {
		return err
	}

	written := 0
	if len(report.Results) > 0 {
		written, err = p.Repo.SaveResults(ctx, report.Results, job.WindowStart, job.WindowEnd, p.ChunkSize)
		if err != nil {
			return fmt.Errorf("save results: %w", err)
		}
	}

	p.archive(ctx, job, report)

	telemetry.Info("batch job finished", map[string]any{
		"jobId":     job.JobID,
		"processed": report.Processed,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
		"cacheHits": report.CacheHits,
		"written":   written,
		"costUsd":   report.TotalCostUSD.String(),
	})
	return nil
}

// ArchiveKey names the raw-output blob for a window.
func ArchiveKey(windowStart time.Time) string {
	return fmt.Sprintf("archives/analysis_%s.json", windowStart.UTC().Format("2006-01-02"))
}

func (p *Processor) archive(ctx context.Context, job queue.BatchJob, report *analysis.BatchReport) {
	if p.Archive == nil {
		return
	}

	blob, err := json.Marshal(report)
	if err != nil {
		telemetry.Warn("archive marshal failed", map[string]any{
			"jobId": job.JobID,
			"error": err.Error(),
		})
		return
	}

	key := ArchiveKey(job.WindowStart)
	if _, err := p.Archive.Put(ctx, key, "application/json", bytes.NewReader(blob)); err != nil {
		telemetry.Warn("archive upload failed", map[string]any{
			"jobId": job.JobID,
			"key":   key,
			"error": err.Error(),
		})
		return
	}

	telemetry.Info("batch output archived", map[string]any{
		"jobId": job.JobID,
		"key":   key,
		"bytes": len(blob),
	})
}
