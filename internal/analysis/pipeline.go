package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/chats"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/opsmetrics"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/metrics"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/telemetry"
)

// DefaultConcurrency bounds how many chats are analyzed at once.
const DefaultConcurrency = 5

// ChatAnalyzer is what the pipeline needs from the per-chat analyzer.
type ChatAnalyzer interface {
	AnalyzeFull(ctx context.Context, chat *chats.Chat) (*Result, error)
}

var _ ChatAnalyzer = (*Analyzer)(nil)

// Options tune one batch run.
type Options struct {
	// Concurrency is the number of chats in flight at once. Zero means
	// DefaultConcurrency.
	Concurrency int

	// CheckpointEnabled seeds the skip set from already-persisted results
	// for the window, so an interrupted batch resumes where it stopped.
	CheckpointEnabled bool

	// WindowStart and WindowEnd partition the results for persistence and
	// checkpoint seeding.
	WindowStart time.Time
	WindowEnd   time.Time

	// Progress, when set, is invoked after each chat settles. Calls are
	// serialized; the callback must not block for long.
	Progress func(ProgressEvent)

	// MaxChats caps how many chats are submitted for analysis. Zero means
	// no cap. Skipped chats do not count against it.
	MaxChats int
}

// Pipeline drains a chat source through the analyzer with bounded
// concurrency. One chat failing never aborts the batch; the failure is
// recorded and the run continues.
type Pipeline struct {
	Analyzer      ChatAnalyzer
	Repo          Repo
	CompanyDomain string
}

func NewPipeline(analyzer ChatAnalyzer, repo Repo, companyDomain string) *Pipeline {
	return &Pipeline{Analyzer: analyzer, Repo: repo, CompanyDomain: companyDomain}
}

// RunBatch analyzes every chat the source yields and returns the batch
// report. The report is valid even when an error is returned: it covers
// whatever settled before the run stopped.
func (p *Pipeline) RunBatch(ctx context.Context, source chats.Source, opts Options) (*BatchReport, error) {
	metrics.IncBatchRun()
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	checkpoint, err := p.buildCheckpoint(ctx, opts)
	if err != nil {
		return &BatchReport{}, err
	}

	report := &BatchReport{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var srcErr error
	submitted := 0
	for {
		if gctx.Err() != nil {
			break
		}
		if opts.MaxChats > 0 && submitted >= opts.MaxChats {
			break
		}
		chat, err := source.Next(gctx)
		if err != nil {
			if !errors.Is(err, chats.ErrDone) && !errors.Is(err, context.Canceled) {
				srcErr = err
			}
			break
		}
		if chat == nil {
			continue
		}
		if checkpoint.Contains(gctx, chat.ID) {
			metrics.IncChatSkipped()
			mu.Lock()
			report.Skipped++
			p.emitProgress(opts, ProgressEvent{
				ChatID:    chat.ID,
				Processed: report.Processed,
				Failed:    report.Failed,
				Skipped:   report.Skipped,
			})
			mu.Unlock()
			continue
		}
		submitted++
		// Go blocks once concurrency workers are busy, so the source is
		// only drained as fast as chats settle.
		g.Go(func() error {
			p.processOne(gctx, chat, checkpoint, report, &mu, opts)
			return nil
		})
	}
	_ = g.Wait()

	if report.Processed > 0 {
		var totalMS int64
		for i := range report.Results {
			totalMS += report.Results[i].ProcessingMS
		}
		report.AvgLatencyMS = float64(totalMS) / float64(report.Processed)
	}

	telemetry.Info("batch finished", map[string]any{
		"processed": report.Processed,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
		"cacheHits": report.CacheHits,
		"apiCalls":  report.APICalls,
		"costUsd":   report.TotalCostUSD.String(),
	})

	if srcErr != nil {
		return report, fmt.Errorf("source: %w", srcErr)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// buildCheckpoint picks the skip set for the run: repo-seeded when
// checkpointing is on and results exist for the window, in-memory
// otherwise.
func (p *Pipeline) buildCheckpoint(ctx context.Context, opts Options) (Checkpoint, error) {
	if !opts.CheckpointEnabled || p.Repo == nil {
		return NewMemoryCheckpoint(), nil
	}
	cp, err := NewRepoCheckpoint(ctx, p.Repo, opts.WindowStart)
	if err != nil {
		return nil, err
	}
	if n := cp.Len(); n > 0 {
		telemetry.Info("checkpoint seeded", map[string]any{
			"windowStart": opts.WindowStart.Format(time.RFC3339),
			"alreadyDone": n,
		})
	}
	return cp, nil
}

func (p *Pipeline) processOne(ctx context.Context, chat *chats.Chat, checkpoint Checkpoint, report *BatchReport, mu *sync.Mutex, opts Options) {
	chat.SortMessages()
	if err := chat.Validate(); err != nil {
		p.recordFailure(chat.ID, fmt.Errorf("invalid chat: %w", err), report, mu, opts)
		return
	}

	result, err := p.Analyzer.AnalyzeFull(ctx, chat)
	if err != nil {
		p.recordFailure(chat.ID, err, report, mu, opts)
		return
	}

	result.Ops = opsmetrics.Compute(chat, p.CompanyDomain)
	result.AgentName = chat.AgentName()
	if result.AgentName == "" {
		result.AgentName = opsmetrics.UnassignedAgent
	}
	result.Tags = chat.TagNames()

	// The checkpoint entry lands before the result so a crash between the
	// two re-skips rather than double-counts.
	if err := checkpoint.Add(ctx, chat.ID); err != nil {
		p.recordFailure(chat.ID, fmt.Errorf("checkpoint: %w", err), report, mu, opts)
		return
	}

	metrics.IncChatProcessed()

	mu.Lock()
	report.Results = append(report.Results, *result)
	report.Processed++
	if result.CacheHit {
		report.CacheHits++
	}
	report.APICalls += result.apiCalls
	report.TotalCostUSD = report.TotalCostUSD.Add(result.CostUSD)
	p.emitProgress(opts, ProgressEvent{
		ChatID:    chat.ID,
		Processed: report.Processed,
		Failed:    report.Failed,
		Skipped:   report.Skipped,
		CacheHit:  result.CacheHit,
	})
	mu.Unlock()
}

func (p *Pipeline) recordFailure(chatID string, err error, report *BatchReport, mu *sync.Mutex, opts Options) {
	code, retryable := ClassifyFailure(err)
	metrics.IncChatFailed()

	fields := map[string]any{
		"chatId":    chatID,
		"kind":      code,
		"retryable": retryable,
		"error":     sanitizeError(err),
	}
	if code == ErrorCodeRateLimit {
		telemetry.Error("chat analysis rate limited", fields)
	} else {
		telemetry.Warn("chat analysis failed", fields)
	}

	mu.Lock()
	report.Failures = append(report.Failures, Failure{
		ChatID: chatID,
		Kind:   code,
		Err:    sanitizeError(err),
	})
	report.Failed++
	p.emitProgress(opts, ProgressEvent{
		ChatID:    chatID,
		Processed: report.Processed,
		Failed:    report.Failed,
		Skipped:   report.Skipped,
	})
	mu.Unlock()
}

// emitProgress must be called with the report mutex held so counts in the
// event match the order callbacks observe them.
func (p *Pipeline) emitProgress(opts Options, ev ProgressEvent) {
	if opts.Progress != nil {
		opts.Progress(ev)
	}
}
