package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/analysis"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/bootstrap"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/queue"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/report"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/config"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/storage/db"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/telemetry"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/workerproc"
)

func main() {
	runWindow := flag.String("run-window", "", "enqueue a batch job for the window starting at this date (YYYY-MM-DD or RFC3339) before consuming")
	maxChats := flag.Int("max-chats", 0, "chat cap for the -run-window job (0 uses BATCH_MAX_CHATS)")
	flag.Parse()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(cfg, db.DefaultWorkerOptions())
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	var schedule *cron.Cron
	if cfg.ScheduleSpec != "" {
		schedule, err = startSchedule(ctx, cfg.ScheduleSpec, app.Jobs, cfg.MaxChats)
		if err != nil {
			log.Fatalf("invalid BATCH_SCHEDULE %q: %v", cfg.ScheduleSpec, err)
		}
	}

	if *runWindow != "" {
		limit := *maxChats
		if limit <= 0 {
			limit = cfg.MaxChats
		}
		if err := enqueueWindow(ctx, app.Jobs, *runWindow, limit); err != nil {
			log.Fatalf("invalid -run-window %q: %v", *runWindow, err)
		}
	}

	telemetry.Info("worker started", map[string]any{
		"queue":    cfg.QueueBackend,
		"source":   cfg.ChatSource,
		"schedule": cfg.ScheduleSpec,
	})

	workerproc.Consume(ctx, app.Jobs, app.Processor, workerproc.DefaultIdleWait)

	if schedule != nil {
		<-schedule.Stop().Done()
	}
	if app.DB != nil {
		_ = app.DB.Close()
	}
	telemetry.Info("worker stopped", nil)
}

// enqueueWindow queues one replay job for the named window. Bare dates
// get the Mon..Fri default window, same as the HTTP trigger.
func enqueueWindow(ctx context.Context, jobs queue.Queue, rawStart string, maxChats int) error {
	start, err := analysis.ParseWindowTime(rawStart)
	if err != nil {
		return err
	}
	job := queue.NewBatchJob(start, analysis.DefaultWindowEnd(start), maxChats)
	if err := jobs.Send(ctx, job); err != nil {
		return err
	}
	telemetry.Info("replay batch enqueued", map[string]any{
		"jobId":       job.JobID,
		"windowStart": job.WindowStart.Format(time.RFC3339),
		"windowEnd":   job.WindowEnd.Format(time.RFC3339),
		"maxChats":    job.MaxChats,
	})
	return nil
}

// startSchedule enqueues the previous business week on the given cron
// spec, typically a Monday morning entry like "0 8 * * 1".
func startSchedule(ctx context.Context, spec string, jobs queue.Queue, maxChats int) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		// UTC keeps scheduled windows on the same instants the API
		// produces for bare dates, so both name the same window.
		start, end := report.WeekRange(time.Now().UTC())
		job := queue.NewBatchJob(start, end, maxChats)
		if err := jobs.Send(ctx, job); err != nil {
			telemetry.Error("scheduled batch enqueue failed", map[string]any{
				"error": err.Error(),
			})
			return
		}
		telemetry.Info("scheduled batch enqueued", map[string]any{
			"jobId":       job.JobID,
			"windowStart": job.WindowStart.Format(time.RFC3339),
			"windowEnd":   job.WindowEnd.Format(time.RFC3339),
		})
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
