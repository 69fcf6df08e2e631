package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/bootstrap"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/queue"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/config"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/server"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/storage/db"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/telemetry"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/workerproc"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	app, err := bootstrap.Build(cfg, db.DefaultServerOptions())
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// With the in-memory queue there is no separate worker process, so the
	// API drains its own jobs. Production uses SQS and a dedicated worker.
	if _, ok := app.Jobs.(*queue.MemoryQueue); ok {
		go workerproc.Consume(ctx, app.Jobs, app.Processor, workerproc.DefaultIdleWait)
	}

	addr := server.Addr(cfg.Port)
	srv := &http.Server{Addr: addr, Handler: app.Router}

	go func() {
		telemetry.Info("api listening", map[string]any{"addr": addr, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetry.Warn("server shutdown", map[string]any{"error": err.Error()})
	}
	if app.DB != nil {
		_ = app.DB.Close()
	}
	telemetry.Info("api stopped", nil)
}
