// Package bootstrap assembles the dependency graph shared by the API
// server and the worker.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/analysis"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/catalog"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/chats"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/llm"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/llm/gemini"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/llmcache"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/queue"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/ratebudget"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/report"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/services/health"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/config"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/server"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/storage/db"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/storage/object"
	localstore "github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/storage/object/local"
	s3store "github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/storage/object/s3"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/telemetry"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/workerproc"
)

// App holds the wired dependencies. The API server uses Router; the worker
// uses Jobs and Processor. Both sides are always built so a dev process can
// serve requests and drain its own in-memory queue.
type App struct {
	Config config.Config
	Router *gin.Engine

	DB      *sql.DB
	Repo    analysis.Repo
	Jobs    queue.Queue
	Archive object.Store

	Health    *health.Service
	Pipeline  *analysis.Pipeline
	Processor *workerproc.Processor
}

// Build prepares the dependency graph from configuration. dbOpts is the
// pool profile of the calling process (server, worker); env overrides
// still apply on top.
func Build(cfg config.Config, dbOpts db.Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	telemetry.SetLevel(cfg.LogLevel)
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg, dbOpts)
	if err != nil {
		return nil, err
	}

	var repo analysis.Repo
	if sqlDB != nil {
		repo = &analysis.PGRepo{DB: sqlDB}
	} else {
		repo = analysis.NewMemoryRepo()
	}

	healthSvc := health.NewService()
	healthSvc.Register("database", dbCheck(sqlDB))

	cache, cachePing := buildCache(ctx, cfg)
	if cfg.CacheBackend == llmcache.BackendRedis {
		healthSvc.Register("llm_cache", cachePing)
	}

	jobs, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if sq, ok := jobs.(*queue.SQSQueue); ok {
		healthSvc.Register("job_queue", sq.Ping)
	}

	archive, err := buildArchive(ctx, cfg)
	if err != nil {
		return nil, err
	}

	prompts, err := gemini.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}

	client, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}

	budget := ratebudget.New(cfg.RateLimitRPM, time.Minute)
	analyzer := analysis.NewAnalyzer(client, budget, cache, prompts, buildCatalog(cfg), cfg.GeminiModel, cfg.CacheTTL)
	pipeline := analysis.NewPipeline(analyzer, repo, cfg.CompanyEmailDomain)

	processor := workerproc.NewProcessor(pipeline, repo, sourceFactory(cfg, sqlDB))
	processor.Archive = archive
	if cfg.ChunkSize > 0 {
		processor.ChunkSize = cfg.ChunkSize
	}
	if cfg.Concurrency > 0 {
		processor.Concurrency = cfg.Concurrency
	}

	app := &App{
		Config:    cfg,
		DB:        sqlDB,
		Repo:      repo,
		Jobs:      jobs,
		Archive:   archive,
		Health:    healthSvc,
		Pipeline:  pipeline,
		Processor: processor,
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:   cfg,
		Health:   healthSvc,
		Analysis: analysis.NewHandler(repo, jobs),
		Report:   report.NewHandler(repo),
	})

	return app, nil
}

// buildDB connects to Postgres. Dev environments fall back to in-memory
// repositories when the database is absent or unreachable.
func buildDB(ctx context.Context, cfg config.Config, dbOpts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("DATABASE_URL empty; using in-memory repositories", nil)
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(dbOpts)
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("database connect failed; using in-memory repositories", map[string]any{
				"error": err.Error(),
			})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

// buildCache assembles the LLM cache. The redis branch is built here rather
// than through llmcache.Build so the live connection can feed a health check.
func buildCache(ctx context.Context, cfg config.Config) (llmcache.Cache, health.Check) {
	if cfg.CacheBackend != llmcache.BackendRedis {
		return llmcache.Build(ctx, cfg.CacheBackend, llmcache.RedisOptions{}), nil
	}

	r, err := llmcache.NewRedis(ctx, llmcache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		telemetry.Warn("redis unreachable, llm cache disabled", map[string]any{
			"addr":  cfg.RedisAddr,
			"error": err.Error(),
		})
		return llmcache.NewNoop(), nil
	}
	telemetry.Info("llm cache connected", map[string]any{"backend": llmcache.BackendRedis, "addr": cfg.RedisAddr})
	return llmcache.NewDegrading(r), r.Ping
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Queue, error) {
	if cfg.QueueBackend == "sqs" {
		return queue.NewSQSQueue(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
	}
	return queue.NewMemoryQueue(), nil
}

func buildArchive(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// buildLLM returns the Gemini client, or a placeholder that fails on use
// so dev processes without a key can still boot and serve reads.
func buildLLM(cfg config.Config) (llm.Client, error) {
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("GEMINI_API_KEY empty; analysis calls will fail until configured", nil)
			return unconfiguredLLM{}, nil
		}
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	return gemini.New(gemini.Config{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GeminiTimeout,
	})
}

func buildCatalog(cfg config.Config) catalog.Provider {
	if strings.TrimSpace(cfg.CatalogAPIURL) == "" {
		return catalog.NewStatic()
	}
	return catalog.NewAPI(cfg.CatalogAPIURL, cfg.CatalogAPIKey, cfg.CatalogCacheTTL)
}

// sourceFactory picks the chat source per job. The pg source reads the
// job's window; file sources replay the configured export.
func sourceFactory(cfg config.Config, sqlDB *sql.DB) workerproc.SourceFactory {
	return func(ctx context.Context, job queue.BatchJob) (chats.Source, error) {
		switch cfg.ChatSource {
		case "json":
			if strings.TrimSpace(cfg.ChatSourcePath) == "" {
				return nil, fmt.Errorf("CHAT_SOURCE=json requires CHAT_SOURCE_PATH")
			}
			return chats.NewJSONSource(cfg.ChatSourcePath)
		case "xlsx":
			if strings.TrimSpace(cfg.ChatSourcePath) == "" {
				return nil, fmt.Errorf("CHAT_SOURCE=xlsx requires CHAT_SOURCE_PATH")
			}
			return chats.NewXLSXSource(cfg.ChatSourcePath)
		default:
			if sqlDB == nil {
				return nil, fmt.Errorf("CHAT_SOURCE=pg requires a database connection")
			}
			return chats.NewPGSource(sqlDB, job.WindowStart, job.WindowEnd, cfg.PageSize), nil
		}
	}
}

func dbCheck(sqlDB *sql.DB) health.Check {
	if sqlDB == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return sqlDB.PingContext(ctx)
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

type unconfiguredLLM struct{}

func (unconfiguredLLM) Generate(context.Context, llm.Request) (*llm.Response, error) {
	return nil, errors.New("llm client not configured: set GEMINI_API_KEY")
}
