// Command server is the composition root for the Enrichment Execution
// Core: it wires Postgres, Redis, the provider registry, the dispatcher,
// the job store/worker, and a thin chi edge around the four operations
// of spec.md §6. Authentication and the real HTTP/WebSocket edge are out
// of core scope; this binary exists to exercise the core end to end.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enrichloop/core/cmd/server/migrations"
	"github.com/enrichloop/core/internal/config"
	"github.com/enrichloop/core/internal/credential"
	"github.com/enrichloop/core/internal/dispatch"
	"github.com/enrichloop/core/internal/enrichment"
	"github.com/enrichloop/core/internal/jobstore"
	"github.com/enrichloop/core/internal/notify"
	"github.com/enrichloop/core/internal/provider"
	"github.com/enrichloop/core/internal/provider/apollo"
	"github.com/enrichloop/core/internal/provider/betterenrich"
	"github.com/enrichloop/core/internal/provider/companyenrich"
	"github.com/enrichloop/core/internal/provider/hunter"
	"github.com/enrichloop/core/internal/provider/surfe"
	"github.com/enrichloop/core/internal/worker"
	"github.com/enrichloop/core/middlewares"
	"github.com/enrichloop/core/pkg/blobstore"
	"github.com/enrichloop/core/pkg/cache"
	"github.com/enrichloop/core/pkg/db"
	"github.com/enrichloop/core/pkg/health"
	"github.com/enrichloop/core/pkg/job"
	"github.com/enrichloop/core/pkg/logger"
	"github.com/enrichloop/core/pkg/mailer"
	"github.com/enrichloop/core/pkg/mailer/resend"
	"github.com/enrichloop/core/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewWithSentry(logger.SentryConfig{DSN: cfg.SentryDSN}, middlewares.RequestIDExtractor())

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.WithMigrations(migrations.FS), db.WithLogger(log))
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := provider.SeedIfEmpty(ctx, pool); err != nil {
		return err
	}

	redisClient, err := redis.Open(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	registry, credStore, err := buildProviderRegistry(ctx, pool, cfg, log)
	if err != nil {
		return err
	}

	usage := dispatch.NewUsageRecorder(pool, log)
	defer usage.Stop()

	baseDispatcher := dispatch.New(usage, log)
	respCache := cache.NewRedis[*enrichment.Response](redisClient, nil, cache.WithPrefix("enrichment:cache"))
	executor := dispatch.NewCaching(baseDispatcher, respCache)

	jobs := jobstore.New(pool)

	var sinks []worker.EventSink
	if cfg.Resend.APIKey != "" {
		sender := resend.New(cfg.Resend)
		renderer := mailer.NewRenderer(nil)
		m := mailer.New(sender, renderer, mailer.Config{FallbackSubject: "Enrichment job update"})
		sinks = append(sinks, notify.New(pool, m, log))
	} else {
		sinks = append(sinks, notify.New(pool, nil, log))
	}

	task := worker.New(jobs, registry, executor, log, sinks...)
	if cfg.Blob.Bucket != "" {
		blobStore, err := blobstore.New(blobstore.Config{
			Bucket:    cfg.Blob.Bucket,
			AccessKey: cfg.Blob.AccessKey,
			SecretKey: cfg.Blob.SecretKey,
			Endpoint:  cfg.Blob.Endpoint,
			Region:    cfg.Blob.Region,
			PathStyle: cfg.Blob.PathStyle,
		})
		if err != nil {
			return err
		}
		task = task.WithArtifactStore(blobStore)
	}

	manager, err := job.NewManager(pool,
		job.WithTask(task),
		job.WithMaxWorkers(cfg.WorkerConcurrency),
		job.WithLogger(log),
	)
	if err != nil {
		return err
	}
	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = manager.Stop(context.Background()) }()

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: buildRouter(jobs, registry, executor, manager, credStore, log),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildProviderRegistry(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, log *slog.Logger) (*provider.Registry, *credential.Store, error) {
	var reg *provider.Registry

	credStore, err := credential.New(pool, []byte(cfg.EncryptionKey), invalidatorFunc(func(tenant, providerID string) {
		if reg != nil {
			reg.Invalidate(tenant, providerID)
		}
	}), log)
	if err != nil {
		return nil, nil, err
	}

	reg = provider.NewRegistry(credStore, log)

	descs, err := provider.LoadDescriptors(ctx, pool)
	if err != nil {
		return nil, nil, err
	}

	factories := map[string]provider.Factory{
		"surfe":         surfe.New,
		"apollo":        apollo.New,
		"hunter":        hunter.New,
		"betterenrich":  betterenrich.New,
		"companyenrich": companyenrich.New,
	}

	for _, d := range descs {
		factory, ok := factories[d.ID]
		if !ok {
			log.Warn("no adapter registered for provider", slog.String("provider_id", d.ID))
			continue
		}
		reg.Register(d, factory)
	}

	return reg, credStore, nil
}

// invalidatorFunc adapts a plain function to credential.Invalidator.
type invalidatorFunc func(tenant, providerID string)

func (f invalidatorFunc) Invalidate(tenant, providerID string) { f(tenant, providerID) }

func buildRouter(jobs *jobstore.Store, registry *provider.Registry, executor dispatch.Executor, manager *job.Manager, credStore *credential.Store, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewares.RequestID())
	r.Use(middlewares.Recover(middlewares.WithRecoverLogger(log)))
	r.Use(middlewares.CORS())
	r.Use(middlewares.Timeout(30 * time.Second))

	r.Get("/healthz", health.LivenessHandler())
	r.Get("/readyz", health.ReadinessHandler(health.Checks{
		"jobs": job.Healthcheck(manager),
	}))

	e := newEdge(jobs, registry, executor, manager)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/enrich", e.submitSingle)
		r.Post("/jobs", e.submitBulk)
		r.Get("/jobs/{jobID}", e.getJob)
		r.Get("/jobs", e.listJobs)
	})

	return r
}

// writeJSON is the edge's one shared response helper; handlers live in
// edge.go.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
