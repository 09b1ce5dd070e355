// Package job provides background job processing using River (Postgres-native queue).
//
// This package enables asynchronous task execution with features like retry handling,
// scheduled jobs, transactional enqueueing, and multiple queue support. It wraps River
// to provide a simplified, type-safe API around a *pgxpool.Pool.
//
// # Features
//
//   - Type-safe task registration with structural typing (no interface imports needed)
//   - Scheduled/periodic tasks with cron expressions
//   - Transactional job enqueueing (jobs only visible after commit)
//   - Multiple named queues with configurable worker counts
//   - Automatic retry with exponential backoff
//   - Job deduplication with uniqueness constraints
//   - Priority-based job ordering
//   - Health check integration
//
// # Task Definition
//
// Tasks are defined as structs with Name() and Handle() methods.
// No interface import is required - the package uses structural typing:
//
//	type SendWelcome struct {
//	    mailer mail.Mailer
//	    repo   *repository.Queries
//	}
//
//	func NewSendWelcome(mailer mail.Mailer, repo *repository.Queries) *SendWelcome {
//	    return &SendWelcome{mailer: mailer, repo: repo}
//	}
//
//	func (t *SendWelcome) Name() string { return "send_welcome" }
//
//	func (t *SendWelcome) Handle(ctx context.Context, p SendWelcomePayload) error {
//	    user, err := t.repo.GetUser(ctx, p.UserID)
//	    if err != nil {
//	        return err
//	    }
//	    return t.mailer.Send(ctx, "welcome", user.Email, user)
//	}
//
//	type SendWelcomePayload struct {
//	    UserID string `json:"user_id"`
//	}
//
// # Scheduled Tasks
//
// Periodic tasks implement Schedule() returning a cron expression:
//
//	type CleanupSessions struct {
//	    repo *repository.Queries
//	}
//
//	func (t *CleanupSessions) Name() string     { return "cleanup_sessions" }
//	func (t *CleanupSessions) Schedule() string { return "0 * * * *" } // Every hour
//
//	func (t *CleanupSessions) Handle(ctx context.Context) error {
//	    return t.repo.DeleteExpiredSessions(ctx)
//	}
//
// # Setting Up the Manager
//
// Build a [Manager] once at startup and start it alongside the rest of the
// composition root:
//
//	import (
//	    "github.com/enrichloop/core/pkg/job"
//	)
//
//	manager, err := job.NewManager(pool,
//	    job.WithTask(worker.New(jobs, registry, dispatcher, log)),
//	    job.WithQueue("enrichment", 10),
//	    job.WithLogger(slog.Default()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := manager.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer manager.Stop(ctx)
//
// # Enqueueing Jobs
//
// Jobs are enqueued directly against the manager from the HTTP handler or
// service layer that owns the triggering request:
//
//	func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
//	    // ... validate and persist the job row ...
//
//	    err := h.manager.Enqueue(r.Context(), "enrichment:run", worker.RunPayload{
//	        JobID: job.ID,
//	    })
//
//	    // With options
//	    err = h.manager.Enqueue(r.Context(), "enrichment:run", payload,
//	        job.ScheduledIn(24*time.Hour),
//	        job.InQueue("enrichment"),
//	        job.MaxAttempts(3),
//	    )
//	}
//
// # Transactional Enqueueing
//
// For atomicity between database changes and job enqueueing:
//
//	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
//	    row, err := store.CreateTx(ctx, tx, req)
//	    if err != nil {
//	        return err
//	    }
//
//	    // Job only exists if transaction commits
//	    return manager.EnqueueTx(ctx, tx, "enrichment:run", worker.RunPayload{
//	        JobID: row.ID,
//	    })
//	})
//
// # Job Uniqueness
//
// Prevent duplicate job processing with uniqueness options:
//
//	// Only one run in flight per job row at a time
//	manager.Enqueue(ctx, "enrichment:run", payload,
//	    job.UniqueFor(time.Hour),
//	    job.UniqueKey(row.ID),
//	)
//
// # Health Checks
//
// [Manager] exposes a Healthcheck-compatible closure for readiness probes:
//
//	readiness := map[string]health.CheckFunc{
//	    "jobs": job.Healthcheck(manager),
//	}
//
// # Error Handling
//
// The package defines sentinel errors for common failure modes:
//
//   - [ErrNotConfigured] - defined; no function in the package returns it
//   - [ErrUnknownTask] - Task name not registered
//   - [ErrInvalidPayload] - Payload deserialization failed
//   - [ErrAlreadyStarted] - Manager already running
//   - [ErrNotStarted] - Manager not running
//   - [ErrHealthcheckFailed] - Health check failed
//
// # Database Migrations
//
// River requires database tables. Run River migrations before using:
//
//	CREATE TABLE river_job (...);
//	CREATE TABLE river_leader (...);
//	CREATE TABLE river_queue (...);
//
// See River documentation for migration SQL: https://riverqueue.com/docs/migrations
package job
