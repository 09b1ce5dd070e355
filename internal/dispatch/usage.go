package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enrichloop/core/pkg/id"
)

// UsageRecord is one append-only row fed to the Usage Recorder (C9).
type UsageRecord struct {
	TenantID       string
	ProviderID     string
	Endpoint       string
	StatusCode     int
	ResponseTimeMs int64
	CreditsUsed    int
	At             time.Time
}

const (
	usageBatchSize     = 50
	usageFlushInterval = 2 * time.Second
	usageChannelDepth  = 1024
)

// UsageRecorder drains a bounded channel of UsageRecords and batches them
// into api_usage inserts. It never blocks the dispatch hot path: Record is
// a non-blocking send that drops and logs when the channel is full, since
// usage analytics are best-effort (SPEC_FULL §4.9).
type UsageRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	ch     chan UsageRecord
	done   chan struct{}
}

// NewUsageRecorder starts the background flush goroutine. Call Stop to
// drain and release it during shutdown.
func NewUsageRecorder(pool *pgxpool.Pool, logger *slog.Logger) *UsageRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &UsageRecorder{
		pool:   pool,
		logger: logger,
		ch:     make(chan UsageRecord, usageChannelDepth),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues a usage row. Never blocks.
func (r *UsageRecorder) Record(rec UsageRecord) {
	select {
	case r.ch <- rec:
	default:
		r.logger.Warn("usage recorder channel full, dropping record",
			slog.String("tenant_id", rec.TenantID),
			slog.String("provider_id", rec.ProviderID))
	}
}

// Stop flushes any buffered records and stops the background goroutine.
func (r *UsageRecorder) Stop() {
	close(r.ch)
	<-r.done
}

func (r *UsageRecorder) run() {
	defer close(r.done)

	batch := make([]UsageRecord, 0, usageBatchSize)
	ticker := time.NewTicker(usageFlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		r.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-r.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= usageBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (r *UsageRecorder) flush(records []UsageRecord) {
	ctx := context.Background()

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO api_usage (id, tenant_id, provider_id, endpoint, status_code, response_time_ms, credits_used, ts)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id.NewULID(), rec.TenantID, rec.ProviderID, rec.Endpoint, rec.StatusCode,
			rec.ResponseTimeMs, rec.CreditsUsed, rec.At)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			r.logger.Error("failed to flush usage record", slog.Any("error", err))
		}
	}
}
