package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enrichloop/core/pkg/id"
)

// Store is the C6 implementation over Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting Create run
// either standalone or inside a caller-managed transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Create inserts a new job row with status queued and total set, snapshotting
// the input records and request configuration verbatim for replay/audit.
func (s *Store) Create(ctx context.Context, tenant, providerID, operation string, total int, inputSnapshot, configuration json.RawMessage) (*Job, error) {
	return createJob(ctx, s.pool, tenant, providerID, operation, total, inputSnapshot, configuration)
}

// CreateTx is Create run against an open transaction, so a caller can
// atomically persist the job row and enqueue its worker task in the same
// commit: a job row must never exist without a corresponding queue
// message, and vice versa.
func (s *Store) CreateTx(ctx context.Context, tx pgx.Tx, tenant, providerID, operation string, total int, inputSnapshot, configuration json.RawMessage) (*Job, error) {
	return createJob(ctx, tx, tenant, providerID, operation, total, inputSnapshot, configuration)
}

// Begin starts a transaction for a caller that needs to coordinate a Create
// with a job-queue enqueue atomically.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

func createJob(ctx context.Context, db querier, tenant, providerID, operation string, total int, inputSnapshot, configuration json.RawMessage) (*Job, error) {
	jobID := id.NewULID()

	const q = `
		INSERT INTO enrichment_jobs
			(id, tenant_id, provider_id, job_type, status, total_records, processed_records,
			 successful_records, failed_records, input_data, configuration, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, $7, $8, now())
		RETURNING id, tenant_id, provider_id, job_type, status, total_records, processed_records,
			successful_records, failed_records, input_data, output_data, configuration,
			error_details, created_at, started_at, completed_at`

	row := db.QueryRow(ctx, q, jobID, tenant, providerID, operation, StatusQueued, total, inputSnapshot, configuration)
	return scanJob(row)
}

// Get returns a job by id, scoped to tenant.
func (s *Store) Get(ctx context.Context, tenant, jobID string) (*Job, error) {
	const q = `
		SELECT id, tenant_id, provider_id, job_type, status, total_records, processed_records,
			successful_records, failed_records, input_data, output_data, configuration,
			error_details, created_at, started_at, completed_at
		FROM enrichment_jobs
		WHERE id = $1 AND tenant_id = $2`

	row := s.pool.QueryRow(ctx, q, jobID, tenant)
	return scanJob(row)
}

// GetByID returns a job by id with no tenant scoping, for internal callers
// (the worker) that already trust the id came from their own enqueue call.
func (s *Store) GetByID(ctx context.Context, jobID string) (*Job, error) {
	const q = `
		SELECT id, tenant_id, provider_id, job_type, status, total_records, processed_records,
			successful_records, failed_records, input_data, output_data, configuration,
			error_details, created_at, started_at, completed_at
		FROM enrichment_jobs
		WHERE id = $1`

	row := s.pool.QueryRow(ctx, q, jobID)
	return scanJob(row)
}

// List returns the tenant's jobs, most recent first, paginated by id since
// ULIDs are lexicographically sortable by creation time.
func (s *Store) List(ctx context.Context, tenant string, limit int, before string) ([]Job, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var rows pgx.Rows
	var err error
	if before == "" {
		const q = `
			SELECT id, tenant_id, provider_id, job_type, status, total_records, processed_records,
				successful_records, failed_records, input_data, output_data, configuration,
				error_details, created_at, started_at, completed_at
			FROM enrichment_jobs
			WHERE tenant_id = $1
			ORDER BY id DESC
			LIMIT $2`
		rows, err = s.pool.Query(ctx, q, tenant, limit)
	} else {
		const q = `
			SELECT id, tenant_id, provider_id, job_type, status, total_records, processed_records,
				successful_records, failed_records, input_data, output_data, configuration,
				error_details, created_at, started_at, completed_at
			FROM enrichment_jobs
			WHERE tenant_id = $1 AND id < $2
			ORDER BY id DESC
			LIMIT $3`
		rows, err = s.pool.Query(ctx, q, tenant, before, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("jobstore: list: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// MarkProcessing transitions a queued job to processing and stamps
// started_at. Rejected (ErrJobTerminal) if the row is already terminal.
func (s *Store) MarkProcessing(ctx context.Context, jobID string) error {
	const q = `
		UPDATE enrichment_jobs
		SET status = $1, started_at = now()
		WHERE id = $2 AND status NOT IN ($3, $4)`

	tag, err := s.pool.Exec(ctx, q, StatusProcessing, jobID, StatusCompleted, StatusFailed)
	if err != nil {
		return fmt.Errorf("jobstore: mark processing: %w", err)
	}
	return s.guardedResult(tag.RowsAffected(), jobID)
}

// UpdateProgress batches counter updates; the worker calls this every 10
// records or on completion, never per-record, per §4.7's worker algorithm.
// Counters are monotonically non-decreasing by construction: the worker
// always passes running totals, never deltas.
func (s *Store) UpdateProgress(ctx context.Context, jobID string, processed, successful, failed int) error {
	const q = `
		UPDATE enrichment_jobs
		SET processed_records = $1, successful_records = $2, failed_records = $3
		WHERE id = $4 AND status NOT IN ($5, $6)`

	tag, err := s.pool.Exec(ctx, q, processed, successful, failed, jobID, StatusCompleted, StatusFailed)
	if err != nil {
		return fmt.Errorf("jobstore: update progress: %w", err)
	}
	return s.guardedResult(tag.RowsAffected(), jobID)
}

// Complete marks a job completed with its final output payload. Terminal;
// rejected if the row is already terminal.
func (s *Store) Complete(ctx context.Context, jobID string, output json.RawMessage, processed, successful, failed int) error {
	const q = `
		UPDATE enrichment_jobs
		SET status = $1, output_data = $2, processed_records = $3, successful_records = $4,
			failed_records = $5, completed_at = now()
		WHERE id = $6 AND status NOT IN ($1, $7)`

	tag, err := s.pool.Exec(ctx, q, StatusCompleted, output, processed, successful, failed, jobID, StatusFailed)
	if err != nil {
		return fmt.Errorf("jobstore: complete: %w", err)
	}
	return s.guardedResult(tag.RowsAffected(), jobID)
}

// Fail marks a job failed with the given error detail. Terminal; rejected
// if the row is already terminal.
func (s *Store) Fail(ctx context.Context, jobID string, errorDetails string) error {
	const q = `
		UPDATE enrichment_jobs
		SET status = $1, error_details = $2, completed_at = now()
		WHERE id = $3 AND status NOT IN ($4, $1)`

	tag, err := s.pool.Exec(ctx, q, StatusFailed, errorDetails, jobID, StatusCompleted)
	if err != nil {
		return fmt.Errorf("jobstore: fail: %w", err)
	}
	return s.guardedResult(tag.RowsAffected(), jobID)
}

// AppendLog inserts one append-only job_logs row, e.g. a per-record
// INVALID_INPUT message carrying the record index.
func (s *Store) AppendLog(ctx context.Context, jobID string, level LogLevel, message string) error {
	const q = `INSERT INTO job_logs (id, job_id, level, message, ts) VALUES ($1, $2, $3, $4, now())`
	if _, err := s.pool.Exec(ctx, q, id.NewULID(), jobID, level, message); err != nil {
		return fmt.Errorf("jobstore: append log: %w", err)
	}
	return nil
}

// Logs returns every job_logs entry for jobID, in append order.
func (s *Store) Logs(ctx context.Context, jobID string) ([]LogEntry, error) {
	const q = `SELECT id, job_id, level, message, ts FROM job_logs WHERE job_id = $1 ORDER BY ts ASC`

	rows, err := s.pool.Query(ctx, q, jobID)
	if err != nil {
		return nil, fmt.Errorf("jobstore: logs: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.Level, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("jobstore: scan log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// guardedResult turns a zero-row UPDATE into ErrNotFound or ErrJobTerminal
// depending on whether the row exists at all, distinguishing the two so
// callers can return 404 vs a no-op per §4.6.
func (s *Store) guardedResult(rowsAffected int64, jobID string) error {
	if rowsAffected > 0 {
		return nil
	}

	var status Status
	const q = `SELECT status FROM enrichment_jobs WHERE id = $1`
	err := s.pool.QueryRow(context.Background(), q, jobID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("jobstore: guard lookup: %w", err)
	}
	return ErrJobTerminal
}

type row interface {
	Scan(dest ...any) error
}

func scanJob(r row) (*Job, error) {
	var j Job
	err := r.Scan(&j.ID, &j.TenantID, &j.ProviderID, &j.Operation, &j.Status, &j.Total, &j.Processed,
		&j.Successful, &j.Failed, &j.InputSnapshot, &j.Output, &j.Configuration, &j.ErrorDetails,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobstore: scan: %w", err)
	}
	return &j, nil
}

func scanJobRows(r pgx.Rows) (*Job, error) {
	var j Job
	err := r.Scan(&j.ID, &j.TenantID, &j.ProviderID, &j.Operation, &j.Status, &j.Total, &j.Processed,
		&j.Successful, &j.Failed, &j.InputSnapshot, &j.Output, &j.Configuration, &j.ErrorDetails,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("jobstore: scan row: %w", err)
	}
	return &j, nil
}

// DisplayStatusFor computes the read-time display hint described in
// spec.md §4.7: a terminal row with no matching queue record reads as
// "expired"; a processing row with no matching queue record reads as
// "stale". queueHasRecord is supplied by the worker/queue layer, which
// knows whether River still has the delivery.
func DisplayStatusFor(j *Job, queueHasRecord bool) DisplayStatus {
	switch j.Status {
	case StatusCompleted:
		if !queueHasRecord {
			return DisplayExpired
		}
		return DisplayCompleted
	case StatusFailed:
		if !queueHasRecord {
			return DisplayExpired
		}
		return DisplayFailed
	case StatusProcessing:
		if !queueHasRecord {
			return DisplayStale
		}
		return DisplayProcessing
	default:
		return DisplayQueued
	}
}
