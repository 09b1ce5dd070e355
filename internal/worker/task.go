// Package worker implements the Job Queue & Worker (C7): a single River
// task, "enrichment:run", that drives one job's records through the
// Rate-Limited Dispatcher and keeps the Job Store in sync.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/enrichloop/core/internal/dispatch"
	"github.com/enrichloop/core/internal/enrichment"
	"github.com/enrichloop/core/internal/jobstore"
	"github.com/enrichloop/core/internal/provider"
)

// TaskName is the River task name this package registers, via
// job.WithTask(worker.New(...)) at the composition root.
const TaskName = "enrichment:run"

// RunPayload is the River job argument for the enrichment:run task. The
// job row itself (provider, operation, records) lives in the Job Store;
// the queue message only carries the id, so job-row-exists and
// message-exists stay atomic via EnqueueTx (§4.7).
type RunPayload struct {
	JobID string `json:"job_id"`
}

// flushEvery is the counter-flush cadence from §4.7 step 3d.
const flushEvery = 10

// outputRecord is one entry of the job's persisted output blob.
type outputRecord struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JobStore is the narrow view of the Job Store (C6) the worker needs.
// Satisfied by *jobstore.Store; narrowed to an interface so worker tests
// can run against an in-memory fake instead of a live Postgres instance.
type JobStore interface {
	GetByID(ctx context.Context, jobID string) (*jobstore.Job, error)
	MarkProcessing(ctx context.Context, jobID string) error
	UpdateProgress(ctx context.Context, jobID string, processed, successful, failed int) error
	Complete(ctx context.Context, jobID string, output json.RawMessage, processed, successful, failed int) error
	Fail(ctx context.Context, jobID string, errorDetails string) error
	AppendLog(ctx context.Context, jobID string, level jobstore.LogLevel, message string) error
}

// ProviderResolver is the narrow view of the Provider Registry (C3) the
// worker needs. Satisfied by *provider.Registry.
type ProviderResolver interface {
	Get(ctx context.Context, tenant, providerID string) (provider.Provider, error)
	Descriptor(providerID string) (provider.Descriptor, bool)
}

// Task implements the structural Name()/Handle(ctx, RunPayload) contract
// that pkg/job.WithTask expects.
type Task struct {
	jobs       JobStore
	registry   ProviderResolver
	dispatcher dispatch.Executor
	sinks      multiSink
	logger     *slog.Logger
	artifacts  ArtifactStore
}

// New constructs the enrichment:run task. sinks may be empty; every sink
// (e.g. the edge's progress stream, the Notifier) receives every event.
func New(jobs JobStore, registry ProviderResolver, dispatcher dispatch.Executor, logger *slog.Logger, sinks ...EventSink) *Task {
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{jobs: jobs, registry: registry, dispatcher: dispatcher, sinks: sinks, logger: logger}
}

// WithArtifactStore enables offloading large job outputs to object storage.
// Call before the task is registered with pkg/job; unset (the default)
// keeps every output inline regardless of size.
func (t *Task) WithArtifactStore(store ArtifactStore) *Task {
	t.artifacts = store
	return t
}

// Name satisfies the task-registry structural contract.
func (t *Task) Name() string { return TaskName }

// Handle runs the worker algorithm of §4.7 for one job.
func (t *Task) Handle(ctx context.Context, payload RunPayload) error {
	job, err := t.jobs.GetByID(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			// Nothing to do: re-delivery of a job whose row vanished is a
			// no-op, not a failure.
			return nil
		}
		return fmt.Errorf("worker: load job: %w", err)
	}

	if job.Status.Terminal() {
		// At-least-once redelivery of an already-terminal job acks cleanly.
		return nil
	}

	if err := t.jobs.MarkProcessing(ctx, job.ID); err != nil {
		if errors.Is(err, jobstore.ErrJobTerminal) {
			return nil
		}
		return fmt.Errorf("worker: mark processing: %w", err)
	}

	inst, err := t.registry.Get(ctx, job.TenantID, job.ProviderID)
	if err != nil {
		t.failJob(ctx, job, fmt.Sprintf("provider resolution failed: %v", err))
		return err
	}

	desc, _ := t.registry.Descriptor(job.ProviderID)

	var records []map[string]any
	if err := json.Unmarshal(job.InputSnapshot, &records); err != nil {
		t.failJob(ctx, job, fmt.Sprintf("malformed input snapshot: %v", err))
		return err
	}

	op := enrichment.Operation(job.Operation)

	outputs := make([]outputRecord, 0, len(records))
	var processed, successful, failed int

	for i, record := range records {
		select {
		case <-ctx.Done():
			t.failJob(ctx, job, "cancelled: "+ctx.Err().Error())
			return ctx.Err()
		default:
		}

		out, ok := t.processRecord(ctx, job, desc, inst, op, i, record)
		outputs = append(outputs, out)
		processed++
		if ok {
			successful++
		} else {
			failed++
		}

		if processed%flushEvery == 0 {
			t.flush(ctx, job.ID, processed, successful, failed, job.Total)
		}
	}

	outputBlob, err := json.Marshal(outputs)
	if err != nil {
		t.failJob(ctx, job, fmt.Sprintf("encode output: %v", err))
		return err
	}

	outputBlob, err = t.maybeOffload(ctx, job.ID, outputBlob, len(outputs))
	if err != nil {
		t.failJob(ctx, job, fmt.Sprintf("encode output: %v", err))
		return err
	}

	if err := t.jobs.Complete(ctx, job.ID, outputBlob, processed, successful, failed); err != nil {
		if errors.Is(err, jobstore.ErrJobTerminal) {
			return nil
		}
		return fmt.Errorf("worker: complete: %w", err)
	}

	t.emitProgress(job.ID, processed, job.Total, successful, failed)
	t.sinks.OnTerminal(TerminalEvent{JobID: job.ID, TenantID: job.TenantID, Status: string(jobstore.StatusCompleted)})
	return nil
}

// processRecord runs step 3 of the worker algorithm for one record,
// normalizing input before dispatch and appending a job_logs entry on
// failure.
func (t *Task) processRecord(ctx context.Context, job *jobstore.Job, desc provider.Descriptor, inst provider.Provider, op enrichment.Operation, index int, record map[string]any) (outputRecord, bool) {
	clean, err := normalizeRecord(op, record)
	if err != nil {
		normErr := enrichment.AsNormalized(err)
		t.logFailure(ctx, job.ID, index, normErr)
		return outputRecord{Index: index, Success: false, Error: normErr.Message}, false
	}

	req := &enrichment.Request{Operation: op, Params: clean}

	resp, err := t.dispatcher.Execute(ctx, desc, job.TenantID, inst, req)
	if err != nil {
		normErr := enrichment.AsNormalized(err)
		t.logFailure(ctx, job.ID, index, normErr)
		return outputRecord{Index: index, Success: false, Error: normErr.Message}, false
	}

	if !resp.Success {
		t.logFailure(ctx, job.ID, index, resp.Err)
		return outputRecord{Index: index, Success: false, Error: resp.Err.Message}, false
	}

	return outputRecord{Index: index, Success: true, Data: resp.Data}, true
}

func (t *Task) logFailure(ctx context.Context, jobID string, index int, err *enrichment.Error) {
	msg := fmt.Sprintf("record %d: %s: %s", index, err.Code, err.Message)
	if logErr := t.jobs.AppendLog(ctx, jobID, jobstore.LogError, msg); logErr != nil {
		t.logger.Error("failed to append job log", slog.String("job_id", jobID), slog.Any("error", logErr))
	}
}

func (t *Task) flush(ctx context.Context, jobID string, processed, successful, failed, total int) {
	if err := t.jobs.UpdateProgress(ctx, jobID, processed, successful, failed); err != nil {
		t.logger.Error("failed to flush job progress", slog.String("job_id", jobID), slog.Any("error", err))
	}
	t.emitProgress(jobID, processed, total, successful, failed)
}

func (t *Task) emitProgress(jobID string, processed, total, successful, failed int) {
	pct := 0.0
	if total > 0 {
		pct = float64(processed) / float64(total) * 100
	}
	t.sinks.OnProgress(ProgressEvent{
		JobID: jobID, Processed: processed, Total: total,
		Successful: successful, Failed: failed, Pct: pct,
	})
}

func (t *Task) failJob(ctx context.Context, job *jobstore.Job, reason string) {
	if err := t.jobs.Fail(ctx, job.ID, reason); err != nil && !errors.Is(err, jobstore.ErrJobTerminal) {
		t.logger.Error("failed to mark job failed", slog.String("job_id", job.ID), slog.Any("error", err))
	}
	t.sinks.OnTerminal(TerminalEvent{JobID: job.ID, TenantID: job.TenantID, Status: string(jobstore.StatusFailed)})
}
