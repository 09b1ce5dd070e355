package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/enrichloop/core/internal/dispatch"
	"github.com/enrichloop/core/internal/enrichment"
	"github.com/enrichloop/core/internal/jobstore"
	"github.com/enrichloop/core/internal/provider"
	"github.com/enrichloop/core/internal/worker"
	"github.com/enrichloop/core/pkg/job"
)

// maxBulkRecords is the upper bound on records per bulk submission, per
// spec.md's "records must be 1..10000".
const maxBulkRecords = 10000

// edge is the thin chi surface around the four operations consumed by
// clients: submit single, submit bulk, get job, list jobs. Authentication
// is out of scope here; tenantID is read from a header as a stand-in for
// a real auth layer.
type edge struct {
	jobs     *jobstore.Store
	registry *provider.Registry
	dispatch dispatch.Executor
	manager  *job.Manager
}

func newEdge(jobs *jobstore.Store, registry *provider.Registry, dispatcher dispatch.Executor, manager *job.Manager) *edge {
	return &edge{jobs: jobs, registry: registry, dispatch: dispatcher, manager: manager}
}

// tenantFromRequest is the stub tenant extractor: a real deployment would
// derive this from an authenticated session or API key.
func tenantFromRequest(r *http.Request) string {
	if t := r.Header.Get("X-Tenant-ID"); t != "" {
		return t
	}
	return "default"
}

type submitSingleRequest struct {
	ProviderID string               `json:"provider_id"`
	Operation  enrichment.Operation `json:"operation"`
	Params     map[string]any       `json:"params"`
	Options    enrichment.Options   `json:"options,omitempty"`
}

func (e *edge) submitSingle(w http.ResponseWriter, r *http.Request) {
	var req submitSingleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, enrichment.CodeInvalidInput, "malformed request body")
		return
	}
	if !req.Operation.Valid() {
		writeError(w, http.StatusBadRequest, enrichment.CodeInvalidInput, "unknown operation")
		return
	}

	tenant := tenantFromRequest(r)
	ctx := r.Context()

	desc, ok := e.registry.Descriptor(req.ProviderID)
	if !ok {
		writeError(w, http.StatusNotFound, enrichment.CodeNotFound, "unknown provider")
		return
	}

	inst, err := e.registry.Get(ctx, tenant, req.ProviderID)
	if err != nil {
		writeNormalizedErr(w, err)
		return
	}

	resp, err := e.dispatch.Execute(ctx, desc, tenant, inst, &enrichment.Request{
		Operation: req.Operation,
		Params:    req.Params,
		Options:   req.Options,
	})
	if err != nil {
		writeNormalizedErr(w, err)
		return
	}

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

type submitBulkRequest struct {
	ProviderID string               `json:"provider_id"`
	Operation  enrichment.Operation `json:"operation"`
	Records    []map[string]any     `json:"records"`
	Options    enrichment.Options   `json:"options,omitempty"`
}

type submitBulkResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

func (e *edge) submitBulk(w http.ResponseWriter, r *http.Request) {
	var req submitBulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, enrichment.CodeInvalidInput, "malformed request body")
		return
	}
	if !req.Operation.Valid() {
		writeError(w, http.StatusBadRequest, enrichment.CodeInvalidInput, "unknown operation")
		return
	}
	if len(req.Records) < 1 || len(req.Records) > maxBulkRecords {
		writeError(w, http.StatusBadRequest, enrichment.CodeInvalidInput, "records must contain between 1 and 10000 entries")
		return
	}
	if _, ok := e.registry.Descriptor(req.ProviderID); !ok {
		writeError(w, http.StatusNotFound, enrichment.CodeNotFound, "unknown provider")
		return
	}

	tenant := tenantFromRequest(r)
	ctx := r.Context()

	inputSnapshot, err := json.Marshal(req.Records)
	if err != nil {
		writeError(w, http.StatusBadRequest, enrichment.CodeInvalidInput, "records could not be encoded")
		return
	}
	configuration, err := json.Marshal(req.Options)
	if err != nil {
		writeError(w, http.StatusBadRequest, enrichment.CodeInvalidInput, "options could not be encoded")
		return
	}

	tx, err := e.jobs.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, enrichment.CodeInternal, "could not start transaction")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	j, err := e.jobs.CreateTx(ctx, tx, tenant, req.ProviderID, string(req.Operation), len(req.Records), inputSnapshot, configuration)
	if err != nil {
		writeError(w, http.StatusInternalServerError, enrichment.CodeInternal, "could not create job")
		return
	}

	if err := e.manager.EnqueueTx(ctx, tx, worker.TaskName, worker.RunPayload{JobID: j.ID}); err != nil {
		writeError(w, http.StatusInternalServerError, enrichment.CodeInternal, "could not enqueue job")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, enrichment.CodeInternal, "could not commit job")
		return
	}

	writeJSON(w, http.StatusAccepted, submitBulkResponse{JobID: j.ID, Status: string(jobstore.StatusQueued), Total: j.Total})
}

type jobResponse struct {
	ID            string                 `json:"id"`
	Status        jobstore.Status        `json:"status"`
	DisplayStatus jobstore.DisplayStatus `json:"display_status"`
	Progress      jobstore.Progress      `json:"progress"`
	CreatedAt     string                 `json:"created_at"`
	CompletedAt   *string                `json:"completed_at,omitempty"`
	Logs          []string               `json:"logs"`
	Results       json.RawMessage        `json:"results,omitempty"`
}

func (e *edge) getJob(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)
	jobID := chi.URLParam(r, "jobID")

	j, err := e.jobs.Get(r.Context(), tenant, jobID)
	if err != nil {
		writeJobLookupErr(w, err)
		return
	}

	logs, err := e.jobs.Logs(r.Context(), j.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, enrichment.CodeInternal, "could not load job logs")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(j, logs))
}

func (e *edge) listJobs(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFromRequest(r)
	before := r.URL.Query().Get("before")

	jobs, err := e.jobs.List(r.Context(), tenant, 0, before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, enrichment.CodeInternal, "could not list jobs")
		return
	}

	out := make([]jobResponse, len(jobs))
	for i := range jobs {
		out[i] = toJobResponse(&jobs[i], nil)
	}
	writeJSON(w, http.StatusOK, out)
}

func toJobResponse(j *jobstore.Job, logs []jobstore.LogEntry) jobResponse {
	// The queue-record check that distinguishes "stale"/"expired" from
	// "processing"/terminal needs a River lookup this edge does not do;
	// assume the queue still has the record, matching the common case.
	display := jobstore.DisplayStatusFor(j, true)

	var completedAt *string
	if j.CompletedAt != nil {
		s := j.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
		completedAt = &s
	}

	logLines := make([]string, len(logs))
	for i, l := range logs {
		logLines[i] = string(l.Level) + ": " + l.Message
	}

	return jobResponse{
		ID:            j.ID,
		Status:        j.Status,
		DisplayStatus: display,
		Progress: jobstore.Progress{
			Total:      j.Total,
			Processed:  j.Processed,
			Successful: j.Successful,
			Failed:     j.Failed,
		},
		CreatedAt:   j.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		CompletedAt: completedAt,
		Logs:        logLines,
		Results:     j.Output,
	}
}

func writeJobLookupErr(w http.ResponseWriter, err error) {
	if errors.Is(err, jobstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, enrichment.CodeNotFound, "job not found")
		return
	}
	writeError(w, http.StatusInternalServerError, enrichment.CodeInternal, "could not load job")
}

func writeNormalizedErr(w http.ResponseWriter, err error) {
	ne := enrichment.AsNormalized(err)
	status := http.StatusBadGateway
	switch ne.Code {
	case enrichment.CodeInvalidInput:
		status = http.StatusBadRequest
	case enrichment.CodeNotFound:
		status = http.StatusNotFound
	case enrichment.CodeAuth:
		status = http.StatusUnauthorized
	case enrichment.CodeRateLimit, enrichment.CodeQuota:
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, enrichment.Failure(ne, enrichment.Metadata{}))
}

func writeError(w http.ResponseWriter, status int, code enrichment.ErrorCode, message string) {
	writeJSON(w, status, enrichment.Failure(enrichment.NewError(code, message), enrichment.Metadata{}))
}
