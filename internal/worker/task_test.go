package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrichloop/core/internal/enrichment"
	"github.com/enrichloop/core/internal/jobstore"
	"github.com/enrichloop/core/internal/provider"
)

type fakeJobStore struct {
	job        *jobstore.Job
	logs       []string
	progress   []int
	output     json.RawMessage
	failReason string
	completed  bool
	failed     bool
}

func (f *fakeJobStore) GetByID(ctx context.Context, jobID string) (*jobstore.Job, error) {
	if f.job == nil {
		return nil, jobstore.ErrNotFound
	}
	return f.job, nil
}

func (f *fakeJobStore) MarkProcessing(ctx context.Context, jobID string) error {
	f.job.Status = jobstore.StatusProcessing
	return nil
}

func (f *fakeJobStore) UpdateProgress(ctx context.Context, jobID string, processed, successful, failed int) error {
	f.progress = append(f.progress, processed)
	return nil
}

func (f *fakeJobStore) Complete(ctx context.Context, jobID string, output json.RawMessage, processed, successful, failed int) error {
	f.completed = true
	f.output = output
	f.job.Status = jobstore.StatusCompleted
	return nil
}

func (f *fakeJobStore) Fail(ctx context.Context, jobID string, errorDetails string) error {
	f.failed = true
	f.failReason = errorDetails
	f.job.Status = jobstore.StatusFailed
	return nil
}

func (f *fakeJobStore) AppendLog(ctx context.Context, jobID string, level jobstore.LogLevel, message string) error {
	f.logs = append(f.logs, message)
	return nil
}

type fakeResolver struct {
	provider provider.Provider
	desc     provider.Descriptor
}

func (f *fakeResolver) Get(ctx context.Context, tenant, providerID string) (provider.Provider, error) {
	return f.provider, nil
}

func (f *fakeResolver) Descriptor(providerID string) (provider.Descriptor, bool) {
	return f.desc, true
}

type fakeDispatcher struct {
	execute func(req *enrichment.Request) (*enrichment.Response, error)
}

func (f *fakeDispatcher) Execute(ctx context.Context, desc provider.Descriptor, tenant string, p provider.Provider, req *enrichment.Request) (*enrichment.Response, error) {
	return f.execute(req)
}

type noopProvider struct{}

func (noopProvider) Authenticate(ctx context.Context, tenant string) error { return nil }
func (noopProvider) ValidateConfig() error                                 { return nil }
func (noopProvider) SupportedOperations() []enrichment.Operation           { return nil }
func (noopProvider) Execute(ctx context.Context, req *enrichment.Request) (*enrichment.Response, error) {
	return nil, nil
}
func (noopProvider) CalculateCredits(op enrichment.Operation) int { return 1 }
func (noopProvider) HealthCheck(ctx context.Context) (provider.HealthStatus, error) {
	return provider.HealthStatus{OK: true}, nil
}

func TestTask_Handle_BulkPersonEnrichmentWithOneBadRow(t *testing.T) {
	t.Parallel()

	records := []map[string]any{
		{"email": "a@x.com"},
		{"email": ""},
		{"email": "c@x.com"},
	}
	snapshot, err := json.Marshal(records)
	require.NoError(t, err)

	js := &fakeJobStore{
		job: &jobstore.Job{
			ID: "job1", TenantID: "tenant1", ProviderID: "surfe",
			Operation: string(enrichment.OpEnrichPerson), Total: 3,
			InputSnapshot: snapshot, Status: jobstore.StatusQueued,
		},
	}

	disp := &fakeDispatcher{
		execute: func(req *enrichment.Request) (*enrichment.Response, error) {
			return enrichment.SuccessResponse(req.Params, enrichment.Metadata{}), nil
		},
	}

	task := New(js, &fakeResolver{provider: noopProvider{}}, disp, nil)

	err = task.Handle(context.Background(), RunPayload{JobID: "job1"})
	require.NoError(t, err)

	assert.True(t, js.completed)
	assert.Equal(t, jobstore.StatusCompleted, js.job.Status)
	require.Len(t, js.logs, 1)
	assert.Contains(t, js.logs[0], "record 1")
	assert.Contains(t, js.logs[0], "INVALID_INPUT")

	var outputs []outputRecord
	require.NoError(t, json.Unmarshal(js.output, &outputs))
	require.Len(t, outputs, 3)
	assert.True(t, outputs[0].Success)
	assert.False(t, outputs[1].Success)
	assert.True(t, outputs[2].Success)
}

func TestTask_Handle_TerminalJobIsNoop(t *testing.T) {
	t.Parallel()

	js := &fakeJobStore{
		job: &jobstore.Job{ID: "job1", Status: jobstore.StatusCompleted},
	}
	task := New(js, &fakeResolver{}, &fakeDispatcher{}, nil)

	err := task.Handle(context.Background(), RunPayload{JobID: "job1"})
	require.NoError(t, err)
	assert.False(t, js.completed)
	assert.False(t, js.failed)
}

func TestTask_Handle_MissingJobIsNoop(t *testing.T) {
	t.Parallel()

	js := &fakeJobStore{}
	task := New(js, &fakeResolver{}, &fakeDispatcher{}, nil)

	err := task.Handle(context.Background(), RunPayload{JobID: "missing"})
	require.NoError(t, err)
}

func TestTask_Handle_DispatchFailureRecordsLogAndContinues(t *testing.T) {
	t.Parallel()

	records := []map[string]any{{"email": "a@x.com"}, {"email": "b@x.com"}}
	snapshot, err := json.Marshal(records)
	require.NoError(t, err)

	js := &fakeJobStore{
		job: &jobstore.Job{
			ID: "job1", TenantID: "tenant1", ProviderID: "surfe",
			Operation: string(enrichment.OpEnrichPerson), Total: 2,
			InputSnapshot: snapshot, Status: jobstore.StatusQueued,
		},
	}

	calls := 0
	disp := &fakeDispatcher{
		execute: func(req *enrichment.Request) (*enrichment.Response, error) {
			calls++
			if calls == 1 {
				return nil, enrichment.NewError(enrichment.CodeProviderUnavailable, "down")
			}
			return enrichment.SuccessResponse(req.Params, enrichment.Metadata{}), nil
		},
	}

	task := New(js, &fakeResolver{provider: noopProvider{}}, disp, nil)
	err = task.Handle(context.Background(), RunPayload{JobID: "job1"})
	require.NoError(t, err)

	var outputs []outputRecord
	require.NoError(t, json.Unmarshal(js.output, &outputs))
	require.Len(t, outputs, 2)
	assert.False(t, outputs[0].Success)
	assert.True(t, outputs[1].Success)
}
