package dispatch_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrichloop/core/internal/dispatch"
	"github.com/enrichloop/core/internal/enrichment"
	"github.com/enrichloop/core/internal/provider"
)

type fakeProvider struct {
	calls   atomic.Int32
	execute func(calls int32) (*enrichment.Response, error)
}

func (p *fakeProvider) Authenticate(ctx context.Context, tenant string) error { return nil }
func (p *fakeProvider) ValidateConfig() error                                 { return nil }
func (p *fakeProvider) SupportedOperations() []enrichment.Operation {
	return []enrichment.Operation{enrichment.OpFindEmail}
}
func (p *fakeProvider) Execute(ctx context.Context, req *enrichment.Request) (*enrichment.Response, error) {
	n := p.calls.Add(1)
	return p.execute(n)
}
func (p *fakeProvider) CalculateCredits(op enrichment.Operation) int { return 1 }
func (p *fakeProvider) HealthCheck(ctx context.Context) (provider.HealthStatus, error) {
	return provider.HealthStatus{OK: true}, nil
}

func TestDispatcher_RetriesRetryableErrors(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		execute: func(n int32) (*enrichment.Response, error) {
			if n < 3 {
				return nil, enrichment.NewError(enrichment.CodeProviderUnavailable, "down")
			}
			return enrichment.SuccessResponse("ok", enrichment.Metadata{}), nil
		},
	}

	d := dispatch.New(nil, nil)
	desc := provider.Descriptor{ID: "test", BurstSize: 10, RateLimitRPS: 1000, MaxConcurrent: 5}
	req := &enrichment.Request{Operation: enrichment.OpFindEmail, Params: map[string]any{}}

	resp, err := d.Execute(context.Background(), desc, "tenant-1", p, req)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestDispatcher_NonRetryableFailsFast(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		execute: func(n int32) (*enrichment.Response, error) {
			return nil, enrichment.NewError(enrichment.CodeInvalidInput, "bad input")
		},
	}

	d := dispatch.New(nil, nil)
	desc := provider.Descriptor{ID: "test", BurstSize: 10, RateLimitRPS: 1000, MaxConcurrent: 5}
	req := &enrichment.Request{Operation: enrichment.OpFindEmail, Params: map[string]any{}}

	_, err := d.Execute(context.Background(), desc, "tenant-1", p, req)
	require.Error(t, err)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestDispatcher_ExhaustsRetriesOnPersistentFailure(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		execute: func(n int32) (*enrichment.Response, error) {
			return nil, enrichment.NewError(enrichment.CodeTimeout, "timed out")
		},
	}

	d := dispatch.New(nil, nil)
	desc := provider.Descriptor{ID: "test", BurstSize: 10, RateLimitRPS: 1000, MaxConcurrent: 5}
	req := &enrichment.Request{Operation: enrichment.OpFindEmail, Params: map[string]any{}, Options: enrichment.Options{Retries: 3}}

	_, err := d.Execute(context.Background(), desc, "tenant-1", p, req)
	require.Error(t, err)
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestDispatcher_RateLimitEnforcesSpacing(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		execute: func(n int32) (*enrichment.Response, error) {
			return enrichment.SuccessResponse("ok", enrichment.Metadata{}), nil
		},
	}

	d := dispatch.New(nil, nil)
	desc := provider.Descriptor{ID: "test-rl", BurstSize: 1, RateLimitRPS: 1, MaxConcurrent: 5}
	req := &enrichment.Request{Operation: enrichment.OpFindEmail, Params: map[string]any{}}

	start := time.Now()
	for range 3 {
		_, err := d.Execute(context.Background(), desc, "tenant-rl", p, req)
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 2*time.Second)
}
