// Package dispatch implements the Rate-Limited Dispatcher (C4): token
// bucket rate limiting, bounded per-instance concurrency, exponential
// backoff retry, request id propagation, and the async poller (C8) and
// usage recorder (C9) hook points.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/enrichloop/core/internal/enrichment"
	"github.com/enrichloop/core/internal/provider"
	"github.com/enrichloop/core/pkg/id"
)

// Executor is satisfied by both Dispatcher and CachingDispatcher, letting
// the worker depend on whichever composition the composition root wires.
type Executor interface {
	Execute(ctx context.Context, desc provider.Descriptor, tenant string, p provider.Provider, req *enrichment.Request) (*enrichment.Response, error)
}

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	backoffFactor      = 2.0
	backoffMin         = time.Second
	backoffMax         = 10 * time.Second
)

// instanceState holds the mutable rate-limit/concurrency state for one
// (tenant, provider) pair. One instanceState is shared by every dispatch
// call against that pair for the Dispatcher's lifetime; it is not dropped
// when the provider.Registry entry for the pair is invalidated.
type instanceState struct {
	limiter *tokenBucket
	gate    *semaphore.Weighted
}

// Dispatcher is the C4 implementation.
type Dispatcher struct {
	mu     sync.Mutex
	states map[string]*instanceState

	usage  *UsageRecorder
	logger *slog.Logger
}

// New constructs a Dispatcher. usage may be nil to disable usage recording
// (e.g. in unit tests).
func New(usage *UsageRecorder, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		states: make(map[string]*instanceState),
		usage:  usage,
		logger: logger,
	}
}

func (d *Dispatcher) stateFor(desc provider.Descriptor, tenant string) *instanceState {
	key := desc.ID + "|" + tenant

	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.states[key]; ok {
		return s
	}

	maxConcurrent := desc.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	s := &instanceState{
		limiter: newTokenBucket(desc.BurstSize, desc.RateLimitRPS),
		gate:    semaphore.NewWeighted(int64(maxConcurrent)),
	}
	d.states[key] = s
	return s
}

// Execute wraps a single provider call with rate limiting, bounded
// concurrency, retry, the async poller, and usage recording. It is the
// only place in the system that decides retry policy — providers never
// retry internally (§4.4).
func (d *Dispatcher) Execute(ctx context.Context, desc provider.Descriptor, tenant string, p provider.Provider, req *enrichment.Request) (*enrichment.Response, error) {
	requestID := id.NewULID()

	timeout := req.Options.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	maxAttempts := req.Options.Retries
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	state := d.stateFor(desc, tenant)

	var lastErr *enrichment.Error
	backoff := backoffMin

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := d.attempt(ctx, state, desc, tenant, p, req, requestID)
		if err == nil {
			return resp, nil
		}

		lastErr = enrichment.AsNormalized(err)
		d.recordUsage(tenant, desc.ID, req.Operation, lastErr, 0, 0)

		if !lastErr.Retryable() || attempt == maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, enrichment.NewError(enrichment.CodeTimeout, "dispatch cancelled during retry backoff")
		case <-timer.C:
		}

		backoff *= backoffFactor
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}

	return nil, lastErr
}

func (d *Dispatcher) attempt(ctx context.Context, state *instanceState, desc provider.Descriptor, tenant string, p provider.Provider, req *enrichment.Request, requestID string) (*enrichment.Response, error) {
	if err := state.limiter.acquire(ctx); err != nil {
		return nil, enrichment.NewError(enrichment.CodeTimeout, "rate limiter wait cancelled: "+err.Error())
	}

	if err := state.gate.Acquire(ctx, 1); err != nil {
		return nil, enrichment.NewError(enrichment.CodeTimeout, "concurrency slot wait cancelled: "+err.Error())
	}
	defer state.gate.Release(1)

	start := time.Now()
	resp, err := p.Execute(ctx, req)
	if err != nil {
		normErr := enrichment.AsNormalized(err)
		return nil, normErr
	}

	if poller, ok := p.(provider.AsyncPoller); ok {
		if data, ok := resp.Data.(map[string]any); ok {
			if enrichmentID, has := data["enrichment_id"].(string); has && enrichmentID != "" {
				result, err := pollToCompletion(ctx, poller, enrichmentID)
				if err != nil {
					return nil, err
				}
				resp = enrichment.SuccessResponse(result.Data, resp.Metadata)
			}
		}
	}

	resp.Metadata.RequestID = requestID
	resp.Metadata.ResponseTimeMs = time.Since(start).Milliseconds()

	d.recordUsage(tenant, desc.ID, req.Operation, nil, resp.Metadata.CreditsUsed, resp.Metadata.ResponseTimeMs)

	return resp, nil
}

func (d *Dispatcher) recordUsage(tenant, providerID string, op enrichment.Operation, failErr *enrichment.Error, credits int, responseMs int64) {
	if d.usage == nil {
		return
	}

	status := 200
	if failErr != nil {
		status = statusForCode(failErr.Code)
	}

	d.usage.Record(UsageRecord{
		TenantID:       tenant,
		ProviderID:     providerID,
		Endpoint:       string(op),
		StatusCode:     status,
		ResponseTimeMs: responseMs,
		CreditsUsed:    credits,
		At:             time.Now(),
	})
}

func statusForCode(code enrichment.ErrorCode) int {
	switch code {
	case enrichment.CodeAuth:
		return 401
	case enrichment.CodeNotFound:
		return 404
	case enrichment.CodeInvalidInput:
		return 400
	case enrichment.CodeRateLimit:
		return 429
	case enrichment.CodeQuota:
		return 402
	case enrichment.CodeOperationUnsupported:
		return 400
	case enrichment.CodeTimeout:
		return 504
	case enrichment.CodeProviderUnavailable:
		return 502
	default:
		return 500
	}
}
