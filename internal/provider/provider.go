// Package provider defines the uniform provider contract (C2) and the
// per-tenant provider instance registry (C3).
package provider

import (
	"context"

	"github.com/enrichloop/core/internal/enrichment"
)

// HealthStatus is the result of a provider's self-check.
type HealthStatus struct {
	OK      bool
	Message string
}

// Provider is the polymorphic capability set every adapter implements.
// Execute is the only hot path; everything else runs at instance
// construction or on demand from an operator tool.
type Provider interface {
	// Authenticate resolves and validates credentials for tenant, returning
	// a normalized AUTH error if none are active or the provider rejects them.
	Authenticate(ctx context.Context, tenant string) error

	// ValidateConfig checks the provider descriptor's static configuration
	// before the instance is cached. The wired adapters check only that the
	// base URL is set.
	ValidateConfig() error

	// SupportedOperations lists the operations this provider can serve.
	SupportedOperations() []enrichment.Operation

	// Execute performs one normalized operation. Implementations must map
	// every error into the enrichment.ErrorCode taxonomy; raw HTTP status
	// codes must never leak upward.
	Execute(ctx context.Context, req *enrichment.Request) (*enrichment.Response, error)

	// CalculateCredits returns the static estimated cost of one call to op.
	CalculateCredits(op enrichment.Operation) int

	// HealthCheck reports whether the provider's upstream API is reachable.
	HealthCheck(ctx context.Context) (HealthStatus, error)
}

// PollStatus is the terminal-state vocabulary for asynchronous providers
// (§4.8). Transitions: PENDING -> IN_PROGRESS -> COMPLETED | FAILED.
type PollStatus string

const (
	PollPending    PollStatus = "PENDING"
	PollInProgress PollStatus = "IN_PROGRESS"
	PollCompleted  PollStatus = "COMPLETED"
	PollFailed     PollStatus = "FAILED"
)

// Terminal reports whether s ends the poll loop.
func (s PollStatus) Terminal() bool {
	return s == PollCompleted || s == PollFailed
}

// PollResult is one observation of an in-flight enrichment.
type PollResult struct {
	Status PollStatus
	Data   any
}

// AsyncPoller is implemented by providers whose operations return an
// enrichment-id to be polled until terminal state (C8). Execute returns the
// initial {enrichment_id, status} pair; the dispatcher recognizes the
// interface and drives the poll loop from within its single retry
// attempt, so the whole sequence counts as one dispatch attempt.
type AsyncPoller interface {
	Poll(ctx context.Context, enrichmentID string) (PollResult, error)
}

// TenantScoped is implemented by providers whose responses are invariant
// across tenants for the same operation/params, letting the response cache
// (C5) opt out of folding tenant id into the cache key. None of the wired
// providers implement it today; the hook exists per SPEC_FULL §4.5.
type TenantScoped interface {
	TenantInvariant() bool
}

// Descriptor is the static, durable configuration for a provider, loaded
// from the `providers` table at startup (§6 persisted layout).
type Descriptor struct {
	ID                 string
	DisplayName        string
	Category           enrichment.Category
	BaseURL            string
	RateLimitRPS       float64
	BurstSize          int
	DailyQuota         int
	MaxConcurrent      int
	SupportedOperations []enrichment.Operation
	Config             map[string]any
}

// Supports reports whether op is in d.SupportedOperations.
func (d Descriptor) Supports(op enrichment.Operation) bool {
	for _, supported := range d.SupportedOperations {
		if supported == op {
			return true
		}
	}
	return false
}

// Factory constructs a new Provider instance for one (tenant, descriptor)
// pair. Factories are registered once per provider implementation at
// process start via Registry.Register.
type Factory func(desc Descriptor, tenant string, creds CredentialSource) (Provider, error)

// CredentialSource is the narrow view of the Credential Store (C1) that
// provider adapters need: the active secret material for a tenant/provider
// pair. Defined here, not in package credential, so provider adapters never
// import the credential store directly (they only see the decrypted
// material ActiveSecret returns when they call it from Authenticate).
type CredentialSource interface {
	ActiveSecret(ctx context.Context, tenant, providerID string) (string, error)
}
