package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/enrichloop/core/internal/enrichment"
)

// instanceKey is the Registry's cache key: provider id is always
// lowercased before lookup, per §4.3.
type instanceKey struct {
	providerID string
	tenant     string
}

// Registry maps provider id to factory and caches (tenant, provider)
// instances, single-flighted the same way the teacher's pkg/cache.GetOrSet
// prevents duplicate concurrent construction for the same key.
type Registry struct {
	logger *slog.Logger

	mu        sync.RWMutex
	factories map[string]Factory
	descs     map[string]Descriptor

	instMu    sync.RWMutex
	instances map[instanceKey]Provider

	sf singleflight.Group

	creds CredentialSource
}

// NewRegistry creates an empty Registry. Call Register for each provider
// implementation once at process start.
func NewRegistry(creds CredentialSource, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:    logger,
		factories: make(map[string]Factory),
		descs:     make(map[string]Descriptor),
		instances: make(map[instanceKey]Provider),
		creds:     creds,
	}
}

// Register associates a provider id with its factory and static descriptor.
// Re-registration overwrites the previous entry with a warning (§4.3).
func (r *Registry) Register(desc Descriptor, factory Factory) {
	id := normalizeID(desc.ID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[id]; exists {
		r.logger.Warn("provider re-registered, overwriting", slog.String("provider_id", id))
	}
	r.factories[id] = factory
	desc.ID = id
	r.descs[id] = desc
}

// Descriptor returns the static descriptor for a registered provider.
func (r *Registry) Descriptor(providerID string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descs[normalizeID(providerID)]
	return d, ok
}

// Get returns the cached instance for (tenant, providerID), constructing
// and authenticating one on miss. Concurrent misses for the same key
// collapse into a single construction via singleflight.
func (r *Registry) Get(ctx context.Context, tenant, providerID string) (Provider, error) {
	id := normalizeID(providerID)

	r.mu.RLock()
	factory, known := r.factories[id]
	desc, hasDesc := r.descs[id]
	r.mu.RUnlock()

	if !known || !hasDesc {
		return nil, enrichment.NewError(enrichment.CodeNotFound, fmt.Sprintf("unknown provider %q", id))
	}

	key := instanceKey{providerID: id, tenant: tenant}

	r.instMu.RLock()
	if inst, ok := r.instances[key]; ok {
		r.instMu.RUnlock()
		return inst, nil
	}
	r.instMu.RUnlock()

	sfKey := id + "|" + tenant
	v, err, _ := r.sf.Do(sfKey, func() (any, error) {
		// Re-check under the singleflight group: another goroutine may have
		// populated the cache while we waited to enter Do.
		r.instMu.RLock()
		if inst, ok := r.instances[key]; ok {
			r.instMu.RUnlock()
			return inst, nil
		}
		r.instMu.RUnlock()

		inst, err := factory(desc, tenant, r.creds)
		if err != nil {
			return nil, err
		}
		if err := inst.ValidateConfig(); err != nil {
			return nil, err
		}
		if err := inst.Authenticate(ctx, tenant); err != nil {
			// Authenticate failure: the instance is not cached (§4.3).
			return nil, err
		}

		r.instMu.Lock()
		r.instances[key] = inst
		r.instMu.Unlock()

		return inst, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Provider), nil
}

// Invalidate evicts the cached instance for (tenant, providerID). The
// credential store calls it on credential add/activate/update/delete and
// on decrypt failure; an AUTH error from Execute does not evict.
func (r *Registry) Invalidate(tenant, providerID string) {
	key := instanceKey{providerID: normalizeID(providerID), tenant: tenant}
	r.instMu.Lock()
	delete(r.instances, key)
	r.instMu.Unlock()
}

func normalizeID(providerID string) string {
	return strings.ToLower(providerID)
}
