package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/enrichloop/core/internal/enrichment"
	"github.com/enrichloop/core/internal/provider"
	"github.com/enrichloop/core/pkg/cache"
)

// defaultTTLs are the per-operation cache TTLs from §4.5.
var defaultTTLs = map[enrichment.Operation]time.Duration{
	enrichment.OpEnrichPerson:    time.Hour,
	enrichment.OpEnrichCompany:   24 * time.Hour,
	enrichment.OpFindEmail:       24 * time.Hour,
	enrichment.OpSearchPeople:    time.Hour,
	enrichment.OpSearchCompanies: time.Hour,
	enrichment.OpFindLookalike:   time.Hour,
}

// CachingDispatcher wraps a Dispatcher with a Response Cache (C5). It is
// consulted before dispatch; on hit, the dispatcher and provider are
// skipped entirely and metadata.credits_used is reported as 0.
type CachingDispatcher struct {
	next  *Dispatcher
	cache cache.Cache[*enrichment.Response]
}

// NewCaching wraps next with a response cache. Pass cache.NewMemory for
// tests or cache.NewRedis in production, both satisfying cache.Cache.
func NewCaching(next *Dispatcher, c cache.Cache[*enrichment.Response]) *CachingDispatcher {
	return &CachingDispatcher{next: next, cache: c}
}

// Execute consults the cache before delegating to the wrapped Dispatcher.
func (d *CachingDispatcher) Execute(ctx context.Context, desc provider.Descriptor, tenant string, p provider.Provider, req *enrichment.Request) (*enrichment.Response, error) {
	key, cacheable := cacheKey(desc, tenant, p, req)
	if cacheable {
		if cached, err := d.cache.Get(ctx, key); err == nil {
			hit := *cached
			hit.Metadata.CreditsUsed = 0
			return &hit, nil
		}
	}

	resp, err := d.next.Execute(ctx, desc, tenant, p, req)
	if err != nil {
		return nil, err
	}

	if cacheable && resp.Success {
		ttl := defaultTTLs[req.Operation]
		if ttl <= 0 {
			ttl = time.Hour
		}
		_ = d.cache.Set(ctx, key, resp, ttl)
	}

	return resp, nil
}

// cacheKey computes the deterministic key for (provider_id, operation,
// canonicalized params), folding tenant in by default per the Open
// Question #1 resolution in SPEC_FULL §4.5. A provider may opt out via
// TenantScoped.TenantInvariant.
func cacheKey(desc provider.Descriptor, tenant string, p provider.Provider, req *enrichment.Request) (string, bool) {
	tenantScoped := true
	if ts, ok := p.(provider.TenantScoped); ok && ts.TenantInvariant() {
		tenantScoped = false
	}

	canonical, err := canonicalizeParams(req.Params)
	if err != nil {
		return "", false
	}

	h := sha256.New()
	h.Write([]byte(desc.ID))
	h.Write([]byte{0})
	h.Write([]byte(req.Operation))
	h.Write([]byte{0})
	if tenantScoped {
		h.Write([]byte(tenant))
		h.Write([]byte{0})
	}
	h.Write(canonical)

	return hex.EncodeToString(h.Sum(nil)), true
}

// canonicalizeParams sorts map keys before JSON-encoding so that
// semantically identical params always hash to the same key.
func canonicalizeParams(params map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]json.RawMessage, 0, len(keys)*2)
	for _, k := range keys {
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(params[k])
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, kb, vb)
	}
	return json.Marshal(ordered)
}
