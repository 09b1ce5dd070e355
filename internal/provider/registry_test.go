package provider_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrichloop/core/internal/enrichment"
	"github.com/enrichloop/core/internal/provider"
)

type stubProvider struct {
	authErr error
	id      string
}

func (p *stubProvider) Authenticate(ctx context.Context, tenant string) error { return p.authErr }
func (p *stubProvider) ValidateConfig() error                                 { return nil }
func (p *stubProvider) SupportedOperations() []enrichment.Operation {
	return []enrichment.Operation{enrichment.OpFindEmail}
}
func (p *stubProvider) Execute(ctx context.Context, req *enrichment.Request) (*enrichment.Response, error) {
	return nil, nil
}
func (p *stubProvider) CalculateCredits(op enrichment.Operation) int { return 1 }
func (p *stubProvider) HealthCheck(ctx context.Context) (provider.HealthStatus, error) {
	return provider.HealthStatus{OK: true}, nil
}

type stubCreds struct{}

func (stubCreds) ActiveSecret(ctx context.Context, tenant, providerID string) (string, error) {
	return "secret", nil
}

func TestRegistry_GetCachesInstance(t *testing.T) {
	t.Parallel()

	reg := provider.NewRegistry(stubCreds{}, nil)
	var constructCount int
	var mu sync.Mutex

	reg.Register(provider.Descriptor{ID: "Hunter"}, func(desc provider.Descriptor, tenant string, creds provider.CredentialSource) (provider.Provider, error) {
		mu.Lock()
		constructCount++
		mu.Unlock()
		return &stubProvider{id: desc.ID}, nil
	})

	first, err := reg.Get(context.Background(), "tenant-1", "hunter")
	require.NoError(t, err)

	second, err := reg.Get(context.Background(), "tenant-1", "HUNTER")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, constructCount)
}

func TestRegistry_ConcurrentMissesConstructOnce(t *testing.T) {
	t.Parallel()

	reg := provider.NewRegistry(stubCreds{}, nil)
	var constructCount int
	var mu sync.Mutex

	reg.Register(provider.Descriptor{ID: "apollo"}, func(desc provider.Descriptor, tenant string, creds provider.CredentialSource) (provider.Provider, error) {
		mu.Lock()
		constructCount++
		mu.Unlock()
		return &stubProvider{id: desc.ID}, nil
	})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Get(context.Background(), "tenant-1", "apollo")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, constructCount)
}

func TestRegistry_AuthenticateFailureNotCached(t *testing.T) {
	t.Parallel()

	reg := provider.NewRegistry(stubCreds{}, nil)
	authErr := enrichment.NewError(enrichment.CodeAuth, "bad key")

	reg.Register(provider.Descriptor{ID: "surfe"}, func(desc provider.Descriptor, tenant string, creds provider.CredentialSource) (provider.Provider, error) {
		return &stubProvider{authErr: authErr}, nil
	})

	_, err := reg.Get(context.Background(), "tenant-1", "surfe")
	require.Error(t, err)

	var normalized *enrichment.Error
	require.True(t, errors.As(err, &normalized))
	assert.Equal(t, enrichment.CodeAuth, normalized.Code)
}

func TestRegistry_UnknownProviderIsNotFound(t *testing.T) {
	t.Parallel()

	reg := provider.NewRegistry(stubCreds{}, nil)
	_, err := reg.Get(context.Background(), "tenant-1", "nonexistent")
	require.Error(t, err)

	var normalized *enrichment.Error
	require.True(t, errors.As(err, &normalized))
	assert.Equal(t, enrichment.CodeNotFound, normalized.Code)
}

func TestRegistry_InvalidateForcesReconstruction(t *testing.T) {
	t.Parallel()

	reg := provider.NewRegistry(stubCreds{}, nil)
	var constructCount int

	reg.Register(provider.Descriptor{ID: "hunter"}, func(desc provider.Descriptor, tenant string, creds provider.CredentialSource) (provider.Provider, error) {
		constructCount++
		return &stubProvider{}, nil
	})

	first, err := reg.Get(context.Background(), "tenant-1", "hunter")
	require.NoError(t, err)

	reg.Invalidate("tenant-1", "hunter")

	second, err := reg.Get(context.Background(), "tenant-1", "hunter")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, constructCount)
}
