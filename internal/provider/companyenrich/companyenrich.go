// Package companyenrich adapts the CompanyEnrich company-data API to the
// Provider contract, authenticating with a static API key.
package companyenrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/enrichloop/core/internal/enrichment"
	"github.com/enrichloop/core/internal/provider"
)

const defaultBaseURL = "https://api.companyenrich.com"

var supportedOps = []enrichment.Operation{enrichment.OpEnrichCompany}

// Provider is the CompanyEnrich adapter.
type Provider struct {
	desc   provider.Descriptor
	tenant string
	creds  provider.CredentialSource
	apiKey string
	client *http.Client
}

// New is a provider.Factory for CompanyEnrich.
func New(desc provider.Descriptor, tenant string, creds provider.CredentialSource) (provider.Provider, error) {
	if desc.BaseURL == "" {
		desc.BaseURL = defaultBaseURL
	}
	return &Provider{desc: desc, tenant: tenant, creds: creds, client: http.DefaultClient}, nil
}

func (p *Provider) ValidateConfig() error {
	if p.desc.BaseURL == "" {
		return enrichment.NewError(enrichment.CodeInternal, "companyenrich: missing base url")
	}
	return nil
}

func (p *Provider) SupportedOperations() []enrichment.Operation { return supportedOps }

func (p *Provider) Authenticate(ctx context.Context, tenant string) error {
	key, err := p.creds.ActiveSecret(ctx, tenant, p.desc.ID)
	if err != nil {
		return enrichment.NewError(enrichment.CodeAuth, "companyenrich: no active credential")
	}
	p.apiKey = key
	return nil
}

func (p *Provider) CalculateCredits(op enrichment.Operation) int { return 1 }

func (p *Provider) HealthCheck(ctx context.Context) (provider.HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.desc.BaseURL+"/v1/status", nil)
	if err != nil {
		return provider.HealthStatus{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return provider.HealthStatus{OK: false, Message: err.Error()}, nil
	}
	defer resp.Body.Close()
	return provider.HealthStatus{OK: resp.StatusCode < 500}, nil
}

type enrichResponse struct {
	Name         string   `json:"name"`
	Domain       string   `json:"domain"`
	Description  string   `json:"description"`
	Industry     string   `json:"industry"`
	EmployeeSize string   `json:"employee_size"`
	Location     string   `json:"location"`
	LinkedInURL  string   `json:"linkedin_url"`
	Tech         []string `json:"technologies"`
}

func (p *Provider) Execute(ctx context.Context, req *enrichment.Request) (*enrichment.Response, error) {
	start := time.Now()

	if req.Operation != enrichment.OpEnrichCompany {
		return nil, enrichment.NewError(enrichment.CodeOperationUnsupported,
			fmt.Sprintf("companyenrich: unsupported operation %q", req.Operation))
	}

	domain, _ := req.Params["domain"].(string)
	if domain == "" {
		return nil, enrichment.NewError(enrichment.CodeInvalidInput, "companyenrich: domain is required")
	}

	q := url.Values{}
	q.Set("domain", domain)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.desc.BaseURL+"/v1/enrich?"+q.Encode(), nil)
	if err != nil {
		return nil, enrichment.NewError(enrichment.CodeInternal, err.Error())
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, provider.MapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, provider.MapStatus(resp.StatusCode, "companyenrich: request failed")
	}

	var payload enrichResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, enrichment.NewError(enrichment.CodeInternal, "companyenrich: decode response: "+err.Error())
	}

	company := enrichment.Company{
		Name:         payload.Name,
		Domain:       payload.Domain,
		Description:  payload.Description,
		Industry:     payload.Industry,
		Size:         payload.EmployeeSize,
		Location:     payload.Location,
		LinkedInURL:  payload.LinkedInURL,
		Technologies: payload.Tech,
	}

	meta := enrichment.Metadata{
		Provider:       p.desc.ID,
		Operation:      string(req.Operation),
		CreditsUsed:    p.CalculateCredits(req.Operation),
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}
	return enrichment.SuccessResponse(company, meta), nil
}
