package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enrichloop/core/internal/enrichment"
)

// defaultDescriptors seeds the providers table on first boot (§6: "an
// auto-seed pass runs if the provider table is empty"). Rate limits here
// are conservative defaults; operators adjust via the providers table
// directly, there is no runtime API for it (out of core scope).
var defaultDescriptors = []Descriptor{
	{
		ID: "surfe", DisplayName: "Surfe", Category: enrichment.CategoryMajorDatabase,
		BaseURL: "https://api.surfe.com", RateLimitRPS: 5, BurstSize: 10, DailyQuota: 10000, MaxConcurrent: 5,
		SupportedOperations: []enrichment.Operation{
			enrichment.OpEnrichPerson, enrichment.OpEnrichCompany,
			enrichment.OpSearchPeople, enrichment.OpSearchCompanies, enrichment.OpFindLookalike,
		},
	},
	{
		ID: "apollo", DisplayName: "Apollo", Category: enrichment.CategoryMajorDatabase,
		BaseURL: "https://api.apollo.io", RateLimitRPS: 5, BurstSize: 10, DailyQuota: 10000, MaxConcurrent: 5,
		SupportedOperations: []enrichment.Operation{
			enrichment.OpEnrichPerson, enrichment.OpEnrichCompany, enrichment.OpSearchPeople, enrichment.OpSearchCompanies,
		},
	},
	{
		ID: "hunter", DisplayName: "Hunter", Category: enrichment.CategoryEmailFinder,
		BaseURL: "https://api.hunter.io", RateLimitRPS: 2, BurstSize: 5, DailyQuota: 5000, MaxConcurrent: 3,
		SupportedOperations: []enrichment.Operation{enrichment.OpFindEmail},
	},
	{
		ID: "betterenrich", DisplayName: "BetterEnrich", Category: enrichment.CategoryAIResearch,
		BaseURL: "https://api.betterenrich.com", RateLimitRPS: 1, BurstSize: 3, DailyQuota: 2000, MaxConcurrent: 2,
		SupportedOperations: []enrichment.Operation{enrichment.OpEnrichCompany, enrichment.OpEnrichPerson},
	},
	{
		ID: "companyenrich", DisplayName: "CompanyEnrich", Category: enrichment.CategoryCompanyData,
		BaseURL: "https://api.companyenrich.com", RateLimitRPS: 3, BurstSize: 6, DailyQuota: 5000, MaxConcurrent: 3,
		SupportedOperations: []enrichment.Operation{enrichment.OpEnrichCompany},
	},
}

// SeedIfEmpty inserts defaultDescriptors when the providers table has no
// rows, so a fresh deployment boots with a usable provider set.
func SeedIfEmpty(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM providers`).Scan(&count); err != nil {
		return fmt.Errorf("provider: count: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, d := range defaultDescriptors {
		ops := make([]string, len(d.SupportedOperations))
		for i, op := range d.SupportedOperations {
			ops[i] = string(op)
		}
		cfg, err := json.Marshal(d.Config)
		if err != nil {
			return fmt.Errorf("provider: encode config for %s: %w", d.ID, err)
		}
		const q = `
			INSERT INTO providers
				(id, display_name, category, base_url, rate_limit, burst_size, daily_quota,
				 max_concurrent, is_active, configuration, supported_operations)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, $9, $10)
			ON CONFLICT (id) DO NOTHING`
		if _, err := pool.Exec(ctx, q, d.ID, d.DisplayName, d.Category, d.BaseURL, d.RateLimitRPS,
			d.BurstSize, d.DailyQuota, d.MaxConcurrent, cfg, ops); err != nil {
			return fmt.Errorf("provider: seed %s: %w", d.ID, err)
		}
	}
	return nil
}

// LoadDescriptors reads every active provider row for use as Registry.Register
// arguments at process start.
func LoadDescriptors(ctx context.Context, pool *pgxpool.Pool) ([]Descriptor, error) {
	const q = `
		SELECT id, display_name, category, base_url, rate_limit, burst_size, daily_quota,
			max_concurrent, configuration, supported_operations
		FROM providers
		WHERE is_active = true`

	rows, err := pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("provider: load descriptors: %w", err)
	}
	defer rows.Close()

	var out []Descriptor
	for rows.Next() {
		var d Descriptor
		var category string
		var cfgRaw []byte
		var ops []string
		if err := rows.Scan(&d.ID, &d.DisplayName, &category, &d.BaseURL, &d.RateLimitRPS, &d.BurstSize,
			&d.DailyQuota, &d.MaxConcurrent, &cfgRaw, &ops); err != nil {
			return nil, fmt.Errorf("provider: scan descriptor: %w", err)
		}
		d.Category = enrichment.Category(category)
		if len(cfgRaw) > 0 {
			if err := json.Unmarshal(cfgRaw, &d.Config); err != nil {
				return nil, fmt.Errorf("provider: decode config for %s: %w", d.ID, err)
			}
		}
		d.SupportedOperations = make([]enrichment.Operation, len(ops))
		for i, op := range ops {
			d.SupportedOperations[i] = enrichment.Operation(op)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
