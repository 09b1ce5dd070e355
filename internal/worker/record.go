package worker

import (
	"fmt"

	"github.com/enrichloop/core/internal/enrichment"
)

// normalizeRecord cleans and validates one input record in place, mapping
// §4.7 step 3a ("Normalize/clean input... Missing required identifiers ->
// record fails with INVALID_INPUT without consuming credits") onto the
// operation's required identifier. A copy is returned so the caller's
// input snapshot is never mutated.
func normalizeRecord(op enrichment.Operation, record map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[k] = v
	}

	switch op {
	case enrichment.OpEnrichPerson, enrichment.OpFindEmail:
		email, _ := out["email"].(string)
		if email != "" {
			clean, ok := normalizeEmail(email)
			if !ok {
				return nil, enrichment.NewError(enrichment.CodeInvalidInput, "invalid email")
			}
			out["email"] = clean
			return out, nil
		}
		// find-email may instead key off a domain + name pair.
		if domain, hasDomain := out["domain"].(string); hasDomain && domain != "" {
			clean, ok := normalizeDomain(domain)
			if !ok {
				return nil, enrichment.NewError(enrichment.CodeInvalidInput, "invalid domain")
			}
			out["domain"] = clean
			return out, nil
		}
		return nil, enrichment.NewError(enrichment.CodeInvalidInput, "missing required identifier: email or domain")

	case enrichment.OpEnrichCompany, enrichment.OpSearchCompanies:
		domain, _ := out["domain"].(string)
		if domain == "" {
			return nil, enrichment.NewError(enrichment.CodeInvalidInput, "missing required identifier: domain")
		}
		clean, ok := normalizeDomain(domain)
		if !ok {
			return nil, enrichment.NewError(enrichment.CodeInvalidInput, fmt.Sprintf("invalid domain: %q", domain))
		}
		out["domain"] = clean
		return out, nil

	default:
		// search-people, find-lookalike, check-enrichment-status carry
		// provider-defined free-form params; no normalized identifier to
		// validate here.
		return out, nil
	}
}
