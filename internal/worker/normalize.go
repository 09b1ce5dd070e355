package worker

import (
	"regexp"
	"strings"
)

// domainPattern matches a bare registrable domain: labels of letters,
// digits and hyphens separated by dots, final label alphabetic, 2+ chars.
var domainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*\.[a-z]{2,}$`)

// normalizeDomain lowercases d, strips a leading scheme and "www.", and
// validates the result against domainPattern. It is idempotent:
// normalizeDomain(normalizeDomain(d)) == normalizeDomain(d), satisfying the
// domain-normalization testable property.
func normalizeDomain(d string) (string, bool) {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	for strings.HasPrefix(d, "www.") {
		d = strings.TrimPrefix(d, "www.")
	}
	if slash := strings.IndexByte(d, '/'); slash >= 0 {
		d = d[:slash]
	}
	if d == "" || !domainPattern.MatchString(d) {
		return "", false
	}
	return d, true
}

// normalizeEmail lowercases and trims an email address. It does not
// validate structure beyond non-emptiness and the presence of an "@"; the
// provider is the authority
// on whether an address is deliverable.
func normalizeEmail(e string) (string, bool) {
	e = strings.ToLower(strings.TrimSpace(e))
	if e == "" || !strings.Contains(e, "@") {
		return "", false
	}
	return e, true
}
