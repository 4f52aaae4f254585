package check

import "strings"

// DefaultCatchAllDomains lists large public providers known to accept
// any RCPT target to defeat address enumeration. Probing them yields
// zero information and burns rate-limit budget and sender reputation,
// so the pipeline skips the handshake for these domains entirely.
var DefaultCatchAllDomains = []string{
	"gmail.com",
	"googlemail.com",
	"outlook.com",
	"hotmail.com",
	"live.com",
	"protonmail.com",
	"icloud.com",
	"me.com",
}

// CatchAll flags domains whose servers accept any recipient, making a
// protocol probe non-discriminating.
type CatchAll struct {
	domains map[string]struct{}
}

// NewCatchAll builds a classifier over the given provider list. A nil
// or empty list means no domain is treated as catch-all.
func NewCatchAll(domains []string) *CatchAll {
	m := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		m[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	return &CatchAll{domains: m}
}

// Match reports whether the domain, or any parent of it on the list,
// is a known catch-all provider.
func (c *CatchAll) Match(domain string) bool {
	domain = strings.ToLower(domain)
	if _, ok := c.domains[domain]; ok {
		return true
	}
	for d := range c.domains {
		if strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}
