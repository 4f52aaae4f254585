package check

import (
	"regexp"
	"strings"
)

// addressPattern is a deliberately simplified grammar: local part,
// "@", dotted domain labels, final label of at least two letters.
// Exotic but RFC-valid addresses (quoted local parts, IP literals,
// internationalized domains) are rejected; that false-negative rate
// is an accepted limitation of protocol probing.
var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// SyntaxFilter validates address shape before any network cost is
// paid. It has no side effects and no failure modes beyond returning
// false.
type SyntaxFilter struct{}

func NewSyntaxFilter() *SyntaxFilter {
	return &SyntaxFilter{}
}

// Normalize trims surrounding whitespace and lower-cases the address.
// Every pipeline input passes through here before anything else looks
// at it.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Valid reports whether the (already normalized) address matches the
// accepted grammar.
func (f *SyntaxFilter) Valid(email string) bool {
	return addressPattern.MatchString(email)
}

// Domain returns the part after the last "@", or "" when the address
// has none. Callers are expected to have passed Valid first.
func Domain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}
