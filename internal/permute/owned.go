package permute

import "strings"

// ownedMatcher reports whether a candidate is a domain the brand controls.
// Patterns are exact domains or "*.parent" wildcards that match any
// subdomain of parent (but not parent itself).
type ownedMatcher struct {
	patterns []string
}

func (m ownedMatcher) matches(domain string) bool {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	for _, p := range m.patterns {
		if ownedPatternMatches(strings.ToLower(strings.TrimSpace(p)), domain) {
			return true
		}
	}
	return false
}

// IsOwned reports whether domain matches any of the owned patterns.
func IsOwned(domain string, owned []string) bool {
	return ownedMatcher{patterns: owned}.matches(domain)
}

func ownedPatternMatches(pattern, domain string) bool {
	pattern = strings.TrimSuffix(pattern, ".")
	if pattern == "" {
		return false
	}
	if strings.HasPrefix(pattern, "*.") {
		parent := pattern[2:]
		return strings.HasSuffix(domain, "."+parent)
	}
	return domain == pattern
}
