package probe

import (
	"net/url"
	"strings"

	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/permute"
)

// Reference describes the brand a candidate is compared against.
// Fingerprint is nil when the brand's own site could not be fetched.
type Reference struct {
	Domain      string
	Owned       []string
	Fingerprint *models.Fingerprint
}

// Owns reports whether rawURL points at the brand's domain, one of its
// subdomains, or a domain matching the owned patterns.
func (r *Reference) Owns(rawURL string) bool {
	if r == nil || rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return false
	}
	if d := strings.ToLower(r.Domain); d != "" && (host == d || strings.HasSuffix(host, "."+d)) {
		return true
	}
	return permute.IsOwned(host, r.Owned)
}
