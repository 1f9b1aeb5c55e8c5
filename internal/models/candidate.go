package models

import "time"

// Candidate is a generated lookalike domain. Domain is the ASCII (punycode)
// form used for probing; Unicode is set when it differs.
type Candidate struct {
	Domain     string     `json:"domain"`
	Unicode    string     `json:"unicode,omitempty"`
	Strategies []Strategy `json:"strategies"`
}

// HasStrategy reports whether s contributed to the candidate.
func (c Candidate) HasStrategy(s Strategy) bool {
	for _, st := range c.Strategies {
		if st == s {
			return true
		}
	}
	return false
}

// DNSResult is the outcome of the DNS probe.
type DNSResult struct {
	State SignalState `json:"state"`
	A     []string    `json:"a,omitempty"`
	MX    []string    `json:"mx,omitempty"`
	NS    []string    `json:"ns,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Registered reports whether any record type was observed.
func (d DNSResult) Registered() bool {
	return d.State == SignalKnown && (len(d.A) > 0 || len(d.MX) > 0 || len(d.NS) > 0)
}

// HTTPResult is the outcome of the HTTP(S) fetch.
type HTTPResult struct {
	State       SignalState  `json:"state"`
	URL         string       `json:"url,omitempty"`
	StatusCode  int          `json:"status_code,omitempty"`
	Server      string       `json:"server,omitempty"`
	Fingerprint *Fingerprint `json:"fingerprint,omitempty"`
	Error       string       `json:"error,omitempty"`

	// OwnedRedirect is the final URL when the fetch was redirected onto one
	// of the brand's own domains.
	OwnedRedirect string `json:"owned_redirect,omitempty"`
}

// Reachable reports whether the site answered with a 2xx or 3xx status.
func (h HTTPResult) Reachable() bool {
	return h.State == SignalKnown && h.StatusCode >= 200 && h.StatusCode < 400
}

// Fingerprint summarises page content for similarity comparison.
type Fingerprint struct {
	Title          string   `json:"title,omitempty"`
	Shingles       []uint64 `json:"shingles,omitempty"`
	CredentialForm bool     `json:"credential_form,omitempty"`
}

// WhoisResult is the outcome of the registration lookup.
type WhoisResult struct {
	State           SignalState `json:"state"`
	Registered      bool        `json:"registered"`
	CreatedAt       *time.Time  `json:"created_at,omitempty"`
	Registrar       string      `json:"registrar,omitempty"`
	PrivacyRedacted bool        `json:"privacy_redacted,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// ProbeResult bundles the three probe outcomes for one candidate.
type ProbeResult struct {
	Candidate  Candidate   `json:"candidate"`
	DNS        DNSResult   `json:"dns"`
	HTTP       HTTPResult  `json:"http"`
	Whois      WhoisResult `json:"whois"`
	Similarity *float64    `json:"similarity,omitempty"`
	ProbedAt   time.Time   `json:"probed_at"`
}
