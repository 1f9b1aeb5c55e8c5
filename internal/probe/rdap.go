package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hakim/brandwatch/internal/models"
)

// RDAPProber looks up registration data over RDAP, rate limited so a scan
// does not get the registry to throttle it.
type RDAPProber struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewRDAPProber returns a prober allowing perSecond lookups with the given burst.
func NewRDAPProber(baseURL string, timeout time.Duration, perSecond float64, burst int) *RDAPProber {
	return &RDAPProber{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

type rdapDomain struct {
	Events []struct {
		Action string `json:"eventAction"`
		Date   string `json:"eventDate"`
	} `json:"events"`
	Entities []struct {
		Roles      []string          `json:"roles"`
		Handle     string            `json:"handle"`
		VCardArray []json.RawMessage `json:"vcardArray"`
	} `json:"entities"`
	Remarks []struct {
		Title       string   `json:"title"`
		Description []string `json:"description"`
	} `json:"remarks"`
	Redacted []json.RawMessage `json:"redacted"`
}

// Lookup returns the registration state of the domain. 404 means the name is
// not registered; rate limiting and transport errors are unknown.
func (p *RDAPProber) Lookup(ctx context.Context, domain string) models.WhoisResult {
	unknown := func(format string, args ...any) models.WhoisResult {
		return models.WhoisResult{State: models.SignalUnknown, Error: fmt.Sprintf(format, args...)}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return unknown("rate limiter: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/domain/"+domain, nil)
	if err != nil {
		return unknown("%v", err)
	}
	req.Header.Set("Accept", "application/rdap+json, application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return unknown("%v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.WhoisResult{State: models.SignalKnown}
	case resp.StatusCode == http.StatusTooManyRequests:
		return unknown("rate limited by registry")
	case resp.StatusCode != http.StatusOK:
		return unknown("rdap status %d", resp.StatusCode)
	}

	var body rdapDomain
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return unknown("decode rdap: %v", err)
	}

	res := models.WhoisResult{State: models.SignalKnown, Registered: true}
	for _, ev := range body.Events {
		if ev.Action != "registration" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, ev.Date); err == nil {
			t = t.UTC()
			res.CreatedAt = &t
		}
	}
	for _, ent := range body.Entities {
		if !hasRole(ent.Roles, "registrar") {
			continue
		}
		res.Registrar = vcardName(ent.VCardArray)
		if res.Registrar == "" {
			res.Registrar = ent.Handle
		}
	}

	res.PrivacyRedacted = len(body.Redacted) > 0
	for _, r := range body.Remarks {
		text := strings.ToUpper(r.Title + " " + strings.Join(r.Description, " "))
		if strings.Contains(text, "REDACTED") || strings.Contains(text, "PRIVACY") {
			res.PrivacyRedacted = true
		}
	}
	return res
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

// vcardName pulls the "fn" property out of a jCard array:
// ["vcard", [["fn", {}, "text", "Example Registrar"], ...]].
func vcardName(card []json.RawMessage) string {
	if len(card) < 2 {
		return ""
	}
	var props [][]any
	if err := json.Unmarshal(card[1], &props); err != nil {
		return ""
	}
	for _, prop := range props {
		if len(prop) < 4 {
			continue
		}
		if name, _ := prop[0].(string); name == "fn" {
			v, _ := prop[3].(string)
			return v
		}
	}
	return ""
}
