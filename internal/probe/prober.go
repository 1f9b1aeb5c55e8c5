// Package probe runs the DNS, HTTP and registration probes for a candidate.
// Probe failures never propagate as errors: they are recorded as unknown
// signals on the result.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"github.com/hakim/brandwatch/internal/models"
)

// Resolver performs the DNS probe.
type Resolver interface {
	Resolve(ctx context.Context, domain string) models.DNSResult
}

// Fetcher performs the HTTP probe.
type Fetcher interface {
	Fetch(ctx context.Context, domain string) models.HTTPResult
}

// Registry performs the registration (WHOIS/RDAP) probe.
type Registry interface {
	Lookup(ctx context.Context, domain string) models.WhoisResult
}

// Timeouts bounds each probe independently.
type Timeouts struct {
	DNS   time.Duration
	HTTP  time.Duration
	Whois time.Duration
}

// Hooks are called as individual probes finish, whatever their outcome.
type Hooks struct {
	DNSDone  func()
	HTTPDone func()
}

// Prober runs the three probes for a candidate concurrently.
type Prober struct {
	DNS      Resolver
	HTTP     Fetcher
	Registry Registry
	Timeouts Timeouts
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

// Probe attempts all three probes before returning, so scoring never acts on
// a partial result. ref, when non-nil, supplies the brand site fingerprint
// for content similarity. A candidate whose fetch ends on a brand-owned host
// is a forward, not a copy: it gets OwnedRedirect and no similarity.
func (p *Prober) Probe(ctx context.Context, cand models.Candidate, ref *Reference, hooks Hooks) models.ProbeResult {
	res := models.ProbeResult{Candidate: cand}

	var wg conc.WaitGroup
	wg.Go(func() {
		res.DNS = p.resolve(ctx, cand.Domain)
		call(hooks.DNSDone)
	})
	wg.Go(func() {
		res.HTTP = p.fetch(ctx, cand.Domain)
		call(hooks.HTTPDone)
	})
	wg.Go(func() {
		res.Whois = p.lookup(ctx, cand.Domain)
	})
	wg.Wait()

	switch {
	case !res.HTTP.Reachable():
	case ref.Owns(res.HTTP.URL):
		res.HTTP.OwnedRedirect = res.HTTP.URL
	case ref != nil && ref.Fingerprint != nil:
		if sim, ok := Similarity(ref.Fingerprint, res.HTTP.Fingerprint); ok {
			res.Similarity = &sim
		}
	}
	res.ProbedAt = p.now()
	return res
}

func (p *Prober) resolve(ctx context.Context, domain string) (out models.DNSResult) {
	ctx, cancel := withTimeout(ctx, p.Timeouts.DNS)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			p.logPanic("dns", domain, r)
			out = models.DNSResult{State: models.SignalUnknown, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return p.DNS.Resolve(ctx, domain)
}

func (p *Prober) fetch(ctx context.Context, domain string) (out models.HTTPResult) {
	ctx, cancel := withTimeout(ctx, p.Timeouts.HTTP)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			p.logPanic("http", domain, r)
			out = models.HTTPResult{State: models.SignalUnknown, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return p.HTTP.Fetch(ctx, domain)
}

func (p *Prober) lookup(ctx context.Context, domain string) (out models.WhoisResult) {
	ctx, cancel := withTimeout(ctx, p.Timeouts.Whois)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			p.logPanic("whois", domain, r)
			out = models.WhoisResult{State: models.SignalUnknown, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return p.Registry.Lookup(ctx, domain)
}

func (p *Prober) logPanic(probe, domain string, r any) {
	if p.Logger == nil {
		return
	}
	p.Logger.WithFields(logrus.Fields{"probe": probe, "domain": domain}).Errorf("probe panicked: %v", r)
}

func (p *Prober) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}
