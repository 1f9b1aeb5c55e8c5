package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/hakim/brandwatch/internal/models"
)

// DNSProber queries A, AAAA, MX and NS records against a fixed resolver list.
type DNSProber struct {
	resolvers []string
	client    *dns.Client
}

// NewDNSProber returns a prober using the given "host:port" resolvers.
func NewDNSProber(resolvers []string, timeout time.Duration) *DNSProber {
	return &DNSProber{
		resolvers: resolvers,
		client:    &dns.Client{Timeout: timeout},
	}
}

var dnsQueries = []struct {
	qtype uint16
	kind  models.DNSRecordType
}{
	{dns.TypeA, models.DNSRecordA},
	{dns.TypeAAAA, models.DNSRecordAAAA},
	{dns.TypeMX, models.DNSRecordMX},
	{dns.TypeNS, models.DNSRecordNS},
}

// Resolve looks up the candidate. The result is unknown only when no query
// got an answer from any resolver; NXDOMAIN is a known, empty result.
func (p *DNSProber) Resolve(ctx context.Context, domain string) models.DNSResult {
	res := models.DNSResult{State: models.SignalUnknown}
	var errs []string

	for _, q := range dnsQueries {
		msg, err := p.exchange(ctx, domain, q.qtype)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", q.kind, err))
			continue
		}
		res.State = models.SignalKnown
		if msg.Rcode == dns.RcodeNameError {
			// The name does not exist; the other types will say the same.
			res.A, res.MX, res.NS = nil, nil, nil
			errs = nil
			break
		}

		for _, ans := range msg.Answer {
			switch rr := ans.(type) {
			case *dns.A:
				res.A = append(res.A, rr.A.String())
			case *dns.AAAA:
				res.A = append(res.A, rr.AAAA.String())
			case *dns.MX:
				res.MX = append(res.MX, strings.TrimSuffix(rr.Mx, "."))
			case *dns.NS:
				res.NS = append(res.NS, strings.TrimSuffix(rr.Ns, "."))
			}
		}
	}

	if len(errs) > 0 {
		res.Error = strings.Join(errs, "; ")
	}
	return res
}

// exchange tries each resolver in order until one answers.
func (p *DNSProber) exchange(ctx context.Context, domain string, qtype uint16) (*dns.Msg, error) {
	if len(p.resolvers) == 0 {
		return nil, errors.New("no resolvers configured")
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range p.resolvers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, _, err := p.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
			lastErr = fmt.Errorf("rcode %s from %s", dns.RcodeToString[resp.Rcode], server)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}
