package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hakim/brandwatch/internal/models"
)

// maxBodyBytes caps how much of a page is read for fingerprinting.
const maxBodyBytes = 1 << 20

// HTTPProber fetches a candidate's site over HTTPS, falling back to HTTP.
type HTTPProber struct {
	client    *http.Client
	userAgent string
	schemes   []string
}

// NewHTTPProber returns a prober whose requests are bounded by timeout.
func NewHTTPProber(timeout time.Duration, userAgent string) *HTTPProber {
	return &HTTPProber{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		schemes:   []string{"https", "http"},
	}
}

// Fetch requests the domain root. Any HTTP response is a known result;
// a result is unknown only when no scheme produced a response.
func (p *HTTPProber) Fetch(ctx context.Context, domain string) models.HTTPResult {
	var errs []string
	for _, scheme := range p.schemes {
		res, err := p.fetchURL(ctx, scheme+"://"+domain+"/")
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", scheme, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return res
	}
	return models.HTTPResult{
		State: models.SignalUnknown,
		Error: strings.Join(errs, "; "),
	}
}

// FetchURL requests one URL; used for the brand's reference site.
func (p *HTTPProber) FetchURL(ctx context.Context, url string) (models.HTTPResult, error) {
	return p.fetchURL(ctx, url)
}

func (p *HTTPProber) fetchURL(ctx context.Context, url string) (models.HTTPResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.HTTPResult{}, err
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := p.client.Do(req)
	if err != nil {
		return models.HTTPResult{}, err
	}
	defer resp.Body.Close()

	res := models.HTTPResult{
		State:      models.SignalKnown,
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Server:     resp.Header.Get("Server"),
	}

	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		fp, err := ParseFingerprint(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			res.Error = fmt.Sprintf("parse body: %v", err)
		} else {
			res.Fingerprint = fp
		}
	}
	return res, nil
}
