package scan

import (
	"sync"

	"github.com/hakim/brandwatch/internal/models"
)

// progress holds a scan's live counters. Workers increment it concurrently;
// once frozen, increments are dropped so the counters keep the values they
// had when the scan stopped.
type progress struct {
	mu       sync.Mutex
	counters models.Counters
	frozen   bool
}

func (p *progress) bump(fn func(c *models.Counters)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen {
		return
	}
	fn(&p.counters)
}

func (p *progress) domainChecked() { p.bump(func(c *models.Counters) { c.DomainsChecked++ }) }
func (p *progress) pageScanned()   { p.bump(func(c *models.Counters) { c.PagesScanned++ }) }
func (p *progress) threatFound()   { p.bump(func(c *models.Counters) { c.ThreatsFound++ }) }

// freeze stops further increments and returns the final values.
func (p *progress) freeze() models.Counters {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frozen = true
	return p.counters
}

func (p *progress) snapshot() models.Counters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}
