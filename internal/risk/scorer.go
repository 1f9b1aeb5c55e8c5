// Package risk turns probe results into a 0-100 score, a severity tier and a
// threat type.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/hakim/brandwatch/internal/config"
	"github.com/hakim/brandwatch/internal/models"
)

// Signal names recorded on findings.
const (
	SignalRegistered    = "registered"
	SignalMX            = "mx_records"
	SignalActiveSite    = "active_site"
	SignalSimilarity    = "content_similarity"
	SignalRecent        = "recent_registration"
	SignalMultiStrategy = "multi_strategy"
	SignalParkedCap     = "parked_cap"
	SignalOwnedRedirect = "owned_redirect"
)

// Weights are the points each signal contributes.
type Weights struct {
	Registered         float64
	MX                 float64
	ActiveSite         float64
	Similarity         float64
	RecentRegistration float64
	MultiStrategy      float64

	RecentAge       time.Duration
	MinimumInterest int
	SimilarityFloor float64
}

// WeightsFromConfig copies the configured weights.
func WeightsFromConfig(c config.RiskConfig) Weights {
	return Weights{
		Registered:         c.Registered,
		MX:                 c.MX,
		ActiveSite:         c.ActiveSite,
		Similarity:         c.Similarity,
		RecentRegistration: c.RecentRegistration,
		MultiStrategy:      c.MultiStrategy,
		RecentAge:          c.RecentRegistrationAge,
		MinimumInterest:    c.MinimumInterest,
		SimilarityFloor:    c.SimilarityFloor,
	}
}

// Assessment is the scorer's verdict on one probe result.
type Assessment struct {
	Score    int
	Severity models.Severity
	Type     models.ThreatType
	Signals  []models.Signal
}

// Interesting reports whether the score reaches the minimum-interest floor.
func (a Assessment) Interesting(w Weights) bool {
	return a.Score >= w.MinimumInterest
}

// Finding converts the assessment into a per-scan finding for cand.
func (a Assessment) Finding(cand models.Candidate) models.Finding {
	return models.Finding{
		Domain:     cand.Domain,
		Type:       a.Type,
		Score:      a.Score,
		Severity:   a.Severity,
		Strategies: cand.Strategies,
		Signals:    a.Signals,
	}
}

// Scorer evaluates probe results. It is safe for concurrent use.
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// NewScorer returns a scorer using w. now defaults to time.Now.
func NewScorer(w Weights, now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{weights: w, now: now}
}

// Weights returns the weights the scorer was built with.
func (s *Scorer) Weights() Weights { return s.weights }

// Score computes the weighted sum of independent signals, clamps it to
// 0-100 and derives severity with models.SeverityForScore. Unknown probe
// signals contribute nothing.
func (s *Scorer) Score(r models.ProbeResult) Assessment {
	w := s.weights
	var a Assessment
	var total float64
	add := func(name string, pts float64, detail string) {
		if pts <= 0 {
			return
		}
		total += pts
		a.Signals = append(a.Signals, models.Signal{Name: name, Points: pts, Detail: detail})
	}

	registered := r.DNS.Registered() || (r.Whois.State == models.SignalKnown && r.Whois.Registered)
	if registered {
		add(SignalRegistered, w.Registered, registrationDetail(r))
	}

	hasMX := r.DNS.State == models.SignalKnown && len(r.DNS.MX) > 0
	if hasMX {
		add(SignalMX, w.MX, fmt.Sprintf("%d MX record(s)", len(r.DNS.MX)))
	}

	// A forward onto the brand's own site is not an active lookalike.
	forwarded := r.HTTP.OwnedRedirect != ""
	reachable := r.HTTP.Reachable() && !forwarded
	if reachable {
		add(SignalActiveSite, w.ActiveSite, fmt.Sprintf("HTTP %d", r.HTTP.StatusCode))
	}
	if forwarded {
		a.Signals = append(a.Signals, models.Signal{
			Name:   SignalOwnedRedirect,
			Detail: "forwards to " + r.HTTP.OwnedRedirect,
		})
	}

	similar := false
	if !forwarded && r.Similarity != nil && *r.Similarity >= w.SimilarityFloor {
		similar = true
		add(SignalSimilarity, w.Similarity**r.Similarity, fmt.Sprintf("%.0f%% similar to brand site", *r.Similarity*100))
	}

	if r.Whois.State == models.SignalKnown && r.Whois.CreatedAt != nil {
		age := s.now().Sub(*r.Whois.CreatedAt)
		if age >= 0 && age < w.RecentAge {
			add(SignalRecent, w.RecentRegistration, fmt.Sprintf("registered %s ago", age.Round(time.Hour)))
		}
	}

	if len(r.Candidate.Strategies) > 1 {
		add(SignalMultiStrategy, w.MultiStrategy, fmt.Sprintf("%d strategies", len(r.Candidate.Strategies)))
	}

	score := int(math.Round(total))
	if score > 100 {
		score = 100
	}
	// Registered but parked: no mail, no site, no resemblance.
	if !hasMX && !reachable && !similar && score >= models.MediumScore {
		a.Signals = append(a.Signals, models.Signal{
			Name:   SignalParkedCap,
			Points: float64(models.MediumScore - 1 - score),
			Detail: "parked registration capped below medium",
		})
		score = models.MediumScore - 1
	}

	a.Score = score
	a.Severity = models.SeverityForScore(score)
	a.Type = classify(r, similar)
	return a
}

func registrationDetail(r models.ProbeResult) string {
	if r.Whois.Registrar != "" {
		return "registrar " + r.Whois.Registrar
	}
	if r.DNS.Registered() {
		return "DNS records present"
	}
	return "registry record present"
}

// classify picks the threat type from the strongest evidence.
func classify(r models.ProbeResult, similar bool) models.ThreatType {
	if similar && r.HTTP.Reachable() && r.HTTP.Fingerprint != nil && r.HTTP.Fingerprint.CredentialForm {
		return models.ThreatPhishingPage
	}
	if similar {
		return models.ThreatLookalikeWebsite
	}
	c := r.Candidate
	if c.HasStrategy(models.StrategyOmission) || c.HasStrategy(models.StrategySubstitution) ||
		c.HasStrategy(models.StrategyTransposition) || c.HasStrategy(models.StrategyHomoglyph) {
		return models.ThreatTyposquatDomain
	}
	return models.ThreatBrandImpersonation
}
