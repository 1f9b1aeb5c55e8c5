package models

// ScanStatus represents the current state of a scan
type ScanStatus string

const (
	StatusPending   ScanStatus = "pending"
	StatusRunning   ScanStatus = "running"
	StatusCompleted ScanStatus = "completed"
	StatusFailed    ScanStatus = "failed"
	StatusCancelled ScanStatus = "cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s ScanStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ScanType selects how a scan builds its candidate list.
type ScanType string

const (
	ScanFull        ScanType = "full"
	ScanIncremental ScanType = "incremental"
)

// ParseScanType returns the ScanType named by s. An empty string means full.
func ParseScanType(s string) (ScanType, bool) {
	switch ScanType(s) {
	case "", ScanFull:
		return ScanFull, true
	case ScanIncremental:
		return ScanIncremental, true
	}
	return "", false
}

// ScanTrigger records what started a scan.
type ScanTrigger string

const (
	TriggerOnboarding ScanTrigger = "onboarding"
	TriggerManual     ScanTrigger = "manual"
	TriggerScheduled  ScanTrigger = "scheduled"
)

// Severity represents the severity tier of a threat
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Score boundaries of the severity step function.
const (
	CriticalScore = 80
	HighScore     = 60
	MediumScore   = 35
)

// SeverityForScore maps a 0-100 score onto its severity tier. It is the only
// place a severity is derived, so a stored score and label never disagree.
func SeverityForScore(score int) Severity {
	switch {
	case score >= CriticalScore:
		return SeverityCritical
	case score >= HighScore:
		return SeverityHigh
	case score >= MediumScore:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Rank orders severities from low (1) to critical (4). Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// ParseSeverity validates a severity name.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(s)
	return sev, sev.Rank() > 0
}

// ThreatType classifies what kind of impersonation a threat is.
type ThreatType string

const (
	ThreatPhishingPage       ThreatType = "phishing_page"
	ThreatTyposquatDomain    ThreatType = "typosquat_domain"
	ThreatLookalikeWebsite   ThreatType = "lookalike_website"
	ThreatFakeSocialAccount  ThreatType = "fake_social_account"
	ThreatBrandImpersonation ThreatType = "brand_impersonation"
	ThreatTrademarkAbuse     ThreatType = "trademark_abuse"
)

// ThreatStatus is the analyst workflow state of a threat.
type ThreatStatus string

const (
	ThreatNew               ThreatStatus = "new"
	ThreatReviewing         ThreatStatus = "reviewing"
	ThreatTakedownRequested ThreatStatus = "takedown_requested"
	ThreatResolved          ThreatStatus = "resolved"
	ThreatFalsePositive     ThreatStatus = "false_positive"
)

// Terminal reports whether the status is resolved or false_positive.
func (s ThreatStatus) Terminal() bool {
	return s == ThreatResolved || s == ThreatFalsePositive
}

// ParseThreatStatus validates a threat status name.
func ParseThreatStatus(s string) (ThreatStatus, bool) {
	switch st := ThreatStatus(s); st {
	case ThreatNew, ThreatReviewing, ThreatTakedownRequested, ThreatResolved, ThreatFalsePositive:
		return st, true
	}
	return "", false
}

// Strategy names a permutation technique.
type Strategy string

const (
	StrategyOmission      Strategy = "omission"
	StrategySubstitution  Strategy = "substitution"
	StrategyTransposition Strategy = "transposition"
	StrategyHomoglyph     Strategy = "homoglyph"
	StrategyTLDVariation  Strategy = "tld_variation"
	StrategyCombosquat    Strategy = "combosquat"
)

// AllStrategies lists every strategy in generation order.
var AllStrategies = []Strategy{
	StrategyOmission,
	StrategySubstitution,
	StrategyTransposition,
	StrategyHomoglyph,
	StrategyTLDVariation,
	StrategyCombosquat,
}

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, bool) {
	for _, st := range AllStrategies {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// SignalState says whether a probe produced a trustworthy answer.
type SignalState string

const (
	SignalKnown   SignalState = "known"
	SignalUnknown SignalState = "unknown"
)

// DNSRecordType represents different types of DNS records
type DNSRecordType string

const (
	DNSRecordA    DNSRecordType = "A"
	DNSRecordAAAA DNSRecordType = "AAAA"
	DNSRecordMX   DNSRecordType = "MX"
	DNSRecordNS   DNSRecordType = "NS"
)
