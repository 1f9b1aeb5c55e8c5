package models

import (
	"time"

	"github.com/google/uuid"
)

// Counters are the live progress numbers a poller reads.
type Counters struct {
	DomainsChecked int64 `json:"domains_checked"`
	PagesScanned   int64 `json:"pages_scanned"`
	ThreatsFound   int64 `json:"threats_found"`
}

// Scan is one execution of the detection pipeline against a brand.
type Scan struct {
	ID          string      `json:"id"`
	BrandID     string      `json:"brand_id"`
	Type        ScanType    `json:"type"`
	Trigger     ScanTrigger `json:"trigger"`
	Preset      string      `json:"preset,omitempty"`
	Status      ScanStatus  `json:"status"`
	Counters    Counters    `json:"counters"`
	Candidates  int         `json:"candidates"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// NewScan creates a pending scan record for a brand.
func NewScan(brandID string, typ ScanType, trigger ScanTrigger) *Scan {
	return &Scan{
		ID:        uuid.New().String(),
		BrandID:   brandID,
		Type:      typ,
		Trigger:   trigger,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// ScanStatusView is what a status query returns.
type ScanStatusView struct {
	ID             string     `json:"id"`
	BrandID        string     `json:"brand_id"`
	Status         ScanStatus `json:"status"`
	DomainsChecked int64      `json:"domains_checked"`
	PagesScanned   int64      `json:"pages_scanned"`
	ThreatsFound   int64      `json:"threats_found"`
	Candidates     int        `json:"candidates"`
	Error          string     `json:"error,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// View flattens a scan into its status view.
func (s *Scan) View() ScanStatusView {
	return ScanStatusView{
		ID:             s.ID,
		BrandID:        s.BrandID,
		Status:         s.Status,
		DomainsChecked: s.Counters.DomainsChecked,
		PagesScanned:   s.Counters.PagesScanned,
		ThreatsFound:   s.Counters.ThreatsFound,
		Candidates:     s.Candidates,
		Error:          s.Error,
		StartedAt:      s.StartedAt,
		CompletedAt:    s.CompletedAt,
	}
}
