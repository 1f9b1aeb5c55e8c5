package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Brand is the entity being protected. ID, OwnerID and Domain are fixed at
// creation; the keyword, handle and owned-domain lists are user editable.
type Brand struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Name          string    `json:"name"`
	Domain        string    `json:"domain"`
	Keywords      []string  `json:"keywords,omitempty"`
	SocialHandles []string  `json:"social_handles,omitempty"`
	OwnedDomains  []string  `json:"owned_domains,omitempty"`
	CountryCode   string    `json:"country_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewBrand creates a brand with a fresh ID and a normalised domain.
func NewBrand(ownerID, name, domain string) *Brand {
	now := time.Now().UTC()
	return &Brand{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		Domain:    NormalizeDomain(domain),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// BrandUpdate carries the mutable brand fields. Nil slices leave a field as is.
type BrandUpdate struct {
	Keywords      []string `json:"keywords,omitempty"`
	SocialHandles []string `json:"social_handles,omitempty"`
	OwnedDomains  []string `json:"owned_domains,omitempty"`
	CountryCode   *string  `json:"country_code,omitempty"`
}

// Apply copies the set fields of u onto b.
func (u BrandUpdate) Apply(b *Brand) {
	if u.Keywords != nil {
		b.Keywords = u.Keywords
	}
	if u.SocialHandles != nil {
		b.SocialHandles = u.SocialHandles
	}
	if u.OwnedDomains != nil {
		b.OwnedDomains = u.OwnedDomains
	}
	if u.CountryCode != nil {
		b.CountryCode = strings.ToLower(*u.CountryCode)
	}
	b.UpdatedAt = time.Now().UTC()
}

// NormalizeDomain lowercases a domain, strips surrounding whitespace, a
// scheme, any path and the trailing root dot.
func NormalizeDomain(d string) string {
	d = strings.TrimSpace(strings.ToLower(d))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, ".")
}
