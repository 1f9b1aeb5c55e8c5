// Package permute generates lookalike domain candidates from a brand's real
// domain. Generation is a pure function of the seed and strategy set.
package permute

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/unicode/norm"

	"github.com/hakim/brandwatch/internal/models"
)

// ErrInvalidSeed is returned when a seed domain cannot be split into a
// registrable label and public suffix.
var ErrInvalidSeed = errors.New("invalid seed domain")

// Seed is the parsed form of a brand domain.
type Seed struct {
	// Domain is the registrable ASCII domain, e.g. "acme.co.uk".
	Domain string
	// Label is the Unicode form of the label left of the public suffix.
	Label string
	// Suffix is the public suffix, e.g. "co.uk".
	Suffix string
	// Keywords extend the combosquat vocabulary.
	Keywords []string
	// CountryCode is added to the TLD variation set.
	CountryCode string
	// Owned lists domain patterns the brand already controls.
	Owned []string
}

// ParseSeed splits domain into label and public suffix. Subdomains are
// reduced to the registrable domain.
func ParseSeed(domain string) (Seed, error) {
	d := models.NormalizeDomain(norm.NFKC.String(domain))
	if d == "" {
		return Seed{}, fmt.Errorf("%w: empty domain", ErrInvalidSeed)
	}
	ascii, err := idna.Lookup.ToASCII(d)
	if err != nil {
		return Seed{}, fmt.Errorf("%w: %q: %v", ErrInvalidSeed, domain, err)
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(ascii)
	if err != nil {
		return Seed{}, fmt.Errorf("%w: %q: %v", ErrInvalidSeed, domain, err)
	}
	suffix, _ := publicsuffix.PublicSuffix(registrable)
	label := strings.TrimSuffix(registrable, "."+suffix)
	if !validLabel(label) {
		return Seed{}, fmt.Errorf("%w: %q has an invalid label", ErrInvalidSeed, domain)
	}
	unicodeLabel, err := idna.ToUnicode(label)
	if err != nil {
		unicodeLabel = label
	}
	return Seed{
		Domain: registrable,
		Label:  unicodeLabel,
		Suffix: suffix,
	}, nil
}

// SeedForBrand parses the brand domain and copies the brand's keyword,
// country and owned-domain settings onto the seed.
func SeedForBrand(b *models.Brand) (Seed, error) {
	s, err := ParseSeed(b.Domain)
	if err != nil {
		return Seed{}, err
	}
	s.Keywords = b.Keywords
	s.CountryCode = strings.ToLower(strings.TrimSpace(b.CountryCode))
	s.Owned = b.OwnedDomains
	return s, nil
}

// validLabel checks an ASCII DNS label: 1-63 chars of [a-z0-9-] with no
// leading or trailing hyphen.
func validLabel(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return true
}
