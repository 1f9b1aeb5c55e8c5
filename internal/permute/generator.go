package permute

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"

	"github.com/hakim/brandwatch/internal/models"
)

// minMutableLabel is the shortest label omission and transposition apply to.
const minMutableLabel = 3

// Generate applies each requested strategy to the seed independently and
// returns the union. Candidates appear in strategy order (models.AllStrategies)
// and, within a strategy, in generation order. A domain produced by several
// strategies appears once, at its first position, carrying every tag.
func Generate(seed Seed, strategies []models.Strategy) ([]models.Candidate, error) {
	want := make(map[models.Strategy]bool, len(strategies))
	for _, s := range strategies {
		if _, ok := models.ParseStrategy(string(s)); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
		}
		want[s] = true
	}
	if seed.Label == "" || seed.Suffix == "" {
		return nil, fmt.Errorf("%w: seed is not parsed", ErrInvalidSeed)
	}

	c := newCollector(seed)
	label := []rune(seed.Label)

	for _, s := range models.AllStrategies {
		if !want[s] {
			continue
		}
		switch s {
		case models.StrategyOmission:
			if len(label) >= minMutableLabel {
				for _, l := range omissions(label) {
					c.add(l, seed.Suffix, s)
				}
			}
		case models.StrategySubstitution:
			for _, l := range substitutions(label) {
				c.add(l, seed.Suffix, s)
			}
		case models.StrategyTransposition:
			if len(label) >= minMutableLabel {
				for _, l := range transpositions(label) {
					c.add(l, seed.Suffix, s)
				}
			}
		case models.StrategyHomoglyph:
			for _, l := range homoglyphs(label) {
				c.add(l, seed.Suffix, s)
			}
		case models.StrategyTLDVariation:
			for _, tld := range tldVariants(seed) {
				c.add(seed.Label, tld, s)
			}
		case models.StrategyCombosquat:
			for _, l := range combosquats(seed.Label, vocabulary(seed.Keywords)) {
				c.add(l, seed.Suffix, s)
			}
		}
	}
	return c.candidates(), nil
}

// collector deduplicates candidates while preserving first-seen order.
type collector struct {
	seed     Seed
	owned    ownedMatcher
	order    []string
	byDomain map[string]*models.Candidate
}

func newCollector(seed Seed) *collector {
	return &collector{
		seed:     seed,
		owned:    ownedMatcher{patterns: seed.Owned},
		byDomain: make(map[string]*models.Candidate),
	}
}

func (c *collector) add(label, suffix string, s models.Strategy) {
	if label == "" {
		return
	}
	unicodeDomain := label + "." + suffix
	ascii, err := idna.Lookup.ToASCII(unicodeDomain)
	if err != nil {
		return
	}
	asciiLabel := strings.TrimSuffix(ascii, "."+suffix)
	if !validLabel(asciiLabel) {
		return
	}
	if ascii == c.seed.Domain || c.owned.matches(ascii) {
		return
	}

	if existing, ok := c.byDomain[ascii]; ok {
		if !existing.HasStrategy(s) {
			existing.Strategies = append(existing.Strategies, s)
		}
		return
	}
	cand := &models.Candidate{Domain: ascii, Strategies: []models.Strategy{s}}
	if ascii != unicodeDomain {
		cand.Unicode = unicodeDomain
	}
	c.byDomain[ascii] = cand
	c.order = append(c.order, ascii)
}

func (c *collector) candidates() []models.Candidate {
	out := make([]models.Candidate, 0, len(c.order))
	for _, d := range c.order {
		out = append(out, *c.byDomain[d])
	}
	return out
}

func omissions(label []rune) []string {
	out := make([]string, 0, len(label))
	for i := range label {
		out = append(out, string(label[:i])+string(label[i+1:]))
	}
	return out
}

func substitutions(label []rune) []string {
	var out []string
	for i, r := range label {
		for _, rep := range substitutionTable[r] {
			mutated := make([]rune, len(label))
			copy(mutated, label)
			mutated[i] = rep
			out = append(out, string(mutated))
		}
	}
	return out
}

func transpositions(label []rune) []string {
	var out []string
	for i := 0; i+1 < len(label); i++ {
		if label[i] == label[i+1] {
			continue
		}
		mutated := make([]rune, len(label))
		copy(mutated, label)
		mutated[i], mutated[i+1] = mutated[i+1], mutated[i]
		out = append(out, string(mutated))
	}
	return out
}

func homoglyphs(label []rune) []string {
	var out []string
	for i, r := range label {
		for _, rep := range homoglyphTable[r] {
			mutated := make([]rune, len(label))
			copy(mutated, label)
			mutated[i] = rep
			out = append(out, string(mutated))
		}
	}
	s := string(label)
	for _, pair := range multiCharGlyphs {
		for idx := 0; ; {
			j := strings.Index(s[idx:], pair.from)
			if j < 0 {
				break
			}
			pos := idx + j
			out = append(out, s[:pos]+pair.to+s[pos+len(pair.from):])
			idx = pos + len(pair.from)
		}
	}
	return out
}

func tldVariants(seed Seed) []string {
	tlds := make([]string, 0, len(variantTLDs)+1)
	seen := map[string]bool{seed.Suffix: true}
	add := func(t string) {
		t = strings.Trim(strings.ToLower(t), ". ")
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		tlds = append(tlds, t)
	}
	for _, t := range variantTLDs {
		add(t)
	}
	add(seed.CountryCode)
	return tlds
}

func vocabulary(keywords []string) []string {
	words := make([]string, 0, len(comboWords)+len(keywords))
	seen := make(map[string]bool)
	for _, w := range append(append([]string{}, comboWords...), keywords...) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] || !validLabel(w) {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}

func combosquats(label string, words []string) []string {
	out := make([]string, 0, len(words)*4)
	for _, w := range words {
		out = append(out,
			label+w,
			label+"-"+w,
			w+label,
			w+"-"+label,
		)
	}
	return out
}
