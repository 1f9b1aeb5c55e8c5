package probe

import (
	"hash/fnv"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/hakim/brandwatch/internal/models"
)

const shingleSize = 3

// ParseFingerprint reads an HTML document and builds its fingerprint.
func ParseFingerprint(r io.Reader) (*models.Fingerprint, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return BuildFingerprint(doc), nil
}

// BuildFingerprint extracts the title, a word-shingle hash set of the visible
// text, and whether the page asks for a password.
func BuildFingerprint(doc *goquery.Document) *models.Fingerprint {
	fp := &models.Fingerprint{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	fp.CredentialForm = doc.Find(`input[type="password"]`).Length() > 0 ||
		doc.Find("form input").FilterFunction(func(_ int, s *goquery.Selection) bool {
			name, _ := s.Attr("name")
			name = strings.ToLower(name)
			return strings.Contains(name, "pass") || strings.Contains(name, "pwd")
		}).Length() > 0

	body := doc.Find("body")
	body.Find("script, style, noscript, template").Remove()
	fp.Shingles = Shingles(body.Text())
	return fp
}

// Shingles folds text and returns the sorted, unique hashes of every run of
// three consecutive words. Texts shorter than three words hash as one run.
func Shingles(text string) []uint64 {
	words := strings.FieldsFunc(strings.ToLower(norm.NFKC.String(text)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil
	}

	seen := make(map[uint64]struct{})
	add := func(ws []string) {
		h := fnv.New64a()
		h.Write([]byte(strings.Join(ws, " ")))
		seen[h.Sum64()] = struct{}{}
	}
	if len(words) < shingleSize {
		add(words)
	} else {
		for i := 0; i+shingleSize <= len(words); i++ {
			add(words[i : i+shingleSize])
		}
	}

	out := make([]uint64, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Similarity returns the Jaccard index of the two shingle sets. When either
// page has no text it falls back to exact title comparison. ok is false when
// neither comparison is possible.
func Similarity(a, b *models.Fingerprint) (score float64, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if len(a.Shingles) > 0 && len(b.Shingles) > 0 {
		return jaccard(a.Shingles, b.Shingles), true
	}
	if a.Title != "" && b.Title != "" {
		if strings.EqualFold(a.Title, b.Title) {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// jaccard expects both inputs sorted and unique.
func jaccard(a, b []uint64) float64 {
	var inter int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
