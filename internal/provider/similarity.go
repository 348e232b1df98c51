package provider

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Corporate entity suffixes carry no matching signal and inflate edit
// distance on short names.
var entitySuffixRe = regexp.MustCompile(`\b(LTDA\.?|EIRELI|MEI?|EPP|S[./]?A\.?|SS|SOCIEDADE SIMPLES|CIA\.?)\b`)

var spaceRe = regexp.MustCompile(`\s+`)

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName canonicalizes a company name for matching: uppercase,
// accents folded, entity suffixes stripped, whitespace collapsed.
func NormalizeName(name string) string {
	s := strings.ToUpper(strings.TrimSpace(name))
	if folded, _, err := transform.String(accentFolder, s); err == nil {
		s = folded
	}
	s = entitySuffixRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeKey reduces a registry key to its digits. Official identifiers
// arrive formatted ("12.345.678/0001-90") or bare; comparisons and storage
// always use the bare form.
func NormalizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NameSimilarity scores how well two company names match, in [0,1].
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return levenshtein.Similarity(na, nb, levenshtein.NewParams())
}
