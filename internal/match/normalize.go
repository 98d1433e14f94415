// Package match provides the text normalization and string similarity rules
// shared by venue/performer dedup, freshness prediction and event
// consolidation. Every component that compares names must go through these
// functions so the matching rule stays identical across the engine.
package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	punctRe      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	slugRe       = regexp.MustCompile(`[^a-z0-9]+`)

	// Legal suffixes that vary between upstream renderings of the same venue
	// ("Kino Babylon GmbH" vs "Kino Babylon").
	legalSuffixes = []string{
		"gmbh", "ag", "ltd", "llc", "inc", "bv", "sa", "ev", "ug", "co",
	}

	// Trailing separator-delimited segments dropped from titles when they
	// look like promotional tags rather than part of the title itself.
	promoWords = []string{
		"tickets", "ticket", "official", "presale", "sold out", "buy now",
		"free entry", "free admission", "tour", "live in concert", "jetzt tickets sichern",
	}

	titleSeparators = []string{" - ", " – ", " — ", " | ", " • ", " · "}

	diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// foldDiacritics strips combining marks so "Café Olé" and "Cafe Ole"
// normalize identically.
func foldDiacritics(s string) string {
	out, _, err := transform.String(diacriticFold, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeName canonicalizes a venue or performer name: lowercase, fold
// diacritics, drop punctuation and trailing legal suffixes, collapse
// whitespace.
func NormalizeName(name string) string {
	s := strings.ToLower(foldDiacritics(name))
	s = punctRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	words := strings.Fields(s)
	for len(words) > 1 {
		last := words[len(words)-1]
		if !isLegalSuffix(last) {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func isLegalSuffix(word string) bool {
	for _, suffix := range legalSuffixes {
		if word == suffix {
			return true
		}
	}
	return false
}

// NormalizeTitle canonicalizes an event title for consolidation matching:
// trailing promotional segments are removed first, then the same lowering/
// folding/punctuation rules as NormalizeName apply (without legal-suffix
// stripping).
func NormalizeTitle(title string) string {
	s := stripPromoSuffix(title)
	s = strings.ToLower(foldDiacritics(s))
	s = punctRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// stripPromoSuffix drops trailing separator-delimited segments that match
// the promo word list. "Weekly Trivia | Tickets" becomes "Weekly Trivia";
// "Rock - The Musical" keeps its subtitle.
func stripPromoSuffix(title string) string {
	for {
		idx, sepLen := lastSeparator(title)
		if idx < 0 {
			return title
		}
		tail := strings.ToLower(strings.TrimSpace(title[idx+sepLen:]))
		if !isPromo(tail) {
			return title
		}
		title = strings.TrimSpace(title[:idx])
	}
}

func lastSeparator(s string) (int, int) {
	best, bestLen := -1, 0
	for _, sep := range titleSeparators {
		if idx := strings.LastIndex(s, sep); idx > best {
			best, bestLen = idx, len(sep)
		}
	}
	return best, bestLen
}

func isPromo(segment string) bool {
	for _, w := range promoWords {
		if segment == w || strings.HasPrefix(segment, w+" ") || strings.HasSuffix(segment, " "+w) {
			return true
		}
	}
	return false
}

// Slug converts a name into the lowercase token used inside external
// identity strings: "Café Olé" -> "cafe-ole".
func Slug(name string) string {
	s := strings.ToLower(foldDiacritics(name))
	s = slugRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
