package pipeline

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

/**
 * Heuristic confidence scoring for recognized text.
 *
 * General-purpose OCR engines do not expose a calibrated per-document
 * confidence usable across inputs, so a proxy is computed from the text
 * itself: length of the read, noise from misread glyphs, and presence of
 * terms common on the document types this service processes.
 */

// formKeywords are terms that legitimate form-like documents tend to
// contain. A match is a cheap quality signal, not semantic extraction.
var formKeywords = []string{
	"application",
	"form",
	"name",
	"email",
	"address",
	"phone",
	"date",
	"signature",
	"account",
	"amount",
}

const (
	// lengthCap bounds the length component so very long documents don't
	// saturate the scale.
	lengthCap = 50.0
	// lengthDivisor: one point of base score per this many runes.
	lengthDivisor = 10.0
	// noiseWeight scales the penalty for characters outside the common set.
	noiseWeight = 40.0
	// keywordBonus is the fixed increment per vocabulary hit.
	keywordBonus = 8.0
)

// Score computes a heuristic confidence in [0,100] for recognized text.
// Whitespace-only text scores 0. Deterministic and side-effect free.
func Score(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}

	base := math.Min(lengthCap, float64(utf8.RuneCountInString(trimmed))/lengthDivisor)
	penalty := noiseRatio(trimmed) * noiseWeight
	bonus := float64(countKeywords(trimmed)) * keywordBonus

	score := math.Round(base - penalty + bonus)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score)
}

// noiseRatio is the share of runes outside the common alphanumeric and
// punctuation set. OCR noise from misread glyphs disproportionately
// produces unusual symbols.
func noiseRatio(text string) float64 {
	total := 0
	noisy := 0
	for _, r := range text {
		total++
		if !isCommonRune(r) {
			noisy++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(noisy) / float64(total)
}

func isCommonRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
		return true
	}
	return strings.ContainsRune(`.,:;!?()'"-_/@&%$#`, r)
}

// countKeywords counts case-insensitive vocabulary matches.
func countKeywords(text string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, kw := range formKeywords {
		if strings.Contains(lower, kw) {
			count++
		}
	}
	return count
}
