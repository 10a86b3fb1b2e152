package engine

import (
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// normalizeName lower-cases the input and strips everything outside
// alphanumeric runs: "Band 8 Gain" -> "band8gain". Idempotent.
func normalizeName(text string) string {
	return strings.Join(tokenRe.FindAllString(strings.ToLower(text), -1), "")
}

// tokens returns the lower-cased alphanumeric runs of text.
func tokens(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

// trackStopWords are filler words dropped before track-name matching, so
// "the Bass track" and "Bass" normalize identically.
var trackStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "track": true, "to": true,
	"on": true, "for": true, "my": true, "this": true, "that": true,
}

// trackTokens tokenizes text for track matching, dropping stop words. If
// every token is a stop word the full token list is kept, so queries like
// "track" still match a track literally named "Track".
func trackTokens(text string) []string {
	all := tokens(text)
	kept := make([]string, 0, len(all))
	for _, t := range all {
		if !trackStopWords[t] {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return all
	}
	return kept
}

// normalizeDisplayText canonicalizes a display label for comparison:
// lower-cased tokens joined by single spaces ("High-Pass  48dB" ->
// "high pass 48db").
func normalizeDisplayText(text string) string {
	return strings.Join(tokens(text), " ")
}

// tokenSet returns the distinct tokens of text.
func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range tokens(text) {
		set[t] = true
	}
	return set
}
