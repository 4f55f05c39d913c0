package generator

import "regexp"

// wordChunkSize is the fixed chunk length long words are split into for
// the approximate count.
const wordChunkSize = 6

var (
	tokenPattern = regexp.MustCompile(`\b\w+\b|[^\w\s]|\d+|\n`)
	wordPattern  = regexp.MustCompile(`^\w+$`)
)

// ApproxTokenCount is the deterministic, backend-agnostic token estimate
// used whenever a backend cannot count exactly. Text splits into word,
// number, punctuation and newline tokens; word-like tokens longer than six
// runes count as their fixed six-rune chunks, so an 18-character word
// contributes exactly three.
func ApproxTokenCount(text string) int {
	tokens := tokenPattern.FindAllString(text, -1)
	count := 0
	for _, tok := range tokens {
		runes := []rune(tok)
		if len(runes) > wordChunkSize && wordPattern.MatchString(tok) {
			count += (len(runes) + wordChunkSize - 1) / wordChunkSize
			continue
		}
		count++
	}
	return count
}
