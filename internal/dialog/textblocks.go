package dialog

import (
	"regexp"
	"strings"

	"convo/internal/config"
)

// lastBlockPattern marks the boundaries used to peel the final word off a
// single-line response: newlines, sentence punctuation followed by spaces,
// and a few clause markers.
var lastBlockPattern = regexp.MustCompile(`\n|\.+ +|: +|! +|\? +|' +|" +|; +|\) +|\* +`)

// DeleteLastBlock removes the final block of text: the last
// paragraph (blank-line delimited) if there is one, else the last line,
// else everything after the last sentence/clause boundary. The result is
// space-trimmed; a single token longer than the whole text degrades to "".
func DeleteLastBlock(text string) string {
	if strings.Contains(text, "\n\n") {
		parts := strings.Split(text, "\n\n")
		return strings.TrimSpace(strings.Join(parts[:len(parts)-1], "\n\n"))
	}
	if strings.Contains(text, "\n") {
		parts := strings.Split(text, "\n")
		return strings.TrimSpace(strings.Join(parts[:len(parts)-1], "\n"))
	}
	parts := lastBlockPattern.Split(text, -1)
	lastWord := parts[len(parts)-1]
	runes := []rune(text)
	cut := len([]rune(lastWord))
	if cut == 0 && len(runes) > 1 {
		cut = 1
	}
	if cut > len(runes) {
		cut = len(runes)
	}
	return strings.TrimSpace(string(runes[:len(runes)-cut]))
}

// StripReasoning removes every non-greedy occurrence of the tag pair,
// including the tags themselves. Blocks may span newlines.
func StripReasoning(text string, tag config.ReasoningTag) string {
	if tag.Open == "" || tag.Close == "" {
		return text
	}
	re := regexp.MustCompile(`(?s)` + regexp.QuoteMeta(tag.Open) + `.*?` + regexp.QuoteMeta(tag.Close))
	return re.ReplaceAllString(text, "")
}
