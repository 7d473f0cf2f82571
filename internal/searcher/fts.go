package searcher

import (
	"strings"
	"unicode"
)

// ftsMatch turns free text into an FTS5 query of quoted terms. A trailing
// asterisk on a term is kept as a prefix marker. Terms without a letter or
// digit are dropped. The result is empty when no term survives.
func ftsMatch(text string) string {
	var terms []string
	for _, word := range strings.Fields(text) {
		prefix := strings.HasSuffix(word, "*")
		word = strings.TrimRight(word, "*")
		if !strings.ContainsFunc(word, isTermRune) {
			continue
		}

		term := `"` + strings.ReplaceAll(word, `"`, `""`) + `"`
		if prefix {
			term += "*"
		}
		terms = append(terms, term)
	}
	return strings.Join(terms, " ")
}

func isTermRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
