package search

import "strings"

// ftsOperators are FTS5 syntax characters stripped from user input before
// the query reaches MATCH. Everything the user types is treated as plain
// terms; the only syntax that survives is a trailing prefix wildcard.
const ftsOperators = `"':^(){}[]*+-~<>=,;!?/\|&`

// sanitizeQuery rewrites raw user input into safe FTS5 MATCH syntax. Each
// term is double-quoted so column filters and boolean operators in the
// input match literally instead of parsing. A trailing `*` on the raw
// input is preserved as a prefix wildcard on the last term. Input that
// sanitizes to nothing becomes the empty-phrase token `""`, which is valid
// syntax and matches no rows.
func sanitizeQuery(raw string) string {
	prefix := strings.HasSuffix(strings.TrimSpace(raw), "*")

	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(ftsOperators, r) {
			return ' '
		}
		return r
	}, raw)

	var terms []string
	for _, tok := range strings.Fields(cleaned) {
		// Uppercase boolean operators are dropped, not matched literally.
		switch tok {
		case "AND", "OR", "NOT", "NEAR":
			continue
		}
		terms = append(terms, `"`+tok+`"`)
	}

	if len(terms) == 0 {
		return `""`
	}

	if prefix {
		terms[len(terms)-1] += "*"
	}

	return strings.Join(terms, " ")
}
