package analysis

import "regexp"

// versePattern matches scripture references like "John 3:16", "Psalm 23:1-3"
// and numbered books like "1 Corinthians 13:4". The book-number prefix is an
// explicit alternative so a match never starts at surrounding whitespace.
var versePattern = regexp.MustCompile(`\b(?:\d\s+)?[A-Za-z]+\s+\d+:\d+(?:-\d+)?\b`)

// Verses returns every scripture reference found in text, in order of first
// appearance. Repeated references are kept as-is.
func Verses(text string) []string {
	return versePattern.FindAllString(text, -1)
}
