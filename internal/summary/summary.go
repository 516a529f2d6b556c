// Package summary distills a session's interactions into a compact record
// suitable for long-term memory storage.
package summary

import (
	"strings"
	"unicode/utf8"

	"github.com/gpbible/companion/internal/analysis"
)

const (
	maxRetained       = 3
	keyPointThreshold = 50
	keyPointLimit     = 100

	// SummarizeEvery is the interaction cadence at which a session summary
	// is produced.
	SummarizeEvery = 10
)

// Interaction is one conversational turn plus the metadata derived from it.
type Interaction struct {
	UserInput string
	Response  string
	Themes    []string
	Verses    []string
}

// Summary aggregates an entire session.
type Summary struct {
	Themes    []string
	Verses    []string
	KeyPoints []string
	Sentiment analysis.Sentiment
}

// ShouldSummarize reports whether a session with the given interaction count
// is due for summarization.
func ShouldSummarize(interactionCount int) bool {
	return interactionCount%SummarizeEvery == 0
}

// Build aggregates interactions into a session summary: the union of themes
// and verses (first-seen order, at most three each) and significant user
// excerpts truncated to a hundred characters.
func Build(interactions []Interaction) Summary {
	var s Summary
	seenThemes := make(map[string]bool)
	seenVerses := make(map[string]bool)

	for _, in := range interactions {
		for _, theme := range in.Themes {
			if !seenThemes[theme] {
				seenThemes[theme] = true
				s.Themes = append(s.Themes, theme)
			}
		}
		for _, verse := range in.Verses {
			if !seenVerses[verse] {
				seenVerses[verse] = true
				s.Verses = append(s.Verses, verse)
			}
		}

		if utf8.RuneCountInString(in.UserInput) > keyPointThreshold {
			s.KeyPoints = append(s.KeyPoints, truncateRunes(in.UserInput, keyPointLimit))
		}
	}

	if len(s.Themes) > maxRetained {
		s.Themes = s.Themes[:maxRetained]
	}
	if len(s.Verses) > maxRetained {
		s.Verses = s.Verses[:maxRetained]
	}

	s.Sentiment = sessionSentiment(interactions)
	return s
}

// Content renders the summary as a single pipe-delimited string, omitting
// empty sections.
func (s Summary) Content() string {
	var parts []string
	if len(s.Themes) > 0 {
		parts = append(parts, "Themes: "+strings.Join(s.Themes, ", "))
	}
	if len(s.Verses) > 0 {
		parts = append(parts, "Verses: "+strings.Join(s.Verses, ", "))
	}
	if len(s.KeyPoints) > 0 {
		parts = append(parts, "Key discussion: "+s.KeyPoints[0])
	}
	if len(parts) == 0 {
		return "No interactions in session"
	}
	return strings.Join(parts, " | ")
}

// truncateRunes shortens s to at most limit characters, never splitting a
// rune, and marks the cut with an ellipsis.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// sessionSentiment classifies the session from its combined user inputs.
func sessionSentiment(interactions []Interaction) analysis.Sentiment {
	var b strings.Builder
	for _, in := range interactions {
		b.WriteString(in.UserInput)
		b.WriteString(" ")
	}
	return analysis.AnalyzeSentiment(b.String())
}
