package analysis

import "strings"

// Sentiment classifies the user's spiritual/emotional state.
type Sentiment string

const (
	SentimentPositive   Sentiment = "positive"
	SentimentStruggling Sentiment = "struggling"
	SentimentNeutral    Sentiment = "neutral"
)

var (
	positiveWords = []string{"blessed", "grateful", "joy", "peace", "hope", "love"}
	negativeWords = []string{"struggling", "worried", "anxious", "sad", "lost", "angry"}
)

// AnalyzeSentiment scores text against small positive and negative
// vocabularies. Ties, including no hits at all, resolve to neutral.
func AnalyzeSentiment(text string) Sentiment {
	lower := strings.ToLower(text)

	var positive, negative int
	for _, word := range positiveWords {
		if strings.Contains(lower, word) {
			positive++
		}
	}
	for _, word := range negativeWords {
		if strings.Contains(lower, word) {
			negative++
		}
	}

	switch {
	case positive > negative:
		return SentimentPositive
	case negative > positive:
		return SentimentStruggling
	default:
		return SentimentNeutral
	}
}
