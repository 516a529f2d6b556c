package analysis

import (
	"reflect"
	"testing"
)

func TestThemesCapsAtThreeInVocabularyOrder(t *testing.T) {
	input := "I struggle with anxiety about my family and my work"
	response := "Let us talk about faith, hope and prayer together"

	got := Themes(input, response)
	want := []string{"prayer", "faith", "hope"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Themes() = %v, want %v", got, want)
	}
}

func TestThemesNoMatches(t *testing.T) {
	if got := Themes("hello there", "good morning"); len(got) != 0 {
		t.Fatalf("Themes() = %v, want empty", got)
	}
}

func TestThemesCaseInsensitive(t *testing.T) {
	got := Themes("GRATITUDE changes everything", "")
	if !reflect.DeepEqual(got, []string{"gratitude"}) {
		t.Fatalf("Themes() = %v, want [gratitude]", got)
	}
}

func TestVersesOrderedMatches(t *testing.T) {
	got := Verses("Remember John 3:16 and also Psalm 23:1-3 today")
	want := []string{"John 3:16", "Psalm 23:1-3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Verses() = %v, want %v", got, want)
	}
}

func TestVersesNumberedBook(t *testing.T) {
	got := Verses("Read 1 Corinthians 13:4 tonight")
	if len(got) != 1 || got[0] != "1 Corinthians 13:4" {
		t.Fatalf("Verses() = %v, want [1 Corinthians 13:4]", got)
	}
}

func TestVersesKeepsDuplicates(t *testing.T) {
	got := Verses("John 3:16, yes John 3:16")
	if len(got) != 2 {
		t.Fatalf("Verses() returned %d matches, want 2 (duplicates kept)", len(got))
	}
}

func TestAnalyzeSentiment(t *testing.T) {
	cases := []struct {
		text string
		want Sentiment
	}{
		{"I am grateful and blessed", SentimentPositive},
		{"I feel anxious and lost", SentimentStruggling},
		{"It is Tuesday", SentimentNeutral},
		{"", SentimentNeutral},
		// One positive and one negative hit tie back to neutral.
		{"I am blessed but worried", SentimentNeutral},
	}

	for _, tc := range cases {
		if got := AnalyzeSentiment(tc.text); got != tc.want {
			t.Fatalf("AnalyzeSentiment(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}
