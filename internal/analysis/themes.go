package analysis

import "strings"

// themeVocabulary is the fixed set of spiritual topics we tag conversations with.
// Matching is ordered: the first three vocabulary hits win.
var themeVocabulary = []string{
	"prayer", "faith", "forgiveness", "love", "hope", "trust",
	"family", "relationships", "work", "anxiety", "depression",
	"gratitude", "worship", "service", "community",
}

const maxThemes = 3

// Themes tags a conversational turn with up to three spiritual themes by
// substring matching against the combined user input and assistant response.
func Themes(userInput, response string) []string {
	text := strings.ToLower(userInput + " " + response)

	var themes []string
	for _, keyword := range themeVocabulary {
		if strings.Contains(text, keyword) {
			themes = append(themes, keyword)
			if len(themes) == maxThemes {
				break
			}
		}
	}
	return themes
}
