// Package policy holds the rules applied to conversation text before it is
// persisted. Chat transcripts live for a long time in the memory stores, so
// high-risk PII is masked on the way in.
package policy

import "regexp"

type redactionRule struct {
	pattern *regexp.Regexp
	mask    string
}

// Rules run in order. Card numbers must be masked before the phone rule sees
// them, or a 16-digit card reads as a long phone number.
var redactionRules = []redactionRule{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[REDACTED_CARD]"},
	{regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[REDACTED_PHONE]"},
}

// RedactPII masks common high-risk PII patterns. Scripture references and
// ordinary text pass through untouched.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, rule := range redactionRules {
		masked := rule.pattern.ReplaceAllString(out, rule.mask)
		if masked != out {
			changed = true
			out = masked
		}
	}
	return out, changed
}
