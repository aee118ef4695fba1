package service

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// RemovedMarker replaces blocked content.
const RemovedMarker = "[REMOVED]"

var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?is)<iframe[^>]*>.*?</iframe>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)@everyone`),
	regexp.MustCompile(`(?i)@here`),
}

// Sanitizer cleans free text submitted at intake.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer builds a sanitizer that strips all markup.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean replaces blocked patterns, strips remaining markup and NUL bytes and
// trims the result. Entities escaped by the policy are decoded back so plain
// text round-trips unchanged.
func (s *Sanitizer) Clean(input string) string {
	out := strings.ReplaceAll(input, "\x00", "")
	out = replaceBlocked(out)
	out = html.UnescapeString(s.policy.Sanitize(out))
	// decoding may surface patterns that were entity-encoded
	out = replaceBlocked(out)
	return strings.TrimSpace(out)
}

func replaceBlocked(s string) string {
	for _, pattern := range blockedPatterns {
		s = pattern.ReplaceAllString(s, RemovedMarker)
	}
	return s
}
