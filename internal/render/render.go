// Package render implements the post template substitution and hard
// truncation contract described in spec §3/§4.5.
package render

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Post renders tpl by substituting every "{{name}}" placeholder with the
// matching entry of vars. Unknown placeholders substitute to an empty
// string, matching the spec's minimal substitution-only template contract.
func Post(tpl string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tpl, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		return vars[key]
	})
}

const ellipsis = "…"

// TruncateCodepoints hard-truncates s to at most max Unicode codepoints,
// appending a single ellipsis codepoint when truncation occurred. max must
// be >= 1 for the ellipsis to fit; smaller values truncate without it.
func TruncateCodepoints(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}

	runes := []rune(s)
	if max == 1 {
		return ellipsis
	}
	truncated := string(runes[:max-1])
	return truncated + ellipsis
}

// SamplePrefix returns the prefix of s covering ceil(len(s) * percent)
// Unicode codepoints, clamping percent to [1e-6, 1.0] per spec §9's open
// question resolution. percent == 0 yields an empty string.
func SamplePrefix(s string, percent float64) string {
	if percent <= 0 {
		return ""
	}
	if percent > 1 {
		percent = 1
	}
	if percent < 1e-6 {
		percent = 1e-6
	}

	total := utf8.RuneCountInString(s)
	if total == 0 {
		return ""
	}

	count := int(math.Ceil(percent * float64(total)))
	if count > total {
		count = total
	}
	if count <= 0 {
		return ""
	}

	runes := []rune(s)
	return string(runes[:count])
}

// Trim removes leading/trailing whitespace, matching the summarizer's
// output contract in spec §4.4.
func Trim(s string) string {
	return strings.TrimSpace(s)
}
