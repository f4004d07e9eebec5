// Package keys builds the Redis and in-process cache keys.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// ResponseKey identifies one upstream response by data type and request URL.
// The URL is hashed so keys stay short regardless of filter size.
func ResponseKey(dataType, rawURL string) string {
	dt := sanitize(strings.ToLower(strings.TrimSpace(dataType)))
	sum := xxhash.Sum64String(strings.TrimSpace(rawURL))
	return fmt.Sprintf("resp:%s:%016x", dt, sum)
}

// PrefKey names a preference entry scoped to a session.
func PrefKey(session, name string) string {
	s := sanitize(strings.TrimSpace(session))
	if s == "" {
		s = "default"
	}
	return fmt.Sprintf("pref:%s:%s", s, sanitize(strings.TrimSpace(name)))
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// Any other rune (including ':' and non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
