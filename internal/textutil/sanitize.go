package textutil

import "strings"

// fileNameReplacer replaces filesystem-unsafe characters (and spaces) with
// underscores.
var fileNameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename with
// underscores. The result is trimmed of leading/trailing whitespace first so
// padding never turns into underscores.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return fileNameReplacer.Replace(name)
}

// Slugify converts a string to the canonical lowercase hyphenated topic
// identifier: letters are lowercased, digits kept, and every other run of
// characters collapses into a single hyphen. "Big O Notation!" becomes
// "big-o-notation".
func Slugify(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(value))
	pending := false
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r + ('a' - 'A'))
		default:
			pending = true
		}
	}
	return b.String()
}

// Truncate shortens s to at most max runes, appending an ellipsis when
// anything was cut. A max below 1 returns the empty string.
func Truncate(s string, max int) string {
	if max < 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

// CollapseWhitespace trims the input and folds internal whitespace runs into
// single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
