package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// smallWords stay lowercase inside headings unless they lead.
var smallWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "at": {}, "by": {}, "for": {},
	"in": {}, "of": {}, "on": {}, "or": {}, "the": {}, "to": {},
	"vs": {}, "with": {},
}

// upperTokens render fully uppercased in headings.
var upperTokens = map[string]struct{}{
	"ai": {}, "api": {}, "cpu": {}, "css": {}, "dns": {}, "gpu": {},
	"html": {}, "http": {}, "io": {}, "json": {}, "ml": {}, "o": {},
	"os": {}, "ram": {}, "sql": {}, "tcp": {}, "udp": {}, "url": {},
	"xml": {},
}

var titleCaser = cases.Title(language.English)

// DisplayName converts a topic slug into a human-readable heading:
// "big-o-notation" becomes "Big O Notation" and
// "depth-first-search-in-graphs" becomes "Depth First Search in Graphs".
func DisplayName(slug string) string {
	words := strings.FieldsFunc(strings.TrimSpace(slug), func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	if len(words) == 0 {
		return ""
	}
	out := make([]string, 0, len(words))
	for i, word := range words {
		lower := strings.ToLower(word)
		if _, ok := upperTokens[lower]; ok {
			out = append(out, strings.ToUpper(lower))
			continue
		}
		if i > 0 {
			if _, ok := smallWords[lower]; ok {
				out = append(out, lower)
				continue
			}
		}
		out = append(out, titleCaser.String(lower))
	}
	return strings.Join(out, " ")
}
