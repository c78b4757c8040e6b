package render

import "strings"

type profile struct {
	name   string
	width  int
	height int
}

var profiles = map[string]profile{
	"square": {name: "square", width: 1080, height: 1080},
	"story":  {name: "story", width: 1080, height: 1920},
}

const maxHeadingLines = 3

// metrics holds the sizes and spacing for one render pass. Compact mode
// is the strict-retry layout: smaller faces and tighter leading buy room
// for content that overflowed the first pass.
type metrics struct {
	padding      float64
	headerHeight float64
	accentHeight float64
	labelSize    float64
	headingSize  float64
	bodySize     float64
	codeSize     float64
	footerSize   float64
	lineGap      float64
	paraGap      float64
	headingTop   float64
	headingGap   float64
	panelInsetX  float64
	panelInsetY  float64
	panelRadius  float64
	footerZone   float64
	footerTop    float64
	bulletIndent float64
	bulletRadius float64
	codeInset    float64
	codeGap      float64
}

func newMetrics(compact bool) metrics {
	m := metrics{
		padding:      60,
		headerHeight: 100,
		accentHeight: 8,
		labelSize:    22,
		headingSize:  52,
		bodySize:     36,
		codeSize:     26,
		footerSize:   22,
		lineGap:      10,
		paraGap:      8,
		headingTop:   50,
		headingGap:   30,
		panelInsetX:  40,
		panelInsetY:  35,
		panelRadius:  20,
		footerZone:   140,
		footerTop:    80,
		bulletIndent: 25,
		bulletRadius: 5,
		codeInset:    15,
		codeGap:      8,
	}
	if compact {
		m.headingSize = 44
		m.bodySize = 31
		m.codeSize = 23
		m.lineGap = 6
		m.paraGap = 5
		m.panelInsetY = 28
		m.headingTop = 40
		m.headingGap = 22
	}
	return m
}

type segmentKind int

const (
	segText segmentKind = iota
	segBullet
	segCode
)

type segment struct {
	kind segmentKind
	text string
}

// segmentBody splits a slide body into drawable runs. Triple-backtick
// fences become code segments (optional language tag dropped); outside
// fences, each non-empty line is a text or bullet segment.
func segmentBody(body string) []segment {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")

	var segments []segment
	parts := strings.Split(body, "```")
	for i, part := range parts {
		if i%2 == 1 {
			code := strings.TrimSpace(part)
			if first, rest, found := strings.Cut(code, "\n"); found && isLanguageTag(first) {
				code = strings.TrimSpace(rest)
			} else if !found && isLanguageTag(code) {
				code = ""
			}
			if code != "" {
				segments = append(segments, segment{kind: segCode, text: code})
			}
			continue
		}
		for _, line := range strings.Split(part, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if marker, ok := bulletMarker(line); ok {
				text := strings.TrimSpace(strings.TrimPrefix(line, marker))
				if text != "" {
					segments = append(segments, segment{kind: segBullet, text: text})
				}
				continue
			}
			segments = append(segments, segment{kind: segText, text: line})
		}
	}
	return segments
}

func bulletMarker(line string) (string, bool) {
	for _, marker := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, marker) {
			return marker, true
		}
	}
	return "", false
}

var languageTags = map[string]struct{}{
	"python": {}, "py": {}, "go": {}, "golang": {}, "js": {}, "javascript": {},
	"java": {}, "c": {}, "cpp": {}, "rust": {}, "sql": {}, "bash": {}, "sh": {},
}

func isLanguageTag(line string) bool {
	_, ok := languageTags[strings.ToLower(strings.TrimSpace(line))]
	return ok
}
