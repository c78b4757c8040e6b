package render

import (
	"image/color"
	"strings"

	"easel/internal/pipeline"
	"easel/internal/textutil"
)

// Theme is one slide palette. Panel is translucent so the background
// gradient shows through behind the body text.
type Theme struct {
	Name           string
	GradientTop    color.RGBA
	GradientBottom color.RGBA
	Header         color.RGBA
	HeaderText     color.RGBA
	Heading        color.RGBA
	Body           color.RGBA
	CodeBG         color.RGBA
	CodeText       color.RGBA
	Panel          color.RGBA
	Accent         color.RGBA
}

var themes = map[string]Theme{
	"midnight": {
		Name:           "midnight",
		GradientTop:    color.RGBA{240, 248, 255, 255},
		GradientBottom: color.RGBA{189, 224, 254, 255},
		Header:         color.RGBA{37, 99, 235, 255},
		HeaderText:     color.RGBA{255, 255, 255, 255},
		Heading:        color.RGBA{15, 23, 42, 255},
		Body:           color.RGBA{30, 41, 59, 255},
		CodeBG:         color.RGBA{15, 23, 42, 255},
		CodeText:       color.RGBA{224, 242, 254, 255},
		Panel:          color.RGBA{255, 255, 255, 245},
		Accent:         color.RGBA{59, 130, 246, 255},
	},
	"violet": {
		Name:           "violet",
		GradientTop:    color.RGBA{250, 245, 255, 255},
		GradientBottom: color.RGBA{221, 214, 254, 255},
		Header:         color.RGBA{109, 40, 217, 255},
		HeaderText:     color.RGBA{255, 255, 255, 255},
		Heading:        color.RGBA{17, 24, 39, 255},
		Body:           color.RGBA{31, 41, 55, 255},
		CodeBG:         color.RGBA{17, 24, 39, 255},
		CodeText:       color.RGBA{233, 213, 255, 255},
		Panel:          color.RGBA{255, 255, 255, 245},
		Accent:         color.RGBA{147, 51, 234, 255},
	},
	"paper": {
		Name:           "paper",
		GradientTop:    color.RGBA{255, 252, 244, 255},
		GradientBottom: color.RGBA{250, 240, 215, 255},
		Header:         color.RGBA{210, 180, 140, 255},
		HeaderText:     color.RGBA{255, 255, 255, 255},
		Heading:        color.RGBA{101, 67, 33, 255},
		Body:           color.RGBA{80, 54, 22, 255},
		CodeBG:         color.RGBA{220, 198, 156, 255},
		CodeText:       color.RGBA{40, 30, 10, 255},
		Panel:          color.RGBA{255, 255, 255, 245},
		Accent:         color.RGBA{205, 133, 63, 255},
	},
	"slate": {
		Name:           "slate",
		GradientTop:    color.RGBA{255, 255, 255, 255},
		GradientBottom: color.RGBA{230, 230, 230, 255},
		Header:         color.RGBA{30, 30, 30, 255},
		HeaderText:     color.RGBA{255, 255, 255, 255},
		Heading:        color.RGBA{20, 20, 20, 255},
		Body:           color.RGBA{50, 50, 50, 255},
		CodeBG:         color.RGBA{240, 240, 240, 255},
		CodeText:       color.RGBA{30, 30, 30, 255},
		Panel:          color.RGBA{255, 255, 255, 245},
		Accent:         color.RGBA{0, 0, 0, 255},
	},
}

// ThemeByName resolves a configured theme name. Unknown names fall back
// to midnight.
func ThemeByName(name string) (Theme, bool) {
	theme, ok := themes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return themes["midnight"], false
	}
	return theme, true
}

var kindThemes = map[pipeline.ContentKind]string{
	pipeline.KindQuiz:        "violet",
	pipeline.KindGuessOutput: "paper",
	pipeline.KindLogicPuzzle: "slate",
}

var keywordThemes = map[string]string{
	"quiz":   "violet",
	"guess":  "paper",
	"output": "paper",
	"logic":  "slate",
	"puzzle": "slate",
}

// resolveTheme picks the palette for a post. An explicit configured theme
// wins; auto selection follows the content kind, then topic keywords.
func resolveTheme(configured string, kind pipeline.ContentKind, topicID string) Theme {
	configured = strings.ToLower(strings.TrimSpace(configured))
	if configured != "" && configured != "auto" {
		theme, _ := ThemeByName(configured)
		return theme
	}
	if name, ok := kindThemes[kind]; ok {
		return themes[name]
	}
	for _, token := range textutil.Tokenize(strings.ReplaceAll(topicID, "-", " ")) {
		if name, ok := keywordThemes[token]; ok {
			return themes[name]
		}
	}
	return themes["midnight"]
}
