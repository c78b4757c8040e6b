package generate

import (
	"fmt"
	"strings"

	"easel/internal/pipeline"
)

const systemPrompt = `You write short educational carousel posts for a programming audience.
Respond with a single JSON object and nothing else. No prose around it.
The object has exactly two keys:
  "slides": an array of objects, each with "heading" and "body" strings
  "caption": a string for the post caption
Headings stay under 60 characters. Bodies stay under 320 characters.
Inside a body, bullet lines may start with "- " and short code snippets may sit
inside triple-backtick fences; use no other markdown anywhere.
The caption ends with three to five relevant hashtags.`

func userPrompt(topic *pipeline.Topic, kind pipeline.ContentKind) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\n", topic.DisplayName)
	if material := strings.TrimSpace(topic.Material); material != "" {
		fmt.Fprintf(&b, "Reference material gathered from the web:\n%s\n\n", clampMaterial(material))
	}
	b.WriteString(kindInstructions(kind))
	return b.String()
}

func kindInstructions(kind pipeline.ContentKind) string {
	switch kind {
	case pipeline.KindQuiz:
		return `Write a 5-slide quiz. Slide 1 introduces the quiz. Slides 2 through 4 each pose one
multiple-choice question with options A through D in the body. Slide 5 gives the answers
with a one-line explanation each.`
	case pipeline.KindGuessOutput:
		return `Write a 3-slide "guess the output" post. Slide 1 shows a short code snippet in the body
and asks what it prints. Slide 2 walks through the execution step by step. Slide 3 reveals
the output and the lesson behind it.`
	case pipeline.KindLogicPuzzle:
		return `Write a 2-slide logic puzzle. Slide 1 states the puzzle. Slide 2 explains the solution
and the reasoning that gets there.`
	default:
		return `Write a 4-slide explainer. Slide 1 hooks the reader with why the topic matters.
Slides 2 and 3 teach the core idea with one concrete example. Slide 4 closes with a
takeaway the reader can apply today.`
	}
}

func strictAddendum(kind pipeline.ContentKind) string {
	minSlides, maxSlides := kind.SlideBounds()
	bounds := fmt.Sprintf("between %d and %d slides", minSlides, maxSlides)
	if minSlides == maxSlides {
		bounds = fmt.Sprintf("exactly %d slides", minSlides)
	}
	return fmt.Sprintf(`

HARD CONSTRAINTS. The previous reply was rejected. Follow these exactly:
- Output %s, no more, no fewer.
- Output raw JSON only. The first character of the reply is { and the last is }.
- Every slide has a non-empty "heading" and a non-empty "body".
- "caption" is non-empty and ends with hashtags.`, bounds)
}

// clampMaterial keeps the prompt inside a sane token budget. Scraped
// material can run long when a topic has many result tiles.
func clampMaterial(material string) string {
	const maxRunes = 4000
	runes := []rune(material)
	if len(runes) <= maxRunes {
		return material
	}
	return string(runes[:maxRunes])
}
