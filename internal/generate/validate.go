package generate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"easel/internal/pipeline"
	"easel/internal/services"
)

const (
	maxHeadingRunes = 80
	maxBodyRunes    = 400
)

// validateContent enforces the slide recipe before anything downstream
// spends render or publish effort on a malformed reply.
func validateContent(content *pipeline.GeneratedContent) error {
	minSlides, maxSlides := content.Kind.SlideBounds()
	if n := len(content.Slides); n < minSlides || n > maxSlides {
		return invalid(fmt.Sprintf("got %d slides, want between %d and %d", n, minSlides, maxSlides))
	}
	for i, slide := range content.Slides {
		if strings.TrimSpace(slide.Heading) == "" {
			return invalid(fmt.Sprintf("slide %d has an empty heading", i+1))
		}
		if strings.TrimSpace(slide.Body) == "" {
			return invalid(fmt.Sprintf("slide %d has an empty body", i+1))
		}
		if n := utf8.RuneCountInString(slide.Heading); n > maxHeadingRunes {
			return invalid(fmt.Sprintf("slide %d heading is %d runes, limit %d", i+1, n, maxHeadingRunes))
		}
		if n := utf8.RuneCountInString(slide.Body); n > maxBodyRunes {
			return invalid(fmt.Sprintf("slide %d body is %d runes, limit %d", i+1, n, maxBodyRunes))
		}
	}
	if strings.TrimSpace(content.Caption) == "" {
		return invalid("caption is empty")
	}
	return nil
}

func invalid(msg string) error {
	return services.Wrap(services.ErrValidation, "generate", "validate", msg, nil)
}
