package pipeline

import (
	"context"
	"time"
)

// Stage names as they appear in outcomes, logs, and the topics table.
const (
	StageScrape   = "scrape"
	StageGenerate = "generate"
	StageRender   = "render"
	StagePublish  = "publish"
)

// Request identifies one pipeline run. Topic is free-form input; the
// orchestrator normalizes it to the slug used as the ledger identifier.
type Request struct {
	Topic     string
	SourceURL string
	Kind      ContentKind
}

// ContentKind selects the generation recipe for a topic.
type ContentKind string

const (
	KindExplainer   ContentKind = "explainer"
	KindQuiz        ContentKind = "quiz"
	KindGuessOutput ContentKind = "guess-output"
	KindLogicPuzzle ContentKind = "logic-puzzle"
)

// AllKinds returns the supported content kinds.
func AllKinds() []ContentKind {
	return []ContentKind{KindExplainer, KindQuiz, KindGuessOutput, KindLogicPuzzle}
}

// ParseKind converts a raw string into a ContentKind. Empty input selects
// the explainer recipe.
func ParseKind(raw string) (ContentKind, bool) {
	if raw == "" {
		return KindExplainer, true
	}
	for _, kind := range AllKinds() {
		if string(kind) == raw {
			return kind, true
		}
	}
	return "", false
}

// SlideBounds returns the allowed slide-count range for the kind.
func (k ContentKind) SlideBounds() (min, max int) {
	switch k {
	case KindQuiz:
		return 3, 5
	case KindGuessOutput:
		return 2, 3
	case KindLogicPuzzle:
		return 2, 2
	default:
		return 3, 4
	}
}

// SourceImage is one reference image collected by the scrape stage.
type SourceImage struct {
	URL    string
	Path   string
	Title  string
	Width  int
	Height int
}

// Topic carries the scraped material for one subject. Built once by the
// scrape stage and read-only afterwards. Kind is copied from the request so
// downstream stages see the recipe without the original Request.
type Topic struct {
	ID          string
	DisplayName string
	SourceURL   string
	Kind        ContentKind
	Material    string
	Images      []SourceImage
	ScrapedAt   time.Time
}

// Slide is one card of a generated post.
type Slide struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
	Kind    string `json:"kind,omitempty"`
}

// GeneratedContent is the model output for one topic. Built once by the
// generate stage and read-only afterwards.
type GeneratedContent struct {
	TopicID     string      `json:"topic_id"`
	Kind        ContentKind `json:"kind"`
	Slides      []Slide     `json:"slides"`
	Caption     string      `json:"caption"`
	Model       string      `json:"model"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// RenderedPost is the ordered set of finished slide images for one topic.
type RenderedPost struct {
	TopicID string
	Images  []string
	Caption string
	Width   int
	Height  int
}

// PublishReceipt reports a confirmed platform post.
type PublishReceipt struct {
	PostID      string
	Permalink   string
	SlideCount  int
	PublishedAt time.Time
}

// Attempt carries per-attempt state into a stage call. Strict is set after a
// validation failure so the stage can mutate its input: the generator
// re-prompts with hard constraints, the renderer switches to the compact
// layout.
type Attempt struct {
	Number int
	Strict bool
}

// Scraper collects topic material and reference images into dir.
type Scraper interface {
	Scrape(ctx context.Context, req Request, dir string, attempt Attempt) (*Topic, error)
}

// Generator turns topic material into slide content, persisting preview
// artifacts into dir.
type Generator interface {
	Generate(ctx context.Context, topic *Topic, dir string, attempt Attempt) (*GeneratedContent, error)
}

// Renderer draws slide images into dir.
type Renderer interface {
	Render(ctx context.Context, content *GeneratedContent, dir string, attempt Attempt) (*RenderedPost, error)
}

// Publisher pushes a rendered post to the platform.
type Publisher interface {
	Publish(ctx context.Context, post *RenderedPost, attempt Attempt) (*PublishReceipt, error)
}
