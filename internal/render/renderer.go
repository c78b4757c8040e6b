package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "image/png"

	"github.com/fogleman/gg"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/pipeline"
	"easel/internal/services"
	"easel/internal/textutil"
)

// Service draws finished slide images from generated content. It
// implements pipeline.Renderer.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger
	fonts  *fontLibrary
}

// NewService builds the renderer from the [renderer] config section.
func NewService(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	fonts, err := newFontLibrary()
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "render"),
		fonts:  fonts,
	}, nil
}

type overflowError struct {
	slide  int
	detail string
}

func (e *overflowError) Error() string {
	return fmt.Sprintf("slide %d: %s", e.slide, e.detail)
}

// Render writes slide-NN.png files into dir at the configured profile
// dimensions. Text is measured against the body panel before drawing;
// content that cannot fit fails validation rather than being truncated.
// Strict attempts render in compact metrics.
func (s *Service) Render(ctx context.Context, content *pipeline.GeneratedContent, dir string, attempt pipeline.Attempt) (*pipeline.RenderedPost, error) {
	if content == nil || len(content.Slides) == 0 {
		return nil, services.Wrap(services.ErrValidation, "render", "layout", "no slides to render", nil)
	}

	prof := s.profile()
	theme := resolveTheme(s.cfg.Renderer.Theme, content.Kind, content.TopicID)
	m := newMetrics(attempt.Strict)
	label := strings.ToUpper(textutil.DisplayName(content.TopicID))

	s.logger.Info("rendering slides",
		logging.String("topic", content.TopicID),
		logging.String("theme", theme.Name),
		logging.String("profile", prof.name),
		logging.Int("slides", len(content.Slides)),
		logging.Bool("compact", attempt.Strict),
	)

	total := len(content.Slides)
	images := make([]string, 0, total)
	for i, slide := range content.Slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, fmt.Sprintf("slide-%02d.png", i+1))
		if err := s.drawSlide(slide, label, theme, prof, m, i+1, total, path); err != nil {
			var overflow *overflowError
			if errors.As(err, &overflow) {
				return nil, services.Wrap(services.ErrValidation, "render", "layout", err.Error(), nil)
			}
			return nil, err
		}
		images = append(images, path)
	}

	if err := verifyDimensions(images, prof); err != nil {
		return nil, err
	}

	return &pipeline.RenderedPost{
		TopicID: content.TopicID,
		Images:  images,
		Caption: content.Caption,
		Width:   prof.width,
		Height:  prof.height,
	}, nil
}

func (s *Service) profile() profile {
	if p, ok := profiles[strings.ToLower(strings.TrimSpace(s.cfg.Renderer.Profile))]; ok {
		return p
	}
	return profiles["square"]
}

func (s *Service) drawSlide(slide pipeline.Slide, label string, theme Theme, prof profile, m metrics, number, total int, path string) error {
	width := float64(prof.width)
	height := float64(prof.height)
	dc := gg.NewContext(prof.width, prof.height)

	grad := gg.NewLinearGradient(0, 0, 0, height)
	grad.AddColorStop(0, theme.GradientTop)
	grad.AddColorStop(1, theme.GradientBottom)
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, width, height)
	dc.Fill()

	dc.SetColor(theme.Header)
	dc.DrawRectangle(0, 0, width, m.headerHeight)
	dc.Fill()
	dc.SetColor(theme.Accent)
	dc.DrawRectangle(0, 0, width, m.accentHeight)
	dc.Fill()

	labelFace, err := s.fonts.face(weightBold, m.labelSize)
	if err != nil {
		return err
	}
	dc.SetFontFace(labelFace)
	dc.SetColor(theme.HeaderText)
	dc.DrawStringAnchored(label, m.padding, m.headerHeight/2, 0, 0.35)

	headingFace, err := s.fonts.face(weightBold, m.headingSize)
	if err != nil {
		return err
	}
	dc.SetFontFace(headingFace)
	headingLines := dc.WordWrap(slide.Heading, width-2*m.padding)
	if len(headingLines) > maxHeadingLines {
		return &overflowError{slide: number, detail: fmt.Sprintf("heading wraps to %d lines, limit %d", len(headingLines), maxHeadingLines)}
	}
	headingHeight := dc.FontHeight()
	for i, line := range headingLines {
		base := m.headerHeight + m.headingTop + headingHeight + float64(i)*(headingHeight+m.lineGap)
		dc.SetRGBA255(0, 0, 0, 60)
		dc.DrawString(line, m.padding+2, base+2)
		dc.SetColor(theme.Heading)
		dc.DrawString(line, m.padding, base)
	}

	panelTop := m.headerHeight + m.headingTop + float64(len(headingLines))*(headingHeight+m.lineGap) + m.headingGap
	panelLeft := m.padding
	panelWidth := width - 2*m.padding
	panelBottom := height - m.footerZone
	if panelBottom-panelTop < m.bodySize*2 {
		return &overflowError{slide: number, detail: "heading leaves no room for the body panel"}
	}

	dc.SetRGBA255(0, 0, 0, 30)
	dc.DrawRoundedRectangle(panelLeft+8, panelTop+8, panelWidth, panelBottom-panelTop, m.panelRadius)
	dc.Fill()
	dc.SetColor(theme.Panel)
	dc.DrawRoundedRectangle(panelLeft, panelTop, panelWidth, panelBottom-panelTop, m.panelRadius)
	dc.Fill()

	if err := s.drawBody(dc, slide.Body, theme, m, number, panelLeft, panelTop, panelWidth, panelBottom); err != nil {
		return err
	}

	footerHeight := m.footerTop - 20
	footerY := height - m.footerTop
	dc.SetColor(theme.Header)
	dc.DrawRoundedRectangle(panelLeft, footerY, panelWidth, footerHeight, 15)
	dc.Fill()

	footerFace, err := s.fonts.face(weightBold, m.footerSize)
	if err != nil {
		return err
	}
	dc.SetFontFace(footerFace)
	dc.SetColor(theme.HeaderText)
	footerMid := footerY + footerHeight/2
	dc.DrawStringAnchored(fmt.Sprintf("Slide %d/%d", number, total), panelLeft+30, footerMid, 0, 0.35)
	if watermark := strings.TrimSpace(s.cfg.Renderer.Watermark); watermark != "" {
		dc.DrawStringAnchored(watermark, panelLeft+panelWidth-30, footerMid, 1, 0.35)
	}

	if err := dc.SavePNG(path); err != nil {
		return services.Wrap(services.ErrTransient, "render", "save", fmt.Sprintf("write %s", filepath.Base(path)), err)
	}
	return nil
}

func (s *Service) drawBody(dc *gg.Context, body string, theme Theme, m metrics, number int, panelLeft, panelTop, panelWidth, panelBottom float64) error {
	bodyFace, err := s.fonts.face(weightRegular, m.bodySize)
	if err != nil {
		return err
	}
	monoFace, err := s.fonts.face(weightMono, m.codeSize)
	if err != nil {
		return err
	}

	textX := panelLeft + m.panelInsetX
	maxW := panelWidth - 2*m.panelInsetX
	limit := panelBottom - m.panelInsetY

	dc.SetFontFace(bodyFace)
	bodyHeight := dc.FontHeight()
	cursor := panelTop + m.panelInsetY

	for _, seg := range segmentBody(body) {
		switch seg.kind {
		case segCode:
			dc.SetFontFace(monoFace)
			codeHeight := dc.FontHeight()
			lines := strings.Split(seg.text, "\n")
			for _, line := range lines {
				if lw, _ := dc.MeasureString(line); lw > maxW-2*m.codeInset {
					return &overflowError{slide: number, detail: fmt.Sprintf("code line %q exceeds the panel width", textutil.Truncate(line, 40))}
				}
			}
			boxHeight := float64(len(lines))*(codeHeight+m.codeGap) + 2*m.codeInset
			if cursor+boxHeight > limit {
				return &overflowError{slide: number, detail: "code block overflows the body panel"}
			}
			dc.SetColor(theme.CodeBG)
			dc.DrawRoundedRectangle(textX, cursor, maxW, boxHeight, 12)
			dc.Fill()
			dc.SetColor(theme.CodeText)
			base := cursor + m.codeInset + codeHeight
			for _, line := range lines {
				dc.DrawString(line, textX+m.codeInset, base)
				base += codeHeight + m.codeGap
			}
			cursor += boxHeight + 2*m.paraGap
			dc.SetFontFace(bodyFace)

		case segBullet:
			for i, line := range dc.WordWrap(seg.text, maxW-m.bulletIndent) {
				base := cursor + bodyHeight
				if base > limit {
					return &overflowError{slide: number, detail: "body text overflows the panel"}
				}
				if i == 0 {
					dc.SetColor(theme.Accent)
					dc.DrawCircle(textX+m.bulletRadius, base-bodyHeight*0.3, m.bulletRadius)
					dc.Fill()
				}
				dc.SetColor(theme.Body)
				dc.DrawString(line, textX+m.bulletIndent, base)
				cursor = base + m.lineGap
			}
			cursor += m.paraGap

		default:
			for _, line := range dc.WordWrap(seg.text, maxW) {
				base := cursor + bodyHeight
				if base > limit {
					return &overflowError{slide: number, detail: "body text overflows the panel"}
				}
				dc.SetColor(theme.Body)
				dc.DrawString(line, textX, base)
				cursor = base + m.lineGap
			}
			cursor += m.paraGap
		}
	}
	return nil
}

func verifyDimensions(paths []string, prof profile) error {
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			return services.Wrap(services.ErrTransient, "render", "verify", fmt.Sprintf("open %s", filepath.Base(path)), err)
		}
		cfg, _, err := image.DecodeConfig(file)
		file.Close()
		if err != nil {
			return fmt.Errorf("render: verify %s: %w", filepath.Base(path), err)
		}
		if cfg.Width != prof.width || cfg.Height != prof.height {
			return fmt.Errorf("render: %s is %dx%d, want %dx%d", filepath.Base(path), cfg.Width, cfg.Height, prof.width, prof.height)
		}
	}
	return nil
}
