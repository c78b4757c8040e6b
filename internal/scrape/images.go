package scrape

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"easel/internal/logging"
	"easel/internal/pipeline"
	"easel/internal/services"
	"easel/internal/textutil"
)

// maxImageBytes caps a single reference image download. Result pages link
// to arbitrary hosts and some serve enormous originals.
const maxImageBytes = 20 << 20

// downloadImages saves qualifying reference images into dir/refs. Download
// and decode failures skip the candidate rather than failing the stage;
// material is the critical output and reference images are best effort.
func (s *Service) downloadImages(ctx context.Context, results []result, dir string) ([]pipeline.SourceImage, error) {
	maxImages := s.cfg.Scraper.MaxImages
	if maxImages <= 0 {
		return nil, nil
	}
	refsDir := filepath.Join(dir, "refs")
	if err := os.MkdirAll(refsDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "scrape", "images", "create refs directory", err)
	}

	var images []pipeline.SourceImage
	for _, r := range results {
		if len(images) >= maxImages {
			break
		}
		for _, candidate := range []string{r.ImageURL, r.ThumbURL} {
			if candidate == "" {
				continue
			}
			img, err := s.downloadImage(ctx, candidate, r.Title, refsDir, len(images)+1)
			if err != nil {
				if isCancellation(err) {
					return nil, err
				}
				s.logger.Debug("skipping reference image",
					logging.String("url", candidate),
					logging.Error(err),
				)
				continue
			}
			images = append(images, *img)
			break
		}
	}
	return images, nil
}

func (s *Service) downloadImage(ctx context.Context, imageURL, title, refsDir string, index int) (*pipeline.SourceImage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.Scraper.UserAgent)
	req.Header.Set("Referer", "https://www.bing.com/")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: http %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	minWidth := s.cfg.Scraper.MinImageWidth
	if cfg.Width < minWidth || cfg.Height < minWidth/2 {
		return nil, fmt.Errorf("image %dx%d below minimum width %d", cfg.Width, cfg.Height, minWidth)
	}

	base := fmt.Sprintf("%02d", index)
	if name := textutil.SanitizeFileName(title); name != "" {
		if runes := []rune(name); len(runes) > 40 {
			name = string(runes[:40])
		}
		base += "-" + name
	}
	path := filepath.Join(refsDir, base+"."+imageExtension(format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}
	return &pipeline.SourceImage{
		URL:    imageURL,
		Path:   path,
		Title:  title,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

func imageExtension(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
