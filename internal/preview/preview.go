package preview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"easel/internal/pipeline"
	"easel/internal/services"
	"easel/internal/textutil"
)

// FileName is the review page written into the run staging directory.
const FileName = "preview.html"

type pageData struct {
	Title       string
	Kind        string
	Model       string
	GeneratedAt string
	Body        template.HTML
	Slides      []string
	Caption     string
}

var pageTemplate = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} · easel preview</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; margin: 0 auto; max-width: 860px; padding: 2rem 1.5rem; color: #1c2733; background: #f6f7f9; }
header { border-bottom: 2px solid #2e5d8c; margin-bottom: 1.5rem; padding-bottom: 0.75rem; }
header h1 { margin: 0 0 0.25rem; }
header p { color: #5a6772; margin: 0; font-size: 0.9rem; }
article { background: #fff; border-radius: 10px; padding: 1.5rem 2rem; box-shadow: 0 1px 4px rgba(0,0,0,0.08); }
article pre { background: #22272e; color: #e6edf3; border-radius: 8px; padding: 1rem; overflow-x: auto; }
article code { font-family: "SF Mono", Consolas, monospace; font-size: 0.9em; }
.slides { display: flex; flex-wrap: wrap; gap: 1rem; margin-top: 1.5rem; }
.slides img { width: 260px; border-radius: 8px; box-shadow: 0 1px 4px rgba(0,0,0,0.15); }
.caption { background: #fff; border-left: 4px solid #2e5d8c; border-radius: 0 8px 8px 0; margin-top: 1.5rem; padding: 0.75rem 1rem; white-space: pre-wrap; }
</style>
</head>
<body>
<header>
<h1>{{.Title}}</h1>
<p>{{.Kind}}{{if .Model}} · {{.Model}}{{end}}{{if .GeneratedAt}} · {{.GeneratedAt}}{{end}}</p>
</header>
<article>
{{.Body}}
</article>
{{if .Slides}}
<div class="slides">
{{range .Slides}}<img src="{{.}}" alt="slide">
{{end}}</div>
{{end}}
{{if .Caption}}<div class="caption">{{.Caption}}</div>{{end}}
</body>
</html>
`))

// Build converts the run's content.md into a standalone HTML review page
// next to it and returns the page path. Rendered slides in the directory
// are linked in as a gallery.
func Build(runDir string) (string, error) {
	source, err := os.ReadFile(filepath.Join(runDir, "content.md"))
	if err != nil {
		return "", fmt.Errorf("preview: read content.md: %w", err)
	}

	var body bytes.Buffer
	if err := goldmark.Convert(source, &body); err != nil {
		return "", fmt.Errorf("preview: convert markdown: %w", err)
	}

	data := pageData{
		Title: filepath.Base(runDir),
		Body:  template.HTML(body.String()),
	}
	if content, err := readContent(runDir); err == nil {
		data.Title = textutil.DisplayName(content.TopicID)
		data.Kind = string(content.Kind)
		data.Model = content.Model
		data.Caption = content.Caption
		if !content.GeneratedAt.IsZero() {
			data.GeneratedAt = content.GeneratedAt.Format(time.RFC1123)
		}
	}
	data.Slides = slideNames(runDir)

	var page bytes.Buffer
	if err := pageTemplate.Execute(&page, data); err != nil {
		return "", fmt.Errorf("preview: render page: %w", err)
	}

	outPath := filepath.Join(runDir, FileName)
	if err := os.WriteFile(outPath, page.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("preview: write page: %w", err)
	}
	return outPath, nil
}

// LatestRunDir returns the most recently modified staging directory for
// the topic under workspaceDir/runs.
func LatestRunDir(workspaceDir, topicID string) (string, error) {
	runsDir := filepath.Join(workspaceDir, "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "preview", "locate", fmt.Sprintf("no runs directory at %s", runsDir), err)
	}

	var latest string
	var latestMod time.Time
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), topicID+"-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = entry.Name()
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return "", services.Wrap(services.ErrNotFound, "preview", "locate", fmt.Sprintf("no runs for topic %s", topicID), nil)
	}
	return filepath.Join(runsDir, latest), nil
}

func readContent(runDir string) (*pipeline.GeneratedContent, error) {
	raw, err := os.ReadFile(filepath.Join(runDir, "content.json"))
	if err != nil {
		return nil, err
	}
	var content pipeline.GeneratedContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

// slideNames lists slide-*.png files relative to the run directory so
// the page links them with bare names and stays portable with the dir.
func slideNames(runDir string) []string {
	matches, err := filepath.Glob(filepath.Join(runDir, "slide-*.png"))
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)
	return names
}
