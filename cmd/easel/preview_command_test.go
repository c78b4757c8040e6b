package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func seedRunDir(t *testing.T, workspaceDir, name string) string {
	t.Helper()
	dir := filepath.Join(workspaceDir, "runs", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir run dir: %v", err)
	}
	md := "# Bloom Filters\n\n## 1. The Idea\n\nA bitset plus k hashes.\n"
	if err := os.WriteFile(filepath.Join(dir, "content.md"), []byte(md), 0o644); err != nil {
		t.Fatalf("write content.md: %v", err)
	}
	return dir
}

func TestPreviewCommandFindsLatestRun(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := seedRunDir(t, env.cfg.Paths.WorkspaceDir, "bloom-filters-abc12345")

	out, _, err := runCLI(t, []string{"preview", "Bloom Filters"}, env.configPath)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	requireContains(t, out, "Preview written to "+filepath.Join(dir, "preview.html"))

	page, err := os.ReadFile(filepath.Join(dir, "preview.html"))
	if err != nil {
		t.Fatalf("read preview: %v", err)
	}
	if !strings.Contains(string(page), "The Idea") {
		t.Fatalf("preview missing rendered heading: %s", page)
	}
}

func TestPreviewCommandExplicitDir(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := seedRunDir(t, env.cfg.Paths.WorkspaceDir, "tries-def67890")

	out, _, err := runCLI(t, []string{"preview", "--dir", dir}, env.configPath)
	if err != nil {
		t.Fatalf("preview --dir: %v", err)
	}
	requireContains(t, out, "Preview written to")
}

func TestPreviewCommandUnknownTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"preview", "never-ran"}, env.configPath)
	if err == nil {
		t.Fatal("expected missing run error")
	}
}

func TestPreviewCommandRequiresTopicOrDir(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"preview"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "a topic or --dir is required") {
		t.Fatalf("expected usage error, got %v", err)
	}
}
