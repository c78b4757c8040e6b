// Package preview renders a run's generated content into a standalone
// HTML page for review before or after publishing. The page carries the
// converted markdown, a gallery of the rendered slides, and the caption,
// and lives inside the run staging directory so relative image links
// keep working when the directory is copied elsewhere.
package preview
