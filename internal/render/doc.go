// Package render draws slide images from generated content with a fixed
// layout: header bar with accent strip, topic label, shadowed heading,
// a translucent body panel, and a footer with the slide counter and
// watermark. Bodies support plain lines, "- " bullets, and fenced code
// blocks drawn in a monospace box.
//
// Every text run is measured against its box before drawing. Content
// that cannot fit is a validation failure so the pipeline re-renders it
// once in compact metrics; nothing is ever truncated on the canvas.
// Fonts come from the embedded Go font family.
package render
