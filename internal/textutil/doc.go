// Package textutil provides text processing utilities for topic naming,
// filename sanitization, and title similarity.
//
// The primary use cases are:
//   - Converting raw topic input into canonical slugs and display headings
//   - Sanitizing filenames and path segments for safe filesystem use
//   - Creating token-based fingerprints from scraped titles so near-duplicate
//     material can be dropped
//
// Fingerprints use term frequency vectors normalized for efficient comparison.
// The tokenization process lowercases text, splits on non-alphanumeric
// characters, and filters tokens shorter than 3 characters.
package textutil
