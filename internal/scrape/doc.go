// Package scrape collects topic material from an image search results
// page. Result tiles carry a JSON metadata attribute with the full image
// URL, a thumbnail fallback, and a title; the distinct titles become the
// raw material handed to the generator, and qualifying images are saved
// into the run staging directory as visual references.
//
// The search host sees a browser User-Agent and a rate-limited request
// schedule. Responses other than 200 stay retryable because the page
// needs no auth; a clean page with zero parseable tiles is a validation
// failure, which the pipeline retries once with a broadened query.
package scrape
