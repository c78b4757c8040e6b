// Package generate turns scraped topic material into slide content through
// the OpenAI chat completions API.
//
// The model is asked for a single JSON object; the decoder tolerates the
// usual provider quirks (code fences, prose around the payload) before
// structural validation. A validation failure surfaces as ErrValidation so
// the pipeline retries exactly once with a strict re-prompt that restates
// the hard constraints.
//
// The service performs one API call per attempt; retry scheduling belongs to
// the pipeline runner, so SDK-level retries are disabled.
package generate
