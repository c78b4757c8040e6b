// Package publish pushes rendered carousels to the platform Graph API.
// The API only ingests media by URL, so each slide is first committed
// to a public git branch through the contents API and verified
// reachable at its raw URL. The carousel flow is then item containers,
// a carousel container, a readiness poll on its status_code, and
// media_publish.
//
// Failures before media_publish are classified for the retry loop:
// rate limits carry the Retry-After hint, auth and configuration
// problems are fatal, platform 5xx is transient. After media_publish
// succeeds nothing fails the stage, because a retry would post the
// carousel twice.
package publish
