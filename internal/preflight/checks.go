package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const checkTimeout = 10 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckGenerator verifies that the model API is reachable and the key is
// valid by listing models. One attempt, no retries.
func CheckGenerator(ctx context.Context, baseURL, apiKey string) Result {
	const name = "Generator API"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/models", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(apiKey))

	resp, err := (&http.Client{Timeout: checkTimeout}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError("model API", err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "API reachable"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%d)", resp.StatusCode)}
	}
}

// CheckPublisherToken verifies the Graph access token against /me.
func CheckPublisherToken(ctx context.Context, graphBaseURL, accessToken string) Result {
	const name = "Publisher token"

	base := strings.TrimRight(strings.TrimSpace(graphBaseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing graph base url"}
	}
	if strings.TrimSpace(accessToken) == "" {
		return Result{Name: name, Detail: "missing access token"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	endpoint := base + "/me?" + url.Values{"access_token": []string{accessToken}}.Encode()
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}

	resp, err := (&http.Client{Timeout: checkTimeout}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError("graph API", err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "Token valid"}
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid access token)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%d)", resp.StatusCode)}
	}
}

// CheckHostingRepo verifies the hosting repository exists and the token
// can see it. An empty apiBase falls back to the public GitHub API.
func CheckHostingRepo(ctx context.Context, apiBase, owner, repo, token string) Result {
	const name = "Hosting repository"

	if strings.TrimSpace(owner) == "" || strings.TrimSpace(repo) == "" {
		return Result{Name: name, Detail: "missing owner or repo"}
	}
	if strings.TrimSpace(token) == "" {
		return Result{Name: name, Detail: "missing hosting token"}
	}
	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if base == "" {
		base = "https://api.github.com"
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/repos/%s/%s", base, owner, repo)
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := (&http.Client{Timeout: checkTimeout}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError("contents API", err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s/%s reachable", owner, repo)}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid hosting token)"}
	case http.StatusNotFound:
		return Result{Name: name, Detail: fmt.Sprintf("%s/%s not found", owner, repo)}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%d)", resp.StatusCode)}
	}
}

// summarizeNetError produces a human-readable summary for check failures.
func summarizeNetError(target string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("check timed out (%s unresponsive)", target)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("check timed out (%s unreachable)", target)
	}
	return err.Error()
}
