package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"golang.org/x/time/rate"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/services"
)

const (
	defaultHostingAPIBase = "https://api.github.com"
	defaultHostingRawBase = "https://raw.githubusercontent.com"
)

// hostingClient pushes slide files into a GitHub repository through the
// contents API so the platform can ingest them by URL.
type hostingClient struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpClient *http.Client
	limiter    *rate.Limiter
	apiBase    string
	rawBase    string
}

type contentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
}

// upload puts the local file at remotePath on the hosting branch and
// returns the raw URL it will be served from.
func (h *hostingClient) upload(ctx context.Context, localPath, remotePath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "publish", "hosting", fmt.Sprintf("read slide %s", path.Base(localPath)), err)
	}

	if err := h.limiter.Wait(ctx); err != nil {
		return "", err
	}

	pub := h.cfg.Publisher
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s", h.apiBase, pub.HostingOwner, pub.HostingRepo, remotePath)
	body, err := json.Marshal(contentsRequest{
		Message: fmt.Sprintf("easel: host %s", remotePath),
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  pub.HostingBranch,
	})
	if err != nil {
		return "", fmt.Errorf("publish: hosting: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("publish: hosting: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+pub.HostingToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrTransient, "publish", "hosting", "upload failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated, resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return "", services.Wrap(services.ErrAuth, "publish", "hosting", "hosting token rejected", nil)
	case resp.StatusCode == http.StatusNotFound:
		return "", services.Wrap(services.ErrConfiguration, "publish", "hosting",
			fmt.Sprintf("repository %s/%s not found", pub.HostingOwner, pub.HostingRepo), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		wrapped := services.Wrap(services.ErrRateLimited, "publish", "hosting", "contents api rate limit", nil)
		if hint, ok := services.ParseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return "", services.WithRetryAfter(wrapped, hint)
		}
		return "", wrapped
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", services.Wrap(services.ErrTransient, "publish", "hosting", fmt.Sprintf("http %d", resp.StatusCode), nil)
	default:
		return "", fmt.Errorf("publish: hosting: upload %s: http %d", remotePath, resp.StatusCode)
	}

	rawURL := fmt.Sprintf("%s/%s/%s/%s/%s", h.rawBase, pub.HostingOwner, pub.HostingRepo, pub.HostingBranch, remotePath)
	h.logger.Debug("slide hosted", logging.String("url", rawURL))
	return rawURL, nil
}

// checkReachable gates publishing on the raw URL answering. A fresh
// upload can lag behind the CDN, which is a retry, not a failure.
func (h *hostingClient) checkReachable(ctx context.Context, rawURL string) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("publish: hosting: build head request: %w", err)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrTransient, "publish", "hosting", "reachability check failed", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrTransient, "publish", "hosting",
			fmt.Sprintf("%s not reachable yet (http %d)", rawURL, resp.StatusCode), nil)
	}
	return nil
}

func remoteSlidePath(topicID, nonce, localPath string) string {
	return path.Join("posts", topicID, nonce, path.Base(strings.ReplaceAll(localPath, "\\", "/")))
}
