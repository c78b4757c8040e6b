package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/services"
)

// Graph error codes that matter for classification. OAuth failures are
// code 190 or an auth subcode; 4, 17 and 32 are the documented
// application and user request limits.
const (
	graphCodeOAuth       = 190
	graphCodeAppLimit    = 4
	graphCodeUserLimit   = 17
	graphCodePageLimit   = 32
	graphSubcodeExpired  = 463
	graphSubcodeInvalid  = 467
	containerFinished    = "FINISHED"
	containerError       = "ERROR"
	containerExpired     = "EXPIRED"
)

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Subcode int    `json:"error_subcode"`
}

type graphResponse struct {
	ID         string      `json:"id"`
	StatusCode string      `json:"status_code"`
	Permalink  string      `json:"permalink"`
	Error      *graphError `json:"error"`
}

// graphClient drives the carousel flow against the Graph API.
type graphClient struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpClient *http.Client
	limiter    *rate.Limiter
	sleep      func(ctx context.Context, d time.Duration) error
}

func (g *graphClient) createItemContainer(ctx context.Context, imageURL string) (string, error) {
	form := url.Values{}
	form.Set("image_url", imageURL)
	form.Set("is_carousel_item", "true")
	resp, err := g.postForm(ctx, g.accountPath("media"), form)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (g *graphClient) createCarousel(ctx context.Context, children []string, caption string) (string, error) {
	form := url.Values{}
	form.Set("media_type", "CAROUSEL")
	form.Set("children", strings.Join(children, ","))
	form.Set("caption", caption)
	resp, err := g.postForm(ctx, g.accountPath("media"), form)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// waitReady polls the container until the platform reports FINISHED.
// ERROR and EXPIRED are terminal for this creation id; running out of
// poll budget is transient since the container may still finish.
func (g *graphClient) waitReady(ctx context.Context, containerID string) error {
	interval := time.Duration(g.cfg.Publisher.ReadyPollSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.Now().Add(time.Duration(g.cfg.Publisher.ReadyTimeoutSeconds) * time.Second)

	for {
		status, err := g.containerStatus(ctx, containerID)
		if err != nil {
			return err
		}
		switch status {
		case containerFinished:
			return nil
		case containerError, containerExpired:
			return fmt.Errorf("publish: graph: container %s reported %s", containerID, status)
		}
		g.logger.Debug("container not ready",
			logging.String("container", containerID),
			logging.String("status", status),
		)
		if time.Now().After(deadline) {
			return services.Wrap(services.ErrTransient, "publish", "graph",
				fmt.Sprintf("container %s not ready after %ds", containerID, g.cfg.Publisher.ReadyTimeoutSeconds), nil)
		}
		if err := g.sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func (g *graphClient) containerStatus(ctx context.Context, containerID string) (string, error) {
	resp, err := g.get(ctx, containerID, url.Values{"fields": []string{"status_code"}})
	if err != nil {
		return "", err
	}
	return resp.StatusCode, nil
}

func (g *graphClient) publishCarousel(ctx context.Context, creationID string) (string, error) {
	form := url.Values{}
	form.Set("creation_id", creationID)
	resp, err := g.postForm(ctx, g.accountPath("media_publish"), form)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (g *graphClient) fetchPermalink(ctx context.Context, postID string) (string, error) {
	resp, err := g.get(ctx, postID, url.Values{"fields": []string{"permalink"}})
	if err != nil {
		return "", err
	}
	return resp.Permalink, nil
}

func (g *graphClient) accountPath(suffix string) string {
	return g.cfg.Publisher.AccountID + "/" + suffix
}

func (g *graphClient) postForm(ctx context.Context, graphPath string, form url.Values) (*graphResponse, error) {
	form.Set("access_token", g.cfg.Publisher.AccessToken)
	endpoint := strings.TrimRight(g.cfg.Publisher.GraphBaseURL, "/") + "/" + graphPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("publish: graph: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return g.do(req)
}

func (g *graphClient) get(ctx context.Context, graphPath string, query url.Values) (*graphResponse, error) {
	query.Set("access_token", g.cfg.Publisher.AccessToken)
	endpoint := strings.TrimRight(g.cfg.Publisher.GraphBaseURL, "/") + "/" + graphPath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("publish: graph: build request: %w", err)
	}
	return g.do(req)
}

func (g *graphClient) do(req *http.Request) (*graphResponse, error) {
	if err := g.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		return nil, services.Wrap(services.ErrTransient, "publish", "graph", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "publish", "graph", "read response", err)
	}

	var decoded graphResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil && resp.StatusCode == http.StatusOK {
			return nil, services.Wrap(services.ErrTransient, "publish", "graph", "malformed response body", err)
		}
	}

	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		return nil, classifyGraphFailure(resp, decoded.Error)
	}
	return &decoded, nil
}

func classifyGraphFailure(resp *http.Response, gerr *graphError) error {
	detail := fmt.Sprintf("http %d", resp.StatusCode)
	if gerr != nil {
		detail = fmt.Sprintf("http %d: %s (code %d, subcode %d)", resp.StatusCode, gerr.Message, gerr.Code, gerr.Subcode)
	}

	switch {
	case isGraphRateLimit(resp.StatusCode, gerr):
		wrapped := services.Wrap(services.ErrRateLimited, "publish", "graph", detail, nil)
		if hint, ok := services.ParseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return services.WithRetryAfter(wrapped, hint)
		}
		return wrapped
	case isGraphAuthFailure(resp.StatusCode, gerr):
		return services.Wrap(services.ErrAuth, "publish", "graph", detail, nil)
	case resp.StatusCode >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "publish", "graph", detail, nil)
	default:
		return errors.New("publish: graph: " + detail)
	}
}

func isGraphRateLimit(status int, gerr *graphError) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if gerr == nil {
		return false
	}
	switch gerr.Code {
	case graphCodeAppLimit, graphCodeUserLimit, graphCodePageLimit:
		return true
	}
	return false
}

func isGraphAuthFailure(status int, gerr *graphError) bool {
	if status == http.StatusUnauthorized {
		return true
	}
	if gerr == nil {
		return false
	}
	if gerr.Code == graphCodeOAuth {
		return true
	}
	return gerr.Subcode == graphSubcodeExpired || gerr.Subcode == graphSubcodeInvalid
}
