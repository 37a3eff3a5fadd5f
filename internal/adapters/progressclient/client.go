// Package progressclient reports playback progress to the media API over HTTP.
package progressclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"lms-media/internal/core/domain"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// Client implements port.ProgressReporter and port.ProgressLoader
type Client struct {
	httpClient *retryablehttp.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*retryablehttp.Client)

// WithRetry overrides the retry policy. 5xx and 429 responses and connection errors are retried.
func WithRetry(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *retryablehttp.Client) {
		c.RetryMax = maxRetries
		c.RetryWaitMin = waitMin
		c.RetryWaitMax = waitMax
	}
}

// WithTimeout bounds every attempt
func WithTimeout(d time.Duration) Option {
	return func(c *retryablehttp.Client) {
		c.HTTPClient.Timeout = d
	}
}

// New creates a client for the API at baseURL, authenticating with the bearer token
func New(baseURL, token string, logger *slog.Logger, opts ...Option) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.Logger = logger
	httpClient.RetryMax = 3
	httpClient.RetryWaitMin = 250 * time.Millisecond
	httpClient.RetryWaitMax = 2 * time.Second
	httpClient.HTTPClient.Timeout = 10 * time.Second
	for _, opt := range opts {
		opt(httpClient)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     logger,
	}
}

type progressResponse struct {
	UserID          string     `json:"user_id"`
	VideoID         uuid.UUID  `json:"video_id"`
	Position        float64    `json:"position"`
	TotalWatched    float64    `json:"total_watched"`
	ProgressPercent int        `json:"progress_percent"`
	IsCompleted     bool       `json:"is_completed"`
	CompletedAt     *time.Time `json:"completed_at"`
	ClientTsMs      int64      `json:"client_ts_ms"`
}

func (c *Client) progressURL(videoID uuid.UUID) string {
	return fmt.Sprintf("%s/api/v1/videos/%s/progress", c.baseURL, videoID)
}

// Report sends one progress write. A queued write (202) counts as success.
func (c *Client) Report(ctx context.Context, report domain.ProgressReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, c.progressURL(report.VideoID), body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPlaybackPersist, err)
	}
	defer c.close(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return nil
	default:
		return fmt.Errorf("%w: %w", domain.ErrPlaybackPersist, unwrapError(resp))
	}
}

// Load fetches the caller's stored progress on videoID. A video never opened returns a zero state.
func (c *Client) Load(ctx context.Context, videoID uuid.UUID) (*domain.VideoProgress, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.progressURL(videoID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer c.close(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, domain.ErrVideoNotFound
	default:
		return nil, unwrapError(resp)
	}

	var body progressResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("could not decode progress: %w", err)
	}
	return &domain.VideoProgress{
		UserID:          body.UserID,
		VideoID:         body.VideoID,
		Position:        body.Position,
		TotalWatched:    body.TotalWatched,
		ProgressPercent: body.ProgressPercent,
		Completed:       body.IsCompleted,
		CompletedAt:     body.CompletedAt,
		ClientTsMs:      body.ClientTsMs,
	}, nil
}

func (c *Client) close(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		c.logger.Debug("failed to close response body", "error", err)
	}
}

func unwrapError(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}
