// Package camera fetches JPEG snapshots from Reolink-style fisheye cameras
// over their CGI HTTP API.
package camera

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/aidan3e4/vibecast/pkg/imgio"
)

// ErrSnapshot is returned when a snapshot cannot be captured after all
// retries.
var ErrSnapshot = errors.New("snapshot failed")

// Client captures snapshots from one camera. Transient failures (HTTP
// errors, truncated or undecodable frames) are retried with a fixed
// backoff.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	logger   *zap.Logger

	retries int
	backoff time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the HTTP transport, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetries sets the number of attempts and the delay between them.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) { c.retries = n; c.backoff = backoff }
}

// WithBaseURL overrides the URL derived from the host, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// New builds a snapshot client for the camera at host.
func New(host, username, password string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:  "http://" + host,
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
		retries:  3,
		backoff:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// snapURL builds the CGI snapshot endpoint URL.
func (c *Client) snapURL() string {
	q := url.Values{}
	q.Set("cmd", "Snap")
	q.Set("channel", "0")
	q.Set("rs", fmt.Sprintf("%d", time.Now().UnixNano()))
	q.Set("user", c.username)
	q.Set("password", c.password)
	return c.baseURL + "/cgi-bin/api.cgi?" + q.Encode()
}

// Snapshot captures one frame and returns it decoded. The returned image is
// validated: bytes that do not decode as an image count as a failed attempt.
func (c *Client) Snapshot(ctx context.Context) (image.Image, error) {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying snapshot",
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff):
			}
		}

		img, err := c.capture(ctx)
		if err == nil {
			return img, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, errors.Wrapf(ErrSnapshot, "after %d attempts: %v", c.retries, lastErr)
}

func (c *Client) capture(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.snapURL(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "building snapshot request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "requesting snapshot")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("snapshot endpoint returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading snapshot body")
	}

	img, err := imgio.DecodeBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "decoding snapshot")
	}
	return img, nil
}
