package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quill/internal/config"
	"quill/internal/services"
)

const (
	userAgent          = "Quill/0.1.0"
	defaultHTTPTimeout = 30 * time.Second
)

// Client publishes posts through the platform's HTTP API.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// Option customizes the platform client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a platform API client from configuration.
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.Publisher.BaseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "publisher", "init", "publisher.base_url is not set", nil)
	}
	token := strings.TrimSpace(cfg.Publisher.AccessToken)
	if token == "" {
		return nil, services.Wrap(services.ErrConfiguration, "publisher", "init", "publisher.access_token is not set", nil)
	}

	timeout := time.Duration(cfg.Publisher.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	client := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: token,
		httpClient:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type postRequest struct {
	PayloadRefs []string `json:"payload_refs"`
	Attempt     int      `json:"attempt,omitempty"`
}

type postResponse struct {
	ID string `json:"id"`
}

// Publish creates a post and returns the platform's identifier. Network and
// server-side failures come back tagged transient; authentication and content
// rejections come back tagged permanent.
func (c *Client) Publish(ctx context.Context, req Request) (string, error) {
	if len(req.PayloadRefs) == 0 {
		return "", services.Wrap(services.ErrValidation, "publisher", "publish", "no payload refs", nil)
	}

	endpoint, err := url.JoinPath(c.baseURL, "/v1/posts")
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "publisher", "publish", "build url", err)
	}
	encoded, err := json.Marshal(postRequest{PayloadRefs: req.PayloadRefs, Attempt: req.Attempt})
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "publisher", "publish", "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "publisher", "publish", "build request", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", services.Wrap(services.ErrTransient, "publisher", "publish", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		detail := fmt.Sprintf("platform returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return "", services.Wrap(classifyStatus(resp.StatusCode), "publisher", "publish", detail, nil)
	}

	var decoded postResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", services.Wrap(services.ErrTransient, "publisher", "publish", "decode response", err)
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return "", services.Wrap(services.ErrTransient, "publisher", "publish", "platform returned no post id", nil)
	}
	return decoded.ID, nil
}

// classifyStatus maps HTTP status codes to the retry taxonomy. Throttling and
// server errors are worth retrying; auth and content rejections are not.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooEarly,
		status == http.StatusTooManyRequests,
		status >= 500:
		return services.ErrTransient
	default:
		return services.ErrPermanent
	}
}
