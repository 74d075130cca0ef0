package pushover

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voice-client/internal/infra"
)

const defaultEndpoint = "https://api.pushover.net/1/messages.json"

type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string { return "pushover error: " + e.status }

// Client forwards session notices to Pushover.
type Client struct {
	token      string
	userKey    string
	title      string
	endpoint   string
	retry      infra.RetryConfig
	httpClient *http.Client
}

func NewClient(token, userKey, title string) *Client {
	if title == "" {
		title = "Voice Client"
	}

	retry := infra.DefaultRetryConfig()
	retry.Retryable = func(err error) bool {
		var se *statusError
		if errors.As(err, &se) {
			return infra.IsRetryableHTTPStatus(se.code)
		}
		return true
	}

	return &Client{
		token:      token,
		userKey:    userKey,
		title:      title,
		endpoint:   defaultEndpoint,
		retry:      retry,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithEndpoint points the client at a different API URL.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

func (c *Client) Notify(ctx context.Context, message string) error {
	if c.token == "" || c.userKey == "" {
		return nil
	}

	data := url.Values{}
	data.Set("token", c.token)
	data.Set("user", c.userKey)
	data.Set("message", message)
	data.Set("title", c.title)
	body := data.Encode()

	return infra.WithRetry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending notification: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &statusError{code: resp.StatusCode, status: resp.Status}
		}

		return nil
	})
}
