package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrTimeout wraps request failures caused by a network timeout.
// Only these are worth retrying.
var ErrTimeout = errors.New("telegram request timed out")

// APIError is a request Telegram answered with ok=false or an HTTP error.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram %s: HTTP %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("telegram %s: HTTP %d: %s", e.Method, e.StatusCode, e.Description)
}

// IsRetryable reports whether a delivery error is a timeout.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Client is a minimal Telegram Bot API client.
type Client struct {
	apiURL string
	client *http.Client
}

// NewClient creates a client for the bot token. apiURL defaults to the
// public Bot API endpoint.
func NewClient(apiURL, token string, timeout time.Duration) *Client {
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/") + "/bot" + token,
		client: &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage sends an HTML-formatted text message.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	return c.post(ctx, "sendMessage", map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
}

// SendPhoto sends a photo by URL with an HTML-formatted caption.
func (c *Client) SendPhoto(ctx context.Context, chatID, photoURL, caption string) error {
	return c.post(ctx, "sendPhoto", map[string]any{
		"chat_id":    chatID,
		"photo":      photoURL,
		"caption":    caption,
		"parse_mode": "HTML",
	})
}

func (c *Client) post(ctx context.Context, method string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+method, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: %s: %v", ErrTimeout, method, err)
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading telegram %s response: %w", method, err)
	}

	var out apiResponse
	_ = json.Unmarshal(body, &out)
	if resp.StatusCode >= 400 || !out.OK {
		return &APIError{Method: method, StatusCode: resp.StatusCode, Description: out.Description}
	}
	return nil
}
