package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTextLength is the longest attachment text the webhook accepts before the
// platform truncates it itself.
const MaxTextLength = 40_000

const (
	ColorGood   = "good"
	ColorDanger = "danger"

	ellipsis       = "…"
	connectTimeout = 10 * time.Second
	maxErrorBody   = 1024
)

// Message is the webhook payload.
type Message struct {
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	Title     string `json:"title"`
	TitleLink string `json:"title_link"`
	Pretext   string `json:"pretext,omitempty"`
	Text      string `json:"text"`
	Color     string `json:"color"`
}

// Truncate shortens text longer than MaxTextLength characters to
// MaxTextLength-1 characters followed by an ellipsis.
func Truncate(text string) string {
	if utf8.RuneCountInString(text) <= MaxTextLength {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	n := 0
	for _, r := range text {
		if n == MaxTextLength-1 {
			break
		}
		b.WriteRune(r)
		n++
	}
	b.WriteString(ellipsis)
	return b.String()
}

// StatusError is returned when the webhook answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook returned status %d: %s", e.StatusCode, e.Body)
}

// Poster delivers a message to a chat channel.
type Poster interface {
	Post(ctx context.Context, msg Message) error
}

// Client posts messages to an incoming webhook. Requests are never retried.
type Client struct {
	url  string
	http *http.Client
	log  *slog.Logger
}

// NewClient returns a Client for the webhook at url.
func NewClient(url string, logger *slog.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext

	return &Client{
		url:  url,
		http: &http.Client{Transport: transport},
		log:  logger,
	}
}

// Post sends msg as JSON. Attachment text is truncated before encoding.
func (c *Client) Post(ctx context.Context, msg Message) error {
	msg.Attachments = slices.Clone(msg.Attachments)
	for i := range msg.Attachments {
		msg.Attachments[i].Text = Truncate(msg.Attachments[i].Text)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook message: %w", err)
	}
	defer resp.Body.Close()

	if c.log != nil {
		c.log.Info("posted webhook message", "status", resp.StatusCode, "attachments", len(msg.Attachments))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
