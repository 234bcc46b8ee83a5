// ABOUTME: HTTP client for the chat-turn endpoint
// ABOUTME: Encodes turns as JSON or multipart and extracts the reply text

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/tidwall/gjson"

	"github.com/2389/coven-widget/internal/session"
)

const maxReplyBytes = 1 << 20

// Errors returned by Client.Send.
var (
	ErrStatus    = errors.New("chat endpoint returned an error status")
	ErrMalformed = errors.New("chat endpoint returned a malformed body")
)

// replyFields are tried in order.
var replyFields = []string{"content", "response"}

// Endpoint identifies where turns are sent and on whose behalf.
type Endpoint struct {
	URL       string
	TenantKey string
}

// Turn is one outbound user turn.
type Turn struct {
	ID         string
	Message    string
	Attachment *session.Attachment
}

// Reply is the parsed answer to a turn. Text is empty when the body carried
// none of the known reply fields.
type Reply struct {
	Text string
}

// Client posts turns to the chat endpoint.
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a client. Pass nil for the defaults.
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:   httpClient,
		logger: logger.With("component", "chat_client"),
	}
}

// Send performs exactly one request for the turn.
func (c *Client) Send(ctx context.Context, ep Endpoint, turn Turn) (Reply, error) {
	body, contentType, err := encodeTurn(ep, turn)
	if err != nil {
		return Reply{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, body)
	if err != nil {
		return Reply{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if turn.ID != "" {
		req.Header.Set("Idempotency-Key", turn.ID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("sending turn: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return Reply{}, fmt.Errorf("reading reply: %w", err)
	}

	c.logger.Debug("turn completed",
		"turn_id", turn.ID,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Reply{}, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	return parseReply(data)
}

func parseReply(data []byte) (Reply, error) {
	if !gjson.ValidBytes(data) {
		return Reply{}, ErrMalformed
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return Reply{}, ErrMalformed
	}
	for _, field := range replyFields {
		v := doc.Get(field)
		if v.Type == gjson.String && v.Str != "" {
			return Reply{Text: v.Str}, nil
		}
	}
	return Reply{}, nil
}

func encodeTurn(ep Endpoint, turn Turn) (io.Reader, string, error) {
	if turn.Attachment == nil {
		data, err := json.Marshal(map[string]string{
			"message":    turn.Message,
			"public_key": ep.TenantKey,
		})
		if err != nil {
			return nil, "", fmt.Errorf("encoding turn: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("message", turn.Message); err != nil {
		return nil, "", fmt.Errorf("encoding turn: %w", err)
	}
	if err := w.WriteField("public_key", ep.TenantKey); err != nil {
		return nil, "", fmt.Errorf("encoding turn: %w", err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, turn.Attachment.Name))
	h.Set("Content-Type", turn.Attachment.MimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("encoding attachment: %w", err)
	}
	if _, err := part.Write(turn.Attachment.Data); err != nil {
		return nil, "", fmt.Errorf("encoding attachment: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("encoding turn: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
