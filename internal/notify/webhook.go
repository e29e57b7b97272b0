package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// MaxAttachmentBytes is the largest total upload a webhook accepts.
const MaxAttachmentBytes = 8 << 20

// Webhook posts messages as multipart form data to a chat webhook. The
// payload_json part carries the text and the channel, files follow as
// files[n] parts.
type Webhook struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhook creates a webhook notifier. Requests are limited to perSecond
// with a small burst.
func NewWebhook(url string, timeout time.Duration, perSecond float64) *Webhook {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Webhook{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSecond), 5),
	}
}

type webhookPayload struct {
	Content   string `json:"content"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id,omitempty"`
}

func (w *Webhook) Deliver(ctx context.Context, msg Message) error {
	if msg.Size() > MaxAttachmentBytes {
		return fmt.Errorf("attachments are %d bytes, limit is %d", msg.Size(), MaxAttachmentBytes)
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	body, contentType, err := encodeMultipart(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, body)
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

func encodeMultipart(msg Message) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	payload := webhookPayload{Content: msg.Text, GuildID: strconv.FormatInt(msg.GuildID, 10)}
	if msg.ChannelID != 0 {
		payload.ChannelID = strconv.FormatInt(msg.ChannelID, 10)
	}
	pj, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("encoding payload: %w", err)
	}
	if err := mw.WriteField("payload_json", string(pj)); err != nil {
		return nil, "", fmt.Errorf("writing payload: %w", err)
	}

	for i, a := range msg.Attachments {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files[%d]"; filename=%q`, i, a.Name))
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("creating part for %s: %w", a.Name, err)
		}
		if _, err := part.Write(a.Data); err != nil {
			return nil, "", fmt.Errorf("writing %s: %w", a.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
