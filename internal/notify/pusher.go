package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type pushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// WebPusher POSTs {"title","body"} to the subscriber's endpoint.
type WebPusher struct {
	Client *http.Client
}

func NewWebPusher(timeout time.Duration) *WebPusher {
	return &WebPusher{Client: &http.Client{Timeout: timeout}}
}

func (p *WebPusher) SendPush(ctx context.Context, endpoint, title, body string) error {
	b, err := json.Marshal(pushMessage{Title: title, Body: body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("TTL", "86400")

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push: endpoint returned %d", resp.StatusCode)
	}
	return nil
}
