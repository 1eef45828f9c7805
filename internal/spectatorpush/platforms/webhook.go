package platforms

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	SignatureHeader = "X-Labyrinth-Signature"
	EventHeader     = "X-Labyrinth-Event"
)

// WebhookAdapter posts the notice payload. With a secret the body is signed
// as "sha256=<hex hmac>".
type WebhookAdapter struct {
	client *HTTPClient
}

func NewWebhookAdapter(client *HTTPClient) *WebhookAdapter {
	return &WebhookAdapter{client: client}
}

func (a *WebhookAdapter) Name() string {
	return "webhook"
}

func (a *WebhookAdapter) Deliver(ctx context.Context, to Target, n Notice) error {
	payload := n.Payload
	if payload == nil {
		payload = map[string]any{"event": n.Event, "session_id": n.SessionID, "headline": n.Headline}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	headers := map[string]string{}
	if n.Event != "" {
		headers[EventHeader] = n.Event
	}
	if secret := strings.TrimSpace(to.Secret); secret != "" {
		headers[SignatureHeader] = Sign(secret, raw)
	}
	_, err = a.client.Call(ctx, http.MethodPost, to.Endpoint, headers, raw)
	return err
}

func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
