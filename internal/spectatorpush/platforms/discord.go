package platforms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const discordUsername = "Labyrinth"

var errMissingMessageID = errors.New("discord webhook create message missing id")

type panelKey struct {
	endpoint  string
	sessionID string
}

// DiscordAdapter keeps one embed per session and webhook. The first notice of
// a session posts it, later ones edit it, and a closing notice releases it.
type DiscordAdapter struct {
	client *HTTPClient

	mu     sync.Mutex
	panels map[panelKey]string
}

func NewDiscordAdapter(client *HTTPClient) *DiscordAdapter {
	return &DiscordAdapter{client: client, panels: map[panelKey]string{}}
}

func (a *DiscordAdapter) Name() string {
	return "discord"
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
	Fields      []discordField `json:"fields"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Content  string         `json:"content"`
	Embeds   []discordEmbed `json:"embeds"`
}

func renderDiscord(n Notice) discordPayload {
	embed := discordEmbed{
		Title:       n.Headline,
		Description: n.Summary,
		Color:       n.Accent,
		Fields:      make([]discordField, 0, len(n.Facts)),
	}
	if !n.At.IsZero() {
		embed.Timestamp = n.At.UTC().Format(time.RFC3339)
	}
	for _, f := range n.Facts {
		embed.Fields = append(embed.Fields, discordField{Name: f.Label, Value: f.Value, Inline: f.Inline})
	}
	if n.Footer != "" {
		embed.Footer = &discordFooter{Text: n.Footer}
	}
	return discordPayload{Username: discordUsername, Content: n.Mention, Embeds: []discordEmbed{embed}}
}

func (a *DiscordAdapter) Deliver(ctx context.Context, to Target, n Notice) error {
	payload := renderDiscord(n)
	if strings.TrimSpace(n.SessionID) == "" {
		_, err := a.client.Call(ctx, http.MethodPost, to.Endpoint, nil, payload)
		return err
	}
	key := panelKey{endpoint: to.Endpoint, sessionID: n.SessionID}
	if err := a.upsert(ctx, key, payload); err != nil {
		return err
	}
	if n.Closing {
		a.release(key)
	}
	return nil
}

func (a *DiscordAdapter) upsert(ctx context.Context, key panelKey, payload discordPayload) error {
	msgID := a.panel(key)
	if msgID == "" {
		return a.create(ctx, key, payload)
	}
	editURL, ok := messageEditURL(key.endpoint, msgID)
	if !ok {
		_, err := a.client.Call(ctx, http.MethodPost, key.endpoint, nil, payload)
		return err
	}
	_, err := a.client.Call(ctx, http.MethodPatch, editURL, nil, payload)
	if statusCode(err) == http.StatusNotFound {
		// deleted on the Discord side
		return a.create(ctx, key, payload)
	}
	return err
}

func (a *DiscordAdapter) create(ctx context.Context, key panelKey, payload discordPayload) error {
	waitURL := key.endpoint
	if strings.Contains(waitURL, "?") {
		waitURL += "&wait=true"
	} else {
		waitURL += "?wait=true"
	}
	body, err := a.client.Call(ctx, http.MethodPost, waitURL, nil, payload)
	if err != nil {
		return err
	}
	var created struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(body, &created) != nil || strings.TrimSpace(created.ID) == "" {
		return errMissingMessageID
	}
	a.mu.Lock()
	a.panels[key] = created.ID
	a.mu.Unlock()
	return nil
}

func (a *DiscordAdapter) panel(key panelKey) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.panels[key]
}

func (a *DiscordAdapter) release(key panelKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.panels, key)
}

// Panels reports how many sessions currently own an embed.
func (a *DiscordAdapter) Panels() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.panels)
}

// messageEditURL turns /api/webhooks/{id}/{token} into the edit URL of msgID.
func messageEditURL(endpoint, msgID string) (string, bool) {
	if strings.TrimSpace(endpoint) == "" || strings.TrimSpace(msgID) == "" {
		return "", false
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[0] != "api" || parts[1] != "webhooks" {
		return "", false
	}
	u.Path = "/api/webhooks/" + parts[2] + "/" + parts[3] + "/messages/" + msgID
	u.RawQuery = ""
	return u.String(), true
}
