// Package notify delivers fired reminders to the chat platform through its
// incoming-webhook endpoint. The platform itself is an external collaborator;
// this is the whole boundary.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"remindd/internal/model"
)

type Webhook struct {
	endpoint   string
	httpClient *http.Client
	log        *zap.Logger
	loc        *time.Location
}

func NewWebhook(endpoint string, log *zap.Logger, loc *time.Location) *Webhook {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Webhook{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		log:        log,
		loc:        loc,
	}
}

type payload struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Content   string `json:"content"`
	Repeat    string `json:"repeat,omitempty"`
	TriggerAt string `json:"trigger_at"`
}

func (w *Webhook) Notify(ctx context.Context, r model.Reminder) error {
	body, err := json.Marshal(payload{
		ChannelID: r.ChannelID,
		UserID:    r.OwnerID,
		Content:   r.Message,
		Repeat:    r.Recurrence.Label(),
		TriggerAt: r.TriggerAt.In(w.loc).Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	w.log.Debug("webhook delivered", zap.String("id", r.ID), zap.String("channel", r.ChannelID))
	return nil
}
