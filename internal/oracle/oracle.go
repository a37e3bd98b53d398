// Package oracle adapts the external text-to-timestamp service used when
// rule-based parsing fails. The service is an opaque black box: it receives
// the canonical text plus the current instant and must answer with a single
// structured payload. Anything else is an invalid response.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrTimeout         = errors.New("oracle: request timed out")
	ErrInvalidResponse = errors.New("oracle: invalid response")
)

// DefaultTimeout bounds the whole oracle round trip. The call is abandoned
// once the budget runs out; the scheduler loop must never wait on it.
const DefaultTimeout = 15 * time.Second

const maxResponseBytes = 1 << 16

type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	log        *zap.Logger
	audit      *zap.Logger
}

// NewClient builds an adapter for the service at endpoint. audit receives an
// append-only record of every successful resolution for later accuracy
// review; pass nil to disable.
func NewClient(endpoint string, timeout time.Duration, log, audit *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	if audit == nil {
		audit = zap.NewNop()
	}
	return &Client{
		endpoint:   endpoint,
		timeout:    timeout,
		httpClient: &http.Client{},
		log:        log,
		audit:      audit,
	}
}

type resolveRequest struct {
	Text string `json:"text"`
	Now  string `json:"now"`
}

type resolveResponse struct {
	TriggerAt string `json:"trigger_at"`
	Message   string `json:"message"`
}

// Resolve sends the canonical text to the oracle and returns the resolved
// trigger instant and remainder message. Timeouts map to ErrTimeout; any
// malformed, missing, or past-dated payload maps to ErrInvalidResponse.
func (c *Client) Resolve(ctx context.Context, text string, now time.Time) (time.Time, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(resolveRequest{Text: text, Now: now.Format(time.RFC3339)})
	if err != nil {
		return time.Time{}, "", fmt.Errorf("oracle: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return time.Time{}, "", fmt.Errorf("oracle: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return time.Time{}, "", ErrTimeout
		}
		return time.Time{}, "", fmt.Errorf("oracle: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, "", fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	dec.DisallowUnknownFields()
	var out resolveResponse
	if err := dec.Decode(&out); err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if out.TriggerAt == "" {
		return time.Time{}, "", fmt.Errorf("%w: missing trigger_at", ErrInvalidResponse)
	}

	triggerAt, err := parseTimestamp(out.TriggerAt, now.Location())
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: trigger_at %q", ErrInvalidResponse, out.TriggerAt)
	}
	if triggerAt.Before(now) {
		return time.Time{}, "", fmt.Errorf("%w: trigger_at %s is in the past", ErrInvalidResponse, triggerAt.Format(time.RFC3339))
	}

	c.audit.Info("fallback resolution",
		zap.String("input", text),
		zap.Time("trigger_at", triggerAt))

	return triggerAt, strings.TrimSpace(out.Message), nil
}

// parseTimestamp accepts ISO-8601 with or without a zone designator; bare
// timestamps are interpreted in the system's fixed timezone.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", s, loc)
}
