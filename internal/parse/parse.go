package parse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"remindd/internal/model"
)

// ErrUnresolved means neither the pattern resolver nor the fallback oracle
// produced a trigger instant. Surfaced to the user as "please rephrase",
// never fatal.
var ErrUnresolved = errors.New("parse: could not resolve time expression")

// Request is the ephemeral product of parsing: the instant the reminder
// should first fire, how it repeats, and the message left over once the time
// expression is stripped.
type Request struct {
	RawText    string
	TriggerAt  time.Time
	Recurrence model.RecurrenceSpec
	Message    string
}

// Fallback is the oracle consulted only when the rule-based resolver fails.
type Fallback interface {
	Resolve(ctx context.Context, text string, now time.Time) (time.Time, string, error)
}

// Parser is the single registration entrypoint the UI layer calls.
type Parser struct {
	clk      clock.Clock
	loc      *time.Location
	fallback Fallback
	log      *zap.Logger
}

func NewParser(clk clock.Clock, loc *time.Location, fallback Fallback, log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{clk: clk, loc: loc, fallback: fallback, log: log}
}

// ParseReminderInput normalizes the text, runs the ordered pattern matchers,
// and falls back to the oracle when no rule fires. Oracle failures of any
// kind collapse into ErrUnresolved; the underlying cause stays wrapped for
// logging and tuning.
func (p *Parser) ParseReminderInput(ctx context.Context, text string) (Request, error) {
	now := p.clk.Now().In(p.loc)
	canonical := Normalize(strings.TrimSpace(text))
	if canonical == "" {
		return Request{}, ErrUnresolved
	}

	if req, ok := Resolve(canonical, now); ok {
		p.log.Debug("pattern resolved",
			zap.String("input", canonical),
			zap.Time("trigger_at", req.TriggerAt),
			zap.String("recurrence", string(req.Recurrence.Kind)))
		return req, nil
	}

	if p.fallback == nil {
		return Request{}, ErrUnresolved
	}

	triggerAt, message, err := p.fallback.Resolve(ctx, canonical, now)
	if err != nil {
		p.log.Warn("fallback resolution failed", zap.String("input", canonical), zap.Error(err))
		return Request{}, fmt.Errorf("%w: %w", ErrUnresolved, err)
	}
	if message == "" {
		message = canonical
	}
	return Request{
		RawText:    text,
		TriggerAt:  triggerAt,
		Recurrence: model.RecurrenceSpec{Kind: model.RecurrenceNone},
		Message:    message,
	}, nil
}
