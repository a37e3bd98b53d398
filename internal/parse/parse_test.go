package parse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"remindd/internal/model"
)

type stubFallback struct {
	calls   int
	trigger time.Time
	message string
	err     error
}

func (s *stubFallback) Resolve(_ context.Context, _ string, _ time.Time) (time.Time, string, error) {
	s.calls++
	return s.trigger, s.message, s.err
}

func newTestParser(fallback Fallback) *Parser {
	clk := clock.NewFake()
	clk.Set(tueMorning)
	return NewParser(clk, jst, fallback, nil)
}

func TestParseReminderInputPatternHitSkipsFallback(t *testing.T) {
	fb := &stubFallback{}
	p := newTestParser(fb)

	req, err := p.ParseReminderInput(context.Background(), "明日18時に歯医者")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if fb.calls != 0 {
		t.Fatalf("fallback consulted on a pattern hit")
	}
	want := time.Date(2025, 6, 11, 18, 0, 0, 0, jst)
	if !req.TriggerAt.Equal(want) {
		t.Fatalf("trigger: got %s want %s", req.TriggerAt, want)
	}
	if req.Message != "歯医者" {
		t.Fatalf("message: got %q", req.Message)
	}
}

func TestParseReminderInputNormalizesBeforeMatching(t *testing.T) {
	p := newTestParser(nil)

	req, err := p.ParseReminderInput(context.Background(), "明日１８：３０に会議")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	want := time.Date(2025, 6, 11, 18, 30, 0, 0, jst)
	if !req.TriggerAt.Equal(want) {
		t.Fatalf("trigger: got %s want %s", req.TriggerAt, want)
	}
	if req.Message != "会議" {
		t.Fatalf("message: got %q", req.Message)
	}
}

func TestParseReminderInputFallbackResolves(t *testing.T) {
	want := time.Date(2025, 6, 12, 15, 0, 0, 0, jst)
	fb := &stubFallback{trigger: want, message: "打ち合わせ"}
	p := newTestParser(fb)

	req, err := p.ParseReminderInput(context.Background(), "あさってのお昼すぎに打ち合わせ")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if fb.calls != 1 {
		t.Fatalf("fallback called %d times, want 1", fb.calls)
	}
	if !req.TriggerAt.Equal(want) {
		t.Fatalf("trigger: got %s want %s", req.TriggerAt, want)
	}
	if req.Recurrence.Kind != model.RecurrenceNone {
		t.Fatalf("fallback results must be one-shot, got %s", req.Recurrence.Kind)
	}
	if req.Message != "打ち合わせ" {
		t.Fatalf("message: got %q", req.Message)
	}
}

func TestParseReminderInputFallbackErrorWrapsUnresolved(t *testing.T) {
	cause := errors.New("oracle unavailable")
	fb := &stubFallback{err: cause}
	p := newTestParser(fb)

	_, err := p.ParseReminderInput(context.Background(), "なんとなく後で")
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause not preserved: %v", err)
	}
}

func TestParseReminderInputNoFallback(t *testing.T) {
	p := newTestParser(nil)

	if _, err := p.ParseReminderInput(context.Background(), "なんとなく後で"); !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
	if _, err := p.ParseReminderInput(context.Background(), "   "); !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved for blank input, got %v", err)
	}
}
