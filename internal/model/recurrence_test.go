package model

import (
	"errors"
	"testing"
	"time"
)

func TestNextOccurrenceDaily(t *testing.T) {
	spec := RecurrenceSpec{Kind: RecurrenceDaily}
	last := time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)
	next, err := spec.NextOccurrence(last)
	if err != nil {
		t.Fatalf("next daily failed: %v", err)
	}
	if got := next.Format("2006-01-02 15:04"); got != "2025-06-11 18:00" {
		t.Fatalf("unexpected next daily: %s", got)
	}
}

func TestNextOccurrenceWeeklyAndBiweekly(t *testing.T) {
	last := time.Date(2025, 6, 13, 9, 30, 0, 0, time.UTC) // Friday
	weekly, err := RecurrenceSpec{Kind: RecurrenceWeekly}.NextOccurrence(last)
	if err != nil {
		t.Fatalf("next weekly failed: %v", err)
	}
	if got := weekly.Format("2006-01-02 15:04"); got != "2025-06-20 09:30" {
		t.Fatalf("unexpected next weekly: %s", got)
	}
	biweekly, err := RecurrenceSpec{Kind: RecurrenceBiweekly}.NextOccurrence(last)
	if err != nil {
		t.Fatalf("next biweekly failed: %v", err)
	}
	if got := biweekly.Format("2006-01-02 15:04"); got != "2025-06-27 09:30" {
		t.Fatalf("unexpected next biweekly: %s", got)
	}
}

func TestNextOccurrenceWeekdaysSkipsWeekend(t *testing.T) {
	spec := RecurrenceSpec{Kind: RecurrenceWeekdays}
	cases := []struct {
		name string
		last time.Time
		want string
	}{
		{"thursday to friday", time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC), "2025-06-13"},
		{"friday to monday", time.Date(2025, 6, 13, 8, 0, 0, 0, time.UTC), "2025-06-16"},
		{"saturday to monday", time.Date(2025, 6, 14, 8, 0, 0, 0, time.UTC), "2025-06-16"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := spec.NextOccurrence(tc.last)
			if err != nil {
				t.Fatalf("next weekdays failed: %v", err)
			}
			if got := next.Format("2006-01-02"); got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
			if next.Hour() != 8 {
				t.Fatalf("time of day not preserved: %s", next)
			}
		})
	}
}

func TestNextOccurrenceMonthlyClampsToShortMonth(t *testing.T) {
	spec := RecurrenceSpec{Kind: RecurrenceMonthlyDay, MonthDay: 31}
	last := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)

	next, err := spec.NextOccurrence(last)
	if err != nil {
		t.Fatalf("next monthly failed: %v", err)
	}
	if got := next.Format("2006-01-02 15:04"); got != "2025-02-28 09:00" {
		t.Fatalf("expected clamp to Feb 28, got %s", got)
	}

	// The clamp must not stick: after February the spec's day comes back.
	after, err := spec.NextOccurrence(next)
	if err != nil {
		t.Fatalf("next monthly after clamp failed: %v", err)
	}
	if got := after.Format("2006-01-02 15:04"); got != "2025-03-31 09:00" {
		t.Fatalf("expected return to day 31 in March, got %s", got)
	}
}

func TestNextOccurrenceMonthlyNthPicksLaterSlotSameMonth(t *testing.T) {
	spec := RecurrenceSpec{
		Kind: RecurrenceMonthlyNth,
		Occurrences: []NthWeekday{
			{Nth: 2, Weekday: time.Friday},
			{Nth: 4, Weekday: time.Friday},
		},
	}
	last := time.Date(2025, 6, 13, 9, 0, 0, 0, time.UTC) // 2nd Friday of June

	next, err := spec.NextOccurrence(last)
	if err != nil {
		t.Fatalf("next monthly nth failed: %v", err)
	}
	if got := next.Format("2006-01-02 15:04"); got != "2025-06-27 09:00" {
		t.Fatalf("expected 4th Friday of the same month, got %s", got)
	}
}

func TestNextOccurrenceMonthlyNthDayBefore(t *testing.T) {
	spec := RecurrenceSpec{
		Kind:        RecurrenceMonthlyNth,
		Occurrences: []NthWeekday{{Nth: 2, Weekday: time.Tuesday}},
		OffsetDays:  -1,
	}
	last := time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC) // day before 2nd Tuesday of June

	next, err := spec.NextOccurrence(last)
	if err != nil {
		t.Fatalf("next monthly nth failed: %v", err)
	}
	// 2nd Tuesday of July is the 8th; the day before is the 7th.
	if got := next.Format("2006-01-02 15:04"); got != "2025-07-07 09:00" {
		t.Fatalf("unexpected next occurrence: %s", got)
	}
}

func TestNextOccurrenceMonthlyNthSkipsMonthsWithoutSlot(t *testing.T) {
	spec := RecurrenceSpec{
		Kind:        RecurrenceMonthlyNth,
		Occurrences: []NthWeekday{{Nth: 5, Weekday: time.Friday}},
	}
	last := time.Date(2025, 5, 30, 9, 0, 0, 0, time.UTC) // 5th Friday of May

	next, err := spec.NextOccurrence(last)
	if err != nil {
		t.Fatalf("next monthly nth failed: %v", err)
	}
	// June and July 2025 have only four Fridays; August is the next hit.
	if got := next.Format("2006-01-02 15:04"); got != "2025-08-29 09:00" {
		t.Fatalf("unexpected next occurrence: %s", got)
	}
}

func TestNextOccurrenceStrictForwardProgress(t *testing.T) {
	specs := []RecurrenceSpec{
		{Kind: RecurrenceDaily},
		{Kind: RecurrenceWeekly},
		{Kind: RecurrenceBiweekly},
		{Kind: RecurrenceWeekdays},
		{Kind: RecurrenceMonthlyDay, MonthDay: 15},
		{Kind: RecurrenceMonthlyDay, MonthDay: 31},
		{Kind: RecurrenceMonthlyNth, Occurrences: []NthWeekday{{Nth: 1, Weekday: time.Monday}}},
		{Kind: RecurrenceMonthlyNth, Occurrences: []NthWeekday{{Nth: 5, Weekday: time.Sunday}}, OffsetDays: -1},
	}
	starts := []time.Time{
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC),
	}
	for _, spec := range specs {
		for _, start := range starts {
			cursor := start
			for i := 0; i < 12; i++ {
				next, err := spec.NextOccurrence(cursor)
				if err != nil {
					t.Fatalf("spec %s from %s: %v", spec.Kind, cursor, err)
				}
				if !next.After(cursor) {
					t.Fatalf("spec %s: %s is not after %s", spec.Kind, next, cursor)
				}
				cursor = next
			}
		}
	}
}

func TestNextOccurrenceRejectsNone(t *testing.T) {
	_, err := RecurrenceSpec{Kind: RecurrenceNone}.NextOccurrence(time.Now())
	if !errors.Is(err, ErrNoRecurrence) {
		t.Fatalf("expected ErrNoRecurrence, got %v", err)
	}
}

func TestRepeatEncodingRoundTrip(t *testing.T) {
	cases := []RecurrenceSpec{
		{Kind: RecurrenceDaily},
		{Kind: RecurrenceWeekly},
		{Kind: RecurrenceBiweekly},
		{Kind: RecurrenceWeekdays},
		{Kind: RecurrenceMonthlyDay, MonthDay: 15},
		{Kind: RecurrenceMonthlyNth, Occurrences: []NthWeekday{
			{Nth: 2, Weekday: time.Friday},
			{Nth: 4, Weekday: time.Friday},
		}},
		{Kind: RecurrenceMonthlyNth, Occurrences: []NthWeekday{{Nth: 2, Weekday: time.Tuesday}}, OffsetDays: -1},
	}
	for _, spec := range cases {
		repeatType, repeatValue := spec.EncodeRepeat()
		decoded, err := ParseRepeat(repeatType, repeatValue)
		if err != nil {
			t.Fatalf("decode %s/%s: %v", repeatType, repeatValue, err)
		}
		if decoded.Kind != spec.Kind || decoded.MonthDay != spec.MonthDay || decoded.OffsetDays != spec.OffsetDays {
			t.Fatalf("round trip mismatch: %+v vs %+v", decoded, spec)
		}
		if len(decoded.Occurrences) != len(spec.Occurrences) {
			t.Fatalf("occurrences mismatch: %+v vs %+v", decoded, spec)
		}
	}
}

func TestParseRepeatNthWeekdayValue(t *testing.T) {
	spec, err := ParseRepeat("monthly", "第2,4金の前日")
	if err != nil {
		t.Fatalf("parse repeat failed: %v", err)
	}
	if spec.Kind != RecurrenceMonthlyNth || spec.OffsetDays != -1 {
		t.Fatalf("unexpected spec: %+v", spec)
	}
	if len(spec.Occurrences) != 2 || spec.Occurrences[0].Nth != 2 || spec.Occurrences[1].Nth != 4 {
		t.Fatalf("unexpected occurrences: %+v", spec.Occurrences)
	}
	if spec.Occurrences[0].Weekday != time.Friday {
		t.Fatalf("unexpected weekday: %v", spec.Occurrences[0].Weekday)
	}
}

func TestParseRepeatRejectsGarbage(t *testing.T) {
	if _, err := ParseRepeat("monthly", "whenever"); !errors.Is(err, ErrInvalidRecurrence) {
		t.Fatalf("expected ErrInvalidRecurrence, got %v", err)
	}
	if _, err := ParseRepeat("hourly", ""); !errors.Is(err, ErrInvalidRecurrence) {
		t.Fatalf("expected ErrInvalidRecurrence, got %v", err)
	}
}

func TestRecurrenceLabel(t *testing.T) {
	cases := []struct {
		spec RecurrenceSpec
		want string
	}{
		{RecurrenceSpec{Kind: RecurrenceDaily}, "毎日"},
		{RecurrenceSpec{Kind: RecurrenceWeekdays}, "平日"},
		{RecurrenceSpec{Kind: RecurrenceMonthlyDay, MonthDay: 15}, "毎月15日"},
		{RecurrenceSpec{
			Kind:        RecurrenceMonthlyNth,
			Occurrences: []NthWeekday{{Nth: 2, Weekday: time.Tuesday}},
			OffsetDays:  -1,
		}, "毎月第2火曜日の前日"},
	}
	for _, tc := range cases {
		if got := tc.spec.Label(); got != tc.want {
			t.Fatalf("label for %s: got %q want %q", tc.spec.Kind, got, tc.want)
		}
	}
}
