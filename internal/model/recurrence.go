package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type RecurrenceKind string

const (
	RecurrenceNone       RecurrenceKind = "none"
	RecurrenceDaily      RecurrenceKind = "daily"
	RecurrenceWeekly     RecurrenceKind = "weekly"
	RecurrenceBiweekly   RecurrenceKind = "biweekly"
	RecurrenceWeekdays   RecurrenceKind = "weekdays"
	RecurrenceMonthlyDay RecurrenceKind = "monthly"
	RecurrenceMonthlyNth RecurrenceKind = "monthly_nth"
)

var (
	ErrNoRecurrence      = errors.New("model: recurrence spec is none")
	ErrInvalidRecurrence = errors.New("model: invalid recurrence spec")
	ErrNoOccurrence      = errors.New("model: no future occurrence exists")
)

// NthWeekday names one occurrence slot inside a month, e.g. the 2nd Friday.
type NthWeekday struct {
	Nth     int
	Weekday time.Weekday
}

// RecurrenceSpec is a tagged variant: Kind selects the rule, and only the
// fields belonging to that kind carry meaning. MonthDay is used by
// RecurrenceMonthlyDay; Occurrences and OffsetDays by RecurrenceMonthlyNth
// (OffsetDays = -1 expresses "the day before the Nth weekday").
type RecurrenceSpec struct {
	Kind        RecurrenceKind
	MonthDay    int
	Occurrences []NthWeekday
	OffsetDays  int
}

func (s RecurrenceSpec) IsNone() bool {
	return s.Kind == RecurrenceNone || s.Kind == ""
}

func (s RecurrenceSpec) Validate() error {
	switch s.Kind {
	case RecurrenceNone, "":
		return nil
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceWeekdays:
		return nil
	case RecurrenceMonthlyDay:
		if s.MonthDay < 1 || s.MonthDay > 31 {
			return fmt.Errorf("%w: month day %d", ErrInvalidRecurrence, s.MonthDay)
		}
		return nil
	case RecurrenceMonthlyNth:
		if len(s.Occurrences) == 0 {
			return fmt.Errorf("%w: no occurrences", ErrInvalidRecurrence)
		}
		for _, occ := range s.Occurrences {
			if occ.Nth < 1 || occ.Nth > 5 {
				return fmt.Errorf("%w: nth %d", ErrInvalidRecurrence, occ.Nth)
			}
		}
		if s.OffsetDays < -7 || s.OffsetDays > 7 {
			return fmt.Errorf("%w: offset %d days", ErrInvalidRecurrence, s.OffsetDays)
		}
		return nil
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidRecurrence, s.Kind)
	}
}

// NextOccurrence computes the occurrence following lastFired, keeping
// lastFired's time of day. The result is always strictly after lastFired.
// A spec tagged none must never reach this method; that is a caller bug and
// reported as ErrNoRecurrence.
func (s RecurrenceSpec) NextOccurrence(lastFired time.Time) (time.Time, error) {
	if err := s.Validate(); err != nil {
		return time.Time{}, err
	}
	switch s.Kind {
	case RecurrenceNone, "":
		return time.Time{}, ErrNoRecurrence
	case RecurrenceDaily:
		return lastFired.AddDate(0, 0, 1), nil
	case RecurrenceWeekly:
		return lastFired.AddDate(0, 0, 7), nil
	case RecurrenceBiweekly:
		return lastFired.AddDate(0, 0, 14), nil
	case RecurrenceWeekdays:
		return nextBusinessDay(lastFired), nil
	case RecurrenceMonthlyDay:
		return s.nextMonthlyDay(lastFired), nil
	case RecurrenceMonthlyNth:
		return s.nextMonthlyNth(lastFired)
	default:
		return time.Time{}, fmt.Errorf("%w: kind %q", ErrInvalidRecurrence, s.Kind)
	}
}

func nextBusinessDay(from time.Time) time.Time {
	next := from.AddDate(0, 0, 1)
	switch next.Weekday() {
	case time.Saturday:
		return next.AddDate(0, 0, 2)
	case time.Sunday:
		return next.AddDate(0, 0, 1)
	default:
		return next
	}
}

// nextMonthlyDay advances to the spec's day in the following month. When the
// target month is shorter than that day, the result clamps to the month's
// last day instead of spilling into the month after.
func (s RecurrenceSpec) nextMonthlyDay(from time.Time) time.Time {
	first := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location()).AddDate(0, 1, 0)
	day := s.MonthDay
	if last := DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
}

// nextMonthlyNth scans forward month by month, starting with lastFired's own
// month so that a later slot in the same month (e.g. the 4th Friday after the
// 2nd fired) is not skipped. Months lacking the requested occurrence (a 5th
// Friday, say) contribute no candidate.
func (s RecurrenceSpec) nextMonthlyNth(lastFired time.Time) (time.Time, error) {
	cursor := time.Date(lastFired.Year(), lastFired.Month(), 1, 0, 0, 0, 0, lastFired.Location())
	for i := 0; i < 13; i++ {
		month := cursor.AddDate(0, i, 0)
		var best time.Time
		for _, occ := range s.Occurrences {
			day, ok := NthWeekdayOfMonth(month.Year(), month.Month(), occ.Nth, occ.Weekday, month.Location())
			if !ok {
				continue
			}
			cand := day.AddDate(0, 0, s.OffsetDays)
			cand = time.Date(cand.Year(), cand.Month(), cand.Day(),
				lastFired.Hour(), lastFired.Minute(), lastFired.Second(), lastFired.Nanosecond(), lastFired.Location())
			if !cand.After(lastFired) {
				continue
			}
			if best.IsZero() || cand.Before(best) {
				best = cand
			}
		}
		if !best.IsZero() {
			return best, nil
		}
	}
	return time.Time{}, ErrNoOccurrence
}

// NthWeekdayOfMonth returns midnight of the nth given weekday in the month,
// or false when the month has no such occurrence.
func NthWeekdayOfMonth(year int, month time.Month, nth int, weekday time.Weekday, loc *time.Location) (time.Time, bool) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	day := 1 + offset + 7*(nth-1)
	if day > DaysIn(year, month) {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc), true
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

var weekdayRunes = map[rune]time.Weekday{
	'月': time.Monday,
	'火': time.Tuesday,
	'水': time.Wednesday,
	'木': time.Thursday,
	'金': time.Friday,
	'土': time.Saturday,
	'日': time.Sunday,
}

// WeekdayFromRune maps a single Japanese weekday character to time.Weekday.
func WeekdayFromRune(r rune) (time.Weekday, bool) {
	wd, ok := weekdayRunes[r]
	return wd, ok
}

// WeekdayRune is the inverse of WeekdayFromRune.
func WeekdayRune(wd time.Weekday) rune {
	for r, w := range weekdayRunes {
		if w == wd {
			return r
		}
	}
	return '?'
}

var nthWeekdayPattern = regexp.MustCompile(`^第([1-5](?:,[1-5])*)([月火水木金土日])(の前日)?$`)

// EncodeRepeat serializes the spec into the (repeat_type, repeat_value)
// column pair. Monthly-by-day stores the day as digits; monthly-by-nth-weekday
// stores the 第N,M曜 form, with の前日 appended for a -1 day offset.
func (s RecurrenceSpec) EncodeRepeat() (string, string) {
	switch s.Kind {
	case RecurrenceNone, "":
		return "", ""
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceWeekdays:
		return string(s.Kind), ""
	case RecurrenceMonthlyDay:
		return "monthly", strconv.Itoa(s.MonthDay)
	case RecurrenceMonthlyNth:
		nths := make([]string, 0, len(s.Occurrences))
		for _, occ := range s.Occurrences {
			nths = append(nths, strconv.Itoa(occ.Nth))
		}
		value := "第" + strings.Join(nths, ",") + string(WeekdayRune(s.Occurrences[0].Weekday))
		if s.OffsetDays == -1 {
			value += "の前日"
		}
		return "monthly", value
	default:
		return "", ""
	}
}

// ParseRepeat reverses EncodeRepeat.
func ParseRepeat(repeatType, repeatValue string) (RecurrenceSpec, error) {
	switch repeatType {
	case "", "none":
		return RecurrenceSpec{Kind: RecurrenceNone}, nil
	case "daily":
		return RecurrenceSpec{Kind: RecurrenceDaily}, nil
	case "weekly":
		return RecurrenceSpec{Kind: RecurrenceWeekly}, nil
	case "biweekly":
		return RecurrenceSpec{Kind: RecurrenceBiweekly}, nil
	case "weekdays":
		return RecurrenceSpec{Kind: RecurrenceWeekdays}, nil
	case "monthly":
		if day, err := strconv.Atoi(repeatValue); err == nil {
			spec := RecurrenceSpec{Kind: RecurrenceMonthlyDay, MonthDay: day}
			return spec, spec.Validate()
		}
		m := nthWeekdayPattern.FindStringSubmatch(repeatValue)
		if m == nil {
			return RecurrenceSpec{}, fmt.Errorf("%w: monthly value %q", ErrInvalidRecurrence, repeatValue)
		}
		wd, ok := WeekdayFromRune([]rune(m[2])[0])
		if !ok {
			return RecurrenceSpec{}, fmt.Errorf("%w: weekday %q", ErrInvalidRecurrence, m[2])
		}
		spec := RecurrenceSpec{Kind: RecurrenceMonthlyNth}
		for _, n := range strings.Split(m[1], ",") {
			nth, err := strconv.Atoi(n)
			if err != nil {
				return RecurrenceSpec{}, fmt.Errorf("%w: nth %q", ErrInvalidRecurrence, n)
			}
			spec.Occurrences = append(spec.Occurrences, NthWeekday{Nth: nth, Weekday: wd})
		}
		if m[3] != "" {
			spec.OffsetDays = -1
		}
		return spec, spec.Validate()
	default:
		return RecurrenceSpec{}, fmt.Errorf("%w: type %q", ErrInvalidRecurrence, repeatType)
	}
}

// Label renders the spec for user-facing notification text.
func (s RecurrenceSpec) Label() string {
	switch s.Kind {
	case RecurrenceDaily:
		return "毎日"
	case RecurrenceWeekly:
		return "毎週"
	case RecurrenceBiweekly:
		return "隔週"
	case RecurrenceWeekdays:
		return "平日"
	case RecurrenceMonthlyDay:
		return fmt.Sprintf("毎月%d日", s.MonthDay)
	case RecurrenceMonthlyNth:
		nths := make([]string, 0, len(s.Occurrences))
		for _, occ := range s.Occurrences {
			nths = append(nths, strconv.Itoa(occ.Nth))
		}
		label := fmt.Sprintf("毎月第%s%s曜日", strings.Join(nths, ","), string(WeekdayRune(s.Occurrences[0].Weekday)))
		if s.OffsetDays == -1 {
			label += "の前日"
		}
		return label
	default:
		return ""
	}
}
