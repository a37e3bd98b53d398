package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"remindd/internal/model"
)

// timeSuffix captures an optional explicit clock time, e.g. の18時30分.
// It contributes two groups: hour and minute.
const timeSuffix = `(?:の?(\d{1,2})時(?:(\d{1,2})分)?)?`

const (
	defaultHour   = 9
	morningHour   = 8
	defaultMinute = 0
)

type matcher struct {
	name    string
	re      *regexp.Regexp
	resolve func(groups []string, now time.Time) (time.Time, model.RecurrenceSpec, bool)
}

// matchers is ordered and the first hit wins. Ordering is load-bearing:
// 毎月第N must run before 毎月N日, and 明後日 is listed before 明日 inside the
// relative-day alternation, because the shorter patterns are substrings of
// the longer ones.
var matchers = []matcher{
	{
		name: "monthly_nth_weekday",
		re:   regexp.MustCompile(`毎月第([1-5](?:,[1-5])*)([月火水木金土日])曜?日?(の前日)?` + timeSuffix),
		resolve: func(g []string, now time.Time) (time.Time, model.RecurrenceSpec, bool) {
			wd, ok := model.WeekdayFromRune([]rune(g[2])[0])
			if !ok {
				return time.Time{}, model.RecurrenceSpec{}, false
			}
			spec := model.RecurrenceSpec{Kind: model.RecurrenceMonthlyNth}
			for _, n := range strings.Split(g[1], ",") {
				nth, err := strconv.Atoi(n)
				if err != nil {
					return time.Time{}, model.RecurrenceSpec{}, false
				}
				spec.Occurrences = append(spec.Occurrences, model.NthWeekday{Nth: nth, Weekday: wd})
			}
			if g[3] != "" {
				spec.OffsetDays = -1
			}
			h, m, ok := clockFrom(g[4], g[5], defaultHour)
			if !ok {
				return time.Time{}, model.RecurrenceSpec{}, false
			}
			base, ok := firstMonthlyNth(spec, now, h, m)
			return base, spec, ok
		},
	},
	{
		name: "monthly_day",
		re:   regexp.MustCompile(`毎月(\d{1,2})日` + timeSuffix),
		resolve: func(g []string, now time.Time) (time.Time, model.RecurrenceSpec, bool) {
			day, err := strconv.Atoi(g[1])
			if err != nil || day < 1 || day > 31 {
				return time.Time{}, model.RecurrenceSpec{}, false
			}
			h, m, ok := clockFrom(g[2], g[3], defaultHour)
			if !ok {
				return time.Time{}, model.RecurrenceSpec{}, false
			}
			cand := monthDayAt(now, now.Year(), now.Month(), day, h, m)
			if cand.Before(now) {
				next := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
				cand = monthDayAt(now, next.Year(), next.Month(), day, h, m)
			}
			return cand, model.RecurrenceSpec{Kind: model.RecurrenceMonthlyDay, MonthDay: day}, true
		},
	},
	{
		name: "biweekly",
		re:   regexp.MustCompile(`隔週([月火水木金土日])曜?日?` + timeSuffix),
		resolve: weekdayRecurrence(model.RecurrenceBiweekly),
	},
	{
		name: "weekly",
		re:   regexp.MustCompile(`毎週([月火水木金土日])曜?日?` + timeSuffix),
		resolve: weekdayRecurrence(model.RecurrenceWeekly),
	},
	{
		name: "weekdays",
		re:   regexp.MustCompile(`平日(毎朝)?` + timeSuffix),
		resolve: func(g []string, now time.Time) (time.Time, model.RecurrenceSpec, bool) {
			defH := defaultHour
			if g[1] != "" {
				defH = morningHour
			}
			h, m, ok := clockFrom(g[2], g[3], defH)
			if !ok {
				return time.Time{}, model.RecurrenceSpec{}, false
			}
			cand := at(now, h, m)
			for cand.Before(now) || cand.Weekday() == time.Saturday || cand.Weekday() == time.Sunday {
				cand = at(cand.AddDate(0, 0, 1), h, m)
			}
			return cand, model.RecurrenceSpec{Kind: model.RecurrenceWeekdays}, true
		},
	},
	{
		name: "daily",
		re:   regexp.MustCompile(`毎(日|朝)` + timeSuffix),
		resolve: func(g []string, now time.Time) (time.Time, model.RecurrenceSpec, bool) {
			defH := defaultHour
			if g[1] == "朝" {
				defH = morningHour
			}
			h, m, ok := clockFrom(g[2], g[3], defH)
			if !ok {
				return time.Time{}, model.RecurrenceSpec{}, false
			}
			cand := at(now, h, m)
			if cand.Before(now) {
				cand = cand.AddDate(0, 0, 1)
			}
			return cand, model.RecurrenceSpec{Kind: model.RecurrenceDaily}, true
		},
	},
	{
		name: "relative_day",
		re:   regexp.MustCompile(`(明後日|明日|今日)` + timeSuffix),
		resolve: func(g []string, now time.Time) (time.Time, model.RecurrenceSpec, bool) {
			var days int
			switch g[1] {
			case "今日":
				days = 0
			case "明日":
				days = 1
			case "明後日":
				days = 2
			}
			h, m, ok := clockFrom(g[2], g[3], defaultHour)
			if !ok {
				return time.Time{}, model.RecurrenceSpec{}, false
			}
			cand := at(now.AddDate(0, 0, days), h, m)
			if cand.Before(now) {
				cand = cand.AddDate(0, 0, 1)
			}
			return cand, model.RecurrenceSpec{Kind: model.RecurrenceNone}, true
		},
	},
	{
		name: "next_weekday",
		re:   regexp.MustCompile(`(?:次の|来週)([月火水木金土日])曜?日?` + timeSuffix),
		resolve: func(g []string, now time.Time) (time.Time, model.RecurrenceSpec, bool) {
			wd, ok := model.WeekdayFromRune([]rune(g[1])[0])
			if !ok {
				return time.Time{}, model.RecurrenceSpec{}, false
			}
			h, m, ok := clockFrom(g[2], g[3], defaultHour)
			if !ok {
				return time.Time{}, model.RecurrenceSpec{}, false
			}
			// Never today, even when today is the requested weekday.
			delta := (int(wd) - int(now.Weekday()) + 7) % 7
			if delta == 0 {
				delta = 7
			}
			return at(now.AddDate(0, 0, delta), h, m), model.RecurrenceSpec{Kind: model.RecurrenceNone}, true
		},
	},
	{
		name: "relative_offset",
		re:   regexp.MustCompile(`(\d+)(分|時間|日)後`),
		resolve: func(g []string, now time.Time) (time.Time, model.RecurrenceSpec, bool) {
			n, err := strconv.Atoi(g[1])
			if err != nil || n < 1 {
				return time.Time{}, model.RecurrenceSpec{}, false
			}
			none := model.RecurrenceSpec{Kind: model.RecurrenceNone}
			switch g[2] {
			case "分":
				return now.Add(time.Duration(n) * time.Minute), none, true
			case "時間":
				return now.Add(time.Duration(n) * time.Hour), none, true
			default:
				return now.AddDate(0, 0, n), none, true
			}
		},
	},
	{
		name: "explicit_date",
		re:   regexp.MustCompile(`(\d{1,2})月(\d{1,2})日` + timeSuffix),
		resolve: func(g []string, now time.Time) (time.Time, model.RecurrenceSpec, bool) {
			month, err := strconv.Atoi(g[1])
			if err != nil || month < 1 || month > 12 {
				return time.Time{}, model.RecurrenceSpec{}, false
			}
			day, err := strconv.Atoi(g[2])
			if err != nil || day < 1 {
				return time.Time{}, model.RecurrenceSpec{}, false
			}
			h, m, ok := clockFrom(g[3], g[4], defaultHour)
			if !ok {
				return time.Time{}, model.RecurrenceSpec{}, false
			}
			year := now.Year()
			if day > model.DaysIn(year, time.Month(month)) {
				return time.Time{}, model.RecurrenceSpec{}, false
			}
			cand := time.Date(year, time.Month(month), day, h, m, 0, 0, now.Location())
			if cand.Before(now) {
				// Already passed this year; roll to the next.
				year++
				if day > model.DaysIn(year, time.Month(month)) {
					return time.Time{}, model.RecurrenceSpec{}, false
				}
				cand = time.Date(year, time.Month(month), day, h, m, 0, 0, now.Location())
			}
			return cand, model.RecurrenceSpec{Kind: model.RecurrenceNone}, true
		},
	},
}

// Resolve applies the ordered matcher list to canonical text. The matched
// span is consumed; what remains becomes the reminder message. The rolling
// comparison is strict: a candidate equal to now (at minute resolution) is
// still upcoming and must not be pushed to the next period.
func Resolve(text string, now time.Time) (Request, bool) {
	ref := now.Truncate(time.Minute)
	for _, mt := range matchers {
		idx := mt.re.FindStringSubmatchIndex(text)
		if idx == nil {
			continue
		}
		groups := make([]string, 0, mt.re.NumSubexp()+1)
		for i := 0; i <= mt.re.NumSubexp(); i++ {
			if idx[2*i] < 0 {
				groups = append(groups, "")
			} else {
				groups = append(groups, text[idx[2*i]:idx[2*i+1]])
			}
		}
		base := ref
		if mt.name == "relative_offset" {
			// Offsets are anchored to the exact current instant, never rounded.
			base = now
		}
		trigger, spec, ok := mt.resolve(groups, base)
		if !ok {
			continue
		}
		return Request{
			RawText:    text,
			TriggerAt:  trigger,
			Recurrence: spec,
			Message:    remainderMessage(text, idx[0], idx[1]),
		}, true
	}
	return Request{}, false
}

func remainderMessage(text string, start, end int) string {
	rest := strings.TrimSpace(text[:start] + text[end:])
	rest = strings.TrimPrefix(rest, "に")
	rest = strings.TrimPrefix(rest, "、")
	return strings.TrimSpace(rest)
}

func weekdayRecurrence(kind model.RecurrenceKind) func([]string, time.Time) (time.Time, model.RecurrenceSpec, bool) {
	return func(g []string, now time.Time) (time.Time, model.RecurrenceSpec, bool) {
		wd, ok := model.WeekdayFromRune([]rune(g[1])[0])
		if !ok {
			return time.Time{}, model.RecurrenceSpec{}, false
		}
		h, m, ok := clockFrom(g[2], g[3], defaultHour)
		if !ok {
			return time.Time{}, model.RecurrenceSpec{}, false
		}
		delta := (int(wd) - int(now.Weekday()) + 7) % 7
		cand := at(now.AddDate(0, 0, delta), h, m)
		if cand.Before(now) {
			cand = cand.AddDate(0, 0, 7)
		}
		return cand, model.RecurrenceSpec{Kind: kind}, true
	}
}

// firstMonthlyNth finds the earliest nth-weekday occurrence (plus offset)
// that is not in the past, scanning up to a year ahead.
func firstMonthlyNth(spec model.RecurrenceSpec, now time.Time, h, m int) (time.Time, bool) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := 0; i < 13; i++ {
		month := start.AddDate(0, i, 0)
		var best time.Time
		for _, occ := range spec.Occurrences {
			day, ok := model.NthWeekdayOfMonth(month.Year(), month.Month(), occ.Nth, occ.Weekday, now.Location())
			if !ok {
				continue
			}
			cand := at(day.AddDate(0, 0, spec.OffsetDays), h, m)
			if cand.Before(now) {
				continue
			}
			if best.IsZero() || cand.Before(best) {
				best = cand
			}
		}
		if !best.IsZero() {
			return best, true
		}
	}
	return time.Time{}, false
}

func monthDayAt(now time.Time, year int, month time.Month, day, h, m int) time.Time {
	if last := model.DaysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, h, m, 0, 0, now.Location())
}

func at(base time.Time, h, m int) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), h, m, 0, 0, base.Location())
}

func clockFrom(hs, ms string, defH int) (int, int, bool) {
	if hs == "" {
		return defH, defaultMinute, true
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h > 23 {
		return 0, 0, false
	}
	m := 0
	if ms != "" {
		m, err = strconv.Atoi(ms)
		if err != nil || m > 59 {
			return 0, 0, false
		}
	}
	return h, m, true
}
