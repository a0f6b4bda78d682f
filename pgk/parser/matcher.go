package parser

import (
	"math/bits"
	"time"
)

// DayPredicate reports whether a calendar date satisfies a day-of-month or
// day-of-week token. Only the date part of t is inspected.
type DayPredicate func(t time.Time) bool

// FieldMatcher is the parse result of one cron field.
//
// Minute, hour and month fields carry a value set. Day-of-month and
// day-of-week fields carry predicates so that L, W and # can depend on the
// month being evaluated. Any is set only for a bare "*" or "?".
type FieldMatcher struct {
	Any        bool
	values     uint64
	predicates []DayPredicate
}

func anyMatcher() FieldMatcher {
	return FieldMatcher{Any: true}
}

func (m *FieldMatcher) add(v int) {
	m.values |= 1 << uint(v)
}

func (m *FieldMatcher) addPredicate(p DayPredicate) {
	m.predicates = append(m.predicates, p)
}

// Restricted reports whether the field limits the values it accepts.
func (m FieldMatcher) Restricted() bool {
	return !m.Any
}

// Values returns the concrete values of a value-set field in ascending order.
func (m FieldMatcher) Values() []int {
	out := make([]int, 0, bits.OnesCount64(m.values))
	for v := 0; v < 64; v++ {
		if m.values&(1<<uint(v)) != 0 {
			out = append(out, v)
		}
	}
	return out
}

// MatchesValue checks a minute, hour or month value.
func (m FieldMatcher) MatchesValue(v int) bool {
	if m.Any {
		return true
	}
	if v < 0 || v > 63 {
		return false
	}
	return m.values&(1<<uint(v)) != 0
}

// MatchesDate checks a day-of-month or day-of-week field against a date.
func (m FieldMatcher) MatchesDate(t time.Time) bool {
	if m.Any {
		return true
	}
	for _, p := range m.predicates {
		if p(t) {
			return true
		}
	}
	return false
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func lastDayOfMonth(t time.Time) int {
	return daysIn(t.Year(), t.Month(), t.Location())
}

func dayOfMonthIs(day int) DayPredicate {
	return func(t time.Time) bool {
		return t.Day() == day
	}
}

// lastDayMinus matches "L" (offset 0) and "L-n".
func lastDayMinus(offset int) DayPredicate {
	return func(t time.Time) bool {
		target := lastDayOfMonth(t) - offset
		return target >= 1 && t.Day() == target
	}
}

// nearestWeekday matches "nW". A Saturday resolves to the Friday before,
// except on the 1st where it moves forward to Monday the 3rd. A Sunday
// resolves to the Monday after unless that leaves the month, in which case
// it resolves back to Friday.
func nearestWeekday(day int) DayPredicate {
	return func(t time.Time) bool {
		last := lastDayOfMonth(t)
		if day > last {
			return false
		}
		target := day
		switch time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, t.Location()).Weekday() {
		case time.Saturday:
			if day == 1 {
				target = day + 2
			} else {
				target = day - 1
			}
		case time.Sunday:
			if day+1 > last {
				target = day - 2
			} else {
				target = day + 1
			}
		}
		return t.Day() == target
	}
}

func weekdayIs(weekday int) DayPredicate {
	return func(t time.Time) bool {
		return int(t.Weekday()) == weekday
	}
}

// lastWeekday matches "dL", the last given weekday of the month.
func lastWeekday(weekday int) DayPredicate {
	return func(t time.Time) bool {
		return int(t.Weekday()) == weekday && t.Day()+7 > lastDayOfMonth(t)
	}
}

// nthWeekday matches "d#k". Months with fewer than k such weekdays never match.
func nthWeekday(weekday, nth int) DayPredicate {
	return func(t time.Time) bool {
		return int(t.Weekday()) == weekday && (t.Day()-1)/7+1 == nth
	}
}
