package parser

import (
	"time"
)

// Lookahead bounds the search for the next matching minute.
const Lookahead = 365 * 24 * time.Hour

// Matches reports whether the minute containing t satisfies every field.
func (s *Schedule) Matches(t time.Time) bool {
	return s.Month.MatchesValue(int(t.Month())) &&
		s.matchesDay(t) &&
		s.Hour.MatchesValue(t.Hour()) &&
		s.Minute.MatchesValue(t.Minute())
}

// matchesDay applies the day-of-month/day-of-week OR rule: when both are
// restricted either may match, otherwise only the restricted one counts.
func (s *Schedule) matchesDay(t time.Time) bool {
	dom, dow := s.DayOfMonth, s.DayOfWeek
	switch {
	case dom.Restricted() && dow.Restricted():
		return dom.MatchesDate(t) || dow.MatchesDate(t)
	case dom.Restricted():
		return dom.MatchesDate(t)
	case dow.Restricted():
		return dow.MatchesDate(t)
	}
	return true
}

// Next returns the first matching minute strictly after now, evaluated in
// now's location. The search starts at now truncated to the minute plus one
// minute and gives up after Lookahead.
func (s *Schedule) Next(now time.Time) (time.Time, error) {
	loc := now.Location()
	start := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), 0, 0, loc).Add(time.Minute)
	deadline := start.Add(Lookahead)

	t := start
	for t.Before(deadline) {
		var next time.Time
		switch {
		case !s.Month.MatchesValue(int(t.Month())):
			next = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
		case !s.matchesDay(t):
			next = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
		case !s.Hour.MatchesValue(t.Hour()):
			next = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
		case !s.Minute.MatchesValue(t.Minute()):
			next = t.Add(time.Minute)
		default:
			return t, nil
		}
		// Wall clock arithmetic can stand still across a DST fall back.
		if !next.After(t) {
			next = t.Add(time.Minute)
		}
		t = next
	}
	return time.Time{}, ErrNoMatch
}

// NextCronRun parses expr and returns its next run after now.
func NextCronRun(expr string, now time.Time) (time.Time, error) {
	schedule, err := ParseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(now)
}
