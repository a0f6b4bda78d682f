// Package parser parses 5-field cron expressions and calculates next run times.
//
// Supported syntax per field: "*" and "?", single values, inclusive ranges
// "a-b", steps "base/step", comma lists and three letter month and weekday
// aliases. Day-of-month also accepts "L", "L-n" and "nW"; day-of-week accepts
// "dL" and "d#k".
package parser

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidExpression is wrapped by every parse error.
	ErrInvalidExpression = errors.New("invalid cron expression")
	// ErrNoMatch is returned when no minute within the lookahead matches.
	ErrNoMatch = errors.New("no matching time within lookahead")
)

// Schedule is a parsed cron expression.
type Schedule struct {
	Expression string
	Minute     FieldMatcher
	Hour       FieldMatcher
	DayOfMonth FieldMatcher
	Month      FieldMatcher
	DayOfWeek  FieldMatcher
}

type fieldKind int

const (
	minuteField fieldKind = iota
	hourField
	dayOfMonthField
	monthField
	dayOfWeekField
)

type fieldSpec struct {
	name    string
	min     int
	max     int
	aliases map[string]int
	build   func(spec fieldSpec, items [][]token) (FieldMatcher, error)
}

var monthAliases = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var weekdayAliases = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// fields is the matcher construction table, indexed by fieldKind.
var fields = [...]fieldSpec{
	minuteField:     {name: "minute", min: 0, max: 59, build: buildValueField},
	hourField:       {name: "hour", min: 0, max: 23, build: buildValueField},
	dayOfMonthField: {name: "day-of-month", min: 1, max: 31, build: buildDayOfMonthField},
	monthField:      {name: "month", min: 1, max: 12, aliases: monthAliases, build: buildValueField},
	dayOfWeekField:  {name: "day-of-week", min: 0, max: 7, aliases: weekdayAliases, build: buildDayOfWeekField},
}

// ParseCron parses a cron string like "*/5 0 1-10 * mon#2" into a Schedule.
func ParseCron(expr string) (*Schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != len(fields) {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidExpression, len(fields), len(parts))
	}

	matchers := make([]FieldMatcher, len(fields))
	for kind, spec := range fields {
		m, err := parseField(spec, parts[kind])
		if err != nil {
			return nil, fmt.Errorf("%w: %s field %q: %v", ErrInvalidExpression, spec.name, parts[kind], err)
		}
		matchers[kind] = m
	}

	return &Schedule{
		Expression: expr,
		Minute:     matchers[minuteField],
		Hour:       matchers[hourField],
		DayOfMonth: matchers[dayOfMonthField],
		Month:      matchers[monthField],
		DayOfWeek:  matchers[dayOfWeekField],
	}, nil
}

// IsValid reports whether expr parses.
func IsValid(expr string) bool {
	_, err := ParseCron(expr)
	return err == nil
}

func parseField(spec fieldSpec, raw string) (FieldMatcher, error) {
	tokens, err := tokenize(raw)
	if err != nil {
		return FieldMatcher{}, err
	}
	items, err := splitItems(tokens)
	if err != nil {
		return FieldMatcher{}, err
	}
	for _, item := range items {
		if shapeIs(item, tokenAny) {
			return anyMatcher(), nil
		}
	}
	return spec.build(spec, items)
}

// rangeItem is the expansion of "*", "n", "a-b" and their "/step" forms.
type rangeItem struct {
	start, end, step int
}

func (r rangeItem) each(fn func(v int)) {
	for v := r.start; v <= r.end; v += r.step {
		fn(v)
	}
}

// value resolves a number or an alias token within the field bounds.
func (spec fieldSpec) value(t token) (int, error) {
	var v int
	switch t.kind {
	case tokenNumber:
		v = t.value
	case tokenName:
		alias, ok := spec.aliases[strings.ToLower(t.text)]
		if !ok {
			return 0, fmt.Errorf("unknown alias %q", t.text)
		}
		v = alias
	default:
		return 0, fmt.Errorf("expected a value, got %s", t.kind)
	}
	if v < spec.min || v > spec.max {
		return 0, fmt.Errorf("value %d out of range %d-%d", v, spec.min, spec.max)
	}
	return v, nil
}

func isValueToken(t token) bool {
	return t.kind == tokenNumber || t.kind == tokenName
}

// wildcardMax is the upper bound used for "*" based steps. Day-of-week stops
// at Saturday so Sunday is not produced twice.
func (spec fieldSpec) wildcardMax() int {
	if spec.max == 7 {
		return 6
	}
	return spec.max
}

// parseRange parses the plain item shapes shared by every field.
func parseRange(spec fieldSpec, item []token) (rangeItem, error) {
	body, step, err := splitStep(item)
	if err != nil {
		return rangeItem{}, err
	}

	switch {
	case shapeIs(body, tokenAny):
		if step == 0 {
			return rangeItem{}, fmt.Errorf("wildcard is only valid alone or with a step")
		}
		return rangeItem{start: spec.min, end: spec.wildcardMax(), step: step}, nil

	case len(body) == 1 && isValueToken(body[0]):
		v, err := spec.value(body[0])
		if err != nil {
			return rangeItem{}, err
		}
		if step == 0 {
			return rangeItem{start: v, end: v, step: 1}, nil
		}
		return rangeItem{start: v, end: spec.max, step: step}, nil

	case len(body) == 3 && isValueToken(body[0]) && body[1].is(tokenDash) && isValueToken(body[2]):
		start, err := spec.value(body[0])
		if err != nil {
			return rangeItem{}, err
		}
		end, err := spec.value(body[2])
		if err != nil {
			return rangeItem{}, err
		}
		if start > end {
			return rangeItem{}, fmt.Errorf("range %d-%d is descending", start, end)
		}
		if step == 0 {
			step = 1
		}
		return rangeItem{start: start, end: end, step: step}, nil
	}

	return rangeItem{}, fmt.Errorf("malformed item %q", itemText(item))
}

// splitStep separates a trailing "/step". A zero step means none was given.
func splitStep(item []token) ([]token, int, error) {
	for i, t := range item {
		if !t.is(tokenSlash) {
			continue
		}
		rest := item[i+1:]
		if i == 0 || len(rest) != 1 || !rest[0].is(tokenNumber) {
			return nil, 0, fmt.Errorf("malformed step in %q", itemText(item))
		}
		if rest[0].value <= 0 {
			return nil, 0, fmt.Errorf("step must be a positive integer")
		}
		return item[:i], rest[0].value, nil
	}
	return item, 0, nil
}

func itemText(item []token) string {
	var b strings.Builder
	for _, t := range item {
		b.WriteString(t.text)
	}
	return b.String()
}

func buildValueField(spec fieldSpec, items [][]token) (FieldMatcher, error) {
	var m FieldMatcher
	for _, item := range items {
		r, err := parseRange(spec, item)
		if err != nil {
			return FieldMatcher{}, err
		}
		r.each(m.add)
	}
	return m, nil
}

func buildDayOfMonthField(spec fieldSpec, items [][]token) (FieldMatcher, error) {
	var m FieldMatcher
	for _, item := range items {
		switch {
		case len(item) == 1 && item[0].isName("L"):
			m.addPredicate(lastDayMinus(0))

		case shapeIs(item, tokenName, tokenDash, tokenNumber) && item[0].isName("L"):
			m.addPredicate(lastDayMinus(item[2].value))

		case shapeIs(item, tokenNumber, tokenName) && item[1].isName("W"):
			day, err := spec.value(item[0])
			if err != nil {
				return FieldMatcher{}, err
			}
			m.addPredicate(nearestWeekday(day))

		default:
			r, err := parseRange(spec, item)
			if err != nil {
				return FieldMatcher{}, err
			}
			r.each(func(day int) {
				m.addPredicate(dayOfMonthIs(day))
			})
		}
	}
	return m, nil
}

func buildDayOfWeekField(spec fieldSpec, items [][]token) (FieldMatcher, error) {
	var m FieldMatcher
	for _, item := range items {
		item = splitAliasSuffix(spec, item)
		switch {
		case len(item) == 2 && isValueToken(item[0]) && item[1].isName("L"):
			d, err := spec.value(item[0])
			if err != nil {
				return FieldMatcher{}, err
			}
			m.addPredicate(lastWeekday(d % 7))

		case len(item) == 3 && isValueToken(item[0]) && item[1].is(tokenHash) && item[2].is(tokenNumber):
			d, err := spec.value(item[0])
			if err != nil {
				return FieldMatcher{}, err
			}
			nth := item[2].value
			if nth < 1 || nth > 5 {
				return FieldMatcher{}, fmt.Errorf("occurrence %d out of range 1-5", nth)
			}
			m.addPredicate(nthWeekday(d%7, nth))

		default:
			r, err := parseRange(spec, item)
			if err != nil {
				return FieldMatcher{}, err
			}
			r.each(func(d int) {
				m.add(d % 7)
			})
		}
	}
	for _, d := range m.Values() {
		m.addPredicate(weekdayIs(d))
	}
	return m, nil
}

// splitAliasSuffix turns a single name such as "friL" into "fri" "L", since
// the lexer reads letters greedily.
func splitAliasSuffix(spec fieldSpec, item []token) []token {
	if len(item) != 1 || item[0].kind != tokenName {
		return item
	}
	text := item[0].text
	if len(text) != 4 || !strings.EqualFold(text[3:], "L") {
		return item
	}
	if _, ok := spec.aliases[strings.ToLower(text[:3])]; !ok {
		return item
	}
	return []token{
		{kind: tokenName, text: text[:3]},
		{kind: tokenName, text: text[3:]},
	}
}
