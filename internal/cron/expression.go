// Package cron evaluates classic 5-field cron expressions.
//
// Parsing is delegated to robfig/cron after a strict syntax pass that
// restricts input to the POSIX subset: numbers, "*", comma lists, "a-b"
// ranges and "/n" steps. Descriptors (@hourly), month/day names, "?" and
// seconds fields are rejected.
package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	robfig "github.com/robfig/cron/v3"
)

// starBit mirrors robfig's marker for an unrestricted ("*") field.
const starBit = 1 << 63

// FieldCount is the number of fields in an expression.
const FieldCount = 5

type bounds struct {
	name     string
	min, max int
}

var fieldBounds = [FieldCount]bounds{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

var parser = robfig.NewParser(robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow)

// Expression is a parsed, validated cron expression. It is immutable and
// safe for concurrent use.
type Expression struct {
	source   string
	schedule *robfig.SpecSchedule
}

// Parse validates expr and returns the parsed expression.
func Parse(expr string) (*Expression, error) {
	fields := strings.Fields(expr)
	if len(fields) != FieldCount {
		return nil, &InvalidExpressionError{
			Expression: expr,
			Field:      -1,
			Reason:     fmt.Sprintf("expected %d fields, got %d", FieldCount, len(fields)),
		}
	}

	for i, field := range fields {
		if err := validateField(field, fieldBounds[i]); err != nil {
			return nil, &InvalidExpressionError{
				Expression: expr,
				Field:      i,
				Token:      field,
				Reason:     err.Error(),
			}
		}
	}

	normalized := strings.Join(fields, " ")
	sched, err := parser.Parse(normalized)
	if err != nil {
		return nil, &InvalidExpressionError{Expression: expr, Field: -1, Reason: err.Error()}
	}
	spec, ok := sched.(*robfig.SpecSchedule)
	if !ok {
		return nil, &InvalidExpressionError{Expression: expr, Field: -1, Reason: "unsupported schedule type"}
	}

	return &Expression{source: normalized, schedule: spec}, nil
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(expr string) *Expression {
	e, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return e
}

// Matches reports whether at satisfies expr.
func Matches(expr string, at time.Time) (bool, error) {
	e, err := Parse(expr)
	if err != nil {
		return false, err
	}
	return e.Matches(at), nil
}

// Validate returns an error if expr is not a valid expression.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

// String returns the normalized expression.
func (e *Expression) String() string {
	return e.source
}

// Matches reports whether the minute containing at satisfies the expression.
// Seconds are ignored and at is evaluated in its own location.
func (e *Expression) Matches(at time.Time) bool {
	s := e.schedule
	if !bitSet(s.Minute, at.Minute()) || !bitSet(s.Hour, at.Hour()) || !bitSet(s.Month, int(at.Month())) {
		return false
	}

	domMatch := bitSet(s.Dom, at.Day())
	dowMatch := bitSet(s.Dow, int(at.Weekday()))
	// POSIX: day-of-month and day-of-week are ORed only when both are restricted.
	if s.Dom&starBit > 0 || s.Dow&starBit > 0 {
		return domMatch && dowMatch
	}
	return domMatch || dowMatch
}

// Next returns the first matching minute strictly after t.
func (e *Expression) Next(t time.Time) time.Time {
	return e.schedule.Next(t)
}

func bitSet(bits uint64, v int) bool {
	return bits&(1<<uint(v)) != 0
}

func validateField(field string, b bounds) error {
	for _, part := range strings.Split(field, ",") {
		if part == "" {
			return fmt.Errorf("empty list element in %s field", b.name)
		}
		if err := validatePart(part, b); err != nil {
			return err
		}
	}
	return nil
}

func validatePart(part string, b bounds) error {
	rangePart, stepPart, hasStep := strings.Cut(part, "/")
	if hasStep {
		step, err := parseNumber(stepPart)
		if err != nil {
			return fmt.Errorf("invalid step %q in %s field", stepPart, b.name)
		}
		if step < 1 || step > b.max-b.min+1 {
			return fmt.Errorf("step %d out of range for %s field", step, b.name)
		}
	}

	if rangePart == "*" {
		return nil
	}

	lowStr, highStr, isRange := strings.Cut(rangePart, "-")
	if !isRange && hasStep {
		return fmt.Errorf("step requires '*' or a range in %s field, got %q", b.name, part)
	}

	low, err := parseNumber(lowStr)
	if err != nil {
		return fmt.Errorf("invalid value %q in %s field", lowStr, b.name)
	}
	if low < b.min || low > b.max {
		return fmt.Errorf("value %d out of range [%d-%d] for %s field", low, b.min, b.max, b.name)
	}
	if !isRange {
		return nil
	}

	high, err := parseNumber(highStr)
	if err != nil {
		return fmt.Errorf("invalid value %q in %s field", highStr, b.name)
	}
	if high < b.min || high > b.max {
		return fmt.Errorf("value %d out of range [%d-%d] for %s field", high, b.min, b.max, b.name)
	}
	if low > high {
		return fmt.Errorf("range %d-%d is inverted in %s field", low, high, b.name)
	}
	return nil
}

func parseNumber(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a number: %q", s)
		}
	}
	return strconv.Atoi(s)
}
