// Package schedule keeps recurring activities' pending rows in step with
// their cron expressions.
package schedule

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/teranos/tempo/errors"
)

// ErrBadRecurrence marks expressions that cannot drive reconciliation.
var ErrBadRecurrence = errors.New("invalid recurrence expression")

// Standard 5-field syntax plus @hourly-style descriptors. Seconds are not
// accepted.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Recurrence is a parsed cron expression.
type Recurrence struct {
	expr  string
	sched *cron.SpecSchedule
}

// ParseRecurrence parses a 5-field cron expression. A CRON_TZ= or TZ=
// prefix pins the expression to that zone. "@every" intervals are rejected
// because their next occurrence moves with the clock and never settles on
// one row.
func ParseRecurrence(expr string) (*Recurrence, error) {
	s, err := cronParser.Parse(expr)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "parse %q", expr), ErrBadRecurrence)
	}
	spec, ok := s.(*cron.SpecSchedule)
	if !ok {
		return nil, errors.Wrapf(ErrBadRecurrence, "%q is an interval, not a calendar schedule", expr)
	}
	return &Recurrence{expr: expr, sched: spec}, nil
}

// String returns the source expression.
func (r *Recurrence) String() string {
	return r.expr
}

// Next returns the first occurrence strictly after now, evaluated in loc
// unless the expression carries its own zone. The result is in UTC.
func (r *Recurrence) Next(now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	next := r.sched.Next(now.In(loc))
	if next.IsZero() {
		return time.Time{}, errors.Wrapf(ErrBadRecurrence, "%q never fires", r.expr)
	}
	return next.UTC(), nil
}

// NextOccurrence parses expr and returns its next occurrence after now.
func NextOccurrence(expr string, now time.Time, loc *time.Location) (time.Time, error) {
	r, err := ParseRecurrence(expr)
	if err != nil {
		return time.Time{}, err
	}
	return r.Next(now, loc)
}
