// Package cronspec wraps github.com/robfig/cron/v3 with the two things it
// doesn't do out of the box: static validation at registration time,
// and the "dL" (last-weekday-of-month) suffix used by
// the monthly() schedule builder.
package cronspec

import (
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Evaluator computes fire instants for canonical cron expressions and
// drives periodic Triggers from them. It holds no mutable state; every
// method is safe to call from multiple goroutines.
type Evaluator struct{}

// New returns a ready-to-use Evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

// Validate parses cron statically, the same way NextRun and NewTrigger
// do, without computing a fire time. Call it at job registration so a bad
// expression surfaces as an InputError immediately rather than at the
// first fire.
func (e *Evaluator) Validate(cron string) error {
	_, err := e.compile(cron)
	return err
}

// NextRun returns the first instant strictly after "after" at which cron
// fires, interpreted in the named IANA timezone ("" means UTC).
func (e *Evaluator) NextRun(cronExpr string, tz string, after time.Time) (time.Time, error) {
	sched, err := e.compile(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := loadLocation(tz)
	if err != nil {
		return time.Time{}, evalErrorf(cronExpr, "%s", err)
	}
	return sched.Next(after.In(loc)), nil
}

func (e *Evaluator) compile(cronExpr string) (cron.Schedule, error) {
	fields := strings.Fields(cronExpr)
	if len(fields) == 0 {
		return nil, evalErrorf(cronExpr, "empty cron expression")
	}

	last := fields[len(fields)-1]
	if dow, ok := strings.CutSuffix(last, "L"); ok {
		if _, err := strconv.Atoi(dow); err != nil {
			return nil, evalErrorf(cronExpr, "last-weekday field %q must be a plain digit before L", last)
		}
		base := append(append([]string{}, fields[:len(fields)-1]...), dow)
		sched, err := parser.Parse(strings.Join(base, " "))
		if err != nil {
			return nil, evalErrorf(cronExpr, "%s", err)
		}
		return &lastWeekdayOfMonth{base: sched}, nil
	}

	sched, err := parser.Parse(cronExpr)
	if err != nil {
		return nil, evalErrorf(cronExpr, "%s", err)
	}
	return sched, nil
}

func loadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(tz)
}

// lastWeekdayOfMonth advances a plain weekly schedule (e.g. "every
// Friday") until the candidate is the final occurrence of that weekday
// within its month.
type lastWeekdayOfMonth struct {
	base cron.Schedule
}

func (l *lastWeekdayOfMonth) Next(after time.Time) time.Time {
	candidate := l.base.Next(after)
	for sameMonth(candidate, candidate.AddDate(0, 0, 7)) {
		candidate = l.base.Next(candidate)
	}
	return candidate
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
