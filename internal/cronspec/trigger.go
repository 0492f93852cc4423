package cronspec

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger is a self-rescheduling driver for one cron expression. It wraps
// a private *cron.Cron holding exactly one entry, which gives the
// catch-up-at-most-once behavior spec'd for periodic fires for free:
// robfig/cron always recomputes the next fire from "now" after running
// the due entry, so a goroutine that wakes up late coalesces any number
// of missed instants into a single fire rather than queuing them.
type Trigger struct {
	mu       sync.Mutex
	cronExpr string
	loc      *time.Location
	sched    cron.Schedule
	fire     func(time.Time)
	compileErr error

	c       *cron.Cron
	running bool
}

// NewTrigger builds a paused Trigger for cronExpr/tz. The expression is
// expected to have already passed Evaluator.Validate; a compile failure
// here makes Start a no-op rather than panicking, since registration
// should have caught it first.
func NewTrigger(cronExpr, tz string, fire func(time.Time)) *Trigger {
	loc, locErr := loadLocation(tz)
	sched, err := (&Evaluator{}).compile(cronExpr)
	if err == nil {
		err = locErr
	}
	return &Trigger{
		cronExpr:   cronExpr,
		loc:        loc,
		sched:      sched,
		fire:       fire,
		compileErr: err,
	}
}

// Err returns the compile error captured at construction, if any.
func (t *Trigger) Err() error {
	return t.compileErr
}

// Start arms the trigger. Calling Start on an already-running trigger is
// a no-op.
func (t *Trigger) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running || t.compileErr != nil {
		return
	}
	c := cron.New(cron.WithLocation(t.loc))
	c.Schedule(t.sched, cron.FuncJob(func() {
		t.fire(time.Now())
	}))
	c.Start()
	t.c = c
	t.running = true
}

// Stop pauses the trigger. It does not interrupt work already dispatched
// from a prior fire; that is the caller's concern. Calling Stop on an
// already-stopped trigger is a no-op.
func (t *Trigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	<-t.c.Stop().Done()
	t.c = nil
	t.running = false
}

// NextRun reports the next fire instant after "after" without arming
// anything.
func (t *Trigger) NextRun(after time.Time) (time.Time, error) {
	if t.compileErr != nil {
		return time.Time{}, t.compileErr
	}
	return t.sched.Next(after.In(t.loc)), nil
}
