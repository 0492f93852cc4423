package schedule

import "fmt"

// InputError reports builder misuse: an invalid interval, an impossible
// daily/weekly/monthly combination, or an unparsable cron expression. It
// is always raised synchronously at the call site, never surfaced through
// the event bus or an ExecutionResult. WithTimezone does not check the
// zone name; an unknown zone is reported by worker.Add when it builds the
// job's trigger.
type InputError struct {
	// Literal is the offending user-supplied value, included verbatim so
	// callers can echo it back without re-deriving context.
	Literal string
	Reason  string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Literal, e.Reason)
}

func inputErrorf(literal, format string, args ...any) error {
	return &InputError{Literal: literal, Reason: fmt.Sprintf(format, args...)}
}
