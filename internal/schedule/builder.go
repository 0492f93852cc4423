package schedule

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"cronrunner/internal/cronspec"
	"cronrunner/internal/durationx"
)

var evaluator = cronspec.New()

// finalize checks that d.Cron parses under the Evaluator before handing
// a descriptor back to the caller, satisfying the data model invariant
// that a compiled schedule's cron string always parses.
func finalize(d Descriptor) (Descriptor, error) {
	if err := evaluator.Validate(d.Cron); err != nil {
		return Descriptor{}, &InputError{Literal: d.Cron, Reason: err.Error()}
	}
	return d, nil
}

// Every lowers an interval token ("30s", "5m", "2h", "1d", "1w", ...) into
// a canonical cron expression, recursing to coarser units the same way the
// source DSL does (sub-minute seconds become a 6-field expression; 60 or
// more of a unit is rounded up to a whole number of the next unit, e.g.
// "90s" becomes every 2 minutes) until a unit that maps cleanly onto cron
// fields is reached.
func Every(interval string) (Descriptor, error) {
	iv, err := durationx.ParseInterval(interval)
	if err != nil {
		return Descriptor{}, &InputError{Literal: interval, Reason: err.Error()}
	}

	cron, finalN, finalUnit := lowerInterval(iv.N, iv.Unit)

	return finalize(Descriptor{
		Type:          KindInterval,
		Cron:          canonicalizeCron(cron),
		HumanReadable: humanInterval(finalN, finalUnit),
		OriginalParams: map[string]string{
			"interval": interval,
		},
	})
}

func lowerInterval(n int, unit durationx.Unit) (cron string, finalN int, finalUnit durationx.Unit) {
	switch unit {
	case durationx.Seconds:
		if n < 60 {
			return fmt.Sprintf("*/%d * * * * *", n), n, unit
		}
		return lowerInterval(ceilDiv(n, 60), durationx.Minutes)
	case durationx.Minutes:
		if n < 60 {
			return fmt.Sprintf("*/%d * * * *", n), n, unit
		}
		return lowerInterval(ceilDiv(n, 60), durationx.Hours)
	case durationx.Hours:
		if n < 24 {
			return fmt.Sprintf("0 */%d * * *", n), n, unit
		}
		return lowerInterval(ceilDiv(n, 24), durationx.Days)
	case durationx.Days:
		if n == 1 {
			return "0 0 * * *", n, unit
		}
		return fmt.Sprintf("0 0 */%d * *", n), n, unit
	case durationx.Weeks:
		if n == 1 {
			return "0 0 * * 0", n, unit
		}
		return lowerInterval(n*7, durationx.Days)
	default:
		return "0 0 * * *", 1, durationx.Days
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Daily builds a descriptor that fires once per listed clock time, every
// day. All times must share either the same hour or the same minute: a
// cron day-of schedule can only vary one of the two fields at a time.
func Daily(times ...string) (Descriptor, error) {
	if len(times) == 0 {
		return Descriptor{}, inputErrorf("", "daily() requires at least one time")
	}

	hours := make([]int, 0, len(times))
	minutes := make([]int, 0, len(times))
	for _, t := range times {
		h, m, err := durationx.ParseHHMM(t)
		if err != nil {
			return Descriptor{}, &InputError{Literal: t, Reason: err.Error()}
		}
		hours = append(hours, h)
		minutes = append(minutes, m)
	}

	distinctHours := distinctInts(hours)
	distinctMinutes := distinctInts(minutes)

	var cron, human string
	switch {
	case len(distinctHours) == 1:
		sort.Ints(distinctMinutes)
		cron = fmt.Sprintf("%s %d * * *", joinInts(distinctMinutes), distinctHours[0])
		human = humanDailyTimes(times)
	case len(distinctMinutes) == 1:
		sort.Ints(distinctHours)
		cron = fmt.Sprintf("%d %s * * *", distinctMinutes[0], joinInts(distinctHours))
		human = humanDailyTimes(times)
	default:
		return Descriptor{}, inputErrorf(strings.Join(times, ","), "daily times must share the same hour or same minute")
	}

	return finalize(Descriptor{
		Type:          KindDaily,
		Cron:          canonicalizeCron(cron),
		HumanReadable: human,
		OriginalParams: map[string]string{
			"times": strings.Join(times, ","),
		},
	})
}

// Weekly builds a descriptor that fires at a single clock time on the
// given weekdays (tokens from sun,mon,tue,wed,thu,fri,sat, deduplicated
// and emitted/rendered in ascending day-of-week order).
func Weekly(days []string, hhmm string) (Descriptor, error) {
	if len(days) == 0 {
		return Descriptor{}, inputErrorf("", "weekly() requires at least one weekday")
	}
	h, m, err := durationx.ParseHHMM(hhmm)
	if err != nil {
		return Descriptor{}, &InputError{Literal: hhmm, Reason: err.Error()}
	}

	seen := map[int]bool{}
	var dows []int
	for _, d := range days {
		idx, err := durationx.ParseWeekday(d)
		if err != nil {
			return Descriptor{}, &InputError{Literal: d, Reason: err.Error()}
		}
		if !seen[idx] {
			seen[idx] = true
			dows = append(dows, idx)
		}
	}
	sort.Ints(dows)

	cron := fmt.Sprintf("%d %d * * %s", m, h, joinInts(dows))

	names := make([]string, len(dows))
	for i, d := range dows {
		names[i] = durationx.WeekdayName(d)
	}

	return finalize(Descriptor{
		Type:          KindWeekly,
		Cron:          canonicalizeCron(cron),
		HumanReadable: fmt.Sprintf("every %s at %s", oxfordJoin(names), humanClock(h, m)),
		OriginalParams: map[string]string{
			"days": strings.Join(days, ","),
			"time": hhmm,
		},
	})
}

var reLastWeekday = regexp.MustCompile(`^last-([a-zA-Z]+)$`)

// Monthly builds a descriptor that fires once a month: either on a fixed
// day-of-month (1..31), or on the last occurrence of a given weekday
// ("last-fri"), which the evaluator must support via the dL cron suffix.
func Monthly(day string, hhmm string) (Descriptor, error) {
	h, m, err := durationx.ParseHHMM(hhmm)
	if err != nil {
		return Descriptor{}, &InputError{Literal: hhmm, Reason: err.Error()}
	}

	if mm := reLastWeekday.FindStringSubmatch(day); mm != nil {
		dow, err := durationx.ParseWeekday(mm[1])
		if err != nil {
			return Descriptor{}, &InputError{Literal: day, Reason: err.Error()}
		}
		cron := fmt.Sprintf("%d %d * * %dL", m, h, dow)
		return finalize(Descriptor{
			Type:          KindMonthly,
			Cron:          canonicalizeCron(cron),
			HumanReadable: fmt.Sprintf("last %s of every month at %s", durationx.WeekdayName(dow), humanClock(h, m)),
			OriginalParams: map[string]string{
				"day":  day,
				"time": hhmm,
			},
		})
	}

	n, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil || n < 1 || n > 31 {
		return Descriptor{}, inputErrorf(day, "day of month must be 1..31 or \"last-<weekday>\"")
	}

	cron := fmt.Sprintf("%d %d %d * *", m, h, n)
	return finalize(Descriptor{
		Type:          KindMonthly,
		Cron:          canonicalizeCron(cron),
		HumanReadable: fmt.Sprintf("day %d of every month at %s", n, humanClock(h, m)),
		OriginalParams: map[string]string{
			"day":  day,
			"time": hhmm,
		},
	})
}

var reCronField = regexp.MustCompile(`^[0-9*,/\-LW#]+$`)

// Cron accepts a 5- or 6-field (seconds-first) cron expression, validating
// field syntax and storing it whitespace-normalized.
func Cron(expr string) (Descriptor, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 && len(fields) != 6 {
		return Descriptor{}, inputErrorf(expr, "cron expression must have 5 or 6 whitespace-separated fields, got %d", len(fields))
	}
	for _, f := range fields {
		if !reCronField.MatchString(f) {
			return Descriptor{}, inputErrorf(expr, "field %q contains unsupported characters", f)
		}
	}
	canon := strings.Join(fields, " ")
	return finalize(Descriptor{
		Type:          KindCron,
		Cron:          canon,
		HumanReadable: fmt.Sprintf("cron schedule %q", canon),
		OriginalParams: map[string]string{
			"expr": expr,
		},
	})
}

func canonicalizeCron(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func distinctInts(in []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func joinInts(in []int) string {
	parts := make([]string, len(in))
	for i, v := range in {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
