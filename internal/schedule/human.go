package schedule

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize/english"

	"cronrunner/internal/durationx"
)

// humanInterval renders "every 15 minutes" / "every 1 hour" style text
// for the unit the interval was ultimately lowered to.
func humanInterval(n int, unit durationx.Unit) string {
	singular := map[durationx.Unit]string{
		durationx.Seconds: "second",
		durationx.Minutes: "minute",
		durationx.Hours:   "hour",
		durationx.Days:    "day",
		durationx.Weeks:   "week",
	}[unit]
	return fmt.Sprintf("every %s", english.Plural(n, singular, ""))
}

// humanDailyTimes renders "daily at 9:00 AM" or "daily at 9:00 AM and 5:00 PM".
func humanDailyTimes(times []string) string {
	rendered := make([]string, len(times))
	for i, t := range times {
		h, m, err := durationx.ParseHHMM(t)
		if err != nil {
			rendered[i] = t
			continue
		}
		rendered[i] = humanClock(h, m)
	}
	return fmt.Sprintf("daily at %s", oxfordJoin(rendered))
}

// humanClock renders a 24-hour hour/minute pair as "9:00 AM" / "5:45 PM".
func humanClock(h, m int) string {
	suffix := "AM"
	display := h
	switch {
	case h == 0:
		display = 12
	case h == 12:
		suffix = "PM"
	case h > 12:
		display = h - 12
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", display, m, suffix)
}

// oxfordJoin joins items with commas and "and", using an Oxford comma for
// three or more: "a", "a and b", "a, b, and c".
func oxfordJoin(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}
