package schedule

import (
	"errors"
	"strings"
	"testing"
)

func TestEvery(t *testing.T) {
	t.Parallel()
	d, err := Every("15m")
	if err != nil {
		t.Fatalf("Every(15m): unexpected error: %v", err)
	}
	if d.Cron != "*/15 * * * *" {
		t.Errorf("Every(15m).Cron = %q", d.Cron)
	}
	if d.HumanReadable != "every 15 minutes" {
		t.Errorf("Every(15m).HumanReadable = %q", d.HumanReadable)
	}
	if d.OriginalParams["interval"] != "15m" {
		t.Errorf("Every(15m) lost original interval: %+v", d.OriginalParams)
	}
}

func TestEveryLowersCoarserUnits(t *testing.T) {
	t.Parallel()
	d, err := Every("90s")
	if err != nil {
		t.Fatalf("Every(90s): unexpected error: %v", err)
	}
	if d.Cron != "*/2 * * * *" {
		t.Errorf("Every(90s).Cron = %q, want */2 * * * *", d.Cron)
	}
}

func TestEveryInvalid(t *testing.T) {
	t.Parallel()
	if _, err := Every("0m"); err == nil {
		t.Fatal("expected error for 0m interval")
	}
	var ierr *InputError
	if _, err := Every("bogus"); !errors.As(err, &ierr) {
		t.Fatalf("expected *InputError, got %T", err)
	}
}

func TestDailySameHour(t *testing.T) {
	t.Parallel()
	d, err := Daily("09:00", "09:30")
	if err != nil {
		t.Fatalf("Daily(09:00,09:30): unexpected error: %v", err)
	}
	if d.Cron != "0,30 9 * * *" {
		t.Errorf("Daily(09:00,09:30).Cron = %q", d.Cron)
	}
}

func TestDailySameMinute(t *testing.T) {
	t.Parallel()
	d, err := Daily("09:00", "17:00")
	if err != nil {
		t.Fatalf("Daily(09:00,17:00): unexpected error: %v", err)
	}
	if d.Cron != "0 9,17 * * *" {
		t.Errorf("Daily(09:00,17:00).Cron = %q", d.Cron)
	}
}

func TestDailyConflict(t *testing.T) {
	t.Parallel()
	_, err := Daily("09:30", "17:45")
	if err == nil {
		t.Fatal("expected error for differing hour and minute")
	}
	if !strings.Contains(err.Error(), "same hour or same minute") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestWeekly(t *testing.T) {
	t.Parallel()
	d, err := Weekly([]string{"fri", "mon", "wed"}, "09:00")
	if err != nil {
		t.Fatalf("Weekly: unexpected error: %v", err)
	}
	if d.Cron != "0 9 * * 1,3,5" {
		t.Errorf("Weekly.Cron = %q", d.Cron)
	}
	if !strings.Contains(d.HumanReadable, "Monday") || !strings.Contains(d.HumanReadable, "Friday") {
		t.Errorf("Weekly.HumanReadable = %q", d.HumanReadable)
	}
}

func TestWeeklyInvalidDay(t *testing.T) {
	t.Parallel()
	if _, err := Weekly([]string{"friday"}, "09:00"); err == nil {
		t.Fatal("expected error for unabbreviated weekday")
	}
}

func TestMonthlyDayOfMonth(t *testing.T) {
	t.Parallel()
	d, err := Monthly("15", "09:00")
	if err != nil {
		t.Fatalf("Monthly(15): unexpected error: %v", err)
	}
	if d.Cron != "0 9 15 * *" {
		t.Errorf("Monthly(15).Cron = %q", d.Cron)
	}
}

func TestMonthlyLastWeekday(t *testing.T) {
	t.Parallel()
	d, err := Monthly("last-fri", "17:00")
	if err != nil {
		t.Fatalf("Monthly(last-fri): unexpected error: %v", err)
	}
	if d.Cron != "0 17 * * 5L" {
		t.Errorf("Monthly(last-fri).Cron = %q", d.Cron)
	}
}

func TestMonthlyOutOfRange(t *testing.T) {
	t.Parallel()
	if _, err := Monthly("32", "09:00"); err == nil {
		t.Fatal("expected error for day 32")
	}
}

func TestCronValidation(t *testing.T) {
	t.Parallel()
	d, err := Cron("*/5   *  * * *")
	if err != nil {
		t.Fatalf("Cron: unexpected error: %v", err)
	}
	if d.Cron != "*/5 * * * *" {
		t.Errorf("Cron whitespace not normalized: %q", d.Cron)
	}
	if _, err := Cron("* * * *"); err == nil {
		t.Fatal("expected error for 4-field expression")
	}
	if _, err := Cron("* * * * ?"); err == nil {
		t.Fatal("expected error for unsupported field character")
	}
}

func TestWithTimezone(t *testing.T) {
	t.Parallel()
	d, err := Every("1h")
	if err != nil {
		t.Fatal(err)
	}
	tz := d.WithTimezone("America/New_York")
	if tz.Timezone != "America/New_York" {
		t.Errorf("WithTimezone did not set Timezone: %+v", tz)
	}
	if d.Timezone != "" {
		t.Errorf("WithTimezone mutated receiver: %+v", d)
	}
}
