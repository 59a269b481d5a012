package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const ForMonthLayout = "2006-01"

var forMonthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ParseForMonth accepts only the literal YYYY-MM form.
func ParseForMonth(value string) (int, time.Month, error) {
	if !forMonthPattern.MatchString(value) {
		return 0, 0, ErrInvalidForMonth
	}
	year, err := strconv.Atoi(value[:4])
	if err != nil || year < 1 {
		return 0, 0, ErrInvalidForMonth
	}
	month, err := strconv.Atoi(value[5:])
	if err != nil {
		return 0, 0, ErrInvalidForMonth
	}
	return year, time.Month(month), nil
}

func FormatForMonth(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DueDate is the billing day of forMonth, clamped to the month's last day, plus dueDays.
func DueDate(forMonth string, billingDay, dueDays int) (time.Time, error) {
	year, month, err := ParseForMonth(forMonth)
	if err != nil {
		return time.Time{}, err
	}
	day := min(max(billingDay, 1), DaysIn(year, month))
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, max(dueDays, 0)), nil
}

// DateOf returns the calendar day t falls on in loc, as midnight UTC.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CalendarDate drops the time of day keeping t's own calendar day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(CalendarDate(b).Sub(CalendarDate(a)).Hours() / 24)
}
