package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseForMonth(t *testing.T) {
	year, month, err := ParseForMonth("2025-02")
	require.NoError(t, err)
	assert.Equal(t, 2025, year)
	assert.Equal(t, time.February, month)

	for _, bad := range []string{"", "2025-2", "2025-13", "2025-00", "25-01", "2025/01", "2025-01-01", " 2025-01"} {
		_, _, err := ParseForMonth(bad)
		assert.ErrorIs(t, err, ErrInvalidForMonth, bad)
	}
}

func TestDueDate(t *testing.T) {
	cases := []struct {
		month      string
		billingDay int
		dueDays    int
		want       time.Time
	}{
		{"2025-01", 5, 3, time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)},
		{"2025-01", 28, 10, time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC)},
		{"2025-02", 28, 0, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)},
		{"2024-02", 31, 1, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2025-12", 20, 15, time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := DueDate(tc.month, tc.billingDay, tc.dueDays)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.month)
	}
}

func TestDateOfUsesLocation(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 20:00 UTC on Jan 8 is already Jan 9 in India
	instant := time.Date(2025, 1, 8, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC), DateOf(instant, kolkata))
	assert.Equal(t, time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), DateOf(instant, nil))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 2, 25, 0, 0, 0, 0, time.UTC)
	b := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 6, DaysBetween(a, b))
	assert.Equal(t, -6, DaysBetween(b, a))
}
