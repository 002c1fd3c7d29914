package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestYearsBetween(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want int
	}{
		{"same day", date(2000, 1, 1), date(2000, 1, 1), 0},
		{"day before first birthday", date(2000, 1, 1), date(2000, 12, 31), 0},
		{"exact birthday", date(2000, 1, 1), date(2020, 1, 1), 20},
		{"end of year", date(2000, 1, 1), date(2020, 12, 31), 20},
		{"day before birthday", date(2000, 1, 1), date(2019, 12, 31), 19},
		{"leap day before next birthday", date(2000, 2, 29), date(2001, 2, 28), 0},
		{"leap day reached on march first", date(2000, 2, 29), date(2001, 3, 1), 1},
		{"leap day on leap year", date(2000, 2, 29), date(2004, 2, 29), 4},
		{"month end", date(1999, 1, 31), date(2000, 2, 28), 1},
		{"reversed", date(2020, 1, 1), date(2000, 1, 1), -20},
		{"reversed partial", date(2020, 6, 1), date(2019, 7, 1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, YearsBetween(tt.from, tt.to))
		})
	}
}

func TestYearsBetween_IgnoresClockTime(t *testing.T) {
	from := time.Date(2000, 1, 1, 23, 59, 0, 0, time.UTC)
	to := time.Date(2020, 1, 1, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 20, YearsBetween(from, to))
}

func TestIsAgeEligible(t *testing.T) {
	birth := date(2000, 1, 1)

	assert.True(t, IsAgeEligible(birth, 20, date(2020, 12, 31)))
	assert.True(t, IsAgeEligible(birth, 20, date(2020, 1, 1)))
	assert.False(t, IsAgeEligible(birth, 20, date(2019, 12, 31)))
	assert.True(t, IsAgeEligible(birth, 0, birth))
	assert.False(t, IsAgeEligible(date(2030, 1, 1), 0, date(2020, 1, 1)))
}

func TestIsRangeValid(t *testing.T) {
	assert.True(t, IsRangeValid(date(1999, 1, 1), date(2014, 11, 1)))
	assert.True(t, IsRangeValid(date(2014, 11, 1), date(2014, 11, 1)))
	assert.False(t, IsRangeValid(date(2014, 11, 1), date(1999, 1, 1)))
	assert.False(t, IsRangeValid(date(2014, 11, 2), date(2014, 11, 1)))
}

func TestIsRangeValid_SameDayDifferentClock(t *testing.T) {
	start := time.Date(2014, 11, 1, 18, 0, 0, 0, time.UTC)
	end := time.Date(2014, 11, 1, 6, 0, 0, 0, time.UTC)
	assert.True(t, IsRangeValid(start, end))
}
