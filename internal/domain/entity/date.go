package entity

import (
	"strings"
	"time"

	"user-api/internal/domain/errors"
)

// DateLayout is the wire and storage format of a calendar date
const DateLayout = "2006-01-02"

// Date is a calendar date without clock or location.
// The zero value means the date is unknown.
type Date struct {
	t time.Time
}

// NewDate creates a Date from its calendar components
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, errors.ErrInvalidDate
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, errors.NewDomainErrorWithCause(errors.ErrCodeInvalidDate, "invalid date, expected YYYY-MM-DD", err).
			WithContext("value", s)
	}
	return Date{t: t}, nil
}

// IsZero reports whether the date is unknown
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Time returns the date as midnight UTC
func (d Date) Time() time.Time {
	return d.t
}

// Before reports whether d is strictly before other
func (d Date) Before(other Date) bool {
	return d.t.Before(other.t)
}

// After reports whether d is strictly after other
func (d Date) After(other Date) bool {
	return d.t.After(other.t)
}

// Equal reports whether both dates denote the same day
func (d Date) Equal(other Date) bool {
	return d.t.Equal(other.t)
}

// Between reports whether d lies in the inclusive range [start, end].
// An unknown date is never in range.
func (d Date) Between(start, end Date) bool {
	if d.IsZero() {
		return false
	}
	return !d.Before(start) && !d.After(end)
}

// String returns the YYYY-MM-DD form, or an empty string when unknown
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}
