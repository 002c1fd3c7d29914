// Package validator holds the pure checks applied to user input before
// anything reaches a repository. Only the calendar date of each time.Time
// is considered; clock time and location are ignored.
package validator

import "time"

// YearsBetween returns the number of whole years elapsed from from to to.
// The count is truncated: a year only completes once the month and day of
// from have been reached in to. A Feb 29 date completes its year on Mar 1
// in non-leap years. The result is negative when to precedes from.
func YearsBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()

	months := (ty-fy)*12 + int(tm) - int(fm)
	days := td - fd
	if months > 0 && days < 0 {
		months--
	} else if months < 0 && days > 0 {
		months++
	}
	return months / 12
}

// IsAgeEligible reports whether someone born on birthDate is at least
// minimumAge whole years old on today.
// Callers must treat an absent birth date as ineligible rather than
// calling this with a zero time.
func IsAgeEligible(birthDate time.Time, minimumAge int, today time.Time) bool {
	return YearsBetween(birthDate, today) >= minimumAge
}

// IsRangeValid reports whether [start, end] is a usable inclusive range.
// Equal dates are valid.
func IsRangeValid(start, end time.Time) bool {
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	s := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	e := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return !s.After(e)
}
