package service

import "time"

// addMonths moves anchor forward by n calendar months. The day of month is
// clamped to the last day of the target month, so Jan 31 + 1 month is Feb 28
// (or 29) and Jan 31 + 2 months is Mar 31 again.
func addMonths(anchor time.Time, n int) time.Time {
	y, m, d := anchor.Date()
	hh, mm, ss := anchor.Clock()

	first := time.Date(y, m+time.Month(n), 1, hh, mm, ss, anchor.Nanosecond(), anchor.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, anchor.Nanosecond(), anchor.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// nextBoundary returns the first anchor-aligned boundary strictly after t,
// stepping stepMonths at a time.
func nextBoundary(anchor, t time.Time, stepMonths int) time.Time {
	k := monthsBetween(anchor, t) / stepMonths
	if k < 0 {
		k = 0
	}
	b := addMonths(anchor, k*stepMonths)
	for !b.After(t) {
		k++
		b = addMonths(anchor, k*stepMonths)
	}
	return b
}

// lastBoundary returns the latest anchor-aligned boundary at or before t.
func lastBoundary(anchor, t time.Time, stepMonths int) time.Time {
	next := nextBoundary(anchor, t, stepMonths)
	k := monthsBetween(anchor, next) / stepMonths
	for k > 0 {
		b := addMonths(anchor, k*stepMonths)
		if !b.After(t) {
			return b
		}
		k--
	}
	return anchor
}

func monthsBetween(from, to time.Time) int {
	fy, fm, _ := from.Date()
	ty, tm, _ := to.Date()
	return (ty-fy)*12 + int(tm-fm)
}
