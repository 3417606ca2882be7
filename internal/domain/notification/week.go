package notification

import "time"

const secondsPerDay = 24 * 60 * 60

// WeekNumber returns the index of the Monday-anchored calendar week that
// contains the calendar date of d. Only the date part of d in its own
// location is used, so time of day never changes the result.
func WeekNumber(d time.Time) int {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	days := day.Unix() / secondsPerDay
	// 1970-01-01 was a Thursday; shifting by three days puts Monday 1969-12-29 at day zero.
	return int(floorDiv(days+3, 7))
}

// ElapsedWeeks is the number of calendar week boundaries between start and today.
// It is negative when start lies in a later week than today.
func ElapsedWeeks(start, today time.Time) int {
	return WeekNumber(today) - WeekNumber(start)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
