package report

import "time"

// WeekRange returns the previous business week relative to now: Monday
// 00:00:00 through Friday 23:59:59.999 in now's location. The company
// operates weekdays only, so on a weekend the week that just closed is
// returned; on a weekday the target is the week before, never a window
// still in progress.
func WeekRange(now time.Time) (time.Time, time.Time) {
	daysSinceMonday := (int(now.Weekday()) + 6) % 7 // Monday=0 .. Sunday=6

	var daysToLastFriday int
	if daysSinceMonday >= 5 {
		daysToLastFriday = daysSinceMonday - 4
	} else {
		daysToLastFriday = daysSinceMonday + 3
	}

	friday := now.AddDate(0, 0, -daysToLastFriday)
	end := time.Date(friday.Year(), friday.Month(), friday.Day(), 23, 59, 59, 999_000_000, now.Location())
	monday := end.AddDate(0, 0, -4)
	start := time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, now.Location())
	return start, end
}
