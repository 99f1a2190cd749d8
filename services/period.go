package services

import "time"

// nowFunc is swapped in tests to pin settlement periods.
var nowFunc = time.Now

// Period is a settlement window. Boundaries are date-only UTC values so ledger
// rows match by equality regardless of the wall-clock time a credit happened.
type Period struct {
	Start time.Time
	End   time.Time
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekOf returns the Monday–Sunday week containing t.
func WeekOf(t time.Time) Period {
	d := dateOnly(t)
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	start := d.AddDate(0, 0, -offset)
	return Period{Start: start, End: start.AddDate(0, 0, 6)}
}

// PreviousWeek returns the full week before the one containing t. The weekly
// cut always settles this window.
func PreviousWeek(t time.Time) Period {
	w := WeekOf(t)
	return Period{Start: w.Start.AddDate(0, 0, -7), End: w.End.AddDate(0, 0, -7)}
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Period {
	d := dateOnly(t)
	start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, -1)}
}

// PreviousMonth returns the full calendar month before the one containing t.
func PreviousMonth(t time.Time) Period {
	return MonthOf(MonthOf(t).Start.AddDate(0, 0, -1))
}

// NextMonth returns the calendar month after the one containing t.
func NextMonth(t time.Time) Period {
	return MonthOf(MonthOf(t).End.AddDate(0, 0, 1))
}
