package calendar

import "time"

// Window is a half-open [From, To) range of instants.
type Window struct {
	From time.Time
	To   time.Time
}

// MonthWindow covers the month before, the month itself and the month after.
func MonthWindow(year int, month time.Month, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	anchor := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Window{From: anchor.AddDate(0, -1, 0), To: anchor.AddDate(0, 2, 0)}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Overlaps reports whether [start, end] touches the window. A nil end means a point in time.
func (w Window) Overlaps(start time.Time, end *time.Time) bool {
	last := start
	if end != nil && end.After(start) {
		last = *end
	}
	return !last.Before(w.From) && start.Before(w.To)
}

// Months lists the first instant of every month that starts inside the window.
func (w Window) Months() []time.Time {
	var months []time.Time
	cur := time.Date(w.From.Year(), w.From.Month(), 1, 0, 0, 0, 0, w.From.Location())
	if cur.Before(w.From) {
		cur = cur.AddDate(0, 1, 0)
	}
	for cur.Before(w.To) {
		months = append(months, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}

func daysIn(month time.Time) int {
	return time.Date(month.Year(), month.Month()+1, 0, 0, 0, 0, 0, month.Location()).Day()
}

// OccursOn reports whether an entry is on the calendar for day: start day <= day <= end day.
// Days are compared in the entry's own location.
func OccursOn(start time.Time, end *time.Time, day time.Time) bool {
	loc := start.Location()
	first := truncateDay(start, loc)
	last := first
	if end != nil {
		if e := truncateDay(*end, loc); e.After(first) {
			last = e
		}
	}
	d := truncateDay(day, loc)
	return !d.Before(first) && !d.After(last)
}

func truncateDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
