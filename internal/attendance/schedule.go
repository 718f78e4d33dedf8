package attendance

import (
	"cmp"
	"slices"

	"schoolinfo/internal/school"
)

// lessonDates expands weekly slots into dated lessons in [from, to], ordered by
// date and then start time. Two slots on the same weekday yield two lessons.
func lessonDates(from, to school.Date, slots []Slot) []Planned {
	byDay := map[int][]Slot{}
	for _, s := range slots {
		if wd, ok := s.DayOfWeek.Weekday(); ok {
			byDay[int(wd)] = append(byDay[int(wd)], s)
		}
	}
	for _, ss := range byDay {
		slices.SortStableFunc(ss, func(a, b Slot) int { return cmp.Compare(a.StartTime, b.StartTime) })
	}

	var out []Planned
	for d := from; !d.After(to.Time); d = d.AddDays(1) {
		for _, s := range byDay[int(d.Weekday())] {
			out = append(out, Planned{TimetableID: s.ID, Date: d})
		}
	}
	return out
}
