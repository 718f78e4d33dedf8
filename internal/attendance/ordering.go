package attendance

import (
	"cmp"
	"slices"

	"schoolinfo/internal/collation"
)

// orderBulk puts a sheet in display order: dates ascending with ties broken by
// slot start time, students and every date's details by collated name.
func orderBulk(s collation.Sorter, b *Bulk) {
	collation.SortBy(s, b.Students, func(st Student) string { return st.FullName })
	slices.SortStableFunc(b.Attendances, func(x, y Attendance) int {
		if c := x.Date.Compare(y.Date.Time); c != 0 {
			return c
		}
		return cmp.Compare(x.Timetable.StartTime, y.Timetable.StartTime)
	})
	for _, a := range b.Attendances {
		orderDetails(s, a.Details)
	}
}

func orderDetails(s collation.Sorter, ds []Detail) {
	collation.SortBy(s, ds, func(d Detail) string { return d.StudentName })
}
