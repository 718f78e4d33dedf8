package school

import (
	"fmt"
)

type Semester string

const (
	Semester1 Semester = "SEMESTER_1"
	Semester2 Semester = "SEMESTER_2"
)

// ParseSemester validates a semester name.
func ParseSemester(s string) (Semester, bool) {
	switch Semester(s) {
	case Semester1, Semester2:
		return Semester(s), true
	}
	return "", false
}

// SecondSemesterStart is the first day of semester 2: the configured date, or
// the calendar midpoint of the year when none is set.
func (y AcademicYear) SecondSemesterStart() Date {
	if y.SemesterTwoStart != nil {
		return *y.SemesterTwoStart
	}
	days := int(y.EndDate.Sub(y.StartDate.Time).Hours() / 24)
	return y.StartDate.AddDays((days + 1) / 2)
}

// SemesterRange returns the inclusive date range of s within the academic year.
func (y AcademicYear) SemesterRange(s Semester) (from, to Date, err error) {
	mid := y.SecondSemesterStart()
	if !mid.After(y.StartDate.Time) || mid.After(y.EndDate.Time) {
		return Date{}, Date{}, fmt.Errorf("academic year %s has an invalid semester boundary %s", y.Name, mid)
	}
	switch s {
	case Semester1:
		return y.StartDate, mid.AddDays(-1), nil
	case Semester2:
		return mid, y.EndDate, nil
	}
	return Date{}, Date{}, fmt.Errorf("unknown semester %q", s)
}
