package attendance

import (
	"schoolinfo/internal/school"
)

// Recap counts one student's statuses over the approved dates of a sheet.
type Recap struct {
	StudentID        string          `json:"studentId"`
	StudentName      string          `json:"studentName"`
	ClassID          string          `json:"classId"`
	SubjectTeacherID string          `json:"subjectTeacherId"`
	SubjectName      string          `json:"subjectName,omitempty"`
	Semester         school.Semester `json:"semester"`
	Present          int             `json:"present"`
	Absent           int             `json:"absent"`
	Sick             int             `json:"sick"`
	Permission       int             `json:"permission"`
	Late             int             `json:"late"`
	Excused          int             `json:"excused"`
	Total            int             `json:"total"`
	Rate             float64         `json:"rate"`
}

// RecapFilter narrows a recap listing; empty fields match everything.
type RecapFilter struct {
	ClassID          string          `form:"classId" validate:"omitempty,uuid"`
	SubjectTeacherID string          `form:"subjectTeacherId" validate:"omitempty,uuid"`
	Semester         school.Semester `form:"semester" validate:"omitempty,semester"`
	StudentID        string          `form:"-" validate:"omitempty,uuid"`
}

func (r *Recap) add(s Status) {
	switch s {
	case StatusPresent:
		r.Present++
	case StatusAbsent:
		r.Absent++
	case StatusSick:
		r.Sick++
	case StatusPermission:
		r.Permission++
	case StatusLate:
		r.Late++
	case StatusExcused:
		r.Excused++
	default:
		return
	}
	r.Total++
}

// attended counts lessons the student sat in; late still counts as attended.
func (r Recap) attended() int { return r.Present + r.Late }

func (r *Recap) rate() {
	if r.Total == 0 {
		r.Rate = 0
		return
	}
	r.Rate = float64(r.attended()) / float64(r.Total)
}

// computeRecap tallies approved dates only; unapproved dates may still change.
// Students are returned in the order they first appear in the sheet.
func computeRecap(key SessionKey, atts []Attendance) []Recap {
	idx := map[string]int{}
	var out []Recap
	for _, a := range atts {
		if !a.Approve {
			continue
		}
		for _, d := range a.Details {
			i, ok := idx[d.StudentID]
			if !ok {
				i = len(out)
				idx[d.StudentID] = i
				out = append(out, Recap{
					StudentID:        d.StudentID,
					StudentName:      d.StudentName,
					ClassID:          key.ClassID,
					SubjectTeacherID: key.SubjectTeacherID,
					Semester:         key.Semester,
				})
			}
			out[i].add(d.Status)
		}
	}
	for i := range out {
		out[i].rate()
	}
	return out
}
