package school

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolinfo/internal/collation"
)

func slot(id string, day DayOfWeek, start string, class ClassRef, st *SubjectTeacherRef) Timetable {
	return Timetable{ID: id, ClassID: class.ID, Class: class, DayOfWeek: day, StartTime: start, EndTime: "23:59", IsActive: true, SubjectTeacher: st}
}

func TestTeacherScheduleGrouping(t *testing.T) {
	sorter := collation.New("id")
	c10 := ClassRef{ID: "c10", Name: "Kelas 10", Grade: Grade10}
	c2 := ClassRef{ID: "c2", Name: "kelas 2", Grade: Grade2}
	ts := []Timetable{
		slot("a", Wednesday, "08:00", c2, nil),
		slot("b", Monday, "10:00", c2, nil),
		slot("c", Monday, "07:30", c10, nil),
		slot("d", Monday, "07:30", c2, nil),
	}
	sortSlots(sorter, ts)

	days := groupByDay(ts)
	require.Len(t, days, len(Days))
	assert.Equal(t, Monday, days[0].DayOfWeek)
	assert.Equal(t, Saturday, days[5].DayOfWeek)

	var monday []string
	for _, s := range days[0].Slots {
		monday = append(monday, s.ID)
	}
	assert.Equal(t, []string{"d", "c", "b"}, monday)
	assert.Empty(t, days[1].Slots)
	require.Len(t, days[2].Slots, 1)
	assert.Equal(t, "a", days[2].Slots[0].ID)
}

func TestClassTabs(t *testing.T) {
	sorter := collation.New("id")
	c10 := ClassRef{ID: "c10", Name: "Kelas 10"}
	c2 := ClassRef{ID: "c2", Name: "Kelas 2"}
	math := &SubjectTeacherRef{ID: "st1", SubjectName: "matematika"}
	bio := &SubjectTeacherRef{ID: "st2", SubjectName: "Biologi"}

	inactive := slot("x", Friday, "07:00", ClassRef{ID: "c9", Name: "Kelas 9"}, math)
	inactive.IsActive = false

	tabs := classTabs(sorter, []Timetable{
		slot("a", Monday, "07:00", c10, math),
		slot("b", Tuesday, "07:00", c10, math),
		slot("c", Monday, "09:00", c10, bio),
		slot("d", Monday, "09:00", c2, bio),
		slot("e", Monday, "11:00", c2, nil),
		inactive,
	})

	require.Len(t, tabs, 2)
	assert.Equal(t, "Kelas 2", tabs[0].Class.Name)
	assert.Equal(t, "Kelas 10", tabs[1].Class.Name)
	require.Len(t, tabs[1].Subjects, 2)
	assert.Equal(t, "Biologi", tabs[1].Subjects[0].SubjectName)
	assert.Equal(t, "matematika", tabs[1].Subjects[1].SubjectName)
}
