package school

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestSemesterRangeExplicitBoundary(t *testing.T) {
	two := mustDate(t, "2026-01-05")
	y := AcademicYear{Name: "2025/2026", StartDate: mustDate(t, "2025-07-14"), EndDate: mustDate(t, "2026-06-20"), SemesterTwoStart: &two}

	from, to, err := y.SemesterRange(Semester1)
	require.NoError(t, err)
	assert.Equal(t, "2025-07-14", from.String())
	assert.Equal(t, "2026-01-04", to.String())

	from, to, err = y.SemesterRange(Semester2)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-05", from.String())
	assert.Equal(t, "2026-06-20", to.String())
}

func TestSemesterRangeMidpoint(t *testing.T) {
	y := AcademicYear{StartDate: mustDate(t, "2025-01-01"), EndDate: mustDate(t, "2025-01-10")}

	_, to, err := y.SemesterRange(Semester1)
	require.NoError(t, err)
	from, _, err := y.SemesterRange(Semester2)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-05", to.String())
	assert.Equal(t, "2025-01-06", from.String())
}

func TestSemesterRangeRejects(t *testing.T) {
	bad := mustDate(t, "2024-12-01")
	y := AcademicYear{StartDate: mustDate(t, "2025-01-01"), EndDate: mustDate(t, "2025-06-30"), SemesterTwoStart: &bad}
	_, _, err := y.SemesterRange(Semester1)
	assert.Error(t, err)

	y.SemesterTwoStart = nil
	_, _, err = y.SemesterRange("SEMESTER_3")
	assert.Error(t, err)
}

func TestDateJSON(t *testing.T) {
	var v struct {
		Dob Date `json:"dob"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"dob":"2010-03-04T17:00:00.000Z"}`), &v))
	assert.Equal(t, "2010-03-04", v.Dob.String())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dob":"2010-03-04"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"dob":"yesterday"}`), &v))
}

func TestDayOfWeek(t *testing.T) {
	wd, ok := Monday.Weekday()
	assert.True(t, ok)
	assert.Equal(t, "Monday", wd.String())
	_, ok = DayOfWeek("SUNDAY").Weekday()
	assert.False(t, ok)
	assert.Less(t, Friday.Index(), Saturday.Index())
}
