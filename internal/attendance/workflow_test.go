package attendance

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"schoolinfo/internal/collation"
	"schoolinfo/internal/notify"
	"schoolinfo/internal/queue"
	"schoolinfo/internal/school"
)

func TestLessonDates(t *testing.T) {
	slots := []Slot{
		{ID: "fri-late", DayOfWeek: school.Friday, StartTime: "10:00"},
		{ID: "fri-early", DayOfWeek: school.Friday, StartTime: "07:00"},
		{ID: "sun", DayOfWeek: "SUNDAY", StartTime: "07:00"},
		{ID: "mon", DayOfWeek: school.Monday, StartTime: "08:00"},
	}
	got := lessonDates(date(t, "2025-07-18"), date(t, "2025-07-25"), slots)

	var out []string
	for _, p := range got {
		out = append(out, p.Date.String()+" "+p.TimetableID)
	}
	assert.Equal(t, []string{
		"2025-07-18 fri-early",
		"2025-07-18 fri-late",
		"2025-07-21 mon",
		"2025-07-25 fri-early",
		"2025-07-25 fri-late",
	}, out)

	assert.Empty(t, lessonDates(date(t, "2025-07-19"), date(t, "2025-07-20"), slots))
}

func TestOrderBulk(t *testing.T) {
	b := Bulk{
		Students: []Student{{FullName: "kelas 10 Zaki"}, {FullName: "Ani"}, {FullName: "kelas 2 Zaki"}},
		Attendances: []Attendance{
			{ID: "c", Date: date(t, "2025-07-21"), Timetable: Slot{StartTime: "07:00"}},
			{ID: "b", Date: date(t, "2025-07-14"), Timetable: Slot{StartTime: "09:00"}},
			{ID: "a", Date: date(t, "2025-07-14"), Timetable: Slot{StartTime: "07:00"}, Details: []Detail{
				{StudentName: "budi"}, {StudentName: "Ani"},
			}},
		},
	}
	orderBulk(collation.New("id"), &b)

	assert.Equal(t, "Ani", b.Students[0].FullName)
	assert.Equal(t, "kelas 2 Zaki", b.Students[1].FullName)
	assert.Equal(t, "kelas 10 Zaki", b.Students[2].FullName)
	assert.Equal(t, "a", b.Attendances[0].ID)
	assert.Equal(t, "b", b.Attendances[1].ID)
	assert.Equal(t, "c", b.Attendances[2].ID)
	assert.Equal(t, "Ani", b.Attendances[0].Details[0].StudentName)
}

func TestComputeRecapSkipsUnapproved(t *testing.T) {
	atts := []Attendance{
		{Approve: true, Details: []Detail{{StudentID: "s1", Status: StatusPresent}, {StudentID: "s2", Status: StatusSick}}},
		{Approve: true, Details: []Detail{{StudentID: "s1", Status: StatusLate}, {StudentID: "s2", Status: StatusAbsent}}},
		{Approve: false, Details: []Detail{{StudentID: "s1", Status: StatusAbsent}}},
	}
	got := computeRecap(key, atts)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Present)
	assert.Equal(t, 1, got[0].Late)
	assert.Equal(t, 0, got[0].Absent)
	assert.InDelta(t, 1.0, got[0].Rate, 1e-9)
	assert.Equal(t, 2, got[1].Total)
	assert.InDelta(t, 0.0, got[1].Rate, 1e-9)
	assert.Equal(t, classID, got[1].ClassID)
}

func TestExportWorkbook(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFixture(t)
	gen, err := svc.Generate(ctx, teacher, key)
	require.NoError(t, err)
	id := gen.Bulk.Attendances[0].ID
	_, err = svc.CreateDetails(ctx, teacher, id, CreateDetailsRequest{})
	require.NoError(t, err)
	_, err = svc.BulkUpdate(ctx, teacher, id, BulkUpdateRequest{Updates: []Update{{StudentID: stuBudi, Status: statusp(StatusAbsent)}}})
	require.NoError(t, err)

	data, name, err := svc.Export(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "attendance-vii-a-matematika-semester_1.xlsx", name)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	cell := func(ref string) string {
		v, err := f.GetCellValue(exportSheet, ref)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Student", cell("B3"))
	assert.Equal(t, "2025-07-14", cell("C3"))
	assert.Equal(t, "2025-07-31", cell("H3"))
	assert.Equal(t, "P", cell("I3"))
	// rows follow collated names: Agus 10, Budi, siti
	assert.Equal(t, "Agus 10", cell("B4"))
	assert.Equal(t, "P", cell("C4"))
	assert.Equal(t, "Budi", cell("B5"))
	assert.Equal(t, "A", cell("C5"))
	assert.Equal(t, "", cell("D5"))
	assert.Equal(t, "0", cell("I5"))
	assert.Equal(t, "1", cell("J5"))
}

type fakeContacts struct {
	byStudent map[string][]school.ParentContact
}

func (f fakeContacts) ParentContacts(_ context.Context, ids []string) ([]school.ParentContact, error) {
	var out []school.ParentContact
	for _, id := range ids {
		out = append(out, f.byStudent[id]...)
	}
	return out, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.AbsenceNotice
	fail string
}

func (n *recordingNotifier) NotifyAbsence(_ context.Context, a notify.AbsenceNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if a.To == n.fail {
		return errors.New("mailbox unavailable")
	}
	n.sent = append(n.sent, a)
	return nil
}

func TestProcessorRecapsAndNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	svc, st, q := newFixture(t)
	gen, err := svc.Generate(ctx, teacher, key)
	require.NoError(t, err)
	id := gen.Bulk.Attendances[0].ID
	_, err = svc.CreateDetails(ctx, teacher, id, CreateDetailsRequest{})
	require.NoError(t, err)
	_, err = svc.BulkUpdate(ctx, teacher, id, BulkUpdateRequest{
		Updates: []Update{{StudentID: stuBudi, Status: statusp(StatusAbsent)}},
		Approve: true,
	})
	require.NoError(t, err)
	_, err = svc.BulkUpdate(ctx, teacher, id, BulkUpdateRequest{
		Updates: []Update{{StudentID: stuBudi, Note: strp("sick note arrived late")}},
	})
	require.NoError(t, err)

	contacts := fakeContacts{byStudent: map[string][]school.ParentContact{
		stuBudi: {
			{StudentID: stuBudi, StudentName: "Budi", ParentName: "Ibu Budi", Email: "ibu@mail.id"},
			{StudentID: stuBudi, StudentName: "Budi", ParentName: "Ayah Budi", Email: "ayah@mail.id"},
		},
	}}
	n := &recordingNotifier{}
	p := NewProcessor(svc, contacts, n, nil)

	msgs := q.published()
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		require.NoError(t, p.Handle(ctx, m))
	}

	require.Len(t, n.sent, 2)
	assert.Equal(t, "ibu@mail.id", n.sent[0].To)
	assert.Equal(t, "VII-A", n.sent[0].ClassName)
	assert.Equal(t, "Matematika", n.sent[0].SubjectName)
	assert.Equal(t, "2025-07-14", n.sent[0].Date)
	require.Len(t, st.recaps[key], 3)

	require.NoError(t, p.Handle(ctx, queue.Message{Type: "something.else"}))
	assert.Error(t, p.Handle(ctx, queue.Message{Type: queue.TypeAttendanceApproved, Body: []byte(`{`)}))

	n.fail = "ayah@mail.id"
	n.sent = nil
	assert.ErrorContains(t, p.Handle(ctx, msgs[0]), "mailbox unavailable")
	assert.Len(t, n.sent, 1)
}
