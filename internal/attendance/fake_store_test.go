package attendance

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/queue"
)

// fakeStore keeps one school's attendance in memory with the same
// preconditions the Postgres repository enforces.
type fakeStore struct {
	mu     sync.Mutex
	info   SessionInfo
	slots  []Slot
	roster []Student
	atts   []*Attendance
	recaps map[SessionKey][]Recap
	outbox []*outboxRow
	nextID int
}

type outboxRow struct {
	PendingApproval
	published bool
}

var _ Store = (*fakeStore)(nil)

func (f *fakeStore) SessionInfo(_ context.Context, key SessionKey) (SessionInfo, error) {
	if key.ClassID != f.info.Class.ID || key.SubjectTeacherID != f.info.SubjectTeacher.ID {
		return SessionInfo{}, apperr.NotFound("class or subject teacher")
	}
	return f.info, nil
}

func (f *fakeStore) Slots(_ context.Context, classID, subjectTeacherID string) ([]Slot, error) {
	var out []Slot
	for _, s := range f.slots {
		if s.ClassID == classID && s.SubjectTeacherID != nil && *s.SubjectTeacherID == subjectTeacherID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) Roster(_ context.Context, classID string) ([]Student, error) {
	if classID != f.info.Class.ID {
		return []Student{}, nil
	}
	return slices.Clone(f.roster), nil
}

func (f *fakeStore) slot(id string) Slot {
	for _, s := range f.slots {
		if s.ID == id {
			return s
		}
	}
	return Slot{}
}

func (f *fakeStore) InsertAttendances(_ context.Context, key SessionKey, planned []Planned) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range planned {
		exists := slices.ContainsFunc(f.atts, func(a *Attendance) bool {
			return a.Timetable.ID == p.TimetableID && a.Date.Equal(p.Date.Time)
		})
		if exists {
			continue
		}
		f.nextID++
		f.atts = append(f.atts, &Attendance{
			ID:               fmt.Sprintf("att-%02d", f.nextID),
			ClassID:          key.ClassID,
			SubjectTeacherID: key.SubjectTeacherID,
			TeacherID:        f.info.SubjectTeacher.TeacherID,
			Date:             p.Date,
			Semester:         key.Semester,
			Timetable:        f.slot(p.TimetableID),
		})
		n++
	}
	return n, nil
}

func clone(a *Attendance, withDetails bool) Attendance {
	out := *a
	out.Locked = a.Approve
	out.Details = []Detail{}
	if withDetails {
		out.Details = append(out.Details, a.Details...)
	}
	return out
}

// ListAttendances returns rows newest first so callers must order them.
func (f *fakeStore) ListAttendances(_ context.Context, key SessionKey) ([]Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Attendance{}
	for i := len(f.atts) - 1; i >= 0; i-- {
		a := f.atts[i]
		if a.ClassID == key.ClassID && a.SubjectTeacherID == key.SubjectTeacherID && a.Semester == key.Semester {
			out = append(out, clone(a, true))
		}
	}
	return out, nil
}

func (f *fakeStore) find(id string) (*Attendance, error) {
	for _, a := range f.atts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, apperr.NotFound("attendance")
}

func (f *fakeStore) GetAttendance(_ context.Context, id string) (Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.find(id)
	if err != nil {
		return Attendance{}, err
	}
	return clone(a, false), nil
}

func (f *fakeStore) Details(_ context.Context, attendanceID string) ([]Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.find(attendanceID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(a.Details), nil
}

func (f *fakeStore) name(studentID string) string {
	for _, s := range f.roster {
		if s.StudentID == studentID {
			return s.FullName
		}
	}
	return ""
}

func (f *fakeStore) CreateDetails(_ context.Context, attendanceID string, studentIDs []string, status Status) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.find(attendanceID)
	if err != nil {
		return 0, err
	}
	if len(a.Details) > 0 {
		return 0, ErrDetailsExist
	}
	for i, sid := range studentIDs {
		a.Details = append(a.Details, Detail{
			ID:           fmt.Sprintf("%s-d%d", attendanceID, i),
			AttendanceID: attendanceID,
			StudentID:    sid,
			StudentName:  f.name(sid),
			Status:       status,
		})
	}
	return len(studentIDs), nil
}

func (f *fakeStore) UpdateDetails(_ context.Context, attendanceID string, updates []Update, approve bool) (DetailsUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.find(attendanceID)
	if err != nil {
		return DetailsUpdate{}, err
	}
	if len(a.Details) == 0 {
		return DetailsUpdate{}, ErrNoDetails
	}
	next := slices.Clone(a.Details)
	for i, u := range updates {
		j := slices.IndexFunc(next, func(d Detail) bool { return d.StudentID == u.StudentID })
		if j < 0 {
			return DetailsUpdate{}, invalid(fieldIndex("updates", i, "studentId"), "student has no detail on this date")
		}
		if u.Status != nil {
			next[j].Status = *u.Status
		}
		if u.Note != nil {
			next[j].Note = *u.Note
		}
	}
	a.Details = next
	out := DetailsUpdate{Updated: len(updates), Newly: approve && !a.Approve}
	if approve {
		a.Approve = true
	}
	out.Approved = a.Approve
	if out.Approved && (out.Newly || out.Updated > 0) {
		out.OutboxID = fmt.Sprintf("outbox-%d", len(f.outbox)+1)
		f.outbox = append(f.outbox, &outboxRow{PendingApproval: PendingApproval{
			OutboxID: out.OutboxID,
			Event: Approved{
				AttendanceID:  a.ID,
				Session:       SessionKey{ClassID: a.ClassID, SubjectTeacherID: a.SubjectTeacherID, Semester: a.Semester},
				Date:          a.Date,
				FirstApproval: out.Newly,
			},
		}})
	}
	return out, nil
}

func (f *fakeStore) MarkPublished(_ context.Context, outboxID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.outbox {
		if o.OutboxID == outboxID {
			o.published = true
		}
	}
	return nil
}

// RelayPending ignores olderThan; every pending row is due.
func (f *fakeStore) RelayPending(ctx context.Context, _ time.Time, limit int, publish func(context.Context, PendingApproval) error) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sent := 0
	for _, o := range f.outbox {
		if o.published || sent == limit {
			continue
		}
		if err := publish(ctx, o.PendingApproval); err != nil {
			return sent, err
		}
		o.published = true
		sent++
	}
	return sent, nil
}

func (f *fakeStore) pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, o := range f.outbox {
		if !o.published {
			n++
		}
	}
	return n
}

func (f *fakeStore) DeleteSession(_ context.Context, key SessionKey) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in := func(a *Attendance) bool {
		return a.ClassID == key.ClassID && a.SubjectTeacherID == key.SubjectTeacherID && a.Semester == key.Semester
	}
	for _, a := range f.atts {
		if in(a) && a.Approve {
			return 0, ErrApproved
		}
	}
	before := len(f.atts)
	f.atts = slices.DeleteFunc(f.atts, in)
	return before - len(f.atts), nil
}

func (f *fakeStore) SaveRecaps(_ context.Context, key SessionKey, recaps []Recap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recaps == nil {
		f.recaps = map[SessionKey][]Recap{}
	}
	f.recaps[key] = slices.Clone(recaps)
	return nil
}

func (f *fakeStore) Recaps(_ context.Context, flt RecapFilter) ([]Recap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Recap{}
	for _, rs := range f.recaps {
		for _, r := range rs {
			if flt.StudentID != "" && r.StudentID != flt.StudentID {
				continue
			}
			if flt.ClassID != "" && r.ClassID != flt.ClassID {
				continue
			}
			r.SubjectName = f.info.SubjectTeacher.SubjectName
			out = append(out, r)
		}
	}
	return out, nil
}

// recordingQueue keeps published messages; fail makes Publish return it.
type recordingQueue struct {
	mu   sync.Mutex
	msgs []queue.Message
	fail error
}

func (q *recordingQueue) Publish(_ context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail != nil {
		return q.fail
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *recordingQueue) failWith(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fail = err
}

func (q *recordingQueue) Consume(context.Context) (<-chan queue.Message, error) {
	ch := make(chan queue.Message)
	close(ch)
	return ch, nil
}

func (q *recordingQueue) published() []queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.msgs)
}
