// Package attendance runs the attendance workflow of a class, subject-teacher
// and semester: generate the dated lessons, fill each date with one detail per
// enrolled student, then bulk update and approve.
package attendance

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/auth"
	"schoolinfo/internal/cache"
	"schoolinfo/internal/collation"
	"schoolinfo/internal/queue"
	"schoolinfo/internal/school"
)

// Actor is the caller of a mutation.
type Actor struct {
	Role      auth.Role
	ProfileID string
}

// ActorFrom builds the actor of a verified session.
func ActorFrom(c auth.Claims) Actor {
	return Actor{Role: c.Role, ProfileID: c.ProfileID}
}

// canMutate lets admins change any sheet and teachers only their own.
func (a Actor) canMutate(teacherID string) error {
	if a.Role.Admin() {
		return nil
	}
	if a.Role == auth.RoleTeacher && a.ProfileID != "" && a.ProfileID == teacherID {
		return nil
	}
	return apperr.Forbidden("only the assigned teacher or an admin can change this attendance")
}

// Service coordinates the attendance workflow.
type Service struct {
	store  Store
	cache  cache.Cache
	ttl    time.Duration
	sorter collation.Sorter
	events queue.Queue
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates a service. A nil cache disables caching and a nil queue
// drops approval events.
func NewService(st Store, c cache.Cache, ttl time.Duration, sorter collation.Sorter, events queue.Queue, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, cache: c, ttl: ttl, sorter: sorter, events: events, log: log, now: time.Now}
}

func bulkKey(key SessionKey) string {
	return cache.Key(school.ResAttendance, "bulk", key.ClassID, key.SubjectTeacherID, string(key.Semester))
}

// invalidate drops every cached attendance read. Failures are logged; entries
// then age out with the ttl.
func (s *Service) invalidate(ctx context.Context) {
	if err := cache.Invalidate(ctx, s.cache, cache.Prefix(school.ResAttendance)); err != nil {
		s.log.Warn("cache invalidation failed", zap.Error(err))
	}
}

func fieldIndex(list string, i int, field string) string {
	return fmt.Sprintf("%s[%d].%s", list, i, field)
}

func invalid(field, msg string) error {
	return apperr.NewValidationError("invalid request", apperr.FieldError{Field: field, Error: msg})
}

// Generate creates one date per lesson the subject-teacher's active slots hold
// in the semester. Dates that already exist are kept.
func (s *Service) Generate(ctx context.Context, actor Actor, key SessionKey) (res GenerateResult, err error) {
	defer func() { observe("generate", err) }()
	if err := apperr.Validate(key); err != nil {
		return GenerateResult{}, err
	}
	info, err := s.store.SessionInfo(ctx, key)
	if err != nil {
		return GenerateResult{}, err
	}
	if err := actor.canMutate(info.SubjectTeacher.TeacherID); err != nil {
		return GenerateResult{}, err
	}
	if info.SubjectGrade != info.Class.Grade {
		return GenerateResult{}, invalid("subjectTeacherId", fmt.Sprintf("subject grade %s does not match class grade %s", info.SubjectGrade, info.Class.Grade))
	}
	from, to, err := info.AcademicYear.SemesterRange(key.Semester)
	if err != nil {
		return GenerateResult{}, invalid("semester", err.Error())
	}
	slots, err := s.store.Slots(ctx, key.ClassID, key.SubjectTeacherID)
	if err != nil {
		return GenerateResult{}, err
	}
	if len(slots) == 0 {
		return GenerateResult{}, invalid("subjectTeacherId", "no active timetable slots for this class and subject teacher")
	}

	planned := lessonDates(from, to, slots)
	created, err := s.store.InsertAttendances(ctx, key, planned)
	if err != nil {
		return GenerateResult{}, err
	}
	generatedDates.Add(float64(created))
	s.invalidate(ctx)
	s.log.Info("attendance generated",
		zap.String("class_id", key.ClassID),
		zap.String("subject_teacher_id", key.SubjectTeacherID),
		zap.String("semester", string(key.Semester)),
		zap.Int("planned", len(planned)),
		zap.Int("created", created),
	)

	bulk, err := s.loadBulk(ctx, key, info)
	if err != nil {
		return GenerateResult{}, err
	}
	return GenerateResult{Created: created, Bulk: bulk}, nil
}

// GetBulk returns the sheet in display order.
func (s *Service) GetBulk(ctx context.Context, key SessionKey) (Bulk, error) {
	if err := apperr.Validate(key); err != nil {
		return Bulk{}, err
	}
	return cache.ReadThrough(ctx, s.cache, bulkKey(key), s.ttl, func(ctx context.Context) (Bulk, error) {
		info, err := s.store.SessionInfo(ctx, key)
		if err != nil {
			return Bulk{}, err
		}
		return s.loadBulk(ctx, key, info)
	})
}

func (s *Service) loadBulk(ctx context.Context, key SessionKey, info SessionInfo) (Bulk, error) {
	students, err := s.store.Roster(ctx, key.ClassID)
	if err != nil {
		return Bulk{}, err
	}
	atts, err := s.store.ListAttendances(ctx, key)
	if err != nil {
		return Bulk{}, err
	}
	b := Bulk{
		Count:            len(atts),
		ClassID:          key.ClassID,
		ClassName:        info.Class.Name,
		SubjectTeacherID: key.SubjectTeacherID,
		TeacherName:      info.SubjectTeacher.TeacherFullname,
		SubjectName:      info.SubjectTeacher.SubjectName,
		Semester:         key.Semester,
		Students:         students,
		Attendances:      atts,
	}
	orderBulk(s.sorter, &b)
	return b, nil
}

// GetDetails returns the details of one date ordered by student name.
func (s *Service) GetDetails(ctx context.Context, attendanceID string) ([]Detail, error) {
	return cache.ReadThrough(ctx, s.cache, cache.Key(school.ResAttendance, "details", attendanceID), s.ttl, func(ctx context.Context) ([]Detail, error) {
		if _, err := s.store.GetAttendance(ctx, attendanceID); err != nil {
			return nil, err
		}
		ds, err := s.store.Details(ctx, attendanceID)
		if err != nil {
			return nil, err
		}
		orderDetails(s.sorter, ds)
		return ds, nil
	})
}

// rosterMatch returns the student ids to fill a date with. The supplied list
// must be exactly the roster; an empty list selects the roster.
func rosterMatch(roster, supplied []Student) ([]string, error) {
	if len(supplied) == 0 {
		if len(roster) == 0 {
			return nil, invalid("students", "class has no active students")
		}
		ids := make([]string, 0, len(roster))
		for _, st := range roster {
			ids = append(ids, st.StudentID)
		}
		return ids, nil
	}

	enrolled := make(map[string]bool, len(roster))
	for _, st := range roster {
		enrolled[st.StudentID] = true
	}
	seen := make(map[string]bool, len(supplied))
	var flds []apperr.FieldError
	ids := make([]string, 0, len(supplied))
	for i, st := range supplied {
		switch {
		case seen[st.StudentID]:
			flds = append(flds, apperr.FieldError{Field: fieldIndex("students", i, "studentId"), Error: "student is listed twice"})
		case !enrolled[st.StudentID]:
			flds = append(flds, apperr.FieldError{Field: fieldIndex("students", i, "studentId"), Error: "student is not enrolled in this class"})
		}
		seen[st.StudentID] = true
		ids = append(ids, st.StudentID)
	}
	if len(flds) > 0 {
		return nil, apperr.NewValidationError("students must match the class roster", flds...)
	}
	if missing := len(enrolled) - len(seen); missing > 0 {
		return nil, invalid("students", fmt.Sprintf("%d enrolled students are missing", missing))
	}
	return ids, nil
}

// CreateDetails fills an empty date with one detail per enrolled student.
func (s *Service) CreateDetails(ctx context.Context, actor Actor, attendanceID string, req CreateDetailsRequest) (res CreateResult, err error) {
	defer func() { observe("create_details", err) }()
	if err := apperr.Validate(req); err != nil {
		return CreateResult{}, err
	}
	att, err := s.store.GetAttendance(ctx, attendanceID)
	if err != nil {
		return CreateResult{}, err
	}
	if err := actor.canMutate(att.TeacherID); err != nil {
		return CreateResult{}, err
	}
	roster, err := s.store.Roster(ctx, att.ClassID)
	if err != nil {
		return CreateResult{}, err
	}
	ids, err := rosterMatch(roster, req.Students)
	if err != nil {
		return CreateResult{}, err
	}
	status := req.DefaultStatus
	if status == "" {
		status = StatusPresent
	}

	n, err := s.store.CreateDetails(ctx, attendanceID, ids, status)
	if err != nil {
		return CreateResult{}, err
	}
	s.invalidate(ctx)
	s.log.Info("attendance details created", zap.String("attendance_id", attendanceID), zap.Int("created", n), zap.String("status", string(status)))
	return CreateResult{Created: n, Message: "attendance details created"}, nil
}

// BulkUpdate applies per-student overrides and approves the date when asked.
// approve=false never clears an existing approval.
func (s *Service) BulkUpdate(ctx context.Context, actor Actor, attendanceID string, req BulkUpdateRequest) (res UpdateResult, err error) {
	defer func() { observe("bulk_update", err) }()
	if err := apperr.Validate(req); err != nil {
		return UpdateResult{}, err
	}
	if len(req.Updates) == 0 && !req.Approve {
		return UpdateResult{}, invalid("updates", "nothing to update")
	}
	seen := map[string]bool{}
	for i, u := range req.Updates {
		if seen[u.StudentID] {
			return UpdateResult{}, invalid(fieldIndex("updates", i, "studentId"), "student is listed twice")
		}
		seen[u.StudentID] = true
	}
	att, err := s.store.GetAttendance(ctx, attendanceID)
	if err != nil {
		return UpdateResult{}, err
	}
	if err := actor.canMutate(att.TeacherID); err != nil {
		return UpdateResult{}, err
	}

	out, err := s.store.UpdateDetails(ctx, attendanceID, req.Updates, req.Approve)
	if err != nil {
		return UpdateResult{}, err
	}
	s.invalidate(ctx)
	s.log.Info("attendance updated", zap.String("attendance_id", attendanceID), zap.Int("updated", out.Updated), zap.Bool("approved", out.Approved))

	if out.OutboxID != "" {
		s.publishApproved(ctx, out.OutboxID, Approved{
			AttendanceID:  att.ID,
			Session:       SessionKey{ClassID: att.ClassID, SubjectTeacherID: att.SubjectTeacherID, Semester: att.Semester},
			Date:          att.Date,
			FirstApproval: out.Newly,
			At:            s.now().UTC(),
		})
	}
	msg := "attendance updated"
	if out.Newly {
		msg = "attendance updated and approved"
	}
	return UpdateResult{TotalUpdated: out.Updated, AttendanceApproved: out.Approved, Message: msg}, nil
}

const (
	publishTimeout = 5 * time.Second
	// relayGrace leaves fresh events to the publish that follows their commit.
	relayGrace = 30 * time.Second
	relayBatch = 100
)

func (s *Service) publish(ctx context.Context, ev Approved) error {
	msg, err := queue.NewMessage(queue.TypeAttendanceApproved, ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return s.events.Publish(ctx, msg)
}

// publishApproved pushes a committed outbox event. It outlives the request:
// a client hanging up does not drop the event, and a failure leaves it for
// RelayApprovals.
func (s *Service) publishApproved(ctx context.Context, outboxID string, ev Approved) {
	if s.events == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := s.publish(ctx, ev); err != nil {
		s.log.Warn("publish attendance approval failed, left for relay", zap.String("attendance_id", ev.AttendanceID), zap.Error(err))
		return
	}
	if err := s.store.MarkPublished(ctx, outboxID); err != nil {
		s.log.Warn("mark approval published failed", zap.String("outbox_id", outboxID), zap.Error(err))
	}
}

// RelayApprovals publishes outbox events whose immediate publish failed.
// Delivery is at least once.
func (s *Service) RelayApprovals(ctx context.Context) (int, error) {
	if s.events == nil {
		return 0, nil
	}
	return s.store.RelayPending(ctx, s.now().Add(-relayGrace), relayBatch, func(ctx context.Context, p PendingApproval) error {
		return s.publish(ctx, p.Event)
	})
}

// RunRelay calls RelayApprovals every interval until ctx is done.
func (s *Service) RunRelay(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.RelayApprovals(ctx)
			if err != nil {
				s.log.Warn("approval relay failed", zap.Int("published", n), zap.Error(err))
				continue
			}
			if n > 0 {
				s.log.Info("approval events relayed", zap.Int("published", n))
			}
		}
	}
}

// DeleteBulk removes a whole sheet unless any of its dates is approved.
func (s *Service) DeleteBulk(ctx context.Context, actor Actor, key SessionKey) (res DeleteResult, err error) {
	defer func() { observe("delete_bulk", err) }()
	if err := apperr.Validate(key); err != nil {
		return DeleteResult{}, err
	}
	info, err := s.store.SessionInfo(ctx, key)
	if err != nil {
		return DeleteResult{}, err
	}
	if err := actor.canMutate(info.SubjectTeacher.TeacherID); err != nil {
		return DeleteResult{}, err
	}
	n, err := s.store.DeleteSession(ctx, key)
	if err != nil {
		return DeleteResult{}, err
	}
	s.invalidate(ctx)
	s.log.Info("attendance deleted", zap.String("class_id", key.ClassID), zap.String("subject_teacher_id", key.SubjectTeacherID), zap.Int("deleted", n))
	return DeleteResult{Deleted: n, Message: "attendance deleted"}, nil
}

// Export renders the sheet as an XLSX workbook and suggests a file name.
func (s *Service) Export(ctx context.Context, key SessionKey) ([]byte, string, error) {
	b, err := s.GetBulk(ctx, key)
	if err != nil {
		return nil, "", err
	}
	f, err := renderWorkbook(b)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, "", err
	}
	observe("export", nil)
	return buf.Bytes(), exportName(b), nil
}

// RecomputeRecap rebuilds the stored recap of a sheet from its approved dates.
func (s *Service) RecomputeRecap(ctx context.Context, key SessionKey) (recaps []Recap, err error) {
	defer func() { observe("recap", err) }()
	atts, err := s.store.ListAttendances(ctx, key)
	if err != nil {
		return nil, err
	}
	recaps = computeRecap(key, atts)
	if err := s.store.SaveRecaps(ctx, key, recaps); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return recaps, nil
}

// Recaps lists stored recaps ordered by student and subject name.
func (s *Service) Recaps(ctx context.Context, f RecapFilter) ([]Recap, error) {
	if err := apperr.Validate(f); err != nil {
		return nil, err
	}
	key := cache.Key(school.ResAttendance, "recap", f.ClassID, f.SubjectTeacherID, string(f.Semester), f.StudentID)
	return cache.ReadThrough(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]Recap, error) {
		rs, err := s.store.Recaps(ctx, f)
		if err != nil {
			return nil, err
		}
		collation.SortBy(s.sorter, rs, func(r Recap) string { return r.SubjectName })
		collation.SortBy(s.sorter, rs, func(r Recap) string { return r.StudentName })
		return rs, nil
	})
}

// Absentees returns the students marked absent on one date.
func (s *Service) Absentees(ctx context.Context, attendanceID string) ([]Detail, error) {
	ds, err := s.store.Details(ctx, attendanceID)
	if err != nil {
		return nil, err
	}
	var out []Detail
	for _, d := range ds {
		if d.Status == StatusAbsent {
			out = append(out, d)
		}
	}
	return out, nil
}
