package school

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"slices"

	"github.com/google/uuid"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/cache"
	"schoolinfo/internal/collation"
)

const timetableSelect = `
	SELECT tt.id, c.id, c.name, c.grade, st.id, t.id, u.full_name, sb.id, sb.name,
		tt.day_of_week, tt.start_time, tt.end_time, tt.is_active, tt.created_at, tt.updated_at
	FROM timetables tt
	JOIN classes c ON c.id = tt.class_id
	LEFT JOIN subject_teachers st ON st.id = tt.subject_teacher_id
	LEFT JOIN subjects sb ON sb.id = st.subject_id
	LEFT JOIN teachers t ON t.id = st.teacher_id
	LEFT JOIN users u ON u.id = t.user_id
`

func scanTimetable(row interface{ Scan(...any) error }) (Timetable, error) {
	var (
		tt                           Timetable
		stID, teacherID, teacherName sql.NullString
		subjectID, subjectName       sql.NullString
	)
	err := row.Scan(&tt.ID, &tt.Class.ID, &tt.Class.Name, &tt.Class.Grade, &stID, &teacherID, &teacherName, &subjectID, &subjectName,
		&tt.DayOfWeek, &tt.StartTime, &tt.EndTime, &tt.IsActive, &tt.CreatedAt, &tt.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Timetable{}, apperr.NotFound("timetable")
	}
	if err != nil {
		return Timetable{}, err
	}
	tt.ClassID = tt.Class.ID
	if stID.Valid {
		tt.SubjectTeacher = &SubjectTeacherRef{
			ID:              stID.String,
			TeacherID:       teacherID.String,
			TeacherFullname: teacherName.String,
			SubjectID:       subjectID.String,
			SubjectName:     subjectName.String,
		}
	}
	return tt, nil
}

// TimetableFilter narrows a timetable listing; empty fields match everything.
type TimetableFilter struct {
	ClassID   string
	TeacherID string
}

func (r *Repository) ListTimetables(ctx context.Context, f TimetableFilter) ([]Timetable, error) {
	rows, err := r.db.QueryContext(ctx, timetableSelect+`
		WHERE ($1 = '' OR tt.class_id::text = $1) AND ($2 = '' OR st.teacher_id::text = $2)
	`, f.ClassID, f.TeacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Timetable{}
	for rows.Next() {
		tt, err := scanTimetable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tt)
	}
	return out, rows.Err()
}

func (r *Repository) GetTimetable(ctx context.Context, id string) (Timetable, error) {
	return scanTimetable(r.db.QueryRowContext(ctx, timetableSelect+` WHERE tt.id = $1`, id))
}

func (r *Repository) SaveTimetable(ctx context.Context, id string, req TimetableRequest) (string, error) {
	active := boolOr(req.IsActive, true)
	if id == "" {
		id = uuid.NewString()
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO timetables (id, class_id, subject_teacher_id, day_of_week, start_time, end_time, is_active)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, id, req.ClassID, nullable(req.SubjectTeacherID), req.DayOfWeek, req.StartTime, req.EndTime, active)
		return id, referenceError(err, "class or subject teacher")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE timetables SET class_id = $2, subject_teacher_id = $3, day_of_week = $4, start_time = $5, end_time = $6,
			is_active = $7, updated_at = NOW()
		WHERE id = $1
	`, id, req.ClassID, nullable(req.SubjectTeacherID), req.DayOfWeek, req.StartTime, req.EndTime, active)
	if err != nil {
		return id, referenceError(err, "class or subject teacher")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return id, apperr.NotFound("timetable")
	}
	return id, nil
}

// AssignSubjectTeacher binds a slot to a teaching assignment.
func (r *Repository) AssignSubjectTeacher(ctx context.Context, id, subjectTeacherID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE timetables SET subject_teacher_id = $2, updated_at = NOW() WHERE id = $1
	`, id, subjectTeacherID)
	if err != nil {
		return referenceError(err, "subject teacher")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("timetable")
	}
	return nil
}

// sortSlots orders slots by weekday, then start time, then class name.
func sortSlots(s collation.Sorter, ts []Timetable) {
	slices.SortStableFunc(ts, func(a, b Timetable) int {
		if c := cmp.Compare(a.DayOfWeek.Index(), b.DayOfWeek.Index()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.StartTime, b.StartTime); c != 0 {
			return c
		}
		return s.Compare(a.Class.Name, b.Class.Name)
	})
}

// DaySchedule holds one weekday of a teacher's timetable.
type DaySchedule struct {
	DayOfWeek DayOfWeek   `json:"dayOfWeek"`
	Slots     []Timetable `json:"slots"`
}

// groupByDay returns one entry per school day in week order; ts must be sorted.
func groupByDay(ts []Timetable) []DaySchedule {
	out := make([]DaySchedule, len(Days))
	for i, d := range Days {
		out[i] = DaySchedule{DayOfWeek: d, Slots: []Timetable{}}
	}
	for _, tt := range ts {
		wd, ok := tt.DayOfWeek.Weekday()
		if !ok {
			continue
		}
		i := int(wd) - 1
		out[i].Slots = append(out[i].Slots, tt)
	}
	return out
}

// ClassTab is one class a teacher teaches with the subjects taught there.
type ClassTab struct {
	Class    ClassRef            `json:"class"`
	Subjects []SubjectTeacherRef `json:"subjects"`
}

// classTabs groups a teacher's active slots into classes and their subjects.
func classTabs(s collation.Sorter, ts []Timetable) []ClassTab {
	idx := map[string]int{}
	tabs := []ClassTab{}
	seen := map[string]bool{}
	for _, tt := range ts {
		if !tt.IsActive || tt.SubjectTeacher == nil {
			continue
		}
		i, ok := idx[tt.Class.ID]
		if !ok {
			i = len(tabs)
			idx[tt.Class.ID] = i
			tabs = append(tabs, ClassTab{Class: tt.Class, Subjects: []SubjectTeacherRef{}})
		}
		k := tt.Class.ID + "/" + tt.SubjectTeacher.ID
		if seen[k] {
			continue
		}
		seen[k] = true
		tabs[i].Subjects = append(tabs[i].Subjects, *tt.SubjectTeacher)
	}
	collation.SortBy(s, tabs, func(t ClassTab) string { return t.Class.Name })
	for _, t := range tabs {
		collation.SortBy(s, t.Subjects, func(r SubjectTeacherRef) string { return r.SubjectName })
	}
	return tabs
}

func (s *Service) ListTimetables(ctx context.Context, f TimetableFilter) ([]Timetable, error) {
	ts, err := read(ctx, s, cache.Key(ResTimetables, "list", f.ClassID, f.TeacherID), func(ctx context.Context) ([]Timetable, error) {
		return s.repo.ListTimetables(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	sortSlots(s.sorter, ts)
	return ts, nil
}

func (s *Service) GetTimetable(ctx context.Context, id string) (Timetable, error) {
	return read(ctx, s, cache.Key(ResTimetables, "id", id), func(ctx context.Context) (Timetable, error) {
		return s.repo.GetTimetable(ctx, id)
	})
}

// TeacherSchedule returns a teacher's timetable grouped by weekday.
func (s *Service) TeacherSchedule(ctx context.Context, teacherID string) ([]DaySchedule, error) {
	ts, err := s.ListTimetables(ctx, TimetableFilter{TeacherID: teacherID})
	if err != nil {
		return nil, err
	}
	return groupByDay(ts), nil
}

// TeacherClassTabs returns the classes and subjects a teacher takes attendance for.
func (s *Service) TeacherClassTabs(ctx context.Context, teacherID string) ([]ClassTab, error) {
	ts, err := s.ListTimetables(ctx, TimetableFilter{TeacherID: teacherID})
	if err != nil {
		return nil, err
	}
	return classTabs(s.sorter, ts), nil
}

func (s *Service) SaveTimetable(ctx context.Context, id string, req TimetableRequest) (Timetable, error) {
	if err := req.validate(); err != nil {
		return Timetable{}, err
	}
	id, err := s.repo.SaveTimetable(ctx, id, req)
	if err != nil {
		return Timetable{}, err
	}
	s.invalidate(ctx, ResTimetables)
	return s.repo.GetTimetable(ctx, id)
}

func (s *Service) AssignSubjectTeacher(ctx context.Context, id string, req AssignSubjectTeacherRequest) (Timetable, error) {
	if err := apperr.Validate(req); err != nil {
		return Timetable{}, err
	}
	if err := s.repo.AssignSubjectTeacher(ctx, id, req.SubjectTeacherID); err != nil {
		return Timetable{}, err
	}
	s.invalidate(ctx, ResTimetables)
	return s.repo.GetTimetable(ctx, id)
}

func (s *Service) DeleteTimetable(ctx context.Context, id string) error {
	if err := s.repo.deleteRow(ctx, "timetables", "timetable", id); err != nil {
		return err
	}
	s.invalidate(ctx, ResTimetables)
	return nil
}
