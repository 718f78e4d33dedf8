package school

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/cache"
)

const subjectTeacherSelect = `
	SELECT st.id, sb.id, sb.name, sb.grade, t.id, u.full_name, st.created_at
	FROM subject_teachers st
	JOIN subjects sb ON sb.id = st.subject_id
	JOIN teachers t ON t.id = st.teacher_id
	JOIN users u ON u.id = t.user_id
`

func scanSubjectTeacher(row interface{ Scan(...any) error }) (SubjectTeacher, error) {
	var st SubjectTeacher
	err := row.Scan(&st.ID, &st.Subject.ID, &st.Subject.Name, &st.Grade, &st.Teacher.ID, &st.Teacher.Name, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SubjectTeacher{}, apperr.NotFound("subject teacher")
	}
	return st, err
}

// ListSubjectTeachers returns assignments, optionally for one teacher.
func (r *Repository) ListSubjectTeachers(ctx context.Context, teacherID string) ([]SubjectTeacher, error) {
	rows, err := r.db.QueryContext(ctx, subjectTeacherSelect+`
		WHERE ($1 = '' OR st.teacher_id::text = $1)
		ORDER BY sb.grade, sb.name, u.full_name
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SubjectTeacher{}
	for rows.Next() {
		st, err := scanSubjectTeacher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *Repository) GetSubjectTeacher(ctx context.Context, id string) (SubjectTeacher, error) {
	return scanSubjectTeacher(r.db.QueryRowContext(ctx, subjectTeacherSelect+` WHERE st.id = $1`, id))
}

func (r *Repository) SaveSubjectTeacher(ctx context.Context, id string, req SubjectTeacherRequest) (string, error) {
	if id == "" {
		id = uuid.NewString()
		_, err := r.db.ExecContext(ctx, `INSERT INTO subject_teachers (id, subject_id, teacher_id) VALUES ($1,$2,$3)`, id, req.SubjectID, req.TeacherID)
		return id, referenceError(err, "subject or teacher")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE subject_teachers SET subject_id = $2, teacher_id = $3, updated_at = NOW() WHERE id = $1
	`, id, req.SubjectID, req.TeacherID)
	if err != nil {
		return id, referenceError(err, "subject or teacher")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return id, apperr.NotFound("subject teacher")
	}
	return id, nil
}

func (s *Service) ListSubjectTeachers(ctx context.Context, teacherID string) ([]SubjectTeacher, error) {
	return read(ctx, s, cache.Key(ResSubjectTeachers, "list", teacherID), func(ctx context.Context) ([]SubjectTeacher, error) {
		return s.repo.ListSubjectTeachers(ctx, teacherID)
	})
}

func (s *Service) GetSubjectTeacher(ctx context.Context, id string) (SubjectTeacher, error) {
	return read(ctx, s, cache.Key(ResSubjectTeachers, "id", id), func(ctx context.Context) (SubjectTeacher, error) {
		return s.repo.GetSubjectTeacher(ctx, id)
	})
}

func (s *Service) SaveSubjectTeacher(ctx context.Context, id string, req SubjectTeacherRequest) (SubjectTeacher, error) {
	if err := apperr.Validate(req); err != nil {
		return SubjectTeacher{}, err
	}
	id, err := s.repo.SaveSubjectTeacher(ctx, id, req)
	if err != nil {
		return SubjectTeacher{}, err
	}
	s.invalidate(ctx, ResSubjectTeachers)
	return s.repo.GetSubjectTeacher(ctx, id)
}

func (s *Service) DeleteSubjectTeacher(ctx context.Context, id string) error {
	if err := s.repo.deleteRow(ctx, "subject_teachers", "subject teacher", id); err != nil {
		return err
	}
	s.invalidate(ctx, ResSubjectTeachers)
	return nil
}
