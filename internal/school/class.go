package school

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/cache"
	"schoolinfo/internal/collation"
)

const classSelect = `
	SELECT c.id, c.name, c.grade, ay.id, ay.name, t.id, u.full_name,
		(SELECT COUNT(*) FROM students s WHERE s.class_id = c.id AND s.is_active),
		c.created_at, c.updated_at
	FROM classes c
	JOIN academic_years ay ON ay.id = c.academic_year_id
	LEFT JOIN teachers t ON t.id = c.homeroom_teacher_id
	LEFT JOIN users u ON u.id = t.user_id
`

func scanClass(row interface{ Scan(...any) error }) (Class, error) {
	var (
		c               Class
		teacherID, name sql.NullString
	)
	err := row.Scan(&c.ID, &c.Name, &c.Grade, &c.AcademicYear.ID, &c.AcademicYear.Name, &teacherID, &name, &c.StudentCount, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Class{}, apperr.NotFound("class")
	}
	if teacherID.Valid {
		c.HomeroomTeacher = &Ref{ID: teacherID.String, Name: name.String}
	}
	return c, err
}

// ClassFilter narrows a class listing; empty fields match everything.
type ClassFilter struct {
	AcademicYearID string
	Grade          Grade
}

func (r *Repository) ListClasses(ctx context.Context, f ClassFilter) ([]Class, error) {
	rows, err := r.db.QueryContext(ctx, classSelect+`
		WHERE ($1 = '' OR c.academic_year_id::text = $1) AND ($2 = '' OR c.grade = $2)
	`, f.AcademicYearID, f.Grade)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	classes := []Class{}
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

func (r *Repository) GetClass(ctx context.Context, id string) (Class, error) {
	return scanClass(r.db.QueryRowContext(ctx, classSelect+` WHERE c.id = $1`, id))
}

func (r *Repository) SaveClass(ctx context.Context, id string, req ClassRequest) (string, error) {
	if id == "" {
		id = uuid.NewString()
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO classes (id, name, grade, academic_year_id, homeroom_teacher_id)
			VALUES ($1,$2,$3,$4,$5)
		`, id, req.Name, req.Grade, req.AcademicYearID, nullable(req.HomeroomTeacherID))
		return id, referenceError(err, "academic year or homeroom teacher")
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE classes SET name = $2, grade = $3, academic_year_id = $4, homeroom_teacher_id = $5, updated_at = NOW()
		WHERE id = $1
	`, id, req.Name, req.Grade, req.AcademicYearID, nullable(req.HomeroomTeacherID))
	if err != nil {
		return id, referenceError(err, "academic year or homeroom teacher")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return id, apperr.NotFound("class")
	}
	return id, nil
}

func (s *Service) ListClasses(ctx context.Context, f ClassFilter) ([]Class, error) {
	classes, err := read(ctx, s, cache.Key(ResClasses, "list", f.AcademicYearID, string(f.Grade)), func(ctx context.Context) ([]Class, error) {
		return s.repo.ListClasses(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	collation.SortBy(s.sorter, classes, func(c Class) string { return c.Name })
	return classes, nil
}

func (s *Service) GetClass(ctx context.Context, id string) (Class, error) {
	return read(ctx, s, cache.Key(ResClasses, "id", id), func(ctx context.Context) (Class, error) {
		return s.repo.GetClass(ctx, id)
	})
}

func (s *Service) SaveClass(ctx context.Context, id string, req ClassRequest) (Class, error) {
	if err := apperr.Validate(req); err != nil {
		return Class{}, err
	}
	id, err := s.repo.SaveClass(ctx, id, req)
	if err != nil {
		return Class{}, err
	}
	s.invalidate(ctx, ResClasses)
	return s.repo.GetClass(ctx, id)
}

func (s *Service) DeleteClass(ctx context.Context, id string) error {
	if err := s.repo.deleteRow(ctx, "classes", "class", id); err != nil {
		return err
	}
	s.invalidate(ctx, ResClasses)
	return nil
}
