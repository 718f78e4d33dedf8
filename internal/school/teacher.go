package school

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/auth"
	"schoolinfo/internal/cache"
	"schoolinfo/internal/collation"
	"schoolinfo/internal/store"
)

const teacherSelect = `
	SELECT t.id, u.id, u.full_name, u.email, u.gender, t.nik, t.nip, t.phone, t.dob, t.hire_date, t.created_at, t.updated_at
	FROM teachers t
	JOIN users u ON u.id = t.user_id
`

func scanTeacher(row interface{ Scan(...any) error }) (Teacher, error) {
	var t Teacher
	err := row.Scan(&t.ID, &t.User.ID, &t.User.FullName, &t.User.Email, &t.User.Gender, &t.NIK, &t.NIP, &t.Phone, &t.DOB, &t.HireDate, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Teacher{}, apperr.NotFound("teacher")
	}
	return t, err
}

func (r *Repository) ListTeachers(ctx context.Context) ([]Teacher, error) {
	rows, err := r.db.QueryContext(ctx, teacherSelect)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	teachers := []Teacher{}
	for rows.Next() {
		t, err := scanTeacher(rows)
		if err != nil {
			return nil, err
		}
		teachers = append(teachers, t)
	}
	return teachers, rows.Err()
}

func (r *Repository) GetTeacher(ctx context.Context, id string) (Teacher, error) {
	return scanTeacher(r.db.QueryRowContext(ctx, teacherSelect+` WHERE t.id = $1`, id))
}

// CreateTeacher inserts the login account and the teacher profile together.
func (r *Repository) CreateTeacher(ctx context.Context, req TeacherRequest) (string, error) {
	id := uuid.NewString()
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		userID, err := r.createAccount(ctx, tx, auth.RoleTeacher, id, accountFields{
			Email: req.Email, Password: req.Password, FullName: req.FullName, Gender: req.Gender, Active: true,
		})
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO teachers (id, user_id, nik, nip, phone, dob, hire_date)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, id, userID, req.NIK, req.NIP, req.Phone, req.DOB, req.HireDate)
		return referenceError(err, "teacher nik")
	})
	return id, err
}

func (r *Repository) UpdateTeacher(ctx context.Context, id string, req TeacherRequest) error {
	return store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.updateAccount(ctx, tx, "teachers", "teacher", id, accountFields{
			Email: req.Email, Password: req.Password, FullName: req.FullName, Gender: req.Gender, Active: true,
		}); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE teachers SET nik = $2, nip = $3, phone = $4, dob = $5, hire_date = $6, updated_at = NOW()
			WHERE id = $1
		`, id, req.NIK, req.NIP, req.Phone, req.DOB, req.HireDate)
		return referenceError(err, "teacher nik")
	})
}

func (s *Service) ListTeachers(ctx context.Context) ([]Teacher, error) {
	teachers, err := read(ctx, s, cache.Key(ResTeachers, "list"), s.repo.ListTeachers)
	if err != nil {
		return nil, err
	}
	collation.SortBy(s.sorter, teachers, func(t Teacher) string { return t.User.FullName })
	return teachers, nil
}

func (s *Service) GetTeacher(ctx context.Context, id string) (Teacher, error) {
	return read(ctx, s, cache.Key(ResTeachers, "id", id), func(ctx context.Context) (Teacher, error) {
		return s.repo.GetTeacher(ctx, id)
	})
}

func (s *Service) CreateTeacher(ctx context.Context, req TeacherRequest) (Teacher, error) {
	if err := apperr.Validate(req); err != nil {
		return Teacher{}, err
	}
	id, err := s.repo.CreateTeacher(ctx, req)
	if err != nil {
		return Teacher{}, err
	}
	s.invalidate(ctx, ResTeachers)
	return s.repo.GetTeacher(ctx, id)
}

func (s *Service) UpdateTeacher(ctx context.Context, id string, req TeacherRequest) (Teacher, error) {
	if err := apperr.Validate(req); err != nil {
		return Teacher{}, err
	}
	if err := s.repo.UpdateTeacher(ctx, id, req); err != nil {
		return Teacher{}, err
	}
	s.invalidate(ctx, ResTeachers)
	return s.repo.GetTeacher(ctx, id)
}

func (s *Service) DeleteTeacher(ctx context.Context, id string) error {
	if err := s.repo.deleteProfile(ctx, "teachers", "teacher", id); err != nil {
		return err
	}
	s.invalidate(ctx, ResTeachers)
	return nil
}
