package school

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/auth"
	"schoolinfo/internal/cache"
	"schoolinfo/internal/collation"
	"schoolinfo/internal/store"
)

const studentSelect = `
	SELECT s.id, u.id, u.full_name, u.email, u.gender, c.id, c.name, c.grade,
		s.enrollment_number, s.dob, s.address, s.is_active, s.created_at, s.updated_at
	FROM students s
	JOIN users u ON u.id = s.user_id
	LEFT JOIN classes c ON c.id = s.class_id
`

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var (
		st                   Student
		classID, name, grade sql.NullString
	)
	err := row.Scan(&st.ID, &st.User.ID, &st.User.FullName, &st.User.Email, &st.User.Gender, &classID, &name, &grade,
		&st.EnrollmentNumber, &st.DOB, &st.Address, &st.IsActive, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, apperr.NotFound("student")
	}
	if classID.Valid {
		st.Class = &ClassRef{ID: classID.String, Name: name.String, Grade: Grade(grade.String)}
	}
	st.Parents = []UserRef{}
	return st, err
}

// StudentFilter narrows a student listing; empty fields match everything.
type StudentFilter struct {
	ClassID    string
	Search     string
	ActiveOnly bool
}

func (f StudentFilter) key() []string {
	active := "all"
	if f.ActiveOnly {
		active = "active"
	}
	return []string{ResStudents, "list", f.ClassID, strings.ToLower(f.Search), active}
}

func (r *Repository) ListStudents(ctx context.Context, f StudentFilter) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, studentSelect+`
		WHERE ($1 = '' OR s.class_id::text = $1)
		  AND ($2 = '' OR u.full_name ILIKE '%' || $2 || '%' OR s.enrollment_number ILIKE '%' || $2 || '%')
		  AND (NOT $3 OR s.is_active)
	`, f.ClassID, f.Search, f.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	students := []Student{}
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return students, r.attachParents(ctx, students)
}

func (r *Repository) attachParents(ctx context.Context, students []Student) error {
	if len(students) == 0 {
		return nil
	}
	idx := make(map[string]int, len(students))
	ids := make([]string, 0, len(students))
	for i, st := range students {
		idx[st.ID] = i
		ids = append(ids, st.ID)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT sp.student_id, p.id, u.full_name, u.email, u.gender
		FROM student_parents sp
		JOIN parents p ON p.id = sp.parent_id
		JOIN users u ON u.id = p.user_id
		WHERE sp.student_id::text = ANY($1)
		ORDER BY u.full_name
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			studentID string
			p         UserRef
		)
		if err := rows.Scan(&studentID, &p.ID, &p.FullName, &p.Email, &p.Gender); err != nil {
			return err
		}
		i := idx[studentID]
		students[i].Parents = append(students[i].Parents, p)
	}
	return rows.Err()
}

func (r *Repository) GetStudent(ctx context.Context, id string) (Student, error) {
	st, err := scanStudent(r.db.QueryRowContext(ctx, studentSelect+` WHERE s.id = $1`, id))
	if err != nil {
		return Student{}, err
	}
	out := []Student{st}
	if err := r.attachParents(ctx, out); err != nil {
		return Student{}, err
	}
	return out[0], nil
}

// StudentByUser resolves the student profile of a login account.
func (r *Repository) StudentByUser(ctx context.Context, userID string) (Student, error) {
	return scanStudent(r.db.QueryRowContext(ctx, studentSelect+` WHERE s.user_id = $1`, userID))
}

// insertStudent creates the account, the profile and its parent links inside q.
func (r *Repository) insertStudent(ctx context.Context, q store.Querier, req StudentRequest) (string, error) {
	id := uuid.NewString()
	userID, err := r.createAccount(ctx, q, auth.RoleStudent, id, accountFields{
		Email: req.Email, Password: req.Password, FullName: req.FullName, Gender: req.Gender, Active: boolOr(req.IsActive, true),
	})
	if err != nil {
		return "", err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO students (id, user_id, class_id, enrollment_number, dob, address, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, id, userID, nullable(req.ClassID), req.EnrollmentNumber, req.DOB, req.Address, boolOr(req.IsActive, true))
	if err != nil {
		return "", referenceError(err, "class")
	}
	return id, linkParents(ctx, q, id, req.ParentIDs)
}

func linkParents(ctx context.Context, q store.Querier, studentID string, parentIDs []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM student_parents WHERE student_id = $1`, studentID); err != nil {
		return err
	}
	for _, pid := range parentIDs {
		_, err := q.ExecContext(ctx, `
			INSERT INTO student_parents (student_id, parent_id) VALUES ($1,$2) ON CONFLICT DO NOTHING
		`, studentID, pid)
		if err != nil {
			return referenceError(err, "parent")
		}
	}
	return nil
}

func (r *Repository) CreateStudent(ctx context.Context, req StudentRequest) (string, error) {
	var id string
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		id, err = r.insertStudent(ctx, tx, req)
		return err
	})
	return id, err
}

func (r *Repository) UpdateStudent(ctx context.Context, id string, req StudentRequest) error {
	return store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		active := boolOr(req.IsActive, true)
		if err := r.updateAccount(ctx, tx, "students", "student", id, accountFields{
			Email: req.Email, Password: req.Password, FullName: req.FullName, Gender: req.Gender, Active: active,
		}); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE students SET class_id = $2, enrollment_number = $3, dob = $4, address = $5, is_active = $6, updated_at = NOW()
			WHERE id = $1
		`, id, nullable(req.ClassID), req.EnrollmentNumber, req.DOB, req.Address, active)
		if err != nil {
			return referenceError(err, "class")
		}
		if req.ParentIDs == nil {
			return nil
		}
		return linkParents(ctx, tx, id, req.ParentIDs)
	})
}

func (s *Service) ListStudents(ctx context.Context, f StudentFilter) ([]Student, error) {
	students, err := read(ctx, s, cache.Key(f.key()...), func(ctx context.Context) ([]Student, error) {
		return s.repo.ListStudents(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	collation.SortBy(s.sorter, students, func(st Student) string { return st.User.FullName })
	return students, nil
}

func (s *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	return read(ctx, s, cache.Key(ResStudents, "id", id), func(ctx context.Context) (Student, error) {
		return s.repo.GetStudent(ctx, id)
	})
}

// StudentForUser returns the student profile behind a login account.
func (s *Service) StudentForUser(ctx context.Context, userID string) (Student, error) {
	return read(ctx, s, cache.Key(ResStudents, "user", userID), func(ctx context.Context) (Student, error) {
		return s.repo.StudentByUser(ctx, userID)
	})
}

func (s *Service) CreateStudent(ctx context.Context, req StudentRequest) (Student, error) {
	if err := apperr.Validate(req); err != nil {
		return Student{}, err
	}
	id, err := s.repo.CreateStudent(ctx, req)
	if err != nil {
		return Student{}, err
	}
	s.invalidate(ctx, ResStudents)
	return s.repo.GetStudent(ctx, id)
}

func (s *Service) UpdateStudent(ctx context.Context, id string, req StudentRequest) (Student, error) {
	if err := apperr.Validate(req); err != nil {
		return Student{}, err
	}
	if err := s.repo.UpdateStudent(ctx, id, req); err != nil {
		return Student{}, err
	}
	s.invalidate(ctx, ResStudents)
	return s.repo.GetStudent(ctx, id)
}

func (s *Service) DeleteStudent(ctx context.Context, id string) error {
	if err := s.repo.deleteProfile(ctx, "students", "student", id); err != nil {
		return err
	}
	s.invalidate(ctx, ResStudents)
	return nil
}
