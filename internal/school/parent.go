package school

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/auth"
	"schoolinfo/internal/cache"
	"schoolinfo/internal/collation"
	"schoolinfo/internal/store"
)

const parentSelect = `
	SELECT p.id, u.id, u.full_name, u.email, u.gender, p.phone, p.nik, p.address, p.dob, p.is_active, p.created_at, p.updated_at
	FROM parents p
	JOIN users u ON u.id = p.user_id
`

func scanParent(row interface{ Scan(...any) error }) (Parent, error) {
	var p Parent
	err := row.Scan(&p.ID, &p.User.ID, &p.User.FullName, &p.User.Email, &p.User.Gender, &p.Phone, &p.NIK, &p.Address, &p.DOB, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Parent{}, apperr.NotFound("parent")
	}
	p.Students = []Ref{}
	return p, err
}

func (r *Repository) ListParents(ctx context.Context) ([]Parent, error) {
	rows, err := r.db.QueryContext(ctx, parentSelect)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	parents := []Parent{}
	for rows.Next() {
		p, err := scanParent(rows)
		if err != nil {
			return nil, err
		}
		parents = append(parents, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return parents, r.attachStudents(ctx, parents)
}

func (r *Repository) attachStudents(ctx context.Context, parents []Parent) error {
	if len(parents) == 0 {
		return nil
	}
	idx := make(map[string]int, len(parents))
	ids := make([]string, 0, len(parents))
	for i, p := range parents {
		idx[p.ID] = i
		ids = append(ids, p.ID)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT sp.parent_id, s.id, u.full_name
		FROM student_parents sp
		JOIN students s ON s.id = sp.student_id
		JOIN users u ON u.id = s.user_id
		WHERE sp.parent_id::text = ANY($1)
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			parentID string
			st       Ref
		)
		if err := rows.Scan(&parentID, &st.ID, &st.Name); err != nil {
			return err
		}
		i := idx[parentID]
		parents[i].Students = append(parents[i].Students, st)
	}
	return rows.Err()
}

func (r *Repository) GetParent(ctx context.Context, id string) (Parent, error) {
	p, err := scanParent(r.db.QueryRowContext(ctx, parentSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return Parent{}, err
	}
	out := []Parent{p}
	if err := r.attachStudents(ctx, out); err != nil {
		return Parent{}, err
	}
	return out[0], nil
}

// ParentContact is the mail target of a student's absence notice.
type ParentContact struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	ParentName  string `json:"parentName"`
	Email       string `json:"email"`
}

// ParentContacts returns the active parents of the given students.
func (r *Repository) ParentContacts(ctx context.Context, studentIDs []string) ([]ParentContact, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, su.full_name, pu.full_name, pu.email
		FROM student_parents sp
		JOIN students s ON s.id = sp.student_id
		JOIN users su ON su.id = s.user_id
		JOIN parents p ON p.id = sp.parent_id
		JOIN users pu ON pu.id = p.user_id
		WHERE sp.student_id::text = ANY($1) AND p.is_active AND pu.is_active
	`, studentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ParentContact
	for rows.Next() {
		var c ParentContact
		if err := rows.Scan(&c.StudentID, &c.StudentName, &c.ParentName, &c.Email); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) insertParent(ctx context.Context, q store.Querier, req ParentRequest) (string, error) {
	id := uuid.NewString()
	active := boolOr(req.IsActive, true)
	userID, err := r.createAccount(ctx, q, auth.RoleParent, id, accountFields{
		Email: req.Email, Password: req.Password, FullName: req.FullName, Gender: req.Gender, Active: active,
	})
	if err != nil {
		return "", err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO parents (id, user_id, phone, nik, address, dob, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, id, userID, req.Phone, req.NIK, req.Address, req.DOB, active)
	if err != nil {
		return "", err
	}
	return id, linkStudents(ctx, q, id, req.StudentIDs)
}

func linkStudents(ctx context.Context, q store.Querier, parentID string, studentIDs []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM student_parents WHERE parent_id = $1`, parentID); err != nil {
		return err
	}
	for _, sid := range studentIDs {
		_, err := q.ExecContext(ctx, `
			INSERT INTO student_parents (student_id, parent_id) VALUES ($1,$2) ON CONFLICT DO NOTHING
		`, sid, parentID)
		if err != nil {
			return referenceError(err, "student")
		}
	}
	return nil
}

func (r *Repository) CreateParent(ctx context.Context, req ParentRequest) (string, error) {
	var id string
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		id, err = r.insertParent(ctx, tx, req)
		return err
	})
	return id, err
}

func (r *Repository) UpdateParent(ctx context.Context, id string, req ParentRequest) error {
	return store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		active := boolOr(req.IsActive, true)
		if err := r.updateAccount(ctx, tx, "parents", "parent", id, accountFields{
			Email: req.Email, Password: req.Password, FullName: req.FullName, Gender: req.Gender, Active: active,
		}); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE parents SET phone = $2, nik = $3, address = $4, dob = $5, is_active = $6, updated_at = NOW()
			WHERE id = $1
		`, id, req.Phone, req.NIK, req.Address, req.DOB, active)
		if err != nil {
			return err
		}
		if req.StudentIDs == nil {
			return nil
		}
		return linkStudents(ctx, tx, id, req.StudentIDs)
	})
}

// CreateParentsWithStudent enrols a student and their parents in one transaction.
func (r *Repository) CreateParentsWithStudent(ctx context.Context, req ParentsWithStudentRequest) (string, error) {
	var studentID string
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		studentID, err = r.enrol(ctx, tx, req)
		return err
	})
	return studentID, err
}

func (r *Repository) enrol(ctx context.Context, q store.Querier, req ParentsWithStudentRequest) (string, error) {
	parentIDs := make([]string, 0, len(req.ParentRequests))
	for _, pr := range req.ParentRequests {
		id, err := r.insertParent(ctx, q, pr)
		if err != nil {
			return "", err
		}
		parentIDs = append(parentIDs, id)
	}
	sr := req.StudentRequest
	sr.ParentIDs = append(sr.ParentIDs, parentIDs...)
	return r.insertStudent(ctx, q, sr)
}

func (s *Service) ListParents(ctx context.Context) ([]Parent, error) {
	parents, err := read(ctx, s, cache.Key(ResParents, "list"), s.repo.ListParents)
	if err != nil {
		return nil, err
	}
	collation.SortBy(s.sorter, parents, func(p Parent) string { return p.User.FullName })
	return parents, nil
}

func (s *Service) GetParent(ctx context.Context, id string) (Parent, error) {
	return read(ctx, s, cache.Key(ResParents, "id", id), func(ctx context.Context) (Parent, error) {
		return s.repo.GetParent(ctx, id)
	})
}

// ParentContacts is uncached; it feeds outgoing notices, not screens.
func (s *Service) ParentContacts(ctx context.Context, studentIDs []string) ([]ParentContact, error) {
	return s.repo.ParentContacts(ctx, studentIDs)
}

func (s *Service) CreateParent(ctx context.Context, req ParentRequest) (Parent, error) {
	if err := apperr.Validate(req); err != nil {
		return Parent{}, err
	}
	id, err := s.repo.CreateParent(ctx, req)
	if err != nil {
		return Parent{}, err
	}
	s.invalidate(ctx, ResParents, ResStudents)
	return s.repo.GetParent(ctx, id)
}

func (s *Service) UpdateParent(ctx context.Context, id string, req ParentRequest) (Parent, error) {
	if err := apperr.Validate(req); err != nil {
		return Parent{}, err
	}
	if err := s.repo.UpdateParent(ctx, id, req); err != nil {
		return Parent{}, err
	}
	s.invalidate(ctx, ResParents, ResStudents)
	return s.repo.GetParent(ctx, id)
}

func (s *Service) DeleteParent(ctx context.Context, id string) error {
	if err := s.repo.deleteProfile(ctx, "parents", "parent", id); err != nil {
		return err
	}
	s.invalidate(ctx, ResParents)
	return nil
}

// CreateParentsWithStudent validates and enrols a student with new parent accounts.
func (s *Service) CreateParentsWithStudent(ctx context.Context, req ParentsWithStudentRequest) (Student, error) {
	if err := apperr.Validate(req); err != nil {
		return Student{}, err
	}
	if err := requirePasswords(req); err != nil {
		return Student{}, err
	}
	id, err := s.repo.CreateParentsWithStudent(ctx, req)
	if err != nil {
		return Student{}, err
	}
	s.invalidate(ctx, ResParents, ResStudents)
	return s.repo.GetStudent(ctx, id)
}

func requirePasswords(req ParentsWithStudentRequest) error {
	var flds []apperr.FieldError
	if req.StudentRequest.Password == "" {
		flds = append(flds, apperr.FieldError{Field: "studentRequest.password", Error: "this field is required"})
	}
	for i, p := range req.ParentRequests {
		if p.Password == "" {
			flds = append(flds, apperr.FieldError{Field: fmt.Sprintf("parentRequests[%d].password", i), Error: "this field is required"})
		}
	}
	if len(flds) > 0 {
		return apperr.NewValidationError("invalid request", flds...)
	}
	return nil
}
