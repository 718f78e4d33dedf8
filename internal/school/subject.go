package school

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/cache"
)

func scanSubject(row interface{ Scan(...any) error }) (Subject, error) {
	var sub Subject
	err := row.Scan(&sub.ID, &sub.Name, &sub.Grade, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Subject{}, apperr.NotFound("subject")
	}
	return sub, err
}

// ListSubjects returns subjects, optionally for one grade.
func (r *Repository) ListSubjects(ctx context.Context, grade Grade) ([]Subject, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, grade, created_at, updated_at FROM subjects
		WHERE ($1 = '' OR grade = $1)
		ORDER BY grade, name
	`, grade)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	subjects := []Subject{}
	for rows.Next() {
		sub, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

func (r *Repository) GetSubject(ctx context.Context, id string) (Subject, error) {
	return scanSubject(r.db.QueryRowContext(ctx, `SELECT id, name, grade, created_at, updated_at FROM subjects WHERE id = $1`, id))
}

func (r *Repository) SaveSubject(ctx context.Context, id string, req SubjectRequest) (string, error) {
	if id == "" {
		id = uuid.NewString()
		_, err := r.db.ExecContext(ctx, `INSERT INTO subjects (id, name, grade) VALUES ($1,$2,$3)`, id, req.Name, req.Grade)
		return id, err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE subjects SET name = $2, grade = $3, updated_at = NOW() WHERE id = $1`, id, req.Name, req.Grade)
	if err != nil {
		return id, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return id, apperr.NotFound("subject")
	}
	return id, nil
}

func (s *Service) ListSubjects(ctx context.Context, grade Grade) ([]Subject, error) {
	return read(ctx, s, cache.Key(ResSubjects, "list", string(grade)), func(ctx context.Context) ([]Subject, error) {
		return s.repo.ListSubjects(ctx, grade)
	})
}

func (s *Service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return read(ctx, s, cache.Key(ResSubjects, "id", id), func(ctx context.Context) (Subject, error) {
		return s.repo.GetSubject(ctx, id)
	})
}

func (s *Service) SaveSubject(ctx context.Context, id string, req SubjectRequest) (Subject, error) {
	if err := apperr.Validate(req); err != nil {
		return Subject{}, err
	}
	id, err := s.repo.SaveSubject(ctx, id, req)
	if err != nil {
		return Subject{}, err
	}
	s.invalidate(ctx, ResSubjects)
	return s.repo.GetSubject(ctx, id)
}

func (s *Service) DeleteSubject(ctx context.Context, id string) error {
	if err := s.repo.deleteRow(ctx, "subjects", "subject", id); err != nil {
		return err
	}
	s.invalidate(ctx, ResSubjects)
	return nil
}
