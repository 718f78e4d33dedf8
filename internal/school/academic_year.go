package school

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/cache"
	"schoolinfo/internal/store"
)

const academicYearColumns = `id, name, start_date, end_date, semester_two_start, is_active, created_at, updated_at`

func scanAcademicYear(row interface{ Scan(...any) error }) (AcademicYear, error) {
	var y AcademicYear
	err := row.Scan(&y.ID, &y.Name, &y.StartDate, &y.EndDate, &y.SemesterTwoStart, &y.IsActive, &y.CreatedAt, &y.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return AcademicYear{}, apperr.NotFound("academic year")
	}
	return y, err
}

// ListAcademicYears returns years newest first.
func (r *Repository) ListAcademicYears(ctx context.Context) ([]AcademicYear, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+academicYearColumns+` FROM academic_years ORDER BY start_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	years := []AcademicYear{}
	for rows.Next() {
		y, err := scanAcademicYear(rows)
		if err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// GetAcademicYear returns a single year by id.
func (r *Repository) GetAcademicYear(ctx context.Context, id string) (AcademicYear, error) {
	return scanAcademicYear(r.db.QueryRowContext(ctx, `SELECT `+academicYearColumns+` FROM academic_years WHERE id = $1`, id))
}

// SaveAcademicYear inserts when id is empty and updates otherwise. Activating a
// year deactivates every other one in the same transaction.
func (r *Repository) SaveAcademicYear(ctx context.Context, id string, req AcademicYearRequest) (string, error) {
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if req.IsActive {
			if _, err := tx.ExecContext(ctx, `UPDATE academic_years SET is_active = FALSE WHERE is_active AND id::text <> $1`, id); err != nil {
				return err
			}
		}
		if id == "" {
			id = uuid.NewString()
			_, err := tx.ExecContext(ctx, `
				INSERT INTO academic_years (id, name, start_date, end_date, semester_two_start, is_active)
				VALUES ($1,$2,$3,$4,$5,$6)
			`, id, req.Name, req.StartDate, req.EndDate, req.SemesterTwoStart, req.IsActive)
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE academic_years
			SET name = $2, start_date = $3, end_date = $4, semester_two_start = $5, is_active = $6, updated_at = NOW()
			WHERE id = $1
		`, id, req.Name, req.StartDate, req.EndDate, req.SemesterTwoStart, req.IsActive)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("academic year")
		}
		return nil
	})
	return id, err
}

// deleteRow removes a row and maps missing/still-referenced rows onto the error taxonomy.
func (r *Repository) deleteRow(ctx context.Context, table, resource, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		if store.IsForeignKeyViolation(err) {
			return apperr.Conflict(resource + " is still in use")
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(resource)
	}
	return nil
}

func (s *Service) ListAcademicYears(ctx context.Context) ([]AcademicYear, error) {
	return read(ctx, s, cache.Key(ResAcademicYears, "list"), s.repo.ListAcademicYears)
}

func (s *Service) GetAcademicYear(ctx context.Context, id string) (AcademicYear, error) {
	return read(ctx, s, cache.Key(ResAcademicYears, "id", id), func(ctx context.Context) (AcademicYear, error) {
		return s.repo.GetAcademicYear(ctx, id)
	})
}

func (s *Service) CreateAcademicYear(ctx context.Context, req AcademicYearRequest) (AcademicYear, error) {
	return s.saveAcademicYear(ctx, "", req)
}

func (s *Service) UpdateAcademicYear(ctx context.Context, id string, req AcademicYearRequest) (AcademicYear, error) {
	return s.saveAcademicYear(ctx, id, req)
}

func (s *Service) saveAcademicYear(ctx context.Context, id string, req AcademicYearRequest) (AcademicYear, error) {
	if err := req.validate(); err != nil {
		return AcademicYear{}, err
	}
	id, err := s.repo.SaveAcademicYear(ctx, id, req)
	if err != nil {
		return AcademicYear{}, err
	}
	s.invalidate(ctx, ResAcademicYears)
	return s.repo.GetAcademicYear(ctx, id)
}

func (s *Service) DeleteAcademicYear(ctx context.Context, id string) error {
	if err := s.repo.deleteRow(ctx, "academic_years", "academic year", id); err != nil {
		return err
	}
	s.invalidate(ctx, ResAcademicYears)
	return nil
}
