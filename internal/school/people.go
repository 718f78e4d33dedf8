package school

import (
	"context"
	"database/sql"
	"errors"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/auth"
	"schoolinfo/internal/store"
)

// accountFields are the login-account parts of a teacher, student or parent.
type accountFields struct {
	Email    string
	Password string
	FullName string
	Gender   Gender
	Active   bool
}

func (r *Repository) createAccount(ctx context.Context, q store.Querier, role auth.Role, profileID string, f accountFields) (string, error) {
	if f.Password == "" {
		return "", apperr.NewValidationError("invalid request", apperr.FieldError{Field: "password", Error: "this field is required"})
	}
	acc, err := auth.InsertAccount(ctx, q, auth.Account{
		Email:     f.Email,
		FullName:  f.FullName,
		Role:      role,
		SchoolID:  r.schoolID,
		ProfileID: profileID,
		Gender:    string(f.Gender),
	}, f.Password)
	if err != nil {
		return "", err
	}
	if !f.Active {
		if err := auth.SetActive(ctx, q, acc.ID, false); err != nil {
			return "", err
		}
	}
	return acc.ID, nil
}

// updateAccount applies f to the account owning the profile row in table.
func (r *Repository) updateAccount(ctx context.Context, q store.Querier, table, resource, profileID string, f accountFields) error {
	var userID string
	err := q.QueryRowContext(ctx, `SELECT user_id FROM `+table+` WHERE id = $1`, profileID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(resource)
	}
	if err != nil {
		return err
	}
	if err := auth.UpdateAccount(ctx, q, userID, f.Email, f.FullName, string(f.Gender)); err != nil {
		return err
	}
	if f.Password != "" {
		if err := auth.SetPassword(ctx, q, userID, f.Password); err != nil {
			return err
		}
	}
	return auth.SetActive(ctx, q, userID, f.Active)
}

// deleteProfile removes the account behind a profile; the profile row cascades.
func (r *Repository) deleteProfile(ctx context.Context, table, resource, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = (SELECT user_id FROM `+table+` WHERE id = $1)`, id)
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
