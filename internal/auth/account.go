package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/store"
)

// Account is a login identity; teachers, students and parents each own one.
type Account struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"fullName"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	SchoolID     string     `json:"schoolId,omitempty"`
	ProfileID    string     `json:"-"`
	Gender       string     `json:"gender,omitempty"`
	IsActive     bool       `json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Repository persists accounts in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const accountColumns = `id, email, full_name, password_hash, role, school_id, COALESCE(profile_id::text, ''), gender, is_active, last_login, created_at`

func scanAccount(row interface{ Scan(...any) error }) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.FullName, &a.PasswordHash, &a.Role, &a.SchoolID, &a.ProfileID, &a.Gender, &a.IsActive, &a.LastLogin, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, apperr.NotFound("account")
	}
	return a, err
}

// ByEmail looks up an account by its login email.
func (r *Repository) ByEmail(ctx context.Context, email string) (Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// ByID returns a single account.
func (r *Repository) ByID(ctx context.Context, id string) (Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id))
}

// TouchLogin records a successful login.
func (r *Repository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return err
}

// InsertAccount creates the account with a bcrypt hash of password. It takes a
// Querier so profile inserts can share the caller's transaction.
func InsertAccount(ctx context.Context, q store.Querier, acc Account, password string) (Account, error) {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Account{}, err
	}
	acc.PasswordHash = hash
	acc.Email = strings.TrimSpace(acc.Email)
	acc.IsActive = true
	var profileID any
	if acc.ProfileID != "" {
		profileID = acc.ProfileID
	}
	err = q.QueryRowContext(ctx, `
		INSERT INTO users (id, email, full_name, password_hash, role, school_id, profile_id, gender, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,TRUE)
		RETURNING created_at
	`, acc.ID, acc.Email, acc.FullName, acc.PasswordHash, acc.Role, acc.SchoolID, profileID, acc.Gender).Scan(&acc.CreatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return Account{}, apperr.Conflict("email already registered")
		}
		return Account{}, err
	}
	return acc, nil
}

// UpdateAccount changes the profile-facing account fields.
func UpdateAccount(ctx context.Context, q store.Querier, id, email, fullName, gender string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE users SET email = $2, full_name = $3, gender = $4, updated_at = NOW()
		WHERE id = $1
	`, id, strings.TrimSpace(email), fullName, gender)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return apperr.Conflict("email already registered")
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("account")
	}
	return nil
}

// SetActive enables or disables login for an account.
func SetActive(ctx context.Context, q store.Querier, id string, active bool) error {
	_, err := q.ExecContext(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	return err
}

// SetPassword replaces the stored hash.
func SetPassword(ctx context.Context, q store.Querier, id, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	return err
}
