package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"schoolinfo/internal/apperr"
)

var (
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", apperr.ErrUnauthorized)
	ErrInactive           = fmt.Errorf("account is inactive: %w", apperr.ErrForbidden)
)

// AccountStore is the persistence the login flow needs.
type AccountStore interface {
	ByEmail(ctx context.Context, email string) (Account, error)
	ByID(ctx context.Context, id string) (Account, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// Session is the result of a successful login.
type Session struct {
	Token   Token
	Account Account
}

// Service coordinates login and the current-user lookup.
type Service struct {
	accounts AccountStore
	issuer   string
	key      string
	ttl      time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewService creates a service backed by an account store.
func NewService(accounts AccountStore, issuer, key string, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{accounts: accounts, issuer: issuer, key: key, ttl: ttl, now: time.Now, log: log}
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	acc, err := s.accounts.ByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !CheckPassword(acc.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	if !acc.IsActive {
		return Session{}, ErrInactive
	}

	now := s.now()
	tok, err := Issue(acc, s.issuer, s.key, s.ttl, now)
	if err != nil {
		return Session{}, err
	}
	if err := s.accounts.TouchLogin(ctx, acc.ID, now); err != nil {
		s.log.Warn("record last login failed", zap.String("user_id", acc.ID), zap.Error(err))
	}
	acc.LastLogin = &now
	return Session{Token: tok, Account: acc}, nil
}

// Me returns the account behind the session claims.
func (s *Service) Me(ctx context.Context, claims Claims) (Account, error) {
	acc, err := s.accounts.ByID(ctx, claims.UserID())
	if err != nil {
		return Account{}, err
	}
	if !acc.IsActive {
		return Account{}, ErrInactive
	}
	return acc, nil
}
