package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
	ErrNoRole         = errors.New("token has no known role")
)

// Claims represents JWT payload.
type Claims struct {
	Role      Role   `json:"role"`
	ProfileID string `json:"profileId,omitempty"`
	SchoolID  string `json:"schoolId,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token.
func (c Claims) UserID() string { return c.Subject }

// Token is a signed access token and its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Issue issues a signed HS256 access token for an account.
func Issue(acc Account, issuer, key string, ttl time.Duration, now time.Time) (Token, error) {
	exp := now.Add(ttl)
	claims := Claims{
		Role:      acc.Role,
		ProfileID: acc.ProfileID,
		SchoolID:  acc.SchoolID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   acc.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Parse validates signature, issuer, expiry and role, and returns claims.
func Parse(tokenStr, key, issuer string, now time.Time) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(key), nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case err != nil:
		return Claims{}, errors.Join(ErrTokenMalformed, err)
	}
	return checkRole(claims)
}

// Decode reads a token for routing decisions. With a key it is Parse; without
// one the payload is read unverified, but expiry and role are still enforced.
func Decode(tokenStr, key, issuer string, now time.Time) (Claims, error) {
	if key != "" {
		return Parse(tokenStr, key, issuer, now)
	}
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return Claims{}, errors.Join(ErrTokenMalformed, err)
	}
	if claims.ExpiresAt == nil || !now.Before(claims.ExpiresAt.Time) {
		return Claims{}, ErrTokenExpired
	}
	return checkRole(claims)
}

func checkRole(c Claims) (Claims, error) {
	if _, ok := ParseRole(string(c.Role)); !ok {
		return Claims{}, ErrNoRole
	}
	return c, nil
}
