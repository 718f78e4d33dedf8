package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolinfo/internal/apperr"
)

type fakeAccounts struct {
	byEmail map[string]Account
	touched []string
}

func newFakeAccounts(t *testing.T, accs ...Account) *fakeAccounts {
	t.Helper()
	f := &fakeAccounts{byEmail: map[string]Account{}}
	for _, a := range accs {
		hash, err := HashPassword("secret123")
		require.NoError(t, err)
		a.PasswordHash = hash
		f.byEmail[a.Email] = a
	}
	return f
}

func (f *fakeAccounts) ByEmail(_ context.Context, email string) (Account, error) {
	if a, ok := f.byEmail[email]; ok {
		return a, nil
	}
	return Account{}, apperr.NotFound("account")
}

func (f *fakeAccounts) ByID(_ context.Context, id string) (Account, error) {
	for _, a := range f.byEmail {
		if a.ID == id {
			return a, nil
		}
	}
	return Account{}, apperr.NotFound("account")
}

func (f *fakeAccounts) TouchLogin(_ context.Context, id string, _ time.Time) error {
	f.touched = append(f.touched, id)
	return nil
}

func TestLogin(t *testing.T) {
	store := newFakeAccounts(t,
		Account{ID: "u-1", Email: "guru@school.id", Role: RoleTeacher, ProfileID: "t-1", IsActive: true},
		Account{ID: "u-2", Email: "old@school.id", Role: RoleStudent, IsActive: false},
	)
	svc := NewService(store, testIssuer, testKey, time.Hour, nil)

	sess, err := svc.Login(context.Background(), " guru@school.id ", "secret123")
	require.NoError(t, err)
	assert.Equal(t, []string{"u-1"}, store.touched)

	claims, err := Parse(sess.Token.Value, testKey, testIssuer, time.Now())
	require.NoError(t, err)
	assert.Equal(t, RoleTeacher, claims.Role)
	assert.Equal(t, "t-1", claims.ProfileID)

	_, err = svc.Login(context.Background(), "guru@school.id", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Login(context.Background(), "nobody@school.id", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "old@school.id", "secret123")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestMe(t *testing.T) {
	store := newFakeAccounts(t, Account{ID: "u-1", Email: "guru@school.id", Role: RoleTeacher, IsActive: true})
	svc := NewService(store, testIssuer, testKey, time.Hour, nil)

	claims := Claims{Role: RoleTeacher}
	claims.Subject = "u-1"
	acc, err := svc.Me(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, "guru@school.id", acc.Email)

	claims.Subject = "u-404"
	_, err = svc.Me(context.Background(), claims)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAuthenticateAndRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", Authenticate(testKey, testIssuer), RequireRoles(AdminRoles...), func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.String(http.StatusOK, claims.UserID())
	})

	admin, err := Issue(Account{ID: "u-9", Role: RoleSchoolAdmin}, testIssuer, testKey, time.Hour, time.Now())
	require.NoError(t, err)
	teacher, err := Issue(teacherAccount, testIssuer, testKey, time.Hour, time.Now())
	require.NoError(t, err)

	tests := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"no token", func(*http.Request) {}, http.StatusUnauthorized},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"wrong role", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: teacher.Value}) }, http.StatusForbidden},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: admin.Value}) }, http.StatusOK},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+admin.Value) }, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "u-9", w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"errors"`)
			}
		})
	}
}
