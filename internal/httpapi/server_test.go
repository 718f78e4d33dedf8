package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/attendance"
	"schoolinfo/internal/auth"
	"schoolinfo/internal/cache"
	"schoolinfo/internal/collation"
	"schoolinfo/internal/config"
	"schoolinfo/internal/school"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "schoolinfo-test"
	teacherID  = "8c1d3f5a-7b9e-4c2d-8e4f-6a8b0c2d4e03"
	classID    = "0f8b4e9a-2c41-4a55-9d7e-3b1f6a2c8d01"
	stID       = "5a7c9e1b-3d5f-4a8b-9c2d-4e6f8a0b1c02"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAccounts struct {
	accs []auth.Account
}

func (f *fakeAccounts) ByEmail(_ context.Context, email string) (auth.Account, error) {
	for _, a := range f.accs {
		if a.Email == email {
			return a, nil
		}
	}
	return auth.Account{}, apperr.NotFound("account")
}

func (f *fakeAccounts) ByID(_ context.Context, id string) (auth.Account, error) {
	for _, a := range f.accs {
		if a.ID == id {
			return a, nil
		}
	}
	return auth.Account{}, apperr.NotFound("account")
}

func (f *fakeAccounts) TouchLogin(context.Context, string, time.Time) error { return nil }

// stubStore answers the lookups the handlers reach; any other call panics.
type stubStore struct {
	attendance.Store
}

func (stubStore) SessionInfo(context.Context, attendance.SessionKey) (attendance.SessionInfo, error) {
	return attendance.SessionInfo{}, apperr.NotFound("class or subject teacher")
}

func (stubStore) GetAttendance(context.Context, string) (attendance.Attendance, error) {
	return attendance.Attendance{}, apperr.NotFound("attendance")
}

var (
	guru = auth.Account{ID: "u-teacher", Email: "guru@school.id", FullName: "Pak Joko", Role: auth.RoleTeacher, ProfileID: teacherID, IsActive: true}
	tu   = auth.Account{ID: "u-admin", Email: "tu@school.id", FullName: "Bu Tata", Role: auth.RoleSchoolAdmin, IsActive: true}
	siti = auth.Account{ID: "u-student", Email: "siti@school.id", FullName: "Siti", Role: auth.RoleStudent, ProfileID: "a1000000-0000-4000-8000-000000000001", IsActive: true}
)

type harness struct {
	r    *gin.Engine
	logs *observer.ObservedLogs
}

func newHarness(t *testing.T, probes map[string]Probe) harness {
	t.Helper()
	web := t.TempDir()
	pages := map[string]string{
		"index.html":                   "home",
		"login/index.html":             "login page",
		"dashboard/teacher/index.html": "teacher console",
		"dashboardxzx/index.html":      "admin console",
	}
	for name, body := range pages {
		p := filepath.Join(web, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}

	accounts := &fakeAccounts{}
	for _, a := range []auth.Account{guru, tu, siti} {
		hash, err := auth.HashPassword("secret123")
		require.NoError(t, err)
		a.PasswordHash = hash
		accounts.accs = append(accounts.accs, a)
	}

	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)
	cfg := config.App{
		Env:           "test",
		JWTIssuer:     testIssuer,
		JWTSigningKey: testKey,
		AccessTTL:     time.Hour,
		WebDir:        web,
	}
	sorter := collation.New("id")
	r := New(Deps{
		Config:     cfg,
		Auth:       auth.NewService(accounts, testIssuer, testKey, time.Hour, log),
		School:     school.NewService(school.NewRepository(nil, ""), cache.NewMemory(), 0, sorter, log),
		Attendance: attendance.NewService(stubStore{}, cache.NewMemory(), 0, sorter, nil, log),
		Probes:     probes,
		Log:        log,
	})
	return harness{r: r, logs: logs}
}

func token(t *testing.T, acc auth.Account) string {
	t.Helper()
	tok, err := auth.Issue(acc, testIssuer, testKey, time.Hour, time.Now())
	require.NoError(t, err)
	return tok.Value
}

func (h harness) do(method, target, body, session string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: session})
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) apperr.BodyErrors {
	t.Helper()
	var b apperr.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	return b.Errors
}

func TestLoginAndMe(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodPost, "/auth/login", `{"email":"guru@school.id","password":"secret123"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Message string       `json:"message"`
		User    userResponse `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.Equal(t, auth.RoleTeacher, login.User.Role)
	assert.Equal(t, "/dashboard/teacher", login.User.Dashboard)

	var session *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == auth.CookieName {
			session = ck
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.NotEmpty(t, session.Value)

	w = h.do(http.MethodGet, "/users/me", "", session.Value)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		Data userResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "guru@school.id", me.Data.Email)
	assert.Equal(t, teacherID, me.Data.Profile.ID)
}

func TestLoginFailures(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodPost, "/auth/login", `{"email":"guru@school.id","password":"wrong-one"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid email or password", errorBody(t, w).Message)

	w = h.do(http.MethodPost, "/auth/login", `{"password":"secret123"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "this field is required", errorBody(t, w).Fields["email"])

	w = h.do(http.MethodPost, "/auth/login", `{"email":`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(http.MethodPost, "/auth/logout", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), auth.CookieName+"=;")
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestAPIAuthorization(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodGet, "/classes", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodGet, "/classes", "", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/classes", `{}`, token(t, siti))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodGet, "/attendances/bulk", "", token(t, siti))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodGet, "/attendances/recap/me", "", token(t, guru))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSchoolWritesValidateBeforeStorage(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodPost, "/classes", `{"name":"VII-A","grade":"GRADE_13"}`, token(t, tu))
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := errorBody(t, w).Fields
	assert.Contains(t, fields, "grade")
	assert.Equal(t, "this field is required", fields["academicYearId"])

	w = h.do(http.MethodPut, "/classes/42", `{}`, token(t, tu))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "id must be a valid UUID", errorBody(t, w).Fields["id"])

	w = h.do(http.MethodGet, "/timetables/class", "", token(t, guru))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/timetables/teacher/tabs?teacherId="+classID, "", token(t, guru))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAttendanceEndpoints(t *testing.T) {
	h := newHarness(t, nil)
	teacher := token(t, guru)

	w := h.do(http.MethodGet, "/attendances/bulk?classId="+classID, "", teacher)
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := errorBody(t, w).Fields
	assert.Equal(t, "this field is required", fields["subjectTeacherId"])
	assert.Contains(t, fields, "semester")

	body := `{"classId":"` + classID + `","subjectTeacherId":"` + stID + `","semester":"SEMESTER_1"}`
	w = h.do(http.MethodPost, "/attendances/bulk/generate", body, teacher)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "class or subject teacher not found", errorBody(t, w).Message)

	w = h.do(http.MethodGet, "/attendances/details/not-a-uuid", "", teacher)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/attendances/details/"+classID, "", teacher)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "attendance not found", errorBody(t, w).Message)

	w = h.do(http.MethodPatch, "/attendances/details/"+classID, `{"updates":[{"studentId":"x","status":"HERE"}]}`, teacher)
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields = errorBody(t, w).Fields
	assert.Contains(t, fields, "updates[0].studentId")
	assert.Contains(t, fields, "updates[0].status")
}

func TestConsoleRouting(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name     string
		path     string
		session  string
		status   int
		location string
		body     string
	}{
		{name: "anonymous home", path: "/", status: http.StatusOK, body: "home"},
		{name: "anonymous dashboard", path: "/dashboard/teacher", status: http.StatusTemporaryRedirect, location: "/login"},
		{name: "anonymous login", path: "/login", status: http.StatusOK, body: "login page"},
		{name: "teacher dashboard", path: "/dashboard/teacher", session: token(t, guru), status: http.StatusOK, body: "teacher console"},
		{name: "teacher on login", path: "/login", session: token(t, guru), status: http.StatusTemporaryRedirect, location: "/dashboard/teacher"},
		{name: "admin on teacher section", path: "/dashboard/teacher", session: token(t, tu), status: http.StatusTemporaryRedirect, location: "/dashboardxzx"},
		{name: "admin console", path: "/dashboardxzx", session: token(t, tu), status: http.StatusOK, body: "admin console"},
		{name: "garbage token", path: "/dashboardxzx", session: "garbage", status: http.StatusTemporaryRedirect, location: "/login"},
		{name: "missing page", path: "/nope", status: http.StatusNotFound},
		{name: "traversal", path: "/../../etc/passwd", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(http.MethodGet, tt.path, "", tt.session)
			assert.Equal(t, tt.status, w.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, w.Header().Get("Location"))
			}
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t, map[string]Probe{
		"db":    func(context.Context) bool { return true },
		"redis": func(context.Context) bool { return false },
	})
	w := h.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","db":true,"redis":false}`, w.Body.String())
}

func TestFailMapping(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{apperr.NewValidationError("invalid request", apperr.FieldError{Field: "name", Error: "too long"}), http.StatusBadRequest, "invalid request"},
		{apperr.NotFound("class"), http.StatusNotFound, "class not found"},
		{attendance.ErrDetailsExist, http.StatusConflict, ""},
		{apperr.Forbidden("not your class"), http.StatusForbidden, "not your class"},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid email or password"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tt := range tests {
		core, logs := observer.New(zapcore.ErrorLevel)
		s := &Server{log: zap.New(core)}
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		s.fail(c, tt.err)
		assert.Equal(t, tt.status, w.Code, tt.err.Error())
		if tt.message != "" {
			assert.Equal(t, tt.message, errorBody(t, w).Message)
		}
		if tt.status == http.StatusInternalServerError {
			assert.Equal(t, 1, logs.Len())
			assert.NotContains(t, w.Body.String(), "connection refused")
		} else {
			assert.Zero(t, logs.Len())
		}
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "email already registered", userMessage(apperr.Conflict("email already registered"), apperr.ErrConflict))
	assert.Equal(t, "class not found", userMessage(apperr.NotFound("class"), apperr.ErrNotFound))
	assert.Equal(t, "conflict", userMessage(apperr.ErrConflict, apperr.ErrConflict))
	assert.Equal(t, "boom", userMessage(errors.New("boom"), apperr.ErrConflict))
}
