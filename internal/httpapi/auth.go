package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/auth"
	"schoolinfo/internal/portal"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profileRef struct {
	ID string `json:"id,omitempty"`
}

type userResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"fullName"`
	Role      auth.Role  `json:"role"`
	SchoolID  string     `json:"schoolId,omitempty"`
	Gender    string     `json:"gender,omitempty"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	Profile   profileRef `json:"profile"`
	Dashboard string     `json:"dashboard,omitempty"`
}

func newUserResponse(acc auth.Account) userResponse {
	dash, _ := portal.DashboardFor(acc.Role)
	return userResponse{
		ID:        acc.ID,
		Email:     acc.Email,
		FullName:  acc.FullName,
		Role:      acc.Role,
		SchoolID:  acc.SchoolID,
		Gender:    acc.Gender,
		LastLogin: acc.LastLogin,
		Profile:   profileRef{ID: acc.ProfileID},
		Dashboard: dash,
	}
}

func (s *Server) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, value, maxAge, "/", s.cfg.CookieDomain, s.cfg.CookieSecure, true)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	if err := apperr.Validate(req); err != nil {
		s.fail(c, err)
		return
	}
	sess, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	maxAge := int(time.Until(sess.Token.ExpiresAt).Seconds())
	s.setSessionCookie(c, sess.Token.Value, maxAge)
	c.JSON(http.StatusOK, gin.H{
		"message": "login successful",
		"user":    newUserResponse(sess.Account),
	})
}

func (s *Server) logout(c *gin.Context) {
	s.setSessionCookie(c, "", -1)
	message(c, "logged out")
}

func (s *Server) me(c *gin.Context) {
	acc, err := s.auth.Me(c.Request.Context(), claims(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	data(c, http.StatusOK, newUserResponse(acc))
}
