package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/auth"
)

const internalError = "Internal Server Error"

func data(c *gin.Context, status int, v any) {
	c.JSON(status, gin.H{"data": v})
}

func message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// fail maps service errors onto status codes and the error envelope.
// Unknown errors are logged and hidden behind a generic message.
func (s *Server) fail(c *gin.Context, err error) {
	if ve, ok := apperr.IsValidation(err); ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, apperr.NewBody(ve.Error(), ve.FieldMap()))
		return
	}
	for _, m := range statusMap {
		if errors.Is(err, m.err) {
			c.AbortWithStatusJSON(m.status, apperr.NewBody(userMessage(err, m.err), nil))
			return
		}
	}
	s.log.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, apperr.NewBody(internalError, nil))
}

var statusMap = []struct {
	err    error
	status int
}{
	{apperr.ErrNotFound, http.StatusNotFound},
	{apperr.ErrConflict, http.StatusConflict},
	{apperr.ErrForbidden, http.StatusForbidden},
	{apperr.ErrUnauthorized, http.StatusUnauthorized},
}

// userMessage drops the ": <sentinel>" suffix fmt.Errorf wrapping leaves behind.
func userMessage(err, sentinel error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

// bindJSON decodes the request body into v. An empty body leaves v zero.
func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.NewValidationError("request body is not valid JSON")
	}
	return nil
}

func bindQuery(c *gin.Context, v any) error {
	if err := c.ShouldBindQuery(v); err != nil {
		return apperr.NewValidationError("invalid query parameters")
	}
	return nil
}

// idParam returns the :id path parameter when it is a UUID.
func idParam(c *gin.Context) (string, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", apperr.NewValidationError("invalid id", apperr.FieldError{Field: "id", Error: "id must be a valid UUID"})
	}
	return id, nil
}

func optionalUUID(field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := uuid.Parse(v); err != nil {
		return apperr.NewValidationError("invalid query parameters", apperr.FieldError{Field: field, Error: field + " must be a valid UUID"})
	}
	return nil
}

func claims(c *gin.Context) auth.Claims {
	cl, _ := auth.ClaimsFrom(c)
	return cl
}
