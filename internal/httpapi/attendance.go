package httpapi

import (
	"errors"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/attendance"
)

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func actor(c *gin.Context) attendance.Actor {
	return attendance.ActorFrom(claims(c))
}

// sessionKey reads the class/subject-teacher/semester triple from the JSON
// body, or from the query string when the body is empty.
func sessionKey(c *gin.Context) (attendance.SessionKey, error) {
	var key attendance.SessionKey
	if c.Request.ContentLength != 0 && c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := bindJSON(c, &key); err != nil {
			return key, err
		}
	}
	if key == (attendance.SessionKey{}) {
		if err := bindQuery(c, &key); err != nil {
			return key, err
		}
	}
	return key, nil
}

func (s *Server) generateAttendance(c *gin.Context) {
	key, err := sessionKey(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.att.Generate(c.Request.Context(), actor(c), key)
	if err != nil {
		s.fail(c, err)
		return
	}
	data(c, http.StatusCreated, res)
}

func (s *Server) getBulk(c *gin.Context) {
	var key attendance.SessionKey
	if err := bindQuery(c, &key); err != nil {
		s.fail(c, err)
		return
	}
	b, err := s.att.GetBulk(c.Request.Context(), key)
	if err != nil {
		s.fail(c, err)
		return
	}
	data(c, http.StatusOK, b)
}

func (s *Server) deleteBulk(c *gin.Context) {
	key, err := sessionKey(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.att.DeleteBulk(c.Request.Context(), actor(c), key)
	if err != nil {
		s.fail(c, err)
		return
	}
	data(c, http.StatusOK, res)
}

func (s *Server) exportBulk(c *gin.Context) {
	var key attendance.SessionKey
	if err := bindQuery(c, &key); err != nil {
		s.fail(c, err)
		return
	}
	file, name, err := s.att.Export(c.Request.Context(), key)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Data(http.StatusOK, xlsxType, file)
}

func (s *Server) getDetails(c *gin.Context) {
	getByID(s, c, s.att.GetDetails)
}

func (s *Server) createDetails(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req attendance.CreateDetailsRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.att.CreateDetails(c.Request.Context(), actor(c), id, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	data(c, http.StatusCreated, res)
}

func (s *Server) updateDetails(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req attendance.BulkUpdateRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.att.BulkUpdate(c.Request.Context(), actor(c), id, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	data(c, http.StatusOK, res)
}

func (s *Server) listRecaps(c *gin.Context) {
	var f attendance.RecapFilter
	if err := bindQuery(c, &f); err != nil {
		s.fail(c, err)
		return
	}
	f.StudentID = c.Query("studentId")
	s.recaps(c, f)
}

// myRecap shows a student their own recap across subjects.
func (s *Server) myRecap(c *gin.Context) {
	var f attendance.RecapFilter
	if err := bindQuery(c, &f); err != nil {
		s.fail(c, err)
		return
	}
	st, err := s.school.StudentForUser(c.Request.Context(), claims(c).UserID())
	if errors.Is(err, apperr.ErrNotFound) {
		err = apperr.Forbidden("no student profile for this account")
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	f.StudentID = st.ID
	s.recaps(c, f)
}

func (s *Server) recaps(c *gin.Context, f attendance.RecapFilter) {
	rs, err := s.att.Recaps(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	if rs == nil {
		rs = []attendance.Recap{}
	}
	data(c, http.StatusOK, rs)
}
