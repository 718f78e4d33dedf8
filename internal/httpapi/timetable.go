package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/auth"
	"schoolinfo/internal/school"
)

func (s *Server) listTimetables(c *gin.Context) {
	s.timetables(c, c.Query("classId"), c.Query("teacherId"))
}

func (s *Server) classTimetable(c *gin.Context) {
	classID := c.Query("classId")
	if classID == "" {
		s.fail(c, apperr.NewValidationError("invalid query parameters", apperr.FieldError{Field: "classId", Error: "classId is required"}))
		return
	}
	s.timetables(c, classID, "")
}

func (s *Server) timetables(c *gin.Context, classID, teacherID string) {
	if err := optionalUUID("classId", classID); err != nil {
		s.fail(c, err)
		return
	}
	if err := optionalUUID("teacherId", teacherID); err != nil {
		s.fail(c, err)
		return
	}
	list(s, c, func(ctx context.Context) ([]school.Timetable, error) {
		return s.school.ListTimetables(ctx, school.TimetableFilter{ClassID: classID, TeacherID: teacherID})
	})
}

// teacherFor resolves whose timetable is asked for. Teachers always get their
// own; admins must name one.
func teacherFor(c *gin.Context) (string, error) {
	cl := claims(c)
	asked := c.Query("teacherId")
	if cl.Role == auth.RoleTeacher {
		if asked != "" && asked != cl.ProfileID {
			return "", apperr.Forbidden("teachers can only view their own timetable")
		}
		return cl.ProfileID, nil
	}
	if asked == "" {
		return "", apperr.NewValidationError("invalid query parameters", apperr.FieldError{Field: "teacherId", Error: "teacherId is required"})
	}
	return asked, optionalUUID("teacherId", asked)
}

func (s *Server) teacherTimetable(c *gin.Context) {
	id, err := teacherFor(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.timetables(c, "", id)
}

func (s *Server) teacherSchedule(c *gin.Context) {
	id, err := teacherFor(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	days, err := s.school.TeacherSchedule(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	data(c, http.StatusOK, days)
}

func (s *Server) teacherTabs(c *gin.Context) {
	id, err := teacherFor(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	tabs, err := s.school.TeacherClassTabs(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if tabs == nil {
		tabs = []school.ClassTab{}
	}
	data(c, http.StatusOK, tabs)
}

func (s *Server) getTimetable(c *gin.Context) { getByID(s, c, s.school.GetTimetable) }

func (s *Server) createTimetable(c *gin.Context) {
	create(s, c, func(ctx context.Context, req school.TimetableRequest) (school.Timetable, error) {
		return s.school.SaveTimetable(ctx, "", req)
	})
}

func (s *Server) updateTimetable(c *gin.Context) { update(s, c, s.school.SaveTimetable) }

func (s *Server) assignSubjectTeacher(c *gin.Context) {
	update(s, c, s.school.AssignSubjectTeacher)
}

func (s *Server) deleteTimetable(c *gin.Context) {
	deleteByID(s, c, "timetable", s.school.DeleteTimetable)
}
