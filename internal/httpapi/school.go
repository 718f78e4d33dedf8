package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/school"
)

func getByID[T any](s *Server, c *gin.Context, get func(context.Context, string) (T, error)) {
	id, err := idParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	v, err := get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	data(c, http.StatusOK, v)
}

func deleteByID(s *Server, c *gin.Context, what string, del func(context.Context, string) error) {
	id, err := idParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := del(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	message(c, what+" deleted")
}

// create binds a request body and answers 201 with the created resource.
func create[Req, T any](s *Server, c *gin.Context, save func(context.Context, Req) (T, error)) {
	var req Req
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	v, err := save(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	data(c, http.StatusCreated, v)
}

func update[Req, T any](s *Server, c *gin.Context, save func(context.Context, string, Req) (T, error)) {
	id, err := idParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req Req
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	v, err := save(c.Request.Context(), id, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	data(c, http.StatusOK, v)
}

func list[T any](s *Server, c *gin.Context, load func(context.Context) ([]T, error)) {
	v, err := load(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if v == nil {
		v = []T{}
	}
	data(c, http.StatusOK, v)
}

// academic years

func (s *Server) listAcademicYears(c *gin.Context) {
	list(s, c, s.school.ListAcademicYears)
}

func (s *Server) activeAcademicYear(c *gin.Context) {
	years, err := s.school.ListAcademicYears(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	for _, y := range years {
		if y.IsActive {
			data(c, http.StatusOK, y)
			return
		}
	}
	s.fail(c, apperr.NotFound("active academic year"))
}

func (s *Server) getAcademicYear(c *gin.Context) { getByID(s, c, s.school.GetAcademicYear) }
func (s *Server) createAcademicYear(c *gin.Context) {
	create(s, c, s.school.CreateAcademicYear)
}
func (s *Server) updateAcademicYear(c *gin.Context) {
	update(s, c, s.school.UpdateAcademicYear)
}
func (s *Server) deleteAcademicYear(c *gin.Context) {
	deleteByID(s, c, "academic year", s.school.DeleteAcademicYear)
}

// classes

type classQuery struct {
	AcademicYearID string       `form:"academicYearId"`
	Grade          school.Grade `form:"grade"`
}

func (s *Server) listClasses(c *gin.Context) {
	var q classQuery
	if err := bindQuery(c, &q); err != nil {
		s.fail(c, err)
		return
	}
	if err := optionalUUID("academicYearId", q.AcademicYearID); err != nil {
		s.fail(c, err)
		return
	}
	list(s, c, func(ctx context.Context) ([]school.Class, error) {
		return s.school.ListClasses(ctx, school.ClassFilter{AcademicYearID: q.AcademicYearID, Grade: q.Grade})
	})
}

func (s *Server) getClass(c *gin.Context) { getByID(s, c, s.school.GetClass) }
func (s *Server) createClass(c *gin.Context) {
	create(s, c, func(ctx context.Context, req school.ClassRequest) (school.Class, error) {
		return s.school.SaveClass(ctx, "", req)
	})
}
func (s *Server) updateClass(c *gin.Context) { update(s, c, s.school.SaveClass) }
func (s *Server) deleteClass(c *gin.Context) {
	deleteByID(s, c, "class", s.school.DeleteClass)
}

// subjects

func (s *Server) listSubjects(c *gin.Context) {
	grade := school.Grade(c.Query("grade"))
	list(s, c, func(ctx context.Context) ([]school.Subject, error) {
		return s.school.ListSubjects(ctx, grade)
	})
}

func (s *Server) getSubject(c *gin.Context) { getByID(s, c, s.school.GetSubject) }
func (s *Server) createSubject(c *gin.Context) {
	create(s, c, func(ctx context.Context, req school.SubjectRequest) (school.Subject, error) {
		return s.school.SaveSubject(ctx, "", req)
	})
}
func (s *Server) updateSubject(c *gin.Context) { update(s, c, s.school.SaveSubject) }
func (s *Server) deleteSubject(c *gin.Context) {
	deleteByID(s, c, "subject", s.school.DeleteSubject)
}

// teachers

func (s *Server) listTeachers(c *gin.Context)  { list(s, c, s.school.ListTeachers) }
func (s *Server) getTeacher(c *gin.Context)    { getByID(s, c, s.school.GetTeacher) }
func (s *Server) createTeacher(c *gin.Context) { create(s, c, s.school.CreateTeacher) }
func (s *Server) updateTeacher(c *gin.Context) { update(s, c, s.school.UpdateTeacher) }
func (s *Server) deleteTeacher(c *gin.Context) {
	deleteByID(s, c, "teacher", s.school.DeleteTeacher)
}

// subject teachers

func (s *Server) listSubjectTeachers(c *gin.Context) {
	teacherID := c.Query("teacherId")
	if err := optionalUUID("teacherId", teacherID); err != nil {
		s.fail(c, err)
		return
	}
	list(s, c, func(ctx context.Context) ([]school.SubjectTeacher, error) {
		return s.school.ListSubjectTeachers(ctx, teacherID)
	})
}

func (s *Server) getSubjectTeacher(c *gin.Context) { getByID(s, c, s.school.GetSubjectTeacher) }
func (s *Server) createSubjectTeacher(c *gin.Context) {
	create(s, c, func(ctx context.Context, req school.SubjectTeacherRequest) (school.SubjectTeacher, error) {
		return s.school.SaveSubjectTeacher(ctx, "", req)
	})
}
func (s *Server) updateSubjectTeacher(c *gin.Context) { update(s, c, s.school.SaveSubjectTeacher) }
func (s *Server) deleteSubjectTeacher(c *gin.Context) {
	deleteByID(s, c, "subject teacher", s.school.DeleteSubjectTeacher)
}

// students

func (s *Server) listStudents(c *gin.Context) {
	classID := c.Query("classId")
	if err := optionalUUID("classId", classID); err != nil {
		s.fail(c, err)
		return
	}
	active, _ := strconv.ParseBool(c.Query("active"))
	f := school.StudentFilter{ClassID: classID, Search: c.Query("search"), ActiveOnly: active}
	list(s, c, func(ctx context.Context) ([]school.Student, error) {
		return s.school.ListStudents(ctx, f)
	})
}

func (s *Server) getStudent(c *gin.Context)    { getByID(s, c, s.school.GetStudent) }
func (s *Server) createStudent(c *gin.Context) { create(s, c, s.school.CreateStudent) }
func (s *Server) updateStudent(c *gin.Context) { update(s, c, s.school.UpdateStudent) }
func (s *Server) deleteStudent(c *gin.Context) {
	deleteByID(s, c, "student", s.school.DeleteStudent)
}

// parents

func (s *Server) listParents(c *gin.Context)  { list(s, c, s.school.ListParents) }
func (s *Server) getParent(c *gin.Context)    { getByID(s, c, s.school.GetParent) }
func (s *Server) createParent(c *gin.Context) { create(s, c, s.school.CreateParent) }
func (s *Server) updateParent(c *gin.Context) { update(s, c, s.school.UpdateParent) }
func (s *Server) deleteParent(c *gin.Context) {
	deleteByID(s, c, "parent", s.school.DeleteParent)
}

func (s *Server) createParentsWithStudent(c *gin.Context) {
	create(s, c, s.school.CreateParentsWithStudent)
}

// student drafts

type draftQuery struct {
	Status         school.DraftStatus `form:"status"`
	AcademicYearID string             `form:"academicYearId"`
}

func (s *Server) listDrafts(c *gin.Context) {
	var q draftQuery
	if err := bindQuery(c, &q); err != nil {
		s.fail(c, err)
		return
	}
	if err := optionalUUID("academicYearId", q.AcademicYearID); err != nil {
		s.fail(c, err)
		return
	}
	list(s, c, func(ctx context.Context) ([]school.StudentDraft, error) {
		return s.school.ListDrafts(ctx, school.DraftFilter{Status: q.Status, AcademicYearID: q.AcademicYearID})
	})
}

func (s *Server) getDraft(c *gin.Context) { getByID(s, c, s.school.GetDraft) }

func (s *Server) createDraft(c *gin.Context) {
	by := claims(c).UserID()
	create(s, c, func(ctx context.Context, req school.DraftRequest) (school.StudentDraft, error) {
		return s.school.SaveDraft(ctx, "", by, req)
	})
}

func (s *Server) updateDraft(c *gin.Context) {
	by := claims(c).UserID()
	update(s, c, func(ctx context.Context, id string, req school.DraftRequest) (school.StudentDraft, error) {
		return s.school.SaveDraft(ctx, id, by, req)
	})
}

func (s *Server) verifyDraft(c *gin.Context) {
	by := claims(c).UserID()
	getByID(s, c, func(ctx context.Context, id string) (school.StudentDraft, error) {
		return s.school.VerifyDraft(ctx, id, by)
	})
}

func (s *Server) rejectDraft(c *gin.Context) {
	by := claims(c).UserID()
	update(s, c, func(ctx context.Context, id string, req school.RejectDraftRequest) (school.StudentDraft, error) {
		return s.school.RejectDraft(ctx, id, by, req)
	})
}

func (s *Server) enrolDraft(c *gin.Context) { update(s, c, s.school.EnrolDraft) }

func (s *Server) deleteDraft(c *gin.Context) {
	deleteByID(s, c, "student draft", s.school.DeleteDraft)
}
