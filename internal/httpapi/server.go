// Package httpapi exposes the school services over HTTP and serves the
// browser console behind the session/role router.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"schoolinfo/internal/attendance"
	"schoolinfo/internal/auth"
	"schoolinfo/internal/config"
	"schoolinfo/internal/httpmiddleware"
	"schoolinfo/internal/portal"
	"schoolinfo/internal/school"
)

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) bool

// Deps are the services the router dispatches to.
type Deps struct {
	Config     config.App
	Auth       *auth.Service
	School     *school.Service
	Attendance *attendance.Service
	Probes     map[string]Probe
	Log        *zap.Logger
}

// Server holds the handlers.
type Server struct {
	cfg    config.App
	auth   *auth.Service
	school *school.Service
	att    *attendance.Service
	probes map[string]Probe
	log    *zap.Logger
}

// New builds the gin engine with middleware, API routes and the console.
func New(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	s := &Server{
		cfg:    d.Config,
		auth:   d.Auth,
		school: d.School,
		att:    d.Attendance,
		probes: d.Probes,
		log:    d.Log,
	}

	r := gin.New()
	r.Use(httpmiddleware.Recovery(s.log))
	r.Use(httpmiddleware.Logger(s.log, "/healthz", "/metrics"))
	r.Use(httpmiddleware.Metrics())
	r.Use(cors.New(corsConfig(d.Config.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders(d.Config.Production()))
	r.Use(httpmiddleware.NewTokenBucket(d.Config.RateLimitPerMin, d.Config.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.health)

	s.routes(r)
	r.NoRoute(portal.Guard(s.portalOptions()), s.console)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *Server) portalOptions() portal.Options {
	return portal.Options{
		CookieDomain: s.cfg.CookieDomain,
		Secure:       s.cfg.CookieSecure,
		SigningKey:   s.cfg.JWTSigningKey,
		Issuer:       s.cfg.JWTIssuer,
		Log:          s.log,
	}
}

func (s *Server) routes(r *gin.Engine) {
	loginLimit := httpmiddleware.NewTokenBucket(s.cfg.LoginRateLimitPerMin, s.cfg.LoginRateLimitPerMin)
	r.POST("/auth/login", loginLimit.GinMiddleware(), s.login)
	r.POST("/auth/logout", s.logout)

	api := r.Group("", auth.Authenticate(s.cfg.JWTSigningKey, s.cfg.JWTIssuer))
	api.GET("/users/me", s.me)

	staff := api.Group("", auth.RequireRoles(staffRoles...))
	admin := api.Group("", auth.RequireRoles(auth.AdminRoles...))

	api.GET("/academic-years", s.listAcademicYears)
	api.GET("/academic-years/active", s.activeAcademicYear)
	api.GET("/academic-years/:id", s.getAcademicYear)
	admin.POST("/academic-years", s.createAcademicYear)
	admin.PUT("/academic-years/:id", s.updateAcademicYear)
	admin.DELETE("/academic-years/:id", s.deleteAcademicYear)

	api.GET("/classes", s.listClasses)
	api.GET("/classes/:id", s.getClass)
	admin.POST("/classes", s.createClass)
	admin.PUT("/classes/:id", s.updateClass)
	admin.DELETE("/classes/:id", s.deleteClass)

	api.GET("/subjects", s.listSubjects)
	api.GET("/subjects/:id", s.getSubject)
	admin.POST("/subjects", s.createSubject)
	admin.PUT("/subjects/:id", s.updateSubject)
	admin.DELETE("/subjects/:id", s.deleteSubject)

	staff.GET("/teachers", s.listTeachers)
	staff.GET("/teachers/:id", s.getTeacher)
	admin.POST("/teachers", s.createTeacher)
	admin.PUT("/teachers/:id", s.updateTeacher)
	admin.DELETE("/teachers/:id", s.deleteTeacher)

	api.GET("/subject-teachers", s.listSubjectTeachers)
	api.GET("/subject-teachers/:id", s.getSubjectTeacher)
	admin.POST("/subject-teachers", s.createSubjectTeacher)
	admin.PUT("/subject-teachers/:id", s.updateSubjectTeacher)
	admin.DELETE("/subject-teachers/:id", s.deleteSubjectTeacher)

	staff.GET("/students", s.listStudents)
	staff.GET("/students/:id", s.getStudent)
	admin.POST("/students", s.createStudent)
	admin.PUT("/students/:id", s.updateStudent)
	admin.DELETE("/students/:id", s.deleteStudent)

	admin.GET("/parents", s.listParents)
	admin.GET("/parents/:id", s.getParent)
	admin.POST("/parents", s.createParent)
	admin.POST("/parents/with-student", s.createParentsWithStudent)
	admin.PUT("/parents/:id", s.updateParent)
	admin.DELETE("/parents/:id", s.deleteParent)

	admin.GET("/student-drafts", s.listDrafts)
	admin.GET("/student-drafts/:id", s.getDraft)
	admin.POST("/student-drafts", s.createDraft)
	admin.PUT("/student-drafts/:id", s.updateDraft)
	admin.POST("/student-drafts/:id/verify", s.verifyDraft)
	admin.POST("/student-drafts/:id/reject", s.rejectDraft)
	admin.POST("/student-drafts/:id/enrol", s.enrolDraft)
	admin.DELETE("/student-drafts/:id", s.deleteDraft)

	api.GET("/timetables", s.listTimetables)
	api.GET("/timetables/class", s.classTimetable)
	staff.GET("/timetables/teacher", s.teacherTimetable)
	staff.GET("/timetables/teacher/schedule", s.teacherSchedule)
	staff.GET("/timetables/teacher/tabs", s.teacherTabs)
	api.GET("/timetables/:id", s.getTimetable)
	admin.POST("/timetables", s.createTimetable)
	admin.PUT("/timetables/:id", s.updateTimetable)
	admin.PUT("/timetables/subject-teacher/:id", s.assignSubjectTeacher)
	admin.DELETE("/timetables/:id", s.deleteTimetable)

	staff.POST("/attendances/bulk/generate", s.generateAttendance)
	staff.GET("/attendances/bulk", s.getBulk)
	staff.DELETE("/attendances/bulk", s.deleteBulk)
	staff.GET("/attendances/bulk/export", s.exportBulk)
	staff.GET("/attendances/details/:id", s.getDetails)
	staff.POST("/attendances/details/:id", s.createDetails)
	staff.PATCH("/attendances/details/:id", s.updateDetails)
	staff.GET("/attendances/recap", s.listRecaps)
	api.GET("/attendances/recap/me", auth.RequireRoles(auth.RoleStudent), s.myRecap)
}

var staffRoles = append([]auth.Role{auth.RoleTeacher}, auth.AdminRoles...)

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, probe := range s.probes {
		up := probe(ctx)
		body[name] = up
		if !up {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}
