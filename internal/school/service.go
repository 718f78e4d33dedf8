// Package school manages the academic resources of a school: academic years,
// classes, subjects, teachers, students, parents, admission drafts and timetables.
package school

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/cache"
	"schoolinfo/internal/collation"
	"schoolinfo/internal/store"
)

// Cache resources. Every read key starts with one of these; writes invalidate them by prefix.
const (
	ResAcademicYears   = "academic-years"
	ResClasses         = "classes"
	ResSubjects        = "subjects"
	ResTeachers        = "teachers"
	ResSubjectTeachers = "subject-teachers"
	ResStudents        = "students"
	ResParents         = "parents"
	ResDrafts          = "student-drafts"
	ResTimetables      = "timetables"
	// ResAttendance is owned by the attendance workflow; rosters and slots feed it.
	ResAttendance = "attendance"
)

// dependents lists what else must be dropped when a resource changes, because
// its names or membership are embedded in the other responses.
var dependents = map[string][]string{
	ResAcademicYears:   {ResClasses, ResDrafts, ResAttendance},
	ResClasses:         {ResStudents, ResTimetables, ResDrafts, ResAttendance},
	ResSubjects:        {ResSubjectTeachers, ResTimetables, ResAttendance},
	ResTeachers:        {ResClasses, ResSubjectTeachers, ResTimetables, ResAttendance},
	ResSubjectTeachers: {ResTimetables, ResAttendance},
	ResStudents:        {ResParents, ResClasses, ResAttendance},
	ResParents:         {ResStudents},
	ResDrafts:          {},
	ResTimetables:      {ResAttendance},
}

// Service validates requests, serves cached reads and invalidates on writes.
type Service struct {
	repo   *Repository
	cache  cache.Cache
	ttl    time.Duration
	sorter collation.Sorter
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates a service; a nil cache disables caching.
func NewService(repo *Repository, c cache.Cache, ttl time.Duration, sorter collation.Sorter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, cache: c, ttl: ttl, sorter: sorter, log: log, now: time.Now}
}

// Repository persists school resources in Postgres. Accounts it creates
// belong to schoolID.
type Repository struct {
	db       *sql.DB
	schoolID string
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB, schoolID string) *Repository {
	return &Repository{db: db, schoolID: schoolID}
}

func read[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, error) {
	return cache.ReadThrough(ctx, s.cache, key, s.ttl, load)
}

// invalidate drops every changed resource and its dependents. Failures are
// logged; entries then age out with the ttl.
func (s *Service) invalidate(ctx context.Context, resources ...string) {
	seen := map[string]bool{}
	var prefixes []string
	add := func(r string) {
		if !seen[r] {
			seen[r] = true
			prefixes = append(prefixes, cache.Prefix(r))
		}
	}
	for _, r := range resources {
		add(r)
		for _, d := range dependents[r] {
			add(d)
		}
	}
	if err := cache.Invalidate(ctx, s.cache, prefixes...); err != nil {
		s.log.Warn("cache invalidation failed", zap.Strings("prefixes", prefixes), zap.Error(err))
	}
}

func nullable(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func boolOr(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}

// referenceError turns constraint failures into client errors naming what was wrong.
func referenceError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case store.IsForeignKeyViolation(err):
		return apperr.NewValidationError(what + " does not exist")
	case store.IsUniqueViolation(err):
		return apperr.Conflict(what + " already exists")
	}
	return err
}
