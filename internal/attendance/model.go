package attendance

import (
	"fmt"
	"time"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/school"
)

// Status is a student's attendance for one lesson.
type Status string

const (
	StatusPresent    Status = "PRESENT"
	StatusAbsent     Status = "ABSENT"
	StatusSick       Status = "SICK"
	StatusPermission Status = "PERMISSION"
	StatusLate       Status = "LATE"
	StatusExcused    Status = "EXCUSED"
)

// Statuses lists every status in report column order.
var Statuses = []Status{StatusPresent, StatusAbsent, StatusSick, StatusPermission, StatusLate, StatusExcused}

const statusTags = "oneof=PRESENT ABSENT SICK PERMISSION LATE EXCUSED"

// Code is the one-letter mark used in exported sheets.
func (s Status) Code() string {
	switch s {
	case StatusPresent:
		return "P"
	case StatusAbsent:
		return "A"
	case StatusSick:
		return "S"
	case StatusPermission:
		return "I"
	case StatusLate:
		return "L"
	case StatusExcused:
		return "E"
	}
	return ""
}

var (
	ErrDetailsExist = fmt.Errorf("attendance details already exist: %w", apperr.ErrConflict)
	ErrNoDetails    = fmt.Errorf("attendance details have not been created: %w", apperr.ErrConflict)
	ErrApproved     = fmt.Errorf("approved attendance cannot be deleted: %w", apperr.ErrConflict)
)

// SessionKey names one attendance sheet: a class, a subject-teacher and a semester.
type SessionKey struct {
	ClassID          string          `json:"classId" form:"classId" validate:"required,uuid"`
	SubjectTeacherID string          `json:"subjectTeacherId" form:"subjectTeacherId" validate:"required,uuid"`
	Semester         school.Semester `json:"semester" form:"semester" validate:"required,semester"`
}

// SessionInfo is what the workflow needs to know about a sheet before touching it.
type SessionInfo struct {
	Class          school.ClassRef
	SubjectTeacher school.SubjectTeacherRef
	SubjectGrade   school.Grade
	AcademicYear   school.AcademicYear
}

// Slot is an active timetable slot of the subject-teacher in the class.
type Slot struct {
	ID               string           `json:"id"`
	DayOfWeek        school.DayOfWeek `json:"dayOfWeek"`
	StartTime        string           `json:"startTime"`
	EndTime          string           `json:"endTime"`
	ClassID          string           `json:"classId"`
	SubjectTeacherID *string          `json:"subjectTeacherId"`
}

// Planned is a lesson occurrence Generate wants to exist.
type Planned struct {
	TimetableID string
	Date        school.Date
}

// Student is a roster entry.
type Student struct {
	StudentID string `json:"studentId" validate:"required,uuid"`
	FullName  string `json:"fullName"`
}

// Detail is one student's status on one date.
type Detail struct {
	ID           string `json:"id"`
	AttendanceID string `json:"attendanceId"`
	StudentID    string `json:"studentId"`
	StudentName  string `json:"studentName"`
	Status       Status `json:"status"`
	Note         string `json:"note"`
}

// Attendance is one dated lesson of a sheet with its details.
type Attendance struct {
	ID               string          `json:"id"`
	ClassID          string          `json:"classId"`
	SubjectTeacherID string          `json:"subjectTeacherId"`
	TeacherID        string          `json:"-"`
	Date             school.Date     `json:"date"`
	Semester         school.Semester `json:"semester"`
	Approve          bool            `json:"approve"`
	Locked           bool            `json:"locked"`
	Details          []Detail        `json:"attendancesDetails"`
	Timetable        Slot            `json:"timetable"`
}

// Bulk is the full sheet as the console renders it.
type Bulk struct {
	Count            int             `json:"count"`
	ClassID          string          `json:"classId"`
	ClassName        string          `json:"className"`
	SubjectTeacherID string          `json:"subjectTeacherId"`
	TeacherName      string          `json:"teacherName"`
	SubjectName      string          `json:"subjectName"`
	Semester         school.Semester `json:"semester"`
	Students         []Student       `json:"students"`
	Attendances      []Attendance    `json:"attendances"`
}

// CreateDetailsRequest fills an empty date. An empty student list means the class roster.
type CreateDetailsRequest struct {
	Students      []Student `json:"students" validate:"omitempty,dive"`
	DefaultStatus Status    `json:"defaultStatus" validate:"omitempty,status"`
}

// Update overrides one student's status and/or note; nil fields are kept.
type Update struct {
	StudentID string  `json:"studentId" validate:"required,uuid"`
	Status    *Status `json:"status" validate:"omitempty,status"`
	Note      *string `json:"note" validate:"omitempty,max=500"`
}

// BulkUpdateRequest applies overrides and optionally approves the date.
type BulkUpdateRequest struct {
	Updates []Update `json:"updates" validate:"dive"`
	Approve bool     `json:"approve"`
}

// GenerateResult reports a Generate call.
type GenerateResult struct {
	Created int  `json:"created"`
	Bulk    Bulk `json:"bulk"`
}

// CreateResult reports a CreateDetails call.
type CreateResult struct {
	Created int    `json:"created"`
	Message string `json:"message"`
}

// UpdateResult reports a BulkUpdate call.
type UpdateResult struct {
	TotalUpdated       int    `json:"totalUpdated"`
	AttendanceApproved bool   `json:"attendanceApproved"`
	Message            string `json:"message"`
}

// DeleteResult reports a DeleteBulk call.
type DeleteResult struct {
	Deleted int    `json:"deleted"`
	Message string `json:"message"`
}

// Approved is the body of a queue.TypeAttendanceApproved message. FirstApproval
// is false when an already approved date was edited again.
type Approved struct {
	AttendanceID  string      `json:"attendanceId"`
	Session       SessionKey  `json:"session"`
	Date          school.Date `json:"date"`
	FirstApproval bool        `json:"firstApproval"`
	At            time.Time   `json:"at"`
}

// DetailsUpdate is the outcome of one UpdateDetails transaction.
type DetailsUpdate struct {
	Updated  int
	Approved bool
	// Newly is set when this call approved the date.
	Newly bool
	// OutboxID names the approval event written with the change, if any.
	OutboxID string
}

// PendingApproval is an outbox event not yet on the queue.
type PendingApproval struct {
	OutboxID string
	Event    Approved
}

func init() {
	apperr.RegisterAlias("status", statusTags, "{0} must be a valid attendance status")
	apperr.RegisterAlias("semester", "oneof=SEMESTER_1 SEMESTER_2", "{0} must be SEMESTER_1 or SEMESTER_2")
}
