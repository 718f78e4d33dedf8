package school

import (
	"schoolinfo/internal/apperr"
)

const (
	gradeTags  = "oneof=GRADE_1 GRADE_2 GRADE_3 GRADE_4 GRADE_5 GRADE_6 GRADE_7 GRADE_8 GRADE_9 GRADE_10 GRADE_11 GRADE_12"
	dayTags    = "oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY"
	genderTags = "oneof=MALE FEMALE"
)

type AcademicYearRequest struct {
	Name             string `json:"name" validate:"required,max=100"`
	StartDate        *Date  `json:"startDate" validate:"required"`
	EndDate          *Date  `json:"endDate" validate:"required"`
	SemesterTwoStart *Date  `json:"semesterTwoStart"`
	IsActive         bool   `json:"isActive"`
}

func (r AcademicYearRequest) validate() error {
	if err := apperr.Validate(r); err != nil {
		return err
	}
	if !r.EndDate.After(r.StartDate.Time) {
		return apperr.NewValidationError("invalid request", apperr.FieldError{Field: "endDate", Error: "endDate must be after startDate"})
	}
	if t := r.SemesterTwoStart; t != nil && (!t.After(r.StartDate.Time) || t.After(r.EndDate.Time)) {
		return apperr.NewValidationError("invalid request", apperr.FieldError{Field: "semesterTwoStart", Error: "semesterTwoStart must fall inside the academic year"})
	}
	return nil
}

type ClassRequest struct {
	Name              string  `json:"name" validate:"required,max=50"`
	Grade             Grade   `json:"grade" validate:"required,grade"`
	AcademicYearID    string  `json:"academicYearId" validate:"required,uuid"`
	HomeroomTeacherID *string `json:"homeroomTeacherId" validate:"omitempty,uuid"`
}

type SubjectRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Grade Grade  `json:"grade" validate:"required,grade"`
}

type SubjectTeacherRequest struct {
	SubjectID string `json:"subjectId" validate:"required,uuid"`
	TeacherID string `json:"teacherId" validate:"required,uuid"`
}

// TeacherRequest creates or updates a teacher; password is only required on create.
type TeacherRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"omitempty,min=8"`
	FullName string `json:"fullName" validate:"required,max=150"`
	Gender   Gender `json:"gender" validate:"omitempty,gender"`
	NIK      string `json:"nik" validate:"required,max=32"`
	NIP      string `json:"nip" validate:"max=32"`
	Phone    string `json:"phone" validate:"required,max=32"`
	DOB      *Date  `json:"dob"`
	HireDate *Date  `json:"hireDate"`
}

type StudentRequest struct {
	Email            string   `json:"email" validate:"required,email"`
	Password         string   `json:"password" validate:"omitempty,min=8"`
	FullName         string   `json:"fullName" validate:"required,max=150"`
	Gender           Gender   `json:"gender" validate:"required,gender"`
	ClassID          *string  `json:"classId" validate:"omitempty,uuid"`
	EnrollmentNumber string   `json:"enrollmentNumber" validate:"max=32"`
	DOB              *Date    `json:"dob" validate:"required"`
	Address          string   `json:"address"`
	IsActive         *bool    `json:"isActive"`
	ParentIDs        []string `json:"parentIds" validate:"omitempty,dive,uuid"`
}

type ParentRequest struct {
	Email      string   `json:"email" validate:"required,email"`
	Password   string   `json:"password" validate:"omitempty,min=8"`
	FullName   string   `json:"fullName" validate:"required,max=150"`
	Gender     Gender   `json:"gender" validate:"required,gender"`
	Phone      string   `json:"phone" validate:"required,max=32"`
	NIK        string   `json:"nik" validate:"required,max=32"`
	Address    string   `json:"address"`
	DOB        *Date    `json:"dob"`
	IsActive   *bool    `json:"isActive"`
	StudentIDs []string `json:"studentIds" validate:"omitempty,dive,uuid"`
}

// ParentsWithStudentRequest enrols one student together with their parents.
type ParentsWithStudentRequest struct {
	ParentRequests []ParentRequest `json:"parentRequests" validate:"dive"`
	StudentRequest StudentRequest  `json:"studentRequest"`
}

type TimetableRequest struct {
	ClassID          string    `json:"classId" validate:"required,uuid"`
	SubjectTeacherID *string   `json:"subjectTeacherId" validate:"omitempty,uuid"`
	DayOfWeek        DayOfWeek `json:"dayOfWeek" validate:"required,day"`
	StartTime        string    `json:"startTime" validate:"required,clock"`
	EndTime          string    `json:"endTime" validate:"required,clock"`
	IsActive         *bool     `json:"isActive"`
}

func (r TimetableRequest) validate() error {
	if err := apperr.Validate(r); err != nil {
		return err
	}
	// HH:mm strings order lexically.
	if r.EndTime <= r.StartTime {
		return apperr.NewValidationError("invalid request", apperr.FieldError{Field: "endTime", Error: "endTime must be after startTime"})
	}
	return nil
}

type AssignSubjectTeacherRequest struct {
	SubjectTeacherID string `json:"subjectTeacherId" validate:"required,uuid"`
}

type DraftRequest struct {
	Email            string        `json:"email" validate:"required,email"`
	FullName         string        `json:"fullName" validate:"required,max=150"`
	AcademicYearID   string        `json:"academicYearId" validate:"required,uuid"`
	TargetClassID    *string       `json:"targetClassId" validate:"omitempty,uuid"`
	StudentID        *string       `json:"studentId" validate:"omitempty,uuid"`
	EnrollmentNumber string        `json:"enrollmentNumber" validate:"max=32"`
	DOB              *Date         `json:"dob" validate:"required"`
	Address          string        `json:"address"`
	Grade            Grade         `json:"grade" validate:"required,grade"`
	Gender           Gender        `json:"gender" validate:"omitempty,gender"`
	DraftType        DraftType     `json:"draftType" validate:"required,oneof=NEW_ENROLLMENT TRANSFER_IN TRANSFER_OUT TRANSFER_UP GRADUATED"`
	Parents          []DraftParent `json:"parents" validate:"dive"`
}

type RejectDraftRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// EnrolDraftRequest carries the initial passwords of the accounts the enrolment creates.
type EnrolDraftRequest struct {
	StudentPassword string `json:"studentPassword" validate:"required,min=8"`
	ParentPassword  string `json:"parentPassword" validate:"required,min=8"`
}

func init() {
	apperr.RegisterAlias("grade", gradeTags, "{0} must be a supported grade")
	apperr.RegisterAlias("day", dayTags, "{0} must be a school day")
	apperr.RegisterAlias("gender", genderTags, "{0} must be MALE or FEMALE")
}
