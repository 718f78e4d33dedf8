package school

import (
	"time"
)

type Grade string

const (
	Grade1  Grade = "GRADE_1"
	Grade2  Grade = "GRADE_2"
	Grade3  Grade = "GRADE_3"
	Grade4  Grade = "GRADE_4"
	Grade5  Grade = "GRADE_5"
	Grade6  Grade = "GRADE_6"
	Grade7  Grade = "GRADE_7"
	Grade8  Grade = "GRADE_8"
	Grade9  Grade = "GRADE_9"
	Grade10 Grade = "GRADE_10"
	Grade11 Grade = "GRADE_11"
	Grade12 Grade = "GRADE_12"
)

type Gender string

const (
	Male   Gender = "MALE"
	Female Gender = "FEMALE"
)

// DayOfWeek is a school day; Sunday has no lessons.
type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
)

// Days lists school days in week order.
var Days = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// Weekday maps the school day onto time.Weekday.
func (d DayOfWeek) Weekday() (time.Weekday, bool) {
	for i, day := range Days {
		if day == d {
			return time.Weekday(i + 1), true
		}
	}
	return 0, false
}

// Index orders days within the week; unknown days sort last.
func (d DayOfWeek) Index() int {
	if wd, ok := d.Weekday(); ok {
		return int(wd)
	}
	return len(Days) + 1
}

type DraftStatus string

const (
	DraftPending         DraftStatus = "PENDING"
	DraftApprovedPending DraftStatus = "APPROVED_PENDING"
	DraftApproved        DraftStatus = "APPROVED"
	DraftRejected        DraftStatus = "REJECTED"
)

type DraftType string

const (
	NewEnrollment DraftType = "NEW_ENROLLMENT"
	TransferIn    DraftType = "TRANSFER_IN"
	TransferOut   DraftType = "TRANSFER_OUT"
	TransferUp    DraftType = "TRANSFER_UP"
	Graduated     DraftType = "GRADUATED"
)

// Ref is the compact {id, name} shape embedded in responses.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserRef is the account part of a teacher, student or parent.
type UserRef struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Gender   Gender `json:"gender,omitempty"`
}

type AcademicYear struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	StartDate        Date      `json:"startDate"`
	EndDate          Date      `json:"endDate"`
	SemesterTwoStart *Date     `json:"semesterTwoStart,omitempty"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type Class struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Grade           Grade     `json:"grade"`
	AcademicYear    Ref       `json:"academicYear"`
	HomeroomTeacher *Ref      `json:"homeroomTeacher,omitempty"`
	StudentCount    int       `json:"studentCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Grade     Grade     `json:"grade"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Teacher struct {
	ID        string    `json:"id"`
	User      UserRef   `json:"user"`
	NIK       string    `json:"nik"`
	NIP       string    `json:"nip,omitempty"`
	Phone     string    `json:"phone"`
	DOB       *Date     `json:"dob,omitempty"`
	HireDate  *Date     `json:"hireDate,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type SubjectTeacher struct {
	ID        string    `json:"id"`
	Subject   Ref       `json:"subject"`
	Grade     Grade     `json:"grade"`
	Teacher   Ref       `json:"teacher"`
	CreatedAt time.Time `json:"createdAt"`
}

type Student struct {
	ID               string    `json:"id"`
	User             UserRef   `json:"user"`
	Class            *ClassRef `json:"class,omitempty"`
	EnrollmentNumber string    `json:"enrollmentNumber"`
	DOB              *Date     `json:"dob,omitempty"`
	Address          string    `json:"address,omitempty"`
	Parents          []UserRef `json:"parents"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type ClassRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Grade Grade  `json:"grade"`
}

type Parent struct {
	ID        string    `json:"id"`
	User      UserRef   `json:"user"`
	Phone     string    `json:"phone"`
	NIK       string    `json:"nik"`
	Address   string    `json:"address,omitempty"`
	DOB       *Date     `json:"dob,omitempty"`
	Students  []Ref     `json:"students"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DraftParent is a parent entry captured on an admission draft.
type DraftParent struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	NIK      string `json:"nik,omitempty"`
	Gender   Gender `json:"gender,omitempty" validate:"omitempty,oneof=MALE FEMALE"`
	Address  string `json:"address,omitempty"`
}

type StudentDraft struct {
	ID               string        `json:"id"`
	Email            string        `json:"email"`
	FullName         string        `json:"fullName"`
	AcademicYear     Ref           `json:"academicYear"`
	TargetClass      *ClassRef     `json:"targetClass,omitempty"`
	StudentID        string        `json:"studentId,omitempty"`
	EnrollmentNumber string        `json:"enrollmentNumber,omitempty"`
	DOB              Date          `json:"dob"`
	Address          string        `json:"address,omitempty"`
	Grade            Grade         `json:"grade"`
	Gender           Gender        `json:"gender,omitempty"`
	DraftType        DraftType     `json:"draftType"`
	Status           DraftStatus   `json:"status"`
	Parents          []DraftParent `json:"parents"`
	CreatedBy        string        `json:"createdBy,omitempty"`
	VerifiedBy       string        `json:"verifiedBy,omitempty"`
	VerifiedAt       *time.Time    `json:"verifiedAt,omitempty"`
	RejectionReason  string        `json:"rejectionReason,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// SubjectTeacherRef describes the teaching assignment bound to a timetable slot.
type SubjectTeacherRef struct {
	ID              string `json:"id"`
	TeacherID       string `json:"teacherId"`
	TeacherFullname string `json:"teacherFullname"`
	SubjectID       string `json:"subjectId"`
	SubjectName     string `json:"subjectName"`
}

type Timetable struct {
	ID             string             `json:"id"`
	ClassID        string             `json:"classId"`
	Class          ClassRef           `json:"class"`
	SubjectTeacher *SubjectTeacherRef `json:"subjectTeacher,omitempty"`
	DayOfWeek      DayOfWeek          `json:"dayOfWeek"`
	StartTime      string             `json:"startTime"`
	EndTime        string             `json:"endTime"`
	IsActive       bool               `json:"isActive"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}
