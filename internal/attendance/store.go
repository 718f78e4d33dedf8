package attendance

import (
	"context"
	"time"
)

// Store is the persistence the workflow runs on.
type Store interface {
	// SessionInfo resolves the class, subject-teacher and academic year of a sheet.
	SessionInfo(ctx context.Context, key SessionKey) (SessionInfo, error)
	// Slots returns the active timetable slots of the subject-teacher in the class.
	Slots(ctx context.Context, classID, subjectTeacherID string) ([]Slot, error)
	// Roster returns the active students of a class.
	Roster(ctx context.Context, classID string) ([]Student, error)

	// InsertAttendances adds the missing dated rows and reports how many were new.
	InsertAttendances(ctx context.Context, key SessionKey, planned []Planned) (int, error)
	ListAttendances(ctx context.Context, key SessionKey) ([]Attendance, error)
	// GetAttendance returns one dated row without its details.
	GetAttendance(ctx context.Context, id string) (Attendance, error)
	Details(ctx context.Context, attendanceID string) ([]Detail, error)

	// CreateDetails fails with ErrDetailsExist unless the date is still empty.
	CreateDetails(ctx context.Context, attendanceID string, studentIDs []string, status Status) (int, error)
	// UpdateDetails fails with ErrNoDetails on an empty date. When the date
	// is approved afterwards and this call approved it or changed a detail,
	// an approval event is written to the outbox in the same transaction.
	UpdateDetails(ctx context.Context, attendanceID string, updates []Update, approve bool) (DetailsUpdate, error)
	// DeleteSession fails with ErrApproved when any date of the sheet is approved.
	DeleteSession(ctx context.Context, key SessionKey) (int, error)

	// MarkPublished records that an outbox event reached the queue.
	MarkPublished(ctx context.Context, outboxID string) error
	// RelayPending passes unpublished outbox events created before olderThan
	// to publish, oldest first, and marks the ones it accepted.
	RelayPending(ctx context.Context, olderThan time.Time, limit int, publish func(context.Context, PendingApproval) error) (int, error)

	SaveRecaps(ctx context.Context, key SessionKey, recaps []Recap) error
	Recaps(ctx context.Context, f RecapFilter) ([]Recap, error)
}
