package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/store"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

func (r *Repository) SessionInfo(ctx context.Context, key SessionKey) (SessionInfo, error) {
	var info SessionInfo
	err := r.db.QueryRowContext(ctx, `
		SELECT c.id, c.name, c.grade, st.id, t.id, u.full_name, sb.id, sb.name, sb.grade,
			ay.id, ay.name, ay.start_date, ay.end_date, ay.semester_two_start, ay.is_active
		FROM classes c
		JOIN academic_years ay ON ay.id = c.academic_year_id
		JOIN subject_teachers st ON st.id = $2
		JOIN subjects sb ON sb.id = st.subject_id
		JOIN teachers t ON t.id = st.teacher_id
		JOIN users u ON u.id = t.user_id
		WHERE c.id = $1
	`, key.ClassID, key.SubjectTeacherID).Scan(
		&info.Class.ID, &info.Class.Name, &info.Class.Grade,
		&info.SubjectTeacher.ID, &info.SubjectTeacher.TeacherID, &info.SubjectTeacher.TeacherFullname,
		&info.SubjectTeacher.SubjectID, &info.SubjectTeacher.SubjectName, &info.SubjectGrade,
		&info.AcademicYear.ID, &info.AcademicYear.Name, &info.AcademicYear.StartDate, &info.AcademicYear.EndDate,
		&info.AcademicYear.SemesterTwoStart, &info.AcademicYear.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionInfo{}, apperr.NotFound("class or subject teacher")
	}
	return info, err
}

func (r *Repository) Slots(ctx context.Context, classID, subjectTeacherID string) ([]Slot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, day_of_week, start_time, end_time, class_id, subject_teacher_id
		FROM timetables
		WHERE class_id = $1 AND subject_teacher_id = $2 AND is_active
		ORDER BY start_time
	`, classID, subjectTeacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var slots []Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.ID, &s.DayOfWeek, &s.StartTime, &s.EndTime, &s.ClassID, &s.SubjectTeacherID); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *Repository) Roster(ctx context.Context, classID string) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, u.full_name
		FROM students s
		JOIN users u ON u.id = s.user_id
		WHERE s.class_id = $1 AND s.is_active
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	students := []Student{}
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.StudentID, &st.FullName); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// InsertAttendances keeps existing (timetable, date) rows.
func (r *Repository) InsertAttendances(ctx context.Context, key SessionKey, planned []Planned) (int, error) {
	created := 0
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, p := range planned {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO attendances (id, class_id, subject_teacher_id, timetable_id, semester, date)
				VALUES ($1,$2,$3,$4,$5,$6)
				ON CONFLICT (timetable_id, date) DO NOTHING
			`, uuid.NewString(), key.ClassID, key.SubjectTeacherID, p.TimetableID, key.Semester, p.Date)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			created += int(n)
		}
		return nil
	})
	return created, err
}

const attendanceSelect = `
	SELECT a.id, a.class_id, a.subject_teacher_id, st.teacher_id, a.date, a.semester, a.approve,
		tt.id, tt.day_of_week, tt.start_time, tt.end_time, tt.class_id, tt.subject_teacher_id
	FROM attendances a
	JOIN subject_teachers st ON st.id = a.subject_teacher_id
	JOIN timetables tt ON tt.id = a.timetable_id
`

func scanAttendance(row interface{ Scan(...any) error }) (Attendance, error) {
	var a Attendance
	err := row.Scan(&a.ID, &a.ClassID, &a.SubjectTeacherID, &a.TeacherID, &a.Date, &a.Semester, &a.Approve,
		&a.Timetable.ID, &a.Timetable.DayOfWeek, &a.Timetable.StartTime, &a.Timetable.EndTime, &a.Timetable.ClassID, &a.Timetable.SubjectTeacherID)
	if errors.Is(err, sql.ErrNoRows) {
		return Attendance{}, apperr.NotFound("attendance")
	}
	a.Locked = a.Approve
	a.Details = []Detail{}
	return a, err
}

func (r *Repository) ListAttendances(ctx context.Context, key SessionKey) ([]Attendance, error) {
	rows, err := r.db.QueryContext(ctx, attendanceSelect+`
		WHERE a.class_id = $1 AND a.subject_teacher_id = $2 AND a.semester = $3
	`, key.ClassID, key.SubjectTeacherID, key.Semester)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	atts := []Attendance{}
	idx := map[string]int{}
	var ids []string
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		idx[a.ID] = len(atts)
		ids = append(ids, a.ID)
		atts = append(atts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return atts, nil
	}

	details, err := r.details(ctx, `WHERE d.attendance_id::text = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, d := range details {
		i := idx[d.AttendanceID]
		atts[i].Details = append(atts[i].Details, d)
	}
	return atts, nil
}

func (r *Repository) GetAttendance(ctx context.Context, id string) (Attendance, error) {
	return scanAttendance(r.db.QueryRowContext(ctx, attendanceSelect+` WHERE a.id = $1`, id))
}

func (r *Repository) Details(ctx context.Context, attendanceID string) ([]Detail, error) {
	return r.details(ctx, `WHERE d.attendance_id = $1`, attendanceID)
}

func (r *Repository) details(ctx context.Context, where string, arg any) ([]Detail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.id, d.attendance_id, d.student_id, u.full_name, d.status, d.note
		FROM attendance_details d
		JOIN students s ON s.id = d.student_id
		JOIN users u ON u.id = s.user_id
	`+where, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := []Detail{}
	for rows.Next() {
		var d Detail
		if err := rows.Scan(&d.ID, &d.AttendanceID, &d.StudentID, &d.StudentName, &d.Status, &d.Note); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// lockAttendance takes the row lock that serialises detail writes of one date
// and returns how many details it has.
func lockAttendance(ctx context.Context, tx *sql.Tx, id string) (approved bool, details int, err error) {
	err = tx.QueryRowContext(ctx, `SELECT approve FROM attendances WHERE id = $1 FOR UPDATE`, id).Scan(&approved)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, apperr.NotFound("attendance")
	}
	if err != nil {
		return false, 0, err
	}
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_details WHERE attendance_id = $1`, id).Scan(&details)
	return approved, details, err
}

func (r *Repository) CreateDetails(ctx context.Context, attendanceID string, studentIDs []string, status Status) (int, error) {
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, n, err := lockAttendance(ctx, tx, attendanceID)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDetailsExist
		}
		for _, sid := range studentIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO attendance_details (id, attendance_id, student_id, status) VALUES ($1,$2,$3,$4)
			`, uuid.NewString(), attendanceID, sid, status)
			if store.IsUniqueViolation(err) {
				return ErrDetailsExist
			}
			if store.IsForeignKeyViolation(err) {
				return apperr.NewValidationError("student does not exist")
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(studentIDs), nil
}

func (r *Repository) UpdateDetails(ctx context.Context, attendanceID string, updates []Update, approve bool) (DetailsUpdate, error) {
	var out DetailsUpdate
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		was, count, err := lockAttendance(ctx, tx, attendanceID)
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNoDetails
		}
		for i, u := range updates {
			res, err := tx.ExecContext(ctx, `
				UPDATE attendance_details SET status = COALESCE($3, status), note = COALESCE($4, note), updated_at = NOW()
				WHERE attendance_id = $1 AND student_id = $2
			`, attendanceID, u.StudentID, u.Status, u.Note)
			if err != nil {
				return err
			}
			if rows, _ := res.RowsAffected(); rows == 0 {
				return apperr.NewValidationError("invalid request", apperr.FieldError{
					Field: fieldIndex("updates", i, "studentId"),
					Error: "student has no detail on this date",
				})
			}
			out.Updated++
		}
		out.Approved = was
		if approve && !was {
			if _, err := tx.ExecContext(ctx, `UPDATE attendances SET approve = TRUE, updated_at = NOW() WHERE id = $1`, attendanceID); err != nil {
				return err
			}
			out.Approved, out.Newly = true, true
		}
		if !out.Approved || (!out.Newly && out.Updated == 0) {
			return nil
		}
		out.OutboxID = uuid.NewString()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO attendance_outbox (id, attendance_id, first_approval) VALUES ($1,$2,$3)
		`, out.OutboxID, attendanceID, out.Newly)
		return err
	})
	if err != nil {
		return DetailsUpdate{}, err
	}
	return out, nil
}

func (r *Repository) MarkPublished(ctx context.Context, outboxID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE attendance_outbox SET published_at = NOW() WHERE id = $1`, outboxID)
	return err
}

// RelayPending locks a batch of pending events so concurrent relays skip
// them, publishes each and marks the accepted ones. A publish failure stops
// the batch; the rest stay pending.
func (r *Repository) RelayPending(ctx context.Context, olderThan time.Time, limit int, publish func(context.Context, PendingApproval) error) (int, error) {
	var (
		sent       int
		publishErr error
	)
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT o.id, o.first_approval, o.created_at, a.id, a.class_id, a.subject_teacher_id, a.semester, a.date
			FROM attendance_outbox o
			JOIN attendances a ON a.id = o.attendance_id
			WHERE o.published_at IS NULL AND o.created_at < $1
			ORDER BY o.created_at
			LIMIT $2
			FOR UPDATE OF o SKIP LOCKED
		`, olderThan, limit)
		if err != nil {
			return err
		}
		var pending []PendingApproval
		for rows.Next() {
			var p PendingApproval
			ev := &p.Event
			if err := rows.Scan(&p.OutboxID, &ev.FirstApproval, &ev.At, &ev.AttendanceID,
				&ev.Session.ClassID, &ev.Session.SubjectTeacherID, &ev.Session.Semester, &ev.Date); err != nil {
				rows.Close()
				return err
			}
			pending = append(pending, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, p := range pending {
			if publishErr = publish(ctx, p); publishErr != nil {
				break
			}
			if _, err := tx.ExecContext(ctx, `UPDATE attendance_outbox SET published_at = NOW() WHERE id = $1`, p.OutboxID); err != nil {
				return err
			}
			sent++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sent, publishErr
}

func (r *Repository) DeleteSession(ctx context.Context, key SessionKey) (int, error) {
	var deleted int
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var approved int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FILTER (WHERE approve) FROM (
				SELECT approve FROM attendances
				WHERE class_id = $1 AND subject_teacher_id = $2 AND semester = $3
				FOR UPDATE
			) a
		`, key.ClassID, key.SubjectTeacherID, key.Semester).Scan(&approved)
		if err != nil {
			return err
		}
		if approved > 0 {
			return ErrApproved
		}
		res, err := tx.ExecContext(ctx, `
			DELETE FROM attendances WHERE class_id = $1 AND subject_teacher_id = $2 AND semester = $3
		`, key.ClassID, key.SubjectTeacherID, key.Semester)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		deleted = int(n)
		return nil
	})
	return deleted, err
}

// SaveRecaps replaces the stored recap of a sheet.
func (r *Repository) SaveRecaps(ctx context.Context, key SessionKey, recaps []Recap) error {
	return store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM attendance_recaps WHERE class_id = $1 AND subject_teacher_id = $2 AND semester = $3
		`, key.ClassID, key.SubjectTeacherID, key.Semester)
		if err != nil {
			return err
		}
		for _, rc := range recaps {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO attendance_recaps (student_id, class_id, subject_teacher_id, semester,
					present, absent, sick, permission, late, excused, total)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			`, rc.StudentID, key.ClassID, key.SubjectTeacherID, key.Semester,
				rc.Present, rc.Absent, rc.Sick, rc.Permission, rc.Late, rc.Excused, rc.Total)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) Recaps(ctx context.Context, f RecapFilter) ([]Recap, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rc.student_id, u.full_name, rc.class_id, rc.subject_teacher_id, sb.name, rc.semester,
			rc.present, rc.absent, rc.sick, rc.permission, rc.late, rc.excused, rc.total
		FROM attendance_recaps rc
		JOIN students s ON s.id = rc.student_id
		JOIN users u ON u.id = s.user_id
		JOIN subject_teachers st ON st.id = rc.subject_teacher_id
		JOIN subjects sb ON sb.id = st.subject_id
		WHERE ($1 = '' OR rc.class_id::text = $1)
		  AND ($2 = '' OR rc.subject_teacher_id::text = $2)
		  AND ($3 = '' OR rc.semester = $3)
		  AND ($4 = '' OR rc.student_id::text = $4)
	`, f.ClassID, f.SubjectTeacherID, f.Semester, f.StudentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	recaps := []Recap{}
	for rows.Next() {
		var rc Recap
		if err := rows.Scan(&rc.StudentID, &rc.StudentName, &rc.ClassID, &rc.SubjectTeacherID, &rc.SubjectName, &rc.Semester,
			&rc.Present, &rc.Absent, &rc.Sick, &rc.Permission, &rc.Late, &rc.Excused, &rc.Total); err != nil {
			return nil, err
		}
		rc.rate()
		recaps = append(recaps, rc)
	}
	return recaps, rows.Err()
}
