package school

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"schoolinfo/internal/apperr"
	"schoolinfo/internal/cache"
	"schoolinfo/internal/store"
)

type draftAction string

const (
	draftEdit   draftAction = "edit"
	draftVerify draftAction = "verify"
	draftReject draftAction = "reject"
	draftEnrol  draftAction = "enrol"
	draftDelete draftAction = "delete"
)

// transition returns the status a draft moves to when action is applied.
//
//	PENDING --verify--> APPROVED_PENDING --enrol--> APPROVED
//	PENDING | APPROVED_PENDING --reject--> REJECTED
//
// APPROVED and REJECTED drafts are final; approved ones cannot be deleted
// because a student account now points at them.
func transition(from DraftStatus, action draftAction) (DraftStatus, error) {
	switch action {
	case draftEdit:
		if from == DraftPending || from == DraftApprovedPending {
			return from, nil
		}
	case draftVerify:
		if from == DraftPending {
			return DraftApprovedPending, nil
		}
	case draftReject:
		if from == DraftPending || from == DraftApprovedPending {
			return DraftRejected, nil
		}
	case draftEnrol:
		if from == DraftApprovedPending {
			return DraftApproved, nil
		}
	case draftDelete:
		if from != DraftApproved {
			return from, nil
		}
	}
	return from, apperr.Conflict(fmt.Sprintf("cannot %s a %s draft", action, from))
}

// checkEnrolment requires a target class of the draft's grade.
func checkEnrolment(d StudentDraft) error {
	if d.TargetClass == nil {
		return apperr.NewValidationError("invalid request", apperr.FieldError{Field: "targetClassId", Error: "set a target class before enrolling"})
	}
	if d.TargetClass.Grade != d.Grade {
		return apperr.NewValidationError("invalid request", apperr.FieldError{
			Field: "targetClassId",
			Error: fmt.Sprintf("target class grade %s does not match draft grade %s", d.TargetClass.Grade, d.Grade),
		})
	}
	return nil
}

// enrolmentRequest builds the account requests an approved draft turns into.
func enrolmentRequest(d StudentDraft, req EnrolDraftRequest) ParentsWithStudentRequest {
	active := true
	out := ParentsWithStudentRequest{
		StudentRequest: StudentRequest{
			Email:            d.Email,
			Password:         req.StudentPassword,
			FullName:         d.FullName,
			Gender:           d.Gender,
			ClassID:          &d.TargetClass.ID,
			EnrollmentNumber: d.EnrollmentNumber,
			DOB:              &d.DOB,
			Address:          d.Address,
			IsActive:         &active,
		},
	}
	for _, p := range d.Parents {
		out.ParentRequests = append(out.ParentRequests, ParentRequest{
			Email:    p.Email,
			Password: req.ParentPassword,
			FullName: p.FullName,
			Gender:   p.Gender,
			Phone:    p.Phone,
			NIK:      p.NIK,
			Address:  p.Address,
			IsActive: &active,
		})
	}
	return out
}

const draftSelect = `
	SELECT d.id, d.email, d.full_name, ay.id, ay.name, c.id, c.name, c.grade, d.student_id,
		d.enrollment_number, d.dob, d.address, d.grade, d.gender, d.draft_type, d.status, d.parents,
		d.created_by, d.verified_by, d.verified_at, d.rejection_reason, d.created_at, d.updated_at
	FROM student_drafts d
	JOIN academic_years ay ON ay.id = d.academic_year_id
	LEFT JOIN classes c ON c.id = d.target_class_id
`

func scanDraft(row interface{ Scan(...any) error }) (StudentDraft, error) {
	var (
		d                         StudentDraft
		classID, className, grade sql.NullString
		studentID                 sql.NullString
		parents                   []byte
	)
	err := row.Scan(&d.ID, &d.Email, &d.FullName, &d.AcademicYear.ID, &d.AcademicYear.Name, &classID, &className, &grade, &studentID,
		&d.EnrollmentNumber, &d.DOB, &d.Address, &d.Grade, &d.Gender, &d.DraftType, &d.Status, &parents,
		&d.CreatedBy, &d.VerifiedBy, &d.VerifiedAt, &d.RejectionReason, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StudentDraft{}, apperr.NotFound("student draft")
	}
	if err != nil {
		return StudentDraft{}, err
	}
	if classID.Valid {
		d.TargetClass = &ClassRef{ID: classID.String, Name: className.String, Grade: Grade(grade.String)}
	}
	d.StudentID = studentID.String
	d.Parents = []DraftParent{}
	if len(parents) > 0 {
		if err := json.Unmarshal(parents, &d.Parents); err != nil {
			return StudentDraft{}, fmt.Errorf("decode draft parents: %w", err)
		}
	}
	return d, nil
}

// DraftFilter narrows a draft listing; empty fields match everything.
type DraftFilter struct {
	Status         DraftStatus
	AcademicYearID string
}

func (r *Repository) ListDrafts(ctx context.Context, f DraftFilter) ([]StudentDraft, error) {
	rows, err := r.db.QueryContext(ctx, draftSelect+`
		WHERE ($1 = '' OR d.status = $1) AND ($2 = '' OR d.academic_year_id::text = $2)
		ORDER BY d.created_at DESC
	`, f.Status, f.AcademicYearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	drafts := []StudentDraft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

func (r *Repository) GetDraft(ctx context.Context, id string) (StudentDraft, error) {
	return getDraft(ctx, r.db, id, false)
}

func getDraft(ctx context.Context, q store.Querier, id string, lock bool) (StudentDraft, error) {
	query := draftSelect + ` WHERE d.id = $1`
	if lock {
		query += ` FOR UPDATE OF d`
	}
	return scanDraft(q.QueryRowContext(ctx, query, id))
}

// SaveDraft inserts a new PENDING draft when id is empty; otherwise it edits
// the draft after checking, under a row lock, that it is still editable.
func (r *Repository) SaveDraft(ctx context.Context, id, createdBy string, req DraftRequest) (string, error) {
	parents := req.Parents
	if parents == nil {
		parents = []DraftParent{}
	}
	raw, err := json.Marshal(parents)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO student_drafts (id, email, full_name, academic_year_id, target_class_id, student_id, enrollment_number,
				dob, address, grade, gender, draft_type, status, parents, created_by)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		`, id, req.Email, req.FullName, req.AcademicYearID, nullable(req.TargetClassID), nullable(req.StudentID), req.EnrollmentNumber,
			req.DOB, req.Address, req.Grade, req.Gender, req.DraftType, DraftPending, raw, createdBy)
		return id, referenceError(err, "academic year, class or student")
	}
	return id, store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		d, err := getDraft(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if _, err := transition(d.Status, draftEdit); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE student_drafts SET email = $2, full_name = $3, academic_year_id = $4, target_class_id = $5, student_id = $6,
				enrollment_number = $7, dob = $8, address = $9, grade = $10, gender = $11, draft_type = $12, parents = $13,
				updated_at = NOW()
			WHERE id = $1
		`, id, req.Email, req.FullName, req.AcademicYearID, nullable(req.TargetClassID), nullable(req.StudentID),
			req.EnrollmentNumber, req.DOB, req.Address, req.Grade, req.Gender, req.DraftType, raw)
		return referenceError(err, "academic year, class or student")
	})
}

// ReviewDraft applies verify or reject under a row lock.
func (r *Repository) ReviewDraft(ctx context.Context, id string, action draftAction, by, reason string, at time.Time) error {
	return store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		d, err := getDraft(ctx, tx, id, true)
		if err != nil {
			return err
		}
		next, err := transition(d.Status, action)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE student_drafts SET status = $2, verified_by = $3, verified_at = $4, rejection_reason = $5, updated_at = NOW()
			WHERE id = $1
		`, id, next, by, at, reason)
		return err
	})
}

// EnrolDraft turns an APPROVED_PENDING draft into parent and student accounts.
func (r *Repository) EnrolDraft(ctx context.Context, id string, req EnrolDraftRequest) (string, error) {
	var studentID string
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		d, err := getDraft(ctx, tx, id, true)
		if err != nil {
			return err
		}
		next, err := transition(d.Status, draftEnrol)
		if err != nil {
			return err
		}
		if err := checkEnrolment(d); err != nil {
			return err
		}
		studentID, err = r.enrol(ctx, tx, enrolmentRequest(d, req))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE student_drafts SET status = $2, student_id = $3, updated_at = NOW() WHERE id = $1
		`, id, next, studentID)
		return err
	})
	return studentID, err
}

func (r *Repository) DeleteDraft(ctx context.Context, id string) error {
	return store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		d, err := getDraft(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if _, err := transition(d.Status, draftDelete); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM student_drafts WHERE id = $1`, id)
		return err
	})
}

func (s *Service) ListDrafts(ctx context.Context, f DraftFilter) ([]StudentDraft, error) {
	return read(ctx, s, cache.Key(ResDrafts, "list", string(f.Status), f.AcademicYearID), func(ctx context.Context) ([]StudentDraft, error) {
		return s.repo.ListDrafts(ctx, f)
	})
}

func (s *Service) GetDraft(ctx context.Context, id string) (StudentDraft, error) {
	return read(ctx, s, cache.Key(ResDrafts, "id", id), func(ctx context.Context) (StudentDraft, error) {
		return s.repo.GetDraft(ctx, id)
	})
}

func (s *Service) SaveDraft(ctx context.Context, id, by string, req DraftRequest) (StudentDraft, error) {
	if err := apperr.Validate(req); err != nil {
		return StudentDraft{}, err
	}
	id, err := s.repo.SaveDraft(ctx, id, by, req)
	if err != nil {
		return StudentDraft{}, err
	}
	s.invalidate(ctx, ResDrafts)
	return s.repo.GetDraft(ctx, id)
}

func (s *Service) VerifyDraft(ctx context.Context, id, by string) (StudentDraft, error) {
	if err := s.repo.ReviewDraft(ctx, id, draftVerify, by, "", s.now()); err != nil {
		return StudentDraft{}, err
	}
	s.invalidate(ctx, ResDrafts)
	return s.repo.GetDraft(ctx, id)
}

func (s *Service) RejectDraft(ctx context.Context, id, by string, req RejectDraftRequest) (StudentDraft, error) {
	if err := apperr.Validate(req); err != nil {
		return StudentDraft{}, err
	}
	if err := s.repo.ReviewDraft(ctx, id, draftReject, by, req.Reason, s.now()); err != nil {
		return StudentDraft{}, err
	}
	s.invalidate(ctx, ResDrafts)
	return s.repo.GetDraft(ctx, id)
}

// EnrolDraft creates the student and parent accounts of a verified draft.
func (s *Service) EnrolDraft(ctx context.Context, id string, req EnrolDraftRequest) (Student, error) {
	if err := apperr.Validate(req); err != nil {
		return Student{}, err
	}
	studentID, err := s.repo.EnrolDraft(ctx, id, req)
	if err != nil {
		return Student{}, err
	}
	s.invalidate(ctx, ResDrafts, ResStudents, ResParents)
	return s.repo.GetStudent(ctx, studentID)
}

func (s *Service) DeleteDraft(ctx context.Context, id string) error {
	if err := s.repo.DeleteDraft(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, ResDrafts)
	return nil
}
