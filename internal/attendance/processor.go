package attendance

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"schoolinfo/internal/notify"
	"schoolinfo/internal/queue"
	"schoolinfo/internal/school"
)

// Contacts resolves who to notify about a student.
type Contacts interface {
	ParentContacts(ctx context.Context, studentIDs []string) ([]school.ParentContact, error)
}

// Processor handles attendance messages taken off the queue.
type Processor struct {
	svc      *Service
	contacts Contacts
	notifier notify.Notifier
	log      *zap.Logger
}

func NewProcessor(svc *Service, contacts Contacts, notifier notify.Notifier, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{svc: svc, contacts: contacts, notifier: notifier, log: log}
}

// Handle recomputes the recap of an approved sheet and, on first approval,
// sends absence notices. Unknown message types are ignored.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != queue.TypeAttendanceApproved {
		p.log.Debug("ignoring message", zap.String("type", msg.Type))
		return nil
	}
	var ev Approved
	if err := msg.Decode(&ev); err != nil {
		return fmt.Errorf("decode %s: %w", msg.Type, err)
	}
	recaps, err := p.svc.RecomputeRecap(ctx, ev.Session)
	if err != nil {
		return fmt.Errorf("recompute recap: %w", err)
	}
	p.log.Info("recap recomputed", zap.String("attendance_id", ev.AttendanceID), zap.Int("students", len(recaps)))
	if !ev.FirstApproval {
		return nil
	}
	return p.notifyAbsent(ctx, ev)
}

func (p *Processor) notifyAbsent(ctx context.Context, ev Approved) error {
	absent, err := p.svc.Absentees(ctx, ev.AttendanceID)
	if err != nil || len(absent) == 0 {
		return err
	}
	ids := make([]string, 0, len(absent))
	for _, d := range absent {
		ids = append(ids, d.StudentID)
	}
	contacts, err := p.contacts.ParentContacts(ctx, ids)
	if err != nil {
		return fmt.Errorf("parent contacts: %w", err)
	}
	bulk, err := p.svc.GetBulk(ctx, ev.Session)
	if err != nil {
		return err
	}

	var errs []error
	for _, c := range contacts {
		err := p.notifier.NotifyAbsence(ctx, notify.AbsenceNotice{
			To:          c.Email,
			ParentName:  c.ParentName,
			StudentName: c.StudentName,
			ClassName:   bulk.ClassName,
			SubjectName: bulk.SubjectName,
			Date:        ev.Date.String(),
		})
		if err != nil {
			p.log.Warn("absence notice failed", zap.String("student_id", c.StudentID), zap.String("to", c.Email), zap.Error(err))
			errs = append(errs, err)
		}
	}
	p.log.Info("absence notices sent", zap.String("attendance_id", ev.AttendanceID), zap.Int("notices", len(contacts)-len(errs)))
	return errors.Join(errs...)
}
