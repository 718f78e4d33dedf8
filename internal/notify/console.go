package notify

import (
	"context"

	"go.uber.org/zap"
)

// Console logs notices instead of sending them; used when no mail key is set.
type Console struct {
	log *zap.Logger
}

var _ Notifier = (*Console)(nil)

func NewConsole(log *zap.Logger) *Console {
	return &Console{log: log}
}

func (c *Console) NotifyAbsence(_ context.Context, n AbsenceNotice) error {
	msg, err := Render(n)
	if err != nil {
		return err
	}
	c.log.Info("absence notice",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}
