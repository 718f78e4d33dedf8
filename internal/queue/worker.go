package queue

import (
	"context"

	"go.uber.org/zap"
)

// Handler processes one message.
type Handler func(ctx context.Context, msg Message) error

// Run consumes q until ctx is done. Handler errors are logged and the message
// is dropped; there is no redelivery.
func Run(ctx context.Context, q Queue, h Handler, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	log.Info("worker started")
	for msg := range messages {
		if err := h(ctx, msg); err != nil {
			log.Error("message failed", zap.String("type", msg.Type), zap.Error(err))
			continue
		}
		log.Debug("message processed", zap.String("type", msg.Type))
	}
	log.Info("worker stopped")
	return nil
}
