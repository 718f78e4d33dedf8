package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunKeepsGoingAfterHandlerErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	for _, id := range []string{"a1", "a2", "a3"} {
		msg, err := NewMessage(TypeAttendanceApproved, approved{AttendanceID: id})
		require.NoError(t, err)
		require.NoError(t, q.Publish(ctx, msg))
	}

	var (
		mu   sync.Mutex
		seen []string
	)
	handler := func(_ context.Context, msg Message) error {
		var body approved
		if err := msg.Decode(&body); err != nil {
			return err
		}
		mu.Lock()
		seen = append(seen, body.AttendanceID)
		n := len(seen)
		mu.Unlock()
		if n == 3 {
			cancel()
		}
		if body.AttendanceID == "a2" {
			return errors.New("smtp down")
		}
		return nil
	}

	core, logs := observer.New(zapcore.InfoLevel)
	done := make(chan error, 1)
	go func() { done <- Run(ctx, q, handler, zap.New(core)) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, []string{"a1", "a2", "a3"}, seen)
	failed := logs.FilterMessage("message failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "smtp down", failed[0].ContextMap()["error"])
}
