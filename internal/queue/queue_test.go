package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type approved struct {
	AttendanceID string `json:"attendanceId"`
}

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msg, err := NewMessage(TypeAttendanceApproved, approved{AttendanceID: "a1"})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, msg))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	got := receive(t, ch)
	assert.Equal(t, TypeAttendanceApproved, got.Type)

	var body approved
	require.NoError(t, got.Decode(&body))
	assert.Equal(t, "a1", body.AttendanceID)
}

func TestInMemoryConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewInMemory(1).Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestRedisQueueRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewRedisQueue(client, "test:queue")
	q.wait = 100 * time.Millisecond

	for _, id := range []string{"a1", "a2"} {
		msg, err := NewMessage(TypeAttendanceApproved, approved{AttendanceID: id})
		require.NoError(t, err)
		require.NoError(t, q.Publish(ctx, msg))
	}

	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 2; i++ {
		var body approved
		require.NoError(t, receive(t, ch).Decode(&body))
		ids = append(ids, body.AttendanceID)
	}
	// LPUSH + BRPOP is FIFO.
	assert.Equal(t, []string{"a1", "a2"}, ids)
}
