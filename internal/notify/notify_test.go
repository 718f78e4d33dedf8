package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var notice = AbsenceNotice{
	To:          "ibu@mail.id",
	ParentName:  "Ibu <Siti>",
	StudentName: "Siti",
	ClassName:   "VII-A",
	SubjectName: "Matematika",
	Date:        "2025-08-04",
}

func TestRender(t *testing.T) {
	msg, err := Render(notice)
	require.NoError(t, err)
	assert.Equal(t, "Absence notice: Siti on 2025-08-04", msg.Subject)
	assert.Contains(t, msg.Text, "Dear Ibu <Siti>,")
	assert.Contains(t, msg.Text, "Matematika (VII-A)")
	assert.Contains(t, msg.HTML, "Ibu &lt;Siti&gt;")
}

func TestSendGridNotifyAbsence(t *testing.T) {
	var got rest.Request
	sg := NewSendGrid("key", "School", "noreply@school.id")
	sg.send = func(req rest.Request) (*rest.Response, error) {
		got = req
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}

	require.NoError(t, sg.NotifyAbsence(context.Background(), notice))
	assert.Equal(t, rest.Method(http.MethodPost), got.Method)
	assert.Equal(t, "https://api.sendgrid.com/v3/mail/send", got.BaseURL)
	assert.Equal(t, "Bearer key", got.Headers["Authorization"])

	var body struct {
		From struct {
			Email string `json:"email"`
		} `json:"from"`
		Personalizations []struct {
			Subject string `json:"subject"`
			To      []struct {
				Email string `json:"email"`
			} `json:"to"`
		} `json:"personalizations"`
	}
	require.NoError(t, json.Unmarshal(got.Body, &body))
	assert.Equal(t, "noreply@school.id", body.From.Email)
	require.Len(t, body.Personalizations, 1)
	assert.Equal(t, "[School] Absence notice: Siti on 2025-08-04", body.Personalizations[0].Subject)
	assert.Equal(t, "ibu@mail.id", body.Personalizations[0].To[0].Email)
}

func TestSendGridErrors(t *testing.T) {
	sg := NewSendGrid("key", "School", "noreply@school.id")
	sg.send = func(rest.Request) (*rest.Response, error) {
		return &rest.Response{StatusCode: http.StatusUnauthorized, Body: "bad key"}, nil
	}
	err := sg.NotifyAbsence(context.Background(), notice)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")

	sg.send = func(rest.Request) (*rest.Response, error) { return nil, errors.New("dial tcp") }
	assert.ErrorContains(t, sg.NotifyAbsence(context.Background(), notice), "dial tcp")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sg.NotifyAbsence(ctx, notice), context.Canceled)
}

func TestConsoleLogsNotice(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c := NewConsole(zap.New(core))

	require.NoError(t, c.NotifyAbsence(context.Background(), notice))
	entries := logs.FilterMessage("absence notice").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ibu@mail.id", entries[0].ContextMap()["to"])
}

func TestNewPicksBackend(t *testing.T) {
	assert.IsType(t, &Console{}, New("", "School", "noreply@school.id", zap.NewNop()))
	assert.IsType(t, &SendGrid{}, New("key", "School", "noreply@school.id", zap.NewNop()))
}
