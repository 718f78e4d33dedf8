// Package notify sends messages to parents.
package notify

import (
	"bytes"
	"context"
	htmltmpl "html/template"
	texttmpl "text/template"

	"go.uber.org/zap"
)

// AbsenceNotice tells a parent their child missed a lesson.
type AbsenceNotice struct {
	To          string
	ParentName  string
	StudentName string
	ClassName   string
	SubjectName string
	Date        string
}

// Notifier delivers notices.
type Notifier interface {
	NotifyAbsence(ctx context.Context, n AbsenceNotice) error
}

// New returns a SendGrid notifier when key is set and a console notifier otherwise.
func New(key, appName, fromEmail string, log *zap.Logger) Notifier {
	if key == "" {
		return NewConsole(log)
	}
	return NewSendGrid(key, appName, fromEmail)
}

// Message is a rendered notice.
type Message struct {
	To      string
	Name    string
	Subject string
	Text    string
	HTML    string
}

const absenceSubject = "Absence notice: {{.StudentName}} on {{.Date}}"

const absenceText = `Dear {{.ParentName}},

{{.StudentName}} was marked absent from {{.SubjectName}} ({{.ClassName}}) on {{.Date}}.
Please contact the school if this is unexpected.
`

const absenceHTML = `<p>Dear {{.ParentName}},</p>
<p><strong>{{.StudentName}}</strong> was marked absent from {{.SubjectName}} ({{.ClassName}}) on {{.Date}}.</p>
<p>Please contact the school if this is unexpected.</p>
`

var (
	subjectTmpl = texttmpl.Must(texttmpl.New("subject").Parse(absenceSubject))
	textTmpl    = texttmpl.Must(texttmpl.New("text").Parse(absenceText))
	htmlTmpl    = htmltmpl.Must(htmltmpl.New("html").Parse(absenceHTML))
)

// Render builds the message of a notice; HTML content is escaped.
func Render(n AbsenceNotice) (Message, error) {
	var subj, text, html bytes.Buffer
	if err := subjectTmpl.Execute(&subj, n); err != nil {
		return Message{}, err
	}
	if err := textTmpl.Execute(&text, n); err != nil {
		return Message{}, err
	}
	if err := htmlTmpl.Execute(&html, n); err != nil {
		return Message{}, err
	}
	return Message{To: n.To, Name: n.ParentName, Subject: subj.String(), Text: text.String(), HTML: html.String()}, nil
}
