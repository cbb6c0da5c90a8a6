package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

var (
	resetTemplate = template.Must(template.New("reset").Parse(`<p>Hello {{.Name}},</p>
<p>You requested a password reset{{if .Admin}} (Admin){{end}}. Click the link below (valid {{.ValidFor}}):</p>
<p><a href="{{.URL}}">{{.URL}}</a></p>
<p>If you did not request this, ignore this email.</p>
`))

	ticketTemplate = template.Must(template.New("ticket").Parse(`<p>Hi {{.Name}},</p>
<p>Thanks for registering for <strong>{{.EventTitle}}</strong>.</p>
{{- if .TeamName}}
<p>Team: <strong>{{.TeamName}}</strong></p>
{{- end}}
<p>Your Ticket ID: <strong>{{.TicketID}}</strong></p>
<p>Please bring this ticket with you to the event.</p>
<p>Thanks,<br/>Event Team</p>
`))
)

type ResetEmail struct {
	To       string
	Name     string
	URL      string
	ValidFor string
	Admin    bool
}

func (e ResetEmail) Message() (Message, error) {
	var body bytes.Buffer
	if err := resetTemplate.Execute(&body, e); err != nil {
		return Message{}, fmt.Errorf("render reset email: %w", err)
	}

	subject := "Password Reset - User"
	if e.Admin {
		subject = "Password Reset - Admin"
	}
	return Message{To: e.To, Subject: subject, HTML: body.String()}, nil
}

type TicketEmail struct {
	To         string
	Name       string
	EventTitle string
	TeamName   string
	TicketID   string
	PDF        []byte
}

func (e TicketEmail) Message() (Message, error) {
	var body bytes.Buffer
	if err := ticketTemplate.Execute(&body, e); err != nil {
		return Message{}, fmt.Errorf("render ticket email: %w", err)
	}

	return Message{
		To:      e.To,
		Subject: "Registration Confirmation - " + e.EventTitle,
		HTML:    body.String(),
		Attachments: []Attachment{{
			Filename:    fmt.Sprintf("Ticket-%s.pdf", e.TicketID),
			ContentType: "application/pdf",
			Data:        e.PDF,
		}},
	}, nil
}
