package notification

import (
	"bytes"
	"context"
	"log/slog"
	"text/template"
	"time"

	"github.com/georiviere/georiviere-api/internal/i18n"
)

// ContributionEvent describes an accepted contribution.
type ContributionEvent struct {
	ID              uint
	Lang            string
	PortalName      string
	Category        string
	Type            string
	Description     string
	AuthorEmail     string
	AuthorName      string
	DateObservation time.Time
	Locality        string
}

// Notifier mails managers and contributors about new contributions.
type Notifier struct {
	Mailer       Mailer
	Managers     []string
	NotifyAuthor bool
	Log          *slog.Logger
}

var managerBody = template.Must(template.New("managers").Parse(
	`Portal: {{.PortalName}}
Category: {{.Category}}{{if .Type}} / {{.Type}}{{end}}
Observed: {{.DateObservation.Format "2006-01-02"}}{{if .Locality}}
Locality: {{.Locality}}{{end}}
Author: {{.AuthorName}} <{{.AuthorEmail}}>

{{.Description}}
`))

var authorBody = template.Must(template.New("author").Parse(
	`{{if .AuthorName}}{{.AuthorName}},

{{end}}{{.Category}}{{if .Type}} / {{.Type}}{{end}} ({{.DateObservation.Format "2006-01-02"}})

{{.Description}}
`))

// ContributionCreated sends one message to the managers, when configured,
// and one to the author, when enabled. It returns the number of messages
// handed to the mailer. Failures are logged and never returned.
func (n *Notifier) ContributionCreated(ctx context.Context, ev ContributionEvent) int {
	if n == nil || n.Mailer == nil {
		return 0
	}
	p := i18n.Printer(ev.Lang)
	sent := 0

	if len(n.Managers) > 0 {
		if n.send(ctx, n.Managers, p.Sprintf(i18n.MailSubjectManagers, ev.ID, ev.Category), managerBody, ev) {
			sent++
		}
	}
	if n.NotifyAuthor && ev.AuthorEmail != "" {
		if n.send(ctx, []string{ev.AuthorEmail}, p.Sprintf(i18n.MailSubjectAuthor, ev.ID), authorBody, ev) {
			sent++
		}
	}
	return sent
}

func (n *Notifier) send(ctx context.Context, to []string, subject string, tmpl *template.Template, ev ContributionEvent) bool {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, ev); err != nil {
		n.logger().Error("render mail", "template", tmpl.Name(), "contribution_id", ev.ID, "error", err)
		return false
	}
	if err := n.Mailer.Send(ctx, to, subject, body.String()); err != nil {
		n.logger().Warn("mail not sent", "template", tmpl.Name(), "contribution_id", ev.ID, "error", err)
		return false
	}
	return true
}

func (n *Notifier) logger() *slog.Logger {
	if n.Log != nil {
		return n.Log
	}
	return slog.Default()
}
