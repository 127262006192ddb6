package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
)

var ErrNoRecipients = errors.New("no recipients")

// Mailer delivers one message to a list of recipients.
type Mailer interface {
	Send(ctx context.Context, recipients []string, subject, body string) error
}

// ShoutrrrMailer sends through a shoutrrr smtp:// URL. The recipients and
// subject of each message override the ones in the URL.
type ShoutrrrMailer struct {
	sender *router.ServiceRouter
}

func NewShoutrrrMailer(url string, timeout time.Duration) (*ShoutrrrMailer, error) {
	sender, err := shoutrrr.CreateSender(url)
	if err != nil {
		// the URL carries credentials, keep it out of the error
		return nil, errors.New("invalid SMTP_URL: " + scrub(err.Error(), url))
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &ShoutrrrMailer{sender: sender}, nil
}

func (m *ShoutrrrMailer) Send(_ context.Context, recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return ErrNoRecipients
	}
	params := types.Params{"toaddresses": strings.Join(recipients, ",")}
	params.SetTitle(subject)

	for _, err := range m.sender.Send(body, &params) {
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
	}
	return nil
}

// NopMailer drops every message. Used when SMTP_URL is empty.
type NopMailer struct{}

func (NopMailer) Send(context.Context, []string, string, string) error { return nil }

// Message is a mail recorded by MemoryMailer.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// MemoryMailer keeps messages in memory. Used by tests.
type MemoryMailer struct {
	mu   sync.Mutex
	Sent []Message
	Err  error
}

func (m *MemoryMailer) Send(_ context.Context, recipients []string, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, Message{To: append([]string(nil), recipients...), Subject: subject, Body: body})
	return nil
}

// Outbox returns a copy of the sent messages.
func (m *MemoryMailer) Outbox() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.Sent...)
}

func scrub(msg, secret string) string {
	if secret == "" {
		return msg
	}
	return strings.ReplaceAll(msg, secret, "[redacted]")
}
