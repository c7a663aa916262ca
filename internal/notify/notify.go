// Package notify sends run completion e-mail over plain SMTP.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer delivers plain-text mail to a fixed recipient list. A Mailer with
// an empty Host is disabled and sends nothing.
type Mailer struct {
	Host       string
	Port       int
	From       string
	Recipients []string

	// send is swapped out by tests.
	send func(addr, from string, to []string, msg []byte) error
}

// NewMailer builds a mailer. Pass an empty host to disable delivery.
func NewMailer(host string, port int, from string, recipients []string) *Mailer {
	return &Mailer{
		Host:       host,
		Port:       port,
		From:       from,
		Recipients: recipients,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// Enabled reports whether the mailer is configured to deliver anything.
func (m *Mailer) Enabled() bool {
	return m != nil && m.Host != "" && len(m.Recipients) > 0
}

// Send delivers one plain-text message to all recipients.
func (m *Mailer) Send(subject, body string) error {
	if !m.Enabled() {
		return nil
	}
	msg := Compose(m.From, m.Recipients, subject, body)
	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	if err := m.send(addr, m.From, m.Recipients, msg); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", addr, err)
	}
	return nil
}

// Compose renders an RFC 5322 plain-text message.
func Compose(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
