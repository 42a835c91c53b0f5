// Package notify delivers visit emails. Delivery is best effort: a failed
// send is reported to the caller but never blocks or reverses a transition.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"github.com/Tanishk31/visiting-management/internal/lifecycle"
	"github.com/Tanishk31/visiting-management/internal/model"
)

type Config struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// Mailer sends visit notifications over SMTP. With no host configured it
// logs the message instead, which is how local development runs.
type Mailer struct {
	config Config
}

func NewMailer(config Config) *Mailer {
	return &Mailer{config: config}
}

func (m *Mailer) Dispatch(_ context.Context, event lifecycle.Event) error {
	subject, body := compose(event)
	if subject == "" {
		return fmt.Errorf("no template for event %q", event.Type)
	}

	if m.config.Host == "" {
		log.Printf("[DEV] email to %s: %s", event.Recipient, subject)
		return nil
	}

	msg := buildEmail(m.config.From, event.Recipient, subject, body)
	addr := fmt.Sprintf("%s:%s", m.config.Host, m.config.Port)
	auth := smtp.PlainAuth("", m.config.User, m.config.Pass, m.config.Host)

	if err := smtp.SendMail(addr, auth, m.config.From, []string{event.Recipient}, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func compose(event lifecycle.Event) (subject, body string) {
	v := event.Visit
	switch event.Type {
	case lifecycle.EventVisitCreated:
		if v.Status == model.VisitPreApproved {
			subject = "Your visit is pre-approved"
			body = fmt.Sprintf(
				"Hello %s,\n\nYour visit to see %s has been pre-approved.\nValid from %s to %s.\n\nPresent the attached QR pass at the gate.",
				v.VisitorName, v.HostName, formatTime(v.StartTime), formatTime(v.EndTime),
			)
			return subject, body
		}
		subject = fmt.Sprintf("New visit request from %s", v.VisitorName)
		body = fmt.Sprintf(
			"Hello %s,\n\n%s from %s has requested a visit.\nPurpose: %s\n\nPlease approve or deny the request.",
			v.HostName, v.VisitorName, v.Company, v.Purpose,
		)
		return subject, body
	case lifecycle.EventVisitDecided:
		if v.Status == model.VisitApproved {
			subject = "Your visit request was approved"
			body = fmt.Sprintf("Hello %s,\n\n%s has approved your visit request.", v.VisitorName, v.HostName)
			return subject, body
		}
		subject = "Your visit request was denied"
		body = fmt.Sprintf("Hello %s,\n\n%s has denied your visit request.", v.VisitorName, v.HostName)
		return subject, body
	}
	return "", ""
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "unspecified"
	}
	return t.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
}

func buildEmail(from, to, subject, body string) []byte {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("From: %s\r\n", from))
	sb.WriteString(fmt.Sprintf("To: %s\r\n", to))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return []byte(sb.String())
}
