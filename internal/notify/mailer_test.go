package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Tanishk31/visiting-management/internal/lifecycle"
	"github.com/Tanishk31/visiting-management/internal/model"
)

func TestComposeTemplates(t *testing.T) {
	start := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	pending := model.Visit{
		VisitorName: "Wanda Walkin", HostName: "Alice Martin",
		Company: "Acme", Purpose: "interview", Status: model.VisitPending,
	}
	pre := model.Visit{
		VisitorName: "Paula Planned", HostName: "Alice Martin",
		Status: model.VisitPreApproved, StartTime: &start, EndTime: &end,
	}

	subject, body := compose(lifecycle.Event{Visit: pending, Type: lifecycle.EventVisitCreated})
	if !strings.Contains(subject, "Wanda Walkin") || !strings.Contains(body, "interview") {
		t.Fatalf("host request template: %q / %q", subject, body)
	}

	subject, body = compose(lifecycle.Event{Visit: pre, Type: lifecycle.EventVisitCreated})
	if !strings.Contains(subject, "pre-approved") || !strings.Contains(body, "QR pass") {
		t.Fatalf("pre-approval template: %q / %q", subject, body)
	}
	if !strings.Contains(body, "10 Mar 2024") {
		t.Fatalf("pre-approval body missing window: %q", body)
	}

	approved := pending
	approved.Status = model.VisitApproved
	subject, _ = compose(lifecycle.Event{Visit: approved, Type: lifecycle.EventVisitDecided})
	if !strings.Contains(subject, "approved") {
		t.Fatalf("approval subject: %q", subject)
	}

	denied := pending
	denied.Status = model.VisitDenied
	subject, _ = compose(lifecycle.Event{Visit: denied, Type: lifecycle.EventVisitDecided})
	if !strings.Contains(subject, "denied") {
		t.Fatalf("denial subject: %q", subject)
	}

	if subject, _ := compose(lifecycle.Event{Type: "visit.unknown"}); subject != "" {
		t.Fatalf("unknown event composed %q", subject)
	}
}

func TestDispatchDevModeDoesNotError(t *testing.T) {
	m := NewMailer(Config{})
	err := m.Dispatch(context.Background(), lifecycle.Event{
		Visit:     model.Visit{VisitorName: "Wanda Walkin", HostName: "Alice Martin", Status: model.VisitPending},
		Type:      lifecycle.EventVisitCreated,
		Recipient: "alice@corp.test",
	})
	if err != nil {
		t.Fatalf("dev-mode dispatch: %v", err)
	}
}

func TestDispatchUnknownEvent(t *testing.T) {
	m := NewMailer(Config{})
	if err := m.Dispatch(context.Background(), lifecycle.Event{Type: "visit.unknown"}); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestBuildEmailHeaders(t *testing.T) {
	msg := string(buildEmail("noreply@corp.test", "alice@corp.test", "Subject line", "Body text"))
	for _, want := range []string{
		"From: noreply@corp.test\r\n",
		"To: alice@corp.test\r\n",
		"Subject: Subject line\r\n",
		"\r\n\r\nBody text",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}
