package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/learncircle/backend/internal/config"
	"github.com/wneessen/go-mail"
)

type stubTransport struct {
	dialErr error
	sendErr error
	sent    int
}

func (s *stubTransport) DialWithContext(ctx context.Context) error { return s.dialErr }

func (s *stubTransport) Send(msgs ...*mail.Msg) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent += len(msgs)
	return nil
}

func (s *stubTransport) Close() error { return nil }

func testMailer(transport *stubTransport) *Mailer {
	return NewMailerWithTransport(config.SMTPConfig{
		From:     "noreply@test.local",
		FromName: "Test Sender",
	}, func() (MailTransport, error) {
		return transport, nil
	})
}

func TestSendToRecipientsNoRecipients(t *testing.T) {
	m := testMailer(&stubTransport{})
	result := m.SendToRecipients(context.Background(), KindMinutes, NotificationData{}, nil)
	if result.Success {
		t.Fatalf("expected no success with zero recipients")
	}
	if result.Message != "no recipients to notify" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestSendToRecipientsDialFailureFailsAll(t *testing.T) {
	transport := &stubTransport{dialErr: errors.New("connection refused")}
	m := testMailer(transport)

	recipients := []Recipient{
		{Name: "A", Email: "a@test.com"},
		{Name: "B", Email: "b@test.com"},
	}
	result := m.SendToRecipients(context.Background(), KindReminder, NotificationData{MeetingTitle: "Standup"}, recipients)

	if result.Success {
		t.Fatalf("expected failure when the transport cannot dial")
	}
	if len(result.Failed) != 2 || len(result.Sent) != 0 {
		t.Fatalf("expected every recipient failed, got sent=%v failed=%v", result.Sent, result.Failed)
	}
	if !strings.HasPrefix(result.Message, "mail transport connection failed") {
		t.Fatalf("unexpected message: %q", result.Message)
	}
	if transport.sent != 0 {
		t.Fatalf("expected no delivery attempts, got %d", transport.sent)
	}
}

func TestSendToRecipientsCountsDeliveries(t *testing.T) {
	transport := &stubTransport{}
	m := testMailer(transport)

	recipients := []Recipient{
		{Name: "A", Email: "a@test.com"},
		{Name: "B", Email: "b@test.com"},
		{Name: "C", Email: "c@test.com"},
	}
	result := m.SendToRecipients(context.Background(), KindMinutes, NotificationData{
		GroupName:    "Go Circle",
		MeetingTitle: "Retro",
		HostName:     "Hana",
		Minutes:      "## Summary\nAll good.",
	}, recipients)

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Message != "sent 3 of 3 emails" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
	if transport.sent != 3 {
		t.Fatalf("expected three deliveries, got %d", transport.sent)
	}
}

func TestRenderNotificationSubjects(t *testing.T) {
	data := NotificationData{
		GroupName:    "Go Circle",
		MeetingTitle: "Retro",
		HostName:     "Hana",
		ScheduledAt:  "2026-09-01 19:00",
		Minutes:      "## Summary\nShipped it.",
	}
	recipient := Recipient{Name: "Aki", Email: "aki@test.com"}

	cases := []struct {
		kind    NotificationKind
		subject string
		plain   string
	}{
		{KindMinutes, "Minutes: Retro", "Shipped it."},
		{KindInvitation, "You're invited to join Go Circle", "invited you to join"},
		{KindReminder, "Reminder: Retro is coming up", "2026-09-01 19:00"},
	}
	for _, tc := range cases {
		subject, plain, html, err := renderNotification(tc.kind, data, recipient)
		if err != nil {
			t.Fatalf("render %s failed: %v", tc.kind, err)
		}
		if subject != tc.subject {
			t.Fatalf("kind %s: expected subject %q, got %q", tc.kind, tc.subject, subject)
		}
		if !strings.Contains(plain, tc.plain) {
			t.Fatalf("kind %s: expected plain body to contain %q, got %q", tc.kind, tc.plain, plain)
		}
		if !strings.Contains(plain, "Aki") || !strings.Contains(html, "Aki") {
			t.Fatalf("kind %s: expected recipient name in both bodies", tc.kind)
		}
	}
}

func TestRenderNotificationUnknownKind(t *testing.T) {
	if _, _, _, err := renderNotification(NotificationKind("bogus"), NotificationData{}, Recipient{}); err == nil {
		t.Fatalf("expected an error for an unknown kind")
	}
}
