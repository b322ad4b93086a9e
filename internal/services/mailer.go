package services

import (
	"context"
	"fmt"

	"github.com/learncircle/backend/internal/config"
	"github.com/learncircle/backend/pkg/logger"
	"github.com/wneessen/go-mail"
)

type NotificationKind string

const (
	KindMinutes    NotificationKind = "minutes"
	KindInvitation NotificationKind = "invitation"
	KindReminder   NotificationKind = "reminder"
)

type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NotificationData feeds the per-kind templates. Unused fields are ignored by
// kinds that do not reference them.
type NotificationData struct {
	GroupName    string
	MeetingTitle string
	HostName     string
	ScheduledAt  string
	Minutes      string
}

// DispatchResult itemizes per-recipient outcomes so partial success stays
// visible instead of collapsing into one boolean.
type DispatchResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Sent    []string `json:"sent"`
	Failed  []string `json:"failed"`
}

// MailTransport is the slice of *mail.Client the dispatcher uses; tests
// substitute a fake.
type MailTransport interface {
	DialWithContext(ctx context.Context) error
	Send(msgs ...*mail.Msg) error
	Close() error
}

// Mailer renders and sends notification emails over one SMTP session per
// batch.
type Mailer struct {
	cfg          config.SMTPConfig
	newTransport func() (MailTransport, error)
}

func NewMailer(cfg config.SMTPConfig) *Mailer {
	m := &Mailer{cfg: cfg}
	m.newTransport = m.smtpClient
	return m
}

// NewMailerWithTransport wires a custom transport factory in place of the SMTP
// client.
func NewMailerWithTransport(cfg config.SMTPConfig, newTransport func() (MailTransport, error)) *Mailer {
	return &Mailer{cfg: cfg, newTransport: newTransport}
}

func (m *Mailer) smtpClient() (MailTransport, error) {
	return mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
	)
}

// SendToRecipients renders a plain and an HTML body per recipient and sends
// them sequentially over one dialed session. A connection or auth failure
// aborts before any recipient is attempted; an individual delivery failure is
// recorded and the batch continues.
func (m *Mailer) SendToRecipients(ctx context.Context, kind NotificationKind, data NotificationData, recipients []Recipient) *DispatchResult {
	result := &DispatchResult{Sent: []string{}, Failed: []string{}}
	if len(recipients) == 0 {
		result.Message = "no recipients to notify"
		return result
	}

	client, err := m.newTransport()
	if err != nil {
		return m.transportFailure(result, recipients, err)
	}
	if err := client.DialWithContext(ctx); err != nil {
		return m.transportFailure(result, recipients, err)
	}
	defer client.Close()

	for _, recipient := range recipients {
		msg, err := m.compose(kind, data, recipient)
		if err == nil {
			err = client.Send(msg)
		}
		if err != nil {
			logger.Warn("mail_delivery_failed", map[string]interface{}{
				"kind":      string(kind),
				"recipient": recipient.Email,
				"error":     err.Error(),
			})
			result.Failed = append(result.Failed, recipient.Email)
			continue
		}
		result.Sent = append(result.Sent, recipient.Email)
	}

	result.Success = len(result.Sent) > 0
	result.Message = fmt.Sprintf("sent %d of %d emails", len(result.Sent), len(recipients))
	logger.Info("mail_batch_done", map[string]interface{}{
		"kind":   string(kind),
		"sent":   len(result.Sent),
		"failed": len(result.Failed),
	})
	return result
}

func (m *Mailer) transportFailure(result *DispatchResult, recipients []Recipient, err error) *DispatchResult {
	logger.Error("mail_transport_failed", err, map[string]interface{}{
		"host": m.cfg.Host,
	})
	for _, recipient := range recipients {
		result.Failed = append(result.Failed, recipient.Email)
	}
	result.Message = "mail transport connection failed: " + err.Error()
	return result
}

func (m *Mailer) compose(kind NotificationKind, data NotificationData, recipient Recipient) (*mail.Msg, error) {
	subject, plain, html, err := renderNotification(kind, data, recipient)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.From); err != nil {
		return nil, err
	}
	if err := msg.To(recipient.Email); err != nil {
		return nil, err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, plain)
	msg.AddAlternativeString(mail.TypeTextHTML, html)
	return msg, nil
}
