package notify

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"study-planner/internal/model"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier sends reminders over SMTP.
type EmailNotifier struct {
	sender mailSender
	from   string
}

func NewEmailNotifier(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) *EmailNotifier {
	return &EmailNotifier{
		sender: gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword),
		from:   fromEmail,
	}
}

func (n *EmailNotifier) Notify(ctx context.Context, user model.User, msg Message) error {
	to := strings.TrimSpace(user.Email)
	if to == "" {
		return ErrNoChannel
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send email to user %d: %w", user.ID, err)
	}
	return nil
}
