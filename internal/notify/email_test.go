package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"study-planner/internal/model"
)

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func TestEmailNotifier(t *testing.T) {
	t.Run("sends plain text mail", func(t *testing.T) {
		sender := &fakeSender{}
		n := &EmailNotifier{sender: sender, from: "planner@example.com"}

		err := n.Notify(context.Background(), model.User{ID: 1, Email: "anna@example.com"}, Message{Subject: "Reminder", Body: "Essay due"})
		require.NoError(t, err)
		require.Len(t, sender.sent, 1)
		assert.Equal(t, []string{"anna@example.com"}, sender.sent[0].GetHeader("To"))
		assert.Equal(t, []string{"Reminder"}, sender.sent[0].GetHeader("Subject"))
		assert.Equal(t, []string{"planner@example.com"}, sender.sent[0].GetHeader("From"))
	})

	t.Run("user without address", func(t *testing.T) {
		sender := &fakeSender{}
		n := &EmailNotifier{sender: sender, from: "planner@example.com"}

		err := n.Notify(context.Background(), model.User{ID: 1}, Message{Subject: "Reminder"})
		assert.ErrorIs(t, err, ErrNoChannel)
		assert.Empty(t, sender.sent)
	})

	t.Run("smtp failure is wrapped", func(t *testing.T) {
		boom := errors.New("connection refused")
		n := &EmailNotifier{sender: &fakeSender{err: boom}, from: "planner@example.com"}

		err := n.Notify(context.Background(), model.User{ID: 3, Email: "x@example.com"}, Message{})
		assert.ErrorIs(t, err, boom)
	})
}
