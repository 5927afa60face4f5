package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixoralabs/booking-assistant/pkg/logging"
)

type captureSender struct {
	sent []EmailMessage
	err  error
}

func (c *captureSender) Send(_ context.Context, msg EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func TestSendBookingConfirmation(t *testing.T) {
	sender := &captureSender{}
	svc := NewConfirmationService(sender, "Acme Corp", logging.New("error"))

	err := svc.SendBookingConfirmation(context.Background(),
		"jane@example.com", "Jane Doe", "October 14, 2025", "10:00 AM", "bk-123")
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "Jane Doe", msg.ToName)
	assert.Equal(t, "Meeting confirmed - October 14, 2025 at 10:00 AM", msg.Subject)
	assert.Contains(t, msg.Body, "Your meeting with Acme Corp is confirmed.")
	assert.Contains(t, msg.Body, "Reference: bk-123")
	assert.Contains(t, msg.HTML, "Jane Doe")
	assert.Contains(t, msg.HTML, "bk-123")
}

func TestSendBookingConfirmationRequiresEmail(t *testing.T) {
	svc := NewConfirmationService(&captureSender{}, "Acme Corp", logging.New("error"))
	err := svc.SendBookingConfirmation(context.Background(), "", "Jane", "October 14, 2025", "10:00 AM", "bk-123")
	assert.Error(t, err)
}

func TestSendBookingConfirmationPropagatesSendError(t *testing.T) {
	sender := &captureSender{err: errors.New("smtp down")}
	svc := NewConfirmationService(sender, "Acme Corp", logging.New("error"))

	err := svc.SendBookingConfirmation(context.Background(),
		"jane@example.com", "Jane", "October 14, 2025", "10:00 AM", "bk-123")
	assert.ErrorContains(t, err, "smtp down")
}

func TestSendBookingConfirmationNilSafe(t *testing.T) {
	var svc *ConfirmationService
	assert.NoError(t, svc.SendBookingConfirmation(context.Background(),
		"jane@example.com", "Jane", "October 14, 2025", "10:00 AM", "bk-123"))

	disabled := NewConfirmationService(nil, "", nil)
	assert.NoError(t, disabled.SendBookingConfirmation(context.Background(),
		"jane@example.com", "Jane", "October 14, 2025", "10:00 AM", "bk-123"))
}

func TestConfirmationDefaultsCompanyName(t *testing.T) {
	sender := &captureSender{}
	svc := NewConfirmationService(sender, "", logging.New("error"))

	require.NoError(t, svc.SendBookingConfirmation(context.Background(),
		"jane@example.com", "Jane", "October 14, 2025", "10:00 AM", "bk-123"))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "Your meeting with our team is confirmed.")
}
