package notify

import (
	"context"
	"fmt"

	"github.com/ixoralabs/booking-assistant/pkg/logging"
)

// ConfirmationService emails attendees after a booking succeeds.
type ConfirmationService struct {
	email       EmailSender
	companyName string
	logger      *logging.Logger
}

// NewConfirmationService creates a confirmation sender. companyName appears
// in the subject and signature.
func NewConfirmationService(email EmailSender, companyName string, logger *logging.Logger) *ConfirmationService {
	if logger == nil {
		logger = logging.Default()
	}
	if companyName == "" {
		companyName = "our team"
	}
	return &ConfirmationService{
		email:       email,
		companyName: companyName,
		logger:      logger,
	}
}

// SendBookingConfirmation sends the meeting confirmation email.
func (s *ConfirmationService) SendBookingConfirmation(ctx context.Context, email, name, dateDisplay, timeDisplay, bookingID string) error {
	if s == nil || s.email == nil {
		return nil
	}
	if email == "" {
		return fmt.Errorf("notify: recipient email is required")
	}

	subject := fmt.Sprintf("Meeting confirmed - %s at %s", dateDisplay, timeDisplay)
	body := fmt.Sprintf(`Hi %s,

Your meeting with %s is confirmed.

Date: %s
Time: %s
Reference: %s

We look forward to speaking with you. If you need to reschedule, just reply to this email.

— %s`, name, s.companyName, dateDisplay, timeDisplay, bookingID, s.companyName)

	html := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #2563eb;">Your meeting is confirmed</h2>
<p>Hi <strong>%s</strong>, your meeting with %s is booked.</p>
<table style="border-collapse: collapse; margin: 20px 0;">
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Date:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Time:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Reference:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
</table>
<p style="color: #6b7280; font-size: 12px; margin-top: 20px;">— %s</p>
</div>`, name, s.companyName, dateDisplay, timeDisplay, bookingID, s.companyName)

	msg := EmailMessage{
		To:      email,
		ToName:  name,
		Subject: subject,
		Body:    body,
		HTML:    html,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("confirmation email failed", "error", err, "to", email, "booking_id", bookingID)
		return err
	}
	s.logger.Info("confirmation email sent", "to", email, "booking_id", bookingID)
	return nil
}
