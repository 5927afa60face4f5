package bookings

import (
	"context"

	"github.com/ixoralabs/booking-assistant/internal/conversation"
)

// Recorder adapts the repository to the conversation engine's
// BookingRecorder dependency.
type Recorder struct {
	repo *PostgresRepository
}

func NewRecorder(repo *PostgresRepository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) RecordBooking(ctx context.Context, rec conversation.BookingRecord) error {
	if r == nil || r.repo == nil {
		return nil
	}
	_, err := r.repo.Create(ctx, &Booking{
		BookingID:      rec.BookingID,
		ConversationID: rec.ConversationID,
		MeetingDate:    rec.Date,
		MeetingTime:    rec.Time,
		Name:           rec.Name,
		Email:          rec.Email,
		Phone:          rec.Phone,
	})
	return err
}
