package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock), mock
}

func TestCreateBooking(t *testing.T) {
	repo, mock := newRepoMock(t)
	createdAt := time.Date(2025, 10, 8, 15, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs(pgxmock.AnyArg(), "bk-123", "conv-1", "2025-10-14", "10:00 AM",
			"Jane Doe", "jane@example.com", "+15551234567").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	created, err := repo.Create(context.Background(), &Booking{
		BookingID:      "bk-123",
		ConversationID: "conv-1",
		MeetingDate:    "2025-10-14",
		MeetingTime:    "10:00 AM",
		Name:           "Jane Doe",
		Email:          "jane@example.com",
		Phone:          "+15551234567",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, createdAt, created.CreatedAt)
	assert.Equal(t, "bk-123", created.BookingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingValidation(t *testing.T) {
	repo, _ := newRepoMock(t)

	_, err := repo.Create(context.Background(), &Booking{Email: "jane@example.com"})
	assert.Error(t, err)

	_, err = repo.Create(context.Background(), &Booking{BookingID: "bk-123"})
	assert.Error(t, err)
}

func TestGetByBookingID(t *testing.T) {
	repo, mock := newRepoMock(t)
	createdAt := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, booking_id`).
		WithArgs("bk-123").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "booking_id", "conversation_id", "meeting_date", "meeting_time",
			"name", "email", "phone", "created_at",
		}).AddRow(
			"11111111-2222-3333-4444-555555555555", "bk-123", "conv-1",
			"2025-10-14", "10:00 AM", "Jane Doe", "jane@example.com",
			"+15551234567", createdAt,
		))

	b, err := repo.GetByBookingID(context.Background(), "bk-123")
	require.NoError(t, err)
	assert.Equal(t, "bk-123", b.BookingID)
	assert.Equal(t, "Jane Doe", b.Name)
	assert.Equal(t, createdAt, b.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByBookingIDNotFound(t *testing.T) {
	repo, mock := newRepoMock(t)

	mock.ExpectQuery(`SELECT id, booking_id`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "booking_id", "conversation_id", "meeting_date", "meeting_time",
			"name", "email", "phone", "created_at",
		}))

	_, err := repo.GetByBookingID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestListByEmail(t *testing.T) {
	repo, mock := newRepoMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`ORDER BY created_at DESC`).
		WithArgs("jane@example.com").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "booking_id", "conversation_id", "meeting_date", "meeting_time",
			"name", "email", "phone", "created_at",
		}).AddRow(
			"11111111-2222-3333-4444-555555555555", "bk-2", "conv-2",
			"2025-11-01", "2:00 PM", "Jane Doe", "jane@example.com", "+15551234567", now,
		).AddRow(
			"66666666-7777-8888-9999-000000000000", "bk-1", "conv-1",
			"2025-10-14", "10:00 AM", "Jane Doe", "jane@example.com", "+15551234567", now.Add(-time.Hour),
		))

	bookings, err := repo.ListByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, "bk-2", bookings[0].BookingID)
	assert.Equal(t, "bk-1", bookings[1].BookingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByEmailQueryError(t *testing.T) {
	repo, mock := newRepoMock(t)

	mock.ExpectQuery(`ORDER BY created_at DESC`).
		WithArgs("jane@example.com").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.ListByEmail(context.Background(), "jane@example.com")
	assert.Error(t, err)
}
