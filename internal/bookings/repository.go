// Package bookings stores confirmed meeting bookings in PostgreSQL.
package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrBookingNotFound is returned when no row matches the lookup.
var ErrBookingNotFound = errors.New("bookings: booking not found")

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Booking is a confirmed meeting booking row.
type Booking struct {
	ID             string    `json:"id"`
	BookingID      string    `json:"booking_id"`
	ConversationID string    `json:"conversation_id"`
	MeetingDate    string    `json:"meeting_date"` // YYYY-MM-DD
	MeetingTime    string    `json:"meeting_time"` // e.g. "10:00 AM"
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	CreatedAt      time.Time `json:"created_at"`
}

// PostgresRepository stores bookings in the relational database.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, b *Booking) (*Booking, error) {
	if b.BookingID == "" {
		return nil, errors.New("bookings: booking id is required")
	}
	if b.Email == "" {
		return nil, errors.New("bookings: email is required")
	}

	id := uuid.New()
	query := `
		INSERT INTO bookings (id, booking_id, conversation_id, meeting_date, meeting_time, name, email, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.db.QueryRow(ctx, query,
		id,
		b.BookingID,
		b.ConversationID,
		b.MeetingDate,
		b.MeetingTime,
		b.Name,
		b.Email,
		b.Phone,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("bookings: insert failed: %w", err)
	}

	created := *b
	created.ID = id.String()
	created.CreatedAt = createdAt
	return &created, nil
}

// GetByBookingID fetches a booking by its scheduling provider ID.
func (r *PostgresRepository) GetByBookingID(ctx context.Context, bookingID string) (*Booking, error) {
	query := `
		SELECT id, booking_id, conversation_id, meeting_date, meeting_time, name, email, phone, created_at
		FROM bookings
		WHERE booking_id = $1
	`
	row := r.db.QueryRow(ctx, query, bookingID)
	var b Booking
	if err := row.Scan(
		&b.ID,
		&b.BookingID,
		&b.ConversationID,
		&b.MeetingDate,
		&b.MeetingTime,
		&b.Name,
		&b.Email,
		&b.Phone,
		&b.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: select failed: %w", err)
	}
	return &b, nil
}

// ListByEmail returns bookings for one attendee, newest first.
func (r *PostgresRepository) ListByEmail(ctx context.Context, email string) ([]Booking, error) {
	query := `
		SELECT id, booking_id, conversation_id, meeting_date, meeting_time, name, email, phone, created_at
		FROM bookings
		WHERE email = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("bookings: select failed: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(
			&b.ID,
			&b.BookingID,
			&b.ConversationID,
			&b.MeetingDate,
			&b.MeetingTime,
			&b.Name,
			&b.Email,
			&b.Phone,
			&b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("bookings: scan failed: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
