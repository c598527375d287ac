package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/poiesic/ragbook/core"
)

type bookingRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Email     string         `db:"email"`
	Date      string         `db:"interview_date"`
	Time      string         `db:"interview_time"`
	Notes     string         `db:"notes"`
	SessionID sql.NullString `db:"session_id"`
	Status    string         `db:"status"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r *bookingRow) toBooking() *core.Booking {
	return &core.Booking{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Date:      r.Date,
		Time:      r.Time,
		Notes:     r.Notes,
		SessionID: r.SessionID.String,
		Status:    core.BookingStatus(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

const bookingColumns = `id, name, email, interview_date, interview_time, notes, session_id, status,
	created_at, updated_at`

// CreateBooking inserts a booking. The referenced session row is created if
// it does not exist yet.
func (s *Store) CreateBooking(ctx context.Context, booking *core.Booking) error {
	if booking != nil && booking.Status == "" {
		booking.Status = core.BookingPending
	}
	if err := core.ValidateBooking(booking); err != nil {
		return err
	}
	if booking.ID == "" {
		booking.ID = core.NewID()
	}
	now := s.timestamp()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	if booking.UpdatedAt.IsZero() {
		booking.UpdatedAt = booking.CreatedAt
	}

	return s.WithTransaction(ctx, func(ctx context.Context) error {
		session := sql.NullString{}
		if booking.SessionID != "" {
			if err := s.ensureSession(ctx, booking.SessionID); err != nil {
				return err
			}
			session = sql.NullString{String: booking.SessionID, Valid: true}
		}
		_, err := s.exec(ctx, `INSERT INTO interview_bookings (`+bookingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			booking.ID, booking.Name, booking.Email, booking.Date, booking.Time, booking.Notes,
			session, string(booking.Status), booking.CreatedAt.UTC(), booking.UpdatedAt.UTC())
		return translate("create booking", err)
	})
}

// GetBooking retrieves a booking by ID.
func (s *Store) GetBooking(ctx context.Context, id string) (*core.Booking, error) {
	var row bookingRow
	if err := s.get(ctx, &row, `SELECT `+bookingColumns+` FROM interview_bookings WHERE id = ?`, id); err != nil {
		return nil, translate("get booking", err)
	}
	return row.toBooking(), nil
}

// ListBookings returns every booking, newest first.
func (s *Store) ListBookings(ctx context.Context) ([]*core.Booking, error) {
	var rows []bookingRow
	if err := s.selectAll(ctx, &rows, `SELECT `+bookingColumns+` FROM interview_bookings ORDER BY created_at DESC, id`); err != nil {
		return nil, translate("list bookings", err)
	}
	bookings := make([]*core.Booking, 0, len(rows))
	for i := range rows {
		bookings = append(bookings, rows[i].toBooking())
	}
	return bookings, nil
}

// UpdateBookingStatus moves a booking through its lifecycle.
func (s *Store) UpdateBookingStatus(ctx context.Context, id string, status core.BookingStatus) (*core.Booking, error) {
	status, err := core.ParseBookingStatus(string(status))
	if err != nil {
		return nil, err
	}
	var booking *core.Booking
	err = s.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if err := core.ValidateStatusTransition(current.Status, status); err != nil {
			return err
		}
		current.Status = status
		current.UpdatedAt = s.timestamp()
		err = s.execOne(ctx, `UPDATE interview_bookings SET status = ?, updated_at = ? WHERE id = ?`,
			string(current.Status), current.UpdatedAt, id)
		if err != nil {
			return translate("update booking", err)
		}
		booking = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}
