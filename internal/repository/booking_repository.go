package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
)

// BookingRepo stores bookings together with the ticket snapshot taken at
// creation.  Bookings are append-only: status changes are conditional
// updates and rows are never deleted.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingSelect = `SELECT b.id, b.user_id, u.name, u.email, b.ticket_id, b.vendor_id,
       b.title, b.from_location, b.to_location, b.transport_type, b.unit_price,
       b.departure_date, b.departure_time, b.booking_quantity, b.total_price,
       b.status, b.payment_status, b.payment_intent_id, b.created_at, b.updated_at
  FROM bookings b
  JOIN users u ON u.id = b.user_id`

// CreateBooking inserts b in pending/unpaid state.
func (r *BookingRepo) CreateBooking(ctx context.Context, b *model.Booking) error {
	s := b.Snapshot
	res, err := r.db.ExecContext(ctx, `INSERT INTO bookings
        (user_id, ticket_id, vendor_id, title, from_location, to_location, transport_type,
         unit_price, departure_date, departure_time, booking_quantity, total_price, status, payment_status)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.UserID, b.TicketID, b.VendorID, s.Title, s.From, s.To, string(s.Transport),
		s.UnitPrice, s.DepartureDate, s.DepartureTime, b.Quantity, b.TotalPrice,
		string(b.Status), string(b.PaymentStatus))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetBooking(ctx, uint64(id))
	if err != nil {
		return err
	}
	*b = *created
	return nil
}

// GetBooking loads a booking by id.
func (r *BookingRepo) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, bookingSelect+" WHERE b.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// TransitionBooking moves a booking between statuses with a
// compare-and-swap on the current status.
func (r *BookingRepo) TransitionBooking(ctx context.Context, id uint64, from, to model.BookingStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE bookings SET status=? WHERE id=? AND status=?", string(to), id, string(from))
	if err != nil {
		return err
	}
	return r.casResult(ctx, res, id)
}

// SetPaymentIntent records the latest intent of an accepted, unpaid booking.
func (r *BookingRepo) SetPaymentIntent(ctx context.Context, id uint64, intentID string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE bookings SET payment_intent_id=? WHERE id=? AND status='accepted' AND payment_status='unpaid'",
		intentID, id)
	if err != nil {
		return err
	}
	return r.casResult(ctx, res, id)
}

func (r *BookingRepo) casResult(ctx context.Context, res sql.Result, id uint64) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	var one int
	err = r.db.QueryRowContext(ctx, "SELECT 1 FROM bookings WHERE id=?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrStateChanged
}

// ListBookingsByUser returns a user's bookings, newest first.
func (r *BookingRepo) ListBookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return r.query(ctx, bookingSelect+" WHERE b.user_id = ? ORDER BY b.created_at DESC, b.id DESC", userID)
}

// ListBookingsByVendor returns the booking requests made against a
// vendor's tickets.
func (r *BookingRepo) ListBookingsByVendor(ctx context.Context, vendorID uint64) ([]model.Booking, error) {
	return r.query(ctx, bookingSelect+" WHERE b.vendor_id = ? ORDER BY b.created_at DESC, b.id DESC", vendorID)
}

// ListAllBookings returns every booking for the admin console.
func (r *BookingRepo) ListAllBookings(ctx context.Context) ([]model.Booking, error) {
	return r.query(ctx, bookingSelect+" ORDER BY b.created_at DESC, b.id DESC")
}

// VendorRevenue aggregates paid bookings and listed tickets of a vendor.
func (r *BookingRepo) VendorRevenue(ctx context.Context, vendorID uint64) (model.VendorRevenue, error) {
	var (
		out     model.VendorRevenue
		revenue decimal.NullDecimal
	)
	err := r.db.QueryRowContext(ctx, `SELECT
            COALESCE(SUM(total_price), 0), COALESCE(SUM(booking_quantity), 0)
        FROM bookings WHERE vendor_id = ? AND status = 'paid'`, vendorID).
		Scan(&revenue, &out.TotalTicketsSold)
	if err != nil {
		return out, err
	}
	out.TotalRevenue = decimal.Zero
	if revenue.Valid {
		out.TotalRevenue = revenue.Decimal
	}
	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tickets WHERE vendor_id = ? AND deleted_at IS NULL", vendorID).
		Scan(&out.TotalTicketsAdded)
	return out, err
}

func (r *BookingRepo) query(ctx context.Context, q string, args ...interface{}) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b         model.Booking
		transport string
		status    string
		payStatus string
		depDate   time.Time
		depTime   string
		intentID  sql.NullString
	)
	err := row.Scan(&b.ID, &b.UserID, &b.UserName, &b.UserEmail, &b.TicketID, &b.VendorID,
		&b.Snapshot.Title, &b.Snapshot.From, &b.Snapshot.To, &transport, &b.Snapshot.UnitPrice,
		&depDate, &depTime, &b.Quantity, &b.TotalPrice,
		&status, &payStatus, &intentID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Snapshot.Transport = model.TransportMode(transport)
	b.Snapshot.DepartureDate = depDate.Format(model.DateLayout)
	b.Snapshot.DepartureTime = clockHHMM(depTime)
	b.Status = model.BookingStatus(status)
	b.PaymentStatus = model.PaymentStatus(payStatus)
	b.PaymentIntentID = intentID.String
	return &b, nil
}
