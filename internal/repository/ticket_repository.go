package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
)

// TicketRepo provides CRUD operations for vendor tickets.  Deletes are
// soft: deleted_at is set and every read filters it out.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// DB exposes the handle so callers can open transactions spanning repos.
func (r *TicketRepo) DB() *sql.DB { return r.db }

const ticketSelect = `SELECT t.id, t.vendor_id, u.name, u.email, u.is_fraud,
       t.title, t.from_location, t.to_location, t.transport_type, t.price, t.quantity,
       t.departure_date, t.departure_time, t.perks, t.image_url,
       t.verification_status, t.is_advertised, t.deleted_at, t.created_at, t.updated_at
  FROM tickets t
  JOIN users u ON u.id = t.vendor_id`

// CreateTicket inserts t and fills the generated fields.
func (r *TicketRepo) CreateTicket(ctx context.Context, t *model.Ticket) error {
	perks, err := encodePerks(t.Perks)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO tickets
        (vendor_id, title, from_location, to_location, transport_type, price, quantity,
         departure_date, departure_time, perks, image_url, verification_status)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.VendorID, t.Title, t.From, t.To, string(t.Transport), t.Price, t.Quantity,
		t.DepartureDate, t.DepartureTime, perks, t.ImageURL, string(t.Verification))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetTicket(ctx, uint64(id))
	if err != nil {
		return err
	}
	*t = *created
	return nil
}

// GetTicket loads a live ticket by id.
func (r *TicketRepo) GetTicket(ctx context.Context, id uint64) (*model.Ticket, error) {
	row := r.db.QueryRowContext(ctx, ticketSelect+" WHERE t.id = ? AND t.deleted_at IS NULL", id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// UpdateTicket writes the vendor-editable fields.  Rejected tickets are
// frozen and yield ErrStateChanged.
func (r *TicketRepo) UpdateTicket(ctx context.Context, t *model.Ticket) error {
	perks, err := encodePerks(t.Perks)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE tickets SET
            title=?, from_location=?, to_location=?, transport_type=?, price=?, quantity=?,
            departure_date=?, departure_time=?, perks=?, image_url=?
        WHERE id=? AND deleted_at IS NULL AND verification_status <> 'rejected'`,
		t.Title, t.From, t.To, string(t.Transport), t.Price, t.Quantity,
		t.DepartureDate, t.DepartureTime, perks, t.ImageURL, t.ID)
	if err != nil {
		return err
	}
	if err := r.resolveMiss(ctx, res, t.ID); err != nil {
		return err
	}
	updated, err := r.GetTicket(ctx, t.ID)
	if err != nil {
		return err
	}
	*t = *updated
	return nil
}

// SoftDeleteTicket hides a non-rejected ticket.
func (r *TicketRepo) SoftDeleteTicket(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tickets SET deleted_at=UTC_TIMESTAMP(), is_advertised=0
        WHERE id=? AND deleted_at IS NULL AND verification_status <> 'rejected'`, id)
	if err != nil {
		return err
	}
	return r.resolveMiss(ctx, res, id)
}

// resolveMiss explains a zero-row ticket update: missing rows are
// ErrNotFound, rejected rows ErrStateChanged, anything else was a no-op.
func (r *TicketRepo) resolveMiss(ctx context.Context, res sql.Result, id uint64) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	var status string
	err = r.db.QueryRowContext(ctx,
		"SELECT verification_status FROM tickets WHERE id=? AND deleted_at IS NULL", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if model.VerificationStatus(status) == model.VerificationRejected {
		return ErrStateChanged
	}
	return nil
}

// ListTicketsByVendor returns a vendor's live tickets, newest first.
func (r *TicketRepo) ListTicketsByVendor(ctx context.Context, vendorID uint64) ([]model.Ticket, error) {
	return r.query(ctx, ticketSelect+" WHERE t.vendor_id = ? AND t.deleted_at IS NULL ORDER BY t.created_at DESC, t.id DESC", vendorID)
}

// ListAllTickets returns every live ticket for the admin console.
func (r *TicketRepo) ListAllTickets(ctx context.Context) ([]model.Ticket, error) {
	return r.query(ctx, ticketSelect+" WHERE t.deleted_at IS NULL ORDER BY t.created_at DESC, t.id DESC")
}

const publicFilter = " WHERE t.verification_status = 'approved' AND t.deleted_at IS NULL AND u.is_fraud = 0"

// ListPublicTickets implements the searchable, paginated public listing.
func (r *TicketRepo) ListPublicTickets(ctx context.Context, q model.TicketQuery) ([]model.Ticket, int64, error) {
	where := publicFilter
	var args []interface{}
	if s := strings.TrimSpace(q.Search); s != "" {
		where += " AND (t.from_location LIKE ? OR t.to_location LIKE ? OR t.title LIKE ?)"
		like := "%" + escapeLike(s) + "%"
		args = append(args, like, like, like)
	}
	if q.Transport != "" {
		where += " AND t.transport_type = ?"
		args = append(args, string(q.Transport))
	}

	var total int64
	countSQL := "SELECT COUNT(*) FROM tickets t JOIN users u ON u.id = t.vendor_id" + where
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := " ORDER BY t.created_at DESC, t.id DESC"
	switch q.SortBy {
	case model.SortPriceLow:
		order = " ORDER BY t.price ASC, t.id ASC"
	case model.SortPriceHigh:
		order = " ORDER BY t.price DESC, t.id DESC"
	}
	args = append(args, q.Limit, q.Offset())
	items, err := r.query(ctx, ticketSelect+where+order+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// LatestTickets returns the most recently added public tickets.
func (r *TicketRepo) LatestTickets(ctx context.Context, limit int) ([]model.Ticket, error) {
	return r.query(ctx, ticketSelect+publicFilter+" ORDER BY t.created_at DESC, t.id DESC LIMIT ?", limit)
}

// AdvertisedTickets returns the admin-curated highlights.
func (r *TicketRepo) AdvertisedTickets(ctx context.Context, limit int) ([]model.Ticket, error) {
	return r.query(ctx, ticketSelect+publicFilter+" AND t.is_advertised = 1 ORDER BY t.updated_at DESC, t.id DESC LIMIT ?", limit)
}

// SetVerification performs the admin review transition as a conditional
// update.  Rejection also clears the advertised flag.
func (r *TicketRepo) SetVerification(ctx context.Context, id uint64, from []model.VerificationStatus, to model.VerificationStatus) error {
	if len(from) == 0 {
		return ErrStateChanged
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	args := []interface{}{string(to), to == model.VerificationRejected, id}
	for _, f := range from {
		args = append(args, string(f))
	}
	res, err := r.db.ExecContext(ctx, `UPDATE tickets
        SET verification_status = ?, is_advertised = IF(?, 0, is_advertised)
        WHERE id = ? AND deleted_at IS NULL AND verification_status IN (`+placeholders+`)`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	var one int
	err = r.db.QueryRowContext(ctx, "SELECT 1 FROM tickets WHERE id=? AND deleted_at IS NULL", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrStateChanged
}

// SetAdvertised toggles the advertised flag.  Turning it on is
// serialised by locking the advertised rows so the limit holds under
// concurrent admin actions.
func (r *TicketRepo) SetAdvertised(ctx context.Context, id uint64, advertised bool, limit int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var (
		status  string
		current bool
	)
	err = tx.QueryRowContext(ctx,
		"SELECT verification_status, is_advertised FROM tickets WHERE id=? AND deleted_at IS NULL FOR UPDATE",
		id).Scan(&status, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if current == advertised {
		committed = true
		return tx.Commit()
	}
	if advertised {
		if model.VerificationStatus(status) != model.VerificationApproved {
			return ErrStateChanged
		}
		var count int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM tickets WHERE is_advertised=1 AND deleted_at IS NULL FOR UPDATE").Scan(&count); err != nil {
			return err
		}
		if count >= limit {
			return ErrConflict
		}
	}
	if _, err := tx.ExecContext(ctx, "UPDATE tickets SET is_advertised=? WHERE id=?", advertised, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *TicketRepo) query(ctx context.Context, q string, args ...interface{}) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTicket(row rowScanner) (*model.Ticket, error) {
	var (
		t         model.Ticket
		transport string
		status    string
		depDate   time.Time
		depTime   string
		perks     []byte
		deletedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.VendorID, &t.VendorName, &t.VendorEmail, &t.VendorFraud,
		&t.Title, &t.From, &t.To, &transport, &t.Price, &t.Quantity,
		&depDate, &depTime, &perks, &t.ImageURL,
		&status, &t.Advertised, &deletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Transport = model.TransportMode(transport)
	t.Verification = model.VerificationStatus(status)
	t.DepartureDate = depDate.Format(model.DateLayout)
	t.DepartureTime = clockHHMM(depTime)
	if t.Perks, err = decodePerks(perks); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		d := deletedAt.Time
		t.DeletedAt = &d
	}
	return &t, nil
}

// clockHHMM trims a MySQL TIME value ("15:04:05") to "15:04".
func clockHHMM(s string) string {
	if len(s) > 5 {
		return s[:5]
	}
	return s
}

func encodePerks(perks []string) ([]byte, error) {
	if perks == nil {
		perks = []string{}
	}
	return json.Marshal(perks)
}

func decodePerks(b []byte) ([]string, error) {
	out := []string{}
	if len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
