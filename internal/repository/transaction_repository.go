package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
)

// TransactionRepo owns the payments ledger: the atomic paid transition
// and the immutable transactions table.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo returns a new TransactionRepo bound to the given database.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// FinalizePayment marks the booking paid, takes its quantity out of the
// ticket and records txn, all inside one transaction.  The booking row is
// locked first so duplicate confirmations serialise on it; the ticket
// decrement is a guarded UPDATE so concurrent payers on the same ticket
// can never drive quantity below zero.
func (r *TransactionRepo) FinalizePayment(ctx context.Context, bookingID uint64, txn *model.Transaction) error {
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
		ticketID uint64
		qty      int
		status   string
	)
	err = tx.QueryRowContext(ctx,
		"SELECT ticket_id, booking_quantity, status FROM bookings WHERE id=? FOR UPDATE",
		bookingID).Scan(&ticketID, &qty, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if model.BookingStatus(status) != model.BookingAccepted {
		return ErrStateChanged
	}

	if err := r.markPaidTx(ctx, tx, bookingID); err != nil {
		return err
	}
	if err := r.decrementQuantityTx(ctx, tx, ticketID, qty); err != nil {
		return err
	}
	txn.BookingID = bookingID
	if err := r.insertTx(ctx, tx, txn); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *TransactionRepo) markPaidTx(ctx context.Context, tx *sql.Tx, bookingID uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE bookings SET status='paid', payment_status='paid' WHERE id=? AND status='accepted'",
		bookingID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStateChanged
	}
	return nil
}

// decrementQuantityTx is the check-and-decrement of the inventory ledger.
func (r *TransactionRepo) decrementQuantityTx(ctx context.Context, tx *sql.Tx, ticketID uint64, qty int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE tickets SET quantity = quantity - ? WHERE id = ? AND quantity >= ?",
		qty, ticketID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientAvailability
	}
	return nil
}

func (r *TransactionRepo) insertTx(ctx context.Context, tx *sql.Tx, txn *model.Transaction) error {
	res, err := tx.ExecContext(ctx, `INSERT INTO transactions
        (booking_id, user_id, ticket_title, amount, currency, processor_ref)
        VALUES (?,?,?,?,?,?)`,
		txn.BookingID, txn.UserID, txn.TicketTitle, txn.Amount, txn.Currency, txn.ProcessorRef)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrStateChanged
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	txn.ID = uint64(id)
	return tx.QueryRowContext(ctx, "SELECT created_at FROM transactions WHERE id=?", txn.ID).Scan(&txn.CreatedAt)
}

const transactionSelect = `SELECT id, booking_id, user_id, ticket_title, amount, currency, processor_ref, created_at
  FROM transactions`

// GetTransaction loads one payment record.
func (r *TransactionRepo) GetTransaction(ctx context.Context, id uint64) (*model.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, transactionSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ListTransactionsByUser returns a payer's history, newest first.
func (r *TransactionRepo) ListTransactionsByUser(ctx context.Context, userID uint64) ([]model.Transaction, error) {
	return r.query(ctx, transactionSelect+" WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
}

// ListAllTransactions returns every payment for the admin console.
func (r *TransactionRepo) ListAllTransactions(ctx context.Context) ([]model.Transaction, error) {
	return r.query(ctx, transactionSelect+" ORDER BY created_at DESC, id DESC")
}

func (r *TransactionRepo) query(ctx context.Context, q string, args ...interface{}) ([]model.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var t model.Transaction
	if err := row.Scan(&t.ID, &t.BookingID, &t.UserID, &t.TicketTitle, &t.Amount,
		&t.Currency, &t.ProcessorRef, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
