package service

import (
	"context"
	"time"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
)

// TicketStore persists tickets.  Lookups never return soft deleted rows;
// a missing or deleted ticket yields repository.ErrNotFound.
type TicketStore interface {
	CreateTicket(ctx context.Context, t *model.Ticket) error
	GetTicket(ctx context.Context, id uint64) (*model.Ticket, error)
	UpdateTicket(ctx context.Context, t *model.Ticket) error
	SoftDeleteTicket(ctx context.Context, id uint64) error
	ListTicketsByVendor(ctx context.Context, vendorID uint64) ([]model.Ticket, error)
	ListAllTickets(ctx context.Context) ([]model.Ticket, error)
	// ListPublicTickets returns approved, live tickets of non-fraud vendors
	// matching q together with the total match count.
	ListPublicTickets(ctx context.Context, q model.TicketQuery) ([]model.Ticket, int64, error)
	LatestTickets(ctx context.Context, limit int) ([]model.Ticket, error)
	AdvertisedTickets(ctx context.Context, limit int) ([]model.Ticket, error)
	// SetVerification moves a ticket to status `to` only when its current
	// status is one of `from`; otherwise repository.ErrStateChanged.
	SetVerification(ctx context.Context, id uint64, from []model.VerificationStatus, to model.VerificationStatus) error
	// SetAdvertised flips the flag.  Turning it on fails with
	// repository.ErrConflict once limit tickets are advertised.
	SetAdvertised(ctx context.Context, id uint64, advertised bool, limit int) error
}

// BookingStore persists bookings.  Rows are never deleted.
type BookingStore interface {
	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	// TransitionBooking is a compare-and-swap on status: it succeeds only if
	// the stored status is still `from`, else repository.ErrStateChanged.
	TransitionBooking(ctx context.Context, id uint64, from, to model.BookingStatus) error
	// SetPaymentIntent records the intent for an accepted, unpaid booking.
	SetPaymentIntent(ctx context.Context, id uint64, intentID string) error
	ListBookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	ListBookingsByVendor(ctx context.Context, vendorID uint64) ([]model.Booking, error)
	ListAllBookings(ctx context.Context) ([]model.Booking, error)
	VendorRevenue(ctx context.Context, vendorID uint64) (model.VendorRevenue, error)
}

// PaymentLedger is the inventory ledger.  FinalizePayment is the only
// operation that lowers ticket quantity.  In one atomic step it moves the
// booking accepted -> paid, decrements the ticket by the booking quantity
// (never below zero) and inserts txn.  On failure nothing is applied:
// repository.ErrStateChanged if the booking was not accepted,
// repository.ErrInsufficientAvailability if stock ran out.
type PaymentLedger interface {
	FinalizePayment(ctx context.Context, bookingID uint64, txn *model.Transaction) error
}

// TransactionStore reads the immutable payment records.
type TransactionStore interface {
	GetTransaction(ctx context.Context, id uint64) (*model.Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID uint64) ([]model.Transaction, error)
	ListAllTransactions(ctx context.Context) ([]model.Transaction, error)
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id uint64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, id uint64, name, photoURL string) error
	// ListUsers filters by role (zero means any) and a case-insensitive
	// substring of name or email.
	ListUsers(ctx context.Context, role model.Role, query string) ([]model.User, error)
	UserStats(ctx context.Context) (model.UserStats, error)
	SetRole(ctx context.Context, id uint64, role model.Role) error
	SetFraud(ctx context.Context, id uint64, fraud bool) error
	DeleteUser(ctx context.Context, id uint64) error
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}
