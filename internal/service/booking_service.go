package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/travel-ticket-booking/internal/metrics"
	"github.com/iliyamo/travel-ticket-booking/internal/model"
	"github.com/iliyamo/travel-ticket-booking/internal/repository"
	"github.com/iliyamo/travel-ticket-booking/internal/session"
)

// BookingView is a booking as returned to clients: the stored record plus
// the expiry state derived at read time.
type BookingView struct {
	model.Booking
	Expired   bool            `json:"expired"`
	Payable   bool            `json:"payable"`
	Countdown model.Countdown `json:"countdown"`
}

// CreateBookingInput is the body of a booking request.
type CreateBookingInput struct {
	TicketID uint64 `json:"ticketId" validate:"required"`
	Quantity int    `json:"bookingQuantity" validate:"required,min=1"`
}

// BookingService owns the booking state machine.  Every transition checks
// the actor, the stored status and the departure, then applies the change
// as a compare-and-swap so concurrent actors cannot both win.  Inventory is
// never touched here; only PaymentService moves quantity.
type BookingService struct {
	tickets  TicketStore
	bookings BookingStore
	expiry   ExpiryPolicy
	monitor  *metrics.Monitor
	log      logrus.FieldLogger
}

func NewBookingService(tickets TicketStore, bookings BookingStore, expiry ExpiryPolicy, monitor *metrics.Monitor, log logrus.FieldLogger) *BookingService {
	return &BookingService{
		tickets:  tickets,
		bookings: bookings,
		expiry:   expiry,
		monitor:  monitor,
		log:      log.WithField("component", "booking"),
	}
}

// View decorates b with its derived expiry flags.
func (s *BookingService) View(b *model.Booking) BookingView {
	return BookingView{
		Booking:   *b,
		Expired:   s.expiry.BookingExpired(b),
		Payable:   s.expiry.Payable(b),
		Countdown: s.expiry.Countdown(b),
	}
}

func (s *BookingService) views(items []model.Booking) []BookingView {
	out := make([]BookingView, 0, len(items))
	for i := range items {
		out = append(out, s.View(&items[i]))
	}
	return out
}

// Create records a pending booking against an approved, unexpired ticket.
// The ticket is snapshotted and the total fixed; quantity is only compared,
// never reserved.
func (s *BookingService) Create(ctx context.Context, sess session.Session, in CreateBookingInput) (*BookingView, error) {
	switch sess.Role {
	case model.RoleUser:
	case model.RoleVendor, model.RoleAdmin:
		return nil, ErrForbidden.WithMessage("only travelers can book tickets")
	default:
		return nil, ErrUnauthenticated
	}
	if in.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	t, err := s.tickets.GetTicket(ctx, in.TicketID)
	if err != nil {
		return nil, storeErr(err, ErrTicketNotFound)
	}
	if t.VendorFraud {
		return nil, ErrTicketNotFound
	}
	if t.Verification != model.VerificationApproved {
		return nil, ErrTicketNotApproved
	}
	if s.expiry.TicketExpired(t) {
		return nil, ErrTicketExpired
	}
	if in.Quantity > t.Quantity {
		return nil, ErrQuantityExceedsAvailability
	}

	snap := t.Snapshot()
	b := &model.Booking{
		UserID:        sess.UserID,
		TicketID:      t.ID,
		VendorID:      t.VendorID,
		Snapshot:      snap,
		Quantity:      in.Quantity,
		TotalPrice:    snap.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
		Status:        model.BookingPending,
		PaymentStatus: model.PaymentUnpaid,
	}
	if err := s.bookings.CreateBooking(ctx, b); err != nil {
		s.monitor.TrackTransition("create", "error")
		return nil, storeErr(err, ErrTicketNotFound)
	}
	s.monitor.TrackTransition("create", "ok")
	s.log.WithFields(logrus.Fields{"booking_id": b.ID, "ticket_id": t.ID, "user_id": sess.UserID}).Info("booking created")
	v := s.View(b)
	return &v, nil
}

// Accept moves a pending booking to accepted.  Only the vendor owning the
// booked ticket may call it.
func (s *BookingService) Accept(ctx context.Context, sess session.Session, id uint64) (*BookingView, error) {
	return s.decide(ctx, sess, id, model.BookingAccepted, "accept")
}

// Reject moves a pending booking to rejected, which is terminal.
func (s *BookingService) Reject(ctx context.Context, sess session.Session, id uint64) (*BookingView, error) {
	return s.decide(ctx, sess, id, model.BookingRejected, "reject")
}

func (s *BookingService) decide(ctx context.Context, sess session.Session, id uint64, to model.BookingStatus, label string) (*BookingView, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, storeErr(err, ErrBookingNotFound)
	}
	switch sess.Role {
	case model.RoleVendor:
		if b.VendorID != sess.UserID {
			return nil, ErrNotOwner
		}
	case model.RoleUser, model.RoleAdmin:
		return nil, ErrForbidden.WithMessage("only the ticket vendor can decide on a booking")
	default:
		return nil, ErrUnauthenticated
	}
	if !b.Status.CanTransitionTo(to) || b.Status != model.BookingPending {
		s.monitor.TrackTransition(label, "rejected")
		return nil, ErrBookingNotPending
	}
	if err := s.bookings.TransitionBooking(ctx, id, model.BookingPending, to); err != nil {
		s.monitor.TrackTransition(label, "rejected")
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, ErrBookingNotPending
		}
		return nil, storeErr(err, ErrBookingNotFound)
	}
	s.monitor.TrackTransition(label, "ok")
	s.log.WithFields(logrus.Fields{"booking_id": id, "vendor_id": sess.UserID, "status": to}).Info("booking decided")
	return s.reload(ctx, id)
}

// Cancel withdraws a pending or accepted booking on behalf of its owner.
// Nothing was reserved so inventory stays as it is.
func (s *BookingService) Cancel(ctx context.Context, sess session.Session, id uint64) (*BookingView, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, storeErr(err, ErrBookingNotFound)
	}
	switch sess.Role {
	case model.RoleUser:
		if b.UserID != sess.UserID {
			return nil, ErrNotOwner
		}
	case model.RoleVendor, model.RoleAdmin:
		return nil, ErrForbidden.WithMessage("only the traveler can cancel a booking")
	default:
		return nil, ErrUnauthenticated
	}
	if b.PaymentStatus == model.PaymentPaid || !b.Status.CanTransitionTo(model.BookingCancelled) {
		s.monitor.TrackTransition("cancel", "rejected")
		return nil, ErrBookingNotCancelable
	}
	if err := s.bookings.TransitionBooking(ctx, id, b.Status, model.BookingCancelled); err != nil {
		s.monitor.TrackTransition("cancel", "rejected")
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, ErrBookingNotCancelable
		}
		return nil, storeErr(err, ErrBookingNotFound)
	}
	s.monitor.TrackTransition("cancel", "ok")
	s.log.WithFields(logrus.Fields{"booking_id": id, "user_id": sess.UserID}).Info("booking cancelled")
	return s.reload(ctx, id)
}

// Get returns one booking visible to the caller: its traveler, the vendor
// of the ticket, or any admin.
func (s *BookingService) Get(ctx context.Context, sess session.Session, id uint64) (*BookingView, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, storeErr(err, ErrBookingNotFound)
	}
	switch sess.Role {
	case model.RoleUser:
		if b.UserID != sess.UserID {
			return nil, ErrNotOwner
		}
	case model.RoleVendor:
		if b.VendorID != sess.UserID && b.UserID != sess.UserID {
			return nil, ErrNotOwner
		}
	case model.RoleAdmin:
	default:
		return nil, ErrUnauthenticated
	}
	v := s.View(b)
	return &v, nil
}

// ListMine returns the caller's own bookings, newest first.
func (s *BookingService) ListMine(ctx context.Context, sess session.Session) ([]BookingView, error) {
	if !sess.Valid() {
		return nil, ErrUnauthenticated
	}
	items, err := s.bookings.ListBookingsByUser(ctx, sess.UserID)
	if err != nil {
		return nil, storeErr(err, ErrBookingNotFound)
	}
	return s.views(items), nil
}

// ListVendorRequests returns bookings made against the vendor's tickets.
func (s *BookingService) ListVendorRequests(ctx context.Context, sess session.Session) ([]BookingView, error) {
	if err := requireRole(sess, model.RoleVendor); err != nil {
		return nil, err
	}
	items, err := s.bookings.ListBookingsByVendor(ctx, sess.UserID)
	if err != nil {
		return nil, storeErr(err, ErrBookingNotFound)
	}
	return s.views(items), nil
}

// VendorRevenue summarises paid bookings and listed tickets of the vendor.
func (s *BookingService) VendorRevenue(ctx context.Context, sess session.Session) (model.VendorRevenue, error) {
	if err := requireRole(sess, model.RoleVendor); err != nil {
		return model.VendorRevenue{}, err
	}
	rev, err := s.bookings.VendorRevenue(ctx, sess.UserID)
	if err != nil {
		return model.VendorRevenue{}, storeErr(err, ErrUserNotFound)
	}
	return rev, nil
}

// ListAll returns every booking; admins only.
func (s *BookingService) ListAll(ctx context.Context, sess session.Session) ([]BookingView, error) {
	if err := requireRole(sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	items, err := s.bookings.ListAllBookings(ctx)
	if err != nil {
		return nil, storeErr(err, ErrBookingNotFound)
	}
	return s.views(items), nil
}

func (s *BookingService) reload(ctx context.Context, id uint64) (*BookingView, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, storeErr(err, ErrBookingNotFound)
	}
	v := s.View(b)
	return &v, nil
}
