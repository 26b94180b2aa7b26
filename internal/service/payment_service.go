package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/travel-ticket-booking/internal/metrics"
	"github.com/iliyamo/travel-ticket-booking/internal/model"
	"github.com/iliyamo/travel-ticket-booking/internal/payment"
	"github.com/iliyamo/travel-ticket-booking/internal/queue"
	"github.com/iliyamo/travel-ticket-booking/internal/repository"
	"github.com/iliyamo/travel-ticket-booking/internal/session"
)

// EventPublisher receives booking events after they are committed.
type EventPublisher interface {
	PublishBookingPaid(ctx context.Context, ev queue.BookingPaidEvent) error
}

// PaymentConfig is what the browser needs to start a card flow.
type PaymentConfig struct {
	PublishableKey string `json:"publishableKey"`
	Currency       string `json:"currency"`
}

// IntentResult is returned by CreateIntent.
type IntentResult struct {
	ClientSecret    string          `json:"clientSecret"`
	PaymentIntentID string          `json:"paymentIntentId"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
}

// ConfirmInput identifies the booking and the intent the client confirmed.
type ConfirmInput struct {
	BookingID       uint64 `json:"bookingId" validate:"required"`
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
}

// ConfirmResult is the finalised booking and its transaction.
type ConfirmResult struct {
	Booking     BookingView       `json:"booking"`
	Transaction model.Transaction `json:"transaction"`
}

const metaBookingID = "booking_id"

// PaymentService runs the two-phase payment handshake.  CreateIntent asks
// the processor for a client secret; Confirm verifies the intent with the
// processor and finalises the booking through the inventory ledger.  A
// captured charge that cannot be finalised is refunded.
type PaymentService struct {
	bookings BookingStore
	tickets  TicketStore
	ledger   PaymentLedger
	txns     TransactionStore
	gateway  payment.Gateway
	events   EventPublisher
	expiry   ExpiryPolicy
	cfg      PaymentConfig
	views    *BookingService
	monitor  *metrics.Monitor
	log      logrus.FieldLogger
}

// PaymentDeps groups the collaborators of PaymentService.  Events may be
// nil when no broker is configured.
type PaymentDeps struct {
	Bookings     BookingStore
	Tickets      TicketStore
	Ledger       PaymentLedger
	Transactions TransactionStore
	Gateway      payment.Gateway
	Events       EventPublisher
	Expiry       ExpiryPolicy
	Config       PaymentConfig
	Views        *BookingService
	Monitor      *metrics.Monitor
	Log          logrus.FieldLogger
}

func NewPaymentService(d PaymentDeps) *PaymentService {
	if d.Config.Currency == "" {
		d.Config.Currency = "bdt"
	}
	d.Config.Currency = strings.ToLower(d.Config.Currency)
	return &PaymentService{
		bookings: d.Bookings,
		tickets:  d.Tickets,
		ledger:   d.Ledger,
		txns:     d.Transactions,
		gateway:  d.Gateway,
		events:   d.Events,
		expiry:   d.Expiry,
		cfg:      d.Config,
		views:    d.Views,
		monitor:  d.Monitor,
		log:      d.Log.WithField("component", "payment"),
	}
}

// Config returns the publishable processor settings.
func (s *PaymentService) Config() PaymentConfig { return s.cfg }

// MinorUnits converts an amount to the processor's integer minor unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// ownBooking loads a booking that belongs to the calling traveler.
func (s *PaymentService) ownBooking(ctx context.Context, sess session.Session, id uint64) (*model.Booking, error) {
	switch sess.Role {
	case model.RoleUser:
	case model.RoleVendor, model.RoleAdmin:
		return nil, ErrForbidden.WithMessage("only travelers pay for bookings")
	default:
		return nil, ErrUnauthenticated
	}
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, storeErr(err, ErrBookingNotFound)
	}
	if b.UserID != sess.UserID {
		return nil, ErrNotOwner
	}
	return b, nil
}

// payable checks the pay preconditions in reporting order.
func (s *PaymentService) payable(b *model.Booking) error {
	if b.Status == model.BookingPaid || b.PaymentStatus == model.PaymentPaid {
		return ErrAlreadyPaid
	}
	if b.Status != model.BookingAccepted {
		return ErrBookingNotAccepted
	}
	if s.expiry.BookingExpired(b) {
		return ErrBookingExpired
	}
	return nil
}

// CreateIntent opens a processor intent for the booking total.
func (s *PaymentService) CreateIntent(ctx context.Context, sess session.Session, bookingID uint64) (*IntentResult, error) {
	b, err := s.ownBooking(ctx, sess, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.payable(b); err != nil {
		return nil, err
	}
	// No intent for a booking that can no longer be filled.
	if t, err := s.tickets.GetTicket(ctx, b.TicketID); err == nil && t.Quantity < b.Quantity {
		return nil, ErrInsufficientAvailability
	}

	in, err := s.gateway.CreateIntent(ctx, payment.IntentRequest{
		Amount:   MinorUnits(b.TotalPrice),
		Currency: s.cfg.Currency,
		Metadata: map[string]string{
			metaBookingID: strconv.FormatUint(b.ID, 10),
			"user_id":     strconv.FormatUint(sess.UserID, 10),
			"ticket_id":   strconv.FormatUint(b.TicketID, 10),
		},
	})
	if err != nil {
		s.log.WithError(err).WithField("booking_id", b.ID).Warn("create intent failed")
		return nil, ErrPaymentProvider.Wrap(err)
	}
	if err := s.bookings.SetPaymentIntent(ctx, b.ID, in.ID); err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, s.recheck(ctx, b.ID)
		}
		return nil, storeErr(err, ErrBookingNotFound)
	}
	return &IntentResult{
		ClientSecret:    in.ClientSecret,
		PaymentIntentID: in.ID,
		Amount:          b.TotalPrice,
		Currency:        s.cfg.Currency,
	}, nil
}

// recheck reports why a booking stopped being payable mid-flight.
func (s *PaymentService) recheck(ctx context.Context, id uint64) error {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return storeErr(err, ErrBookingNotFound)
	}
	if err := s.payable(b); err != nil {
		return err
	}
	return ErrStateChanged
}

// Confirm finalises a booking whose intent the processor reports as
// succeeded.  The booking moves to paid, inventory drops by the booking
// quantity and one transaction is written, all in one ledger step.  A
// second confirmation of a paid booking is refused without side effects.
func (s *PaymentService) Confirm(ctx context.Context, sess session.Session, in ConfirmInput) (*ConfirmResult, error) {
	b, err := s.ownBooking(ctx, sess, in.BookingID)
	if err != nil {
		return nil, err
	}
	intentID := strings.TrimSpace(in.PaymentIntentID)
	if intentID == "" {
		return nil, ErrInvalidInput.WithMessage("paymentIntentId is required")
	}
	if b.Status == model.BookingPaid || b.PaymentStatus == model.PaymentPaid {
		s.monitor.TrackPayment("duplicate", 0)
		return nil, ErrAlreadyPaid
	}
	if b.Status != model.BookingAccepted {
		s.monitor.TrackPayment("rejected", 0)
		return nil, ErrBookingNotAccepted
	}

	intent, err := s.gateway.GetIntent(ctx, intentID)
	if errors.Is(err, payment.ErrIntentNotFound) {
		s.monitor.TrackPayment("unconfirmed", 0)
		return nil, ErrPaymentNotConfirmed.Wrap(err)
	}
	if err != nil {
		s.monitor.TrackPayment("provider_error", 0)
		return nil, ErrPaymentProvider.Wrap(err)
	}
	if err := s.verifyIntent(b, intent); err != nil {
		s.monitor.TrackPayment("unconfirmed", 0)
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"booking_id": b.ID, "intent_id": intent.ID, "user_id": sess.UserID})

	// Only the booking's latest intent may pay for it.  An older one that
	// was captured anyway can never back a transaction.
	if intent.ID != b.PaymentIntentID {
		s.refund(ctx, intent.ID, "superseded", log)
		s.monitor.TrackPayment("superseded", 0)
		return nil, ErrPaymentNotConfirmed.WithMessage("payment intent was replaced by a newer one")
	}

	// Money is captured from here on; every refusal must refund.
	if s.expiry.BookingExpired(b) {
		s.refund(ctx, intent.ID, "expired", log)
		s.monitor.TrackPayment("expired", 0)
		return nil, ErrBookingExpired
	}

	txn := &model.Transaction{
		BookingID:    b.ID,
		UserID:       b.UserID,
		TicketTitle:  b.Snapshot.Title,
		Amount:       b.TotalPrice,
		Currency:     s.cfg.Currency,
		ProcessorRef: intent.ID,
	}
	if err := s.ledger.FinalizePayment(ctx, b.ID, txn); err != nil {
		return nil, s.finalizeFailed(ctx, b, intent.ID, err, log)
	}

	s.monitor.TrackPayment("succeeded", b.Quantity)
	log.WithFields(logrus.Fields{"transaction_id": txn.ID, "ticket_id": b.TicketID, "quantity": b.Quantity}).Info("booking paid")

	paid, err := s.bookings.GetBooking(ctx, b.ID)
	if err != nil {
		return nil, storeErr(err, ErrBookingNotFound)
	}
	s.publishPaid(ctx, paid, txn, log)
	return &ConfirmResult{Booking: s.views.View(paid), Transaction: *txn}, nil
}

// verifyIntent checks the processor's view matches this booking.
func (s *PaymentService) verifyIntent(b *model.Booking, in *payment.Intent) error {
	if in.Status != payment.StatusSucceeded {
		return ErrPaymentNotConfirmed.WithMessage("payment intent status is " + string(in.Status))
	}
	if in.AmountRefunded > 0 {
		return ErrPaymentNotConfirmed.WithMessage("payment was refunded")
	}
	if ref, ok := in.Metadata[metaBookingID]; ok && ref != strconv.FormatUint(b.ID, 10) {
		return ErrPaymentNotConfirmed.WithMessage("payment intent belongs to another booking")
	}
	if in.Amount != MinorUnits(b.TotalPrice) {
		return ErrPaymentNotConfirmed.WithMessage("payment amount does not match booking total")
	}
	if in.Currency != "" && !strings.EqualFold(in.Currency, s.cfg.Currency) {
		return ErrPaymentNotConfirmed.WithMessage("payment currency does not match")
	}
	return nil
}

// finalizeFailed maps a ledger refusal and refunds the captured charge
// when this intent will never back a transaction.
func (s *PaymentService) finalizeFailed(ctx context.Context, b *model.Booking, intentID string, err error, log logrus.FieldLogger) error {
	switch {
	case errors.Is(err, repository.ErrInsufficientAvailability):
		log.Warn("availability lost before payment finalised")
		s.refund(ctx, intentID, "oversold", log)
		s.monitor.TrackPayment("oversold", 0)
		return ErrInsufficientAvailability

	case errors.Is(err, repository.ErrStateChanged):
		// Someone else moved the booking first: a concurrent confirm or a
		// cancellation.
		cur, gerr := s.bookings.GetBooking(ctx, b.ID)
		if gerr != nil {
			log.WithError(gerr).Error("reload after finalize conflict failed")
			return storeErr(gerr, ErrBookingNotFound)
		}
		if cur.Status == model.BookingPaid {
			if !s.paidWith(ctx, cur, intentID) {
				s.refund(ctx, intentID, "duplicate", log)
			}
			s.monitor.TrackPayment("duplicate", 0)
			return ErrAlreadyPaid
		}
		s.refund(ctx, intentID, "state_changed", log)
		s.monitor.TrackPayment("rejected", 0)
		return ErrBookingNotAccepted

	default:
		// The charge may or may not be recorded; leave it for reconciliation.
		log.WithError(err).Error("finalize payment failed")
		s.monitor.TrackPayment("error", 0)
		return storeErr(err, ErrBookingNotFound)
	}
}

// paidWith reports whether the booking's transaction used intentID.
func (s *PaymentService) paidWith(ctx context.Context, b *model.Booking, intentID string) bool {
	txns, err := s.txns.ListTransactionsByUser(ctx, b.UserID)
	if err != nil {
		// unknown; refunding could lose a legitimate payment
		return true
	}
	for _, t := range txns {
		if t.BookingID == b.ID {
			return t.ProcessorRef == intentID
		}
	}
	return false
}

// refund voids a captured charge.  It outlives the request context so a
// disconnecting client cannot abort it.
func (s *PaymentService) refund(ctx context.Context, intentID, reason string, log logrus.FieldLogger) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := s.gateway.Refund(rctx, intentID); err != nil {
		log.WithError(err).WithField("reason", reason).Error("refund failed; manual reconciliation needed")
		s.monitor.TrackRefund(reason, "failed")
		return
	}
	log.WithField("reason", reason).Info("payment refunded")
	s.monitor.TrackRefund(reason, "ok")
}

func (s *PaymentService) publishPaid(ctx context.Context, b *model.Booking, txn *model.Transaction, log logrus.FieldLogger) {
	if s.events == nil {
		return
	}
	ev := queue.BookingPaidEvent{
		BookingID:     b.ID,
		TransactionID: txn.ID,
		UserID:        b.UserID,
		VendorID:      b.VendorID,
		TicketID:      b.TicketID,
		Title:         b.Snapshot.Title,
		Route:         b.Snapshot.From + " -> " + b.Snapshot.To,
		Transport:     string(b.Snapshot.Transport),
		Departure:     b.Snapshot.DepartureDate + " " + b.Snapshot.DepartureTime,
		Quantity:      b.Quantity,
		Amount:        txn.Amount.String(),
		Currency:      txn.Currency,
		ProcessorRef:  txn.ProcessorRef,
		PaidAt:        txn.CreatedAt.UTC().Format(time.RFC3339),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.events.PublishBookingPaid(pctx, ev); err != nil {
		log.WithError(err).Warn("publish booking.paid failed")
	}
}

// ListTransactions returns the caller's payment history.
func (s *PaymentService) ListTransactions(ctx context.Context, sess session.Session) ([]model.Transaction, error) {
	if !sess.Valid() {
		return nil, ErrUnauthenticated
	}
	items, err := s.txns.ListTransactionsByUser(ctx, sess.UserID)
	return items, storeErr(err, ErrTransactionNotFound)
}

// GetTransaction returns one transaction to its payer or an admin.
func (s *PaymentService) GetTransaction(ctx context.Context, sess session.Session, id uint64) (*model.Transaction, error) {
	t, err := s.txns.GetTransaction(ctx, id)
	if err != nil {
		return nil, storeErr(err, ErrTransactionNotFound)
	}
	switch sess.Role {
	case model.RoleAdmin:
	case model.RoleUser, model.RoleVendor:
		if t.UserID != sess.UserID {
			return nil, ErrNotOwner
		}
	default:
		return nil, ErrUnauthenticated
	}
	return t, nil
}

// ListAllTransactions returns every transaction; admins only.
func (s *PaymentService) ListAllTransactions(ctx context.Context, sess session.Session) ([]model.Transaction, error) {
	if err := requireRole(sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	items, err := s.txns.ListAllTransactions(ctx)
	return items, storeErr(err, ErrTransactionNotFound)
}
