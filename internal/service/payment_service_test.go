package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
	"github.com/iliyamo/travel-ticket-booking/internal/queue"
	"github.com/iliyamo/travel-ticket-booking/internal/session"
)

// Scenario B: acceptance never checks inventory; the second payer loses.
func TestConfirm_SecondPayerLosesAvailabilityRace(t *testing.T) {
	h := newHarness(t)
	tk := h.approvedTicket(t, 100, 2)
	first := h.acceptedBooking(t, h.alice, tk.ID, 2)
	second := h.acceptedBooking(t, h.bob, tk.ID, 2)

	firstIntent := h.intent(t, h.alice, first.ID)
	secondIntent := h.intent(t, h.bob, second.ID)

	_, err := h.payments.Confirm(h.ctx, h.alice, ConfirmInput{BookingID: first.ID, PaymentIntentID: firstIntent})
	require.NoError(t, err)
	assert.Equal(t, 0, h.quantity(t, tk.ID))

	_, err = h.payments.Confirm(h.ctx, h.bob, ConfirmInput{BookingID: second.ID, PaymentIntentID: secondIntent})
	assert.ErrorIs(t, err, ErrInsufficientAvailability)
	assert.Equal(t, KindAvailability, AsError(err).Kind)

	assert.Equal(t, 0, h.quantity(t, tk.ID))
	got, err := h.bookings.Get(h.ctx, h.bob, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingAccepted, got.Status)
	assert.Equal(t, model.PaymentUnpaid, got.PaymentStatus)
	assert.Len(t, h.transactions(t), 1)
	assert.Equal(t, []string{secondIntent}, h.gw.Refunds(), "captured charge of the loser is refunded")

	// a fresh attempt is refused before any charge
	_, err = h.payments.CreateIntent(h.ctx, h.bob, second.ID)
	assert.ErrorIs(t, err, ErrInsufficientAvailability)
}

// Scenario D: accepted booking whose departure passed unpaid.
func TestPay_ExpiredAcceptedBooking(t *testing.T) {
	h := newHarness(t)
	tk := h.approvedTicket(t, 100, 5)
	b := h.acceptedBooking(t, h.alice, tk.ID, 1)
	intentID := h.intent(t, h.alice, b.ID)

	h.clock.Set(time.Date(2030, 1, 6, 8, 30, 0, 0, dhaka))

	_, err := h.payments.CreateIntent(h.ctx, h.alice, b.ID)
	assert.ErrorIs(t, err, ErrBookingExpired)

	_, err = h.payments.Confirm(h.ctx, h.alice, ConfirmInput{BookingID: b.ID, PaymentIntentID: intentID})
	assert.ErrorIs(t, err, ErrBookingExpired)
	assert.Equal(t, []string{intentID}, h.gw.Refunds())

	got, err := h.store.GetBooking(h.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingAccepted, got.Status)
	assert.Equal(t, 5, h.quantity(t, tk.ID))
	assert.Empty(t, h.transactions(t))
}

func TestConfirm_DuplicateIsRejectedWithoutSideEffects(t *testing.T) {
	h := newHarness(t)
	tk := h.approvedTicket(t, 100, 5)
	b := h.acceptedBooking(t, h.alice, tk.ID, 3)
	intentID := h.intent(t, h.alice, b.ID)

	in := ConfirmInput{BookingID: b.ID, PaymentIntentID: intentID}
	_, err := h.payments.Confirm(h.ctx, h.alice, in)
	require.NoError(t, err)

	_, err = h.payments.Confirm(h.ctx, h.alice, in)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	_, err = h.payments.CreateIntent(h.ctx, h.alice, b.ID)
	assert.ErrorIs(t, err, ErrAlreadyPaid)

	assert.Equal(t, 2, h.quantity(t, tk.ID))
	assert.Len(t, h.transactions(t), 1)
	assert.Empty(t, h.gw.Refunds())
}

func TestConfirm_ConcurrentDuplicatesFinalizeOnce(t *testing.T) {
	h := newHarness(t)
	tk := h.approvedTicket(t, 100, 5)
	b := h.acceptedBooking(t, h.alice, tk.ID, 2)
	intentID := h.intent(t, h.alice, b.ID)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.payments.Confirm(h.ctx, h.alice, ConfirmInput{BookingID: b.ID, PaymentIntentID: intentID})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyPaid)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 3, h.quantity(t, tk.ID))
	assert.Len(t, h.transactions(t), 1)
	assert.Empty(t, h.gw.Refunds(), "same intent is never refunded")
}

func TestConfirm_ConcurrentPayersNeverOversell(t *testing.T) {
	h := newHarness(t)
	tk := h.approvedTicket(t, 100, 5)

	const payers = 10
	ids := make([]uint64, payers)
	intents := make([]string, payers)
	for i := range ids {
		b := h.acceptedBooking(t, h.alice, tk.ID, 1)
		ids[i] = b.ID
		intents[i] = h.intent(t, h.alice, b.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, payers)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.payments.Confirm(h.ctx, h.alice, ConfirmInput{BookingID: ids[i], PaymentIntentID: intents[i]})
		}(i)
	}
	wg.Wait()

	ok, lost := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientAvailability):
			lost++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 5, ok)
	assert.Equal(t, 5, lost)
	assert.Equal(t, 0, h.quantity(t, tk.ID))
	assert.Len(t, h.transactions(t), 5)
	assert.Len(t, h.gw.Refunds(), 5)
}

func TestConfirm_IntentVerification(t *testing.T) {
	h := newHarness(t)
	tk := h.approvedTicket(t, 100, 5)
	b := h.acceptedBooking(t, h.alice, tk.ID, 1)
	other := h.acceptedBooking(t, h.alice, tk.ID, 2)

	// not yet confirmed on the card side
	in, err := h.payments.CreateIntent(h.ctx, h.alice, b.ID)
	require.NoError(t, err)
	_, err = h.payments.Confirm(h.ctx, h.alice, ConfirmInput{BookingID: b.ID, PaymentIntentID: in.PaymentIntentID})
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)

	// unknown intent
	_, err = h.payments.Confirm(h.ctx, h.alice, ConfirmInput{BookingID: b.ID, PaymentIntentID: "pi_missing"})
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)

	// intent of another booking
	otherIntent := h.intent(t, h.alice, other.ID)
	_, err = h.payments.Confirm(h.ctx, h.alice, ConfirmInput{BookingID: b.ID, PaymentIntentID: otherIntent})
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)

	_, err = h.payments.Confirm(h.ctx, h.alice, ConfirmInput{BookingID: b.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, 5, h.quantity(t, tk.ID))
	assert.Empty(t, h.transactions(t))
	assert.Empty(t, h.gw.Refunds())
}

func TestPayment_Authorization(t *testing.T) {
	h := newHarness(t)
	tk := h.approvedTicket(t, 100, 5)
	b := h.acceptedBooking(t, h.alice, tk.ID, 1)

	_, err := h.payments.CreateIntent(h.ctx, h.bob, b.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
	_, err = h.payments.CreateIntent(h.ctx, h.vendor, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.payments.CreateIntent(h.ctx, session.Session{}, b.ID)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	pending, err := h.bookings.Create(h.ctx, h.alice, CreateBookingInput{TicketID: tk.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = h.payments.CreateIntent(h.ctx, h.alice, pending.ID)
	assert.ErrorIs(t, err, ErrBookingNotAccepted)
}

func TestPayment_ProviderDown(t *testing.T) {
	h := newHarness(t)
	tk := h.approvedTicket(t, 100, 5)
	b := h.acceptedBooking(t, h.alice, tk.ID, 1)

	h.gw.Err = errors.New("connection refused")
	_, err := h.payments.CreateIntent(h.ctx, h.alice, b.ID)
	assert.ErrorIs(t, err, ErrPaymentProvider)
	assert.Equal(t, KindExternal, AsError(err).Kind)

	_, err = h.payments.Confirm(h.ctx, h.alice, ConfirmInput{BookingID: b.ID, PaymentIntentID: "pi_x"})
	assert.ErrorIs(t, err, ErrPaymentProvider)

	got, err := h.store.GetBooking(h.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingAccepted, got.Status)
}

// cancellingLedger cancels the booking right before delegating, standing in
// for a cancellation that lands between the status read and the ledger step.
type cancellingLedger struct {
	h    *harness
	next PaymentLedger
}

func (l cancellingLedger) FinalizePayment(ctx context.Context, id uint64, txn *model.Transaction) error {
	_ = l.h.store.TransitionBooking(ctx, id, model.BookingAccepted, model.BookingCancelled)
	return l.next.FinalizePayment(ctx, id, txn)
}

func TestConfirm_CancelledMidFlightIsRefunded(t *testing.T) {
	h := newHarness(t)
	tk := h.approvedTicket(t, 100, 5)
	b := h.acceptedBooking(t, h.alice, tk.ID, 1)
	intentID := h.intent(t, h.alice, b.ID)
	h.payments.ledger = cancellingLedger{h: h, next: h.store}

	_, err := h.payments.Confirm(h.ctx, h.alice, ConfirmInput{BookingID: b.ID, PaymentIntentID: intentID})
	assert.ErrorIs(t, err, ErrBookingNotAccepted)
	assert.Equal(t, []string{intentID}, h.gw.Refunds())
	assert.Equal(t, 5, h.quantity(t, tk.ID))
	assert.Empty(t, h.transactions(t))
}

func TestConfirm_CancelledBookingRefusedUpfront(t *testing.T) {
	h := newHarness(t)
	tk := h.approvedTicket(t, 100, 5)
	b := h.acceptedBooking(t, h.alice, tk.ID, 1)
	intentID := h.intent(t, h.alice, b.ID)
	_, err := h.bookings.Cancel(h.ctx, h.alice, b.ID)
	require.NoError(t, err)

	_, err = h.payments.Confirm(h.ctx, h.alice, ConfirmInput{BookingID: b.ID, PaymentIntentID: intentID})
	assert.ErrorIs(t, err, ErrBookingNotAccepted)
	assert.Empty(t, h.gw.Refunds())
}

func TestConfirm_PublishesBookingPaid(t *testing.T) {
	h := newHarness(t)
	pub := &mockPublisher{}
	h.payments.events = pub
	tk := h.approvedTicket(t, 100, 5)
	b := h.acceptedBooking(t, h.alice, tk.ID, 3)

	pub.On("PublishBookingPaid", mock.Anything, mock.MatchedBy(func(ev queue.BookingPaidEvent) bool {
		return ev.BookingID == b.ID && ev.Quantity == 3 && ev.Amount == "300" &&
			ev.Currency == "bdt" && ev.Route == "Dhaka -> Chittagong" && ev.VendorID == h.vendor.UserID
	})).Return(errors.New("broker down")).Once()

	res, err := h.pay(t, h.alice, b.ID)
	require.NoError(t, err, "publish failures never fail the payment")
	assert.Equal(t, model.BookingPaid, res.Booking.Status)
	pub.AssertExpectations(t)
}

func TestTransactions_Visibility(t *testing.T) {
	h := newHarness(t)
	tk := h.approvedTicket(t, 100, 5)
	b := h.acceptedBooking(t, h.alice, tk.ID, 1)
	res, err := h.pay(t, h.alice, b.ID)
	require.NoError(t, err)

	mine, err := h.payments.ListTransactions(h.ctx, h.alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Dhaka Express", mine[0].TicketTitle)

	none, err := h.payments.ListTransactions(h.ctx, h.bob)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = h.payments.GetTransaction(h.ctx, h.bob, res.Transaction.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
	_, err = h.payments.GetTransaction(h.ctx, h.admin, res.Transaction.ID)
	assert.NoError(t, err)

	all, err := h.payments.ListAllTransactions(h.ctx, h.admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	_, err = h.payments.ListAllTransactions(h.ctx, h.alice)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(30000), MinorUnits(decimal.NewFromInt(300)))
	assert.Equal(t, int64(1235), MinorUnits(decimal.RequireFromString("12.345")))
	assert.Equal(t, int64(99), MinorUnits(decimal.RequireFromString("0.99")))
}

func TestConfig(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, PaymentConfig{PublishableKey: "pk_test", Currency: "bdt"}, h.payments.Config())
}

func TestConfirm_RefundedIntentCannotBeReplayed(t *testing.T) {
	h := newHarness(t)
	tk := h.approvedTicket(t, 100, 2)
	first := h.acceptedBooking(t, h.alice, tk.ID, 2)
	second := h.acceptedBooking(t, h.bob, tk.ID, 2)
	firstIntent := h.intent(t, h.alice, first.ID)
	secondIntent := h.intent(t, h.bob, second.ID)

	_, err := h.payments.Confirm(h.ctx, h.alice, ConfirmInput{BookingID: first.ID, PaymentIntentID: firstIntent})
	require.NoError(t, err)
	_, err = h.payments.Confirm(h.ctx, h.bob, ConfirmInput{BookingID: second.ID, PaymentIntentID: secondIntent})
	require.ErrorIs(t, err, ErrInsufficientAvailability)
	require.Equal(t, []string{secondIntent}, h.gw.Refunds())

	// vendor restocks; the refunded charge must not pay for the booking
	_, err = h.tickets.Update(h.ctx, h.vendor, tk.ID, ticketInput(100, 5))
	require.NoError(t, err)
	_, err = h.payments.Confirm(h.ctx, h.bob, ConfirmInput{BookingID: second.ID, PaymentIntentID: secondIntent})
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)

	got, err := h.bookings.Get(h.ctx, h.bob, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingAccepted, got.Status)
	assert.Equal(t, 5, h.quantity(t, tk.ID))
	assert.Len(t, h.transactions(t), 1)
	assert.Equal(t, []string{secondIntent}, h.gw.Refunds(), "no second refund")

	// a fresh payment goes through
	res, err := h.pay(t, h.bob, second.ID)
	require.NoError(t, err)
	assert.NotEqual(t, secondIntent, res.Transaction.ProcessorRef)
	assert.Equal(t, 3, h.quantity(t, tk.ID))
}

func TestConfirm_SupersededIntentIsRefused(t *testing.T) {
	h := newHarness(t)
	tk := h.approvedTicket(t, 100, 5)
	b := h.acceptedBooking(t, h.alice, tk.ID, 1)

	stale := h.intent(t, h.alice, b.ID)
	current := h.intent(t, h.alice, b.ID)

	_, err := h.payments.Confirm(h.ctx, h.alice, ConfirmInput{BookingID: b.ID, PaymentIntentID: stale})
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)
	assert.Equal(t, []string{stale}, h.gw.Refunds(), "captured stale charge is returned")
	assert.Equal(t, 5, h.quantity(t, tk.ID))

	res, err := h.payments.Confirm(h.ctx, h.alice, ConfirmInput{BookingID: b.ID, PaymentIntentID: current})
	require.NoError(t, err)
	assert.Equal(t, current, res.Transaction.ProcessorRef)
	assert.Equal(t, 4, h.quantity(t, tk.ID))
}
