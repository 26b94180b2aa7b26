package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/travel-ticket-booking/internal/metrics"
	"github.com/iliyamo/travel-ticket-booking/internal/model"
	"github.com/iliyamo/travel-ticket-booking/internal/payment"
	"github.com/iliyamo/travel-ticket-booking/internal/queue"
	"github.com/iliyamo/travel-ticket-booking/internal/repository/memory"
	"github.com/iliyamo/travel-ticket-booking/internal/session"
)

var dhaka = time.FixedZone("Asia/Dhaka", 6*60*60)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishBookingPaid(ctx context.Context, ev queue.BookingPaidEvent) error {
	return m.Called(ctx, ev).Error(0)
}

type harness struct {
	ctx      context.Context
	store    *memory.Store
	clock    *testClock
	gw       *payment.FakeGateway
	events   *mockPublisher
	bookings *BookingService
	tickets  *TicketService
	payments *PaymentService
	users    *UserService

	admin, vendor, otherVendor, alice, bob session.Session
}

// departure used by default test tickets: five days after the clock start.
const (
	testDepartureDate = "2030-01-06"
	testDepartureTime = "08:30"
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := memory.New()
	clock := &testClock{t: time.Date(2030, 1, 1, 9, 0, 0, 0, dhaka)}
	expiry := ExpiryPolicy{Now: clock.Now, Loc: dhaka}
	gw := payment.NewFakeGateway()
	events := &mockPublisher{}
	events.On("PublishBookingPaid", mock.Anything, mock.Anything).Return(nil).Maybe()
	mon := metrics.NewMonitor()

	bookings := NewBookingService(store, store, expiry, mon, logger)
	h := &harness{
		ctx:      context.Background(),
		store:    store,
		clock:    clock,
		gw:       gw,
		events:   events,
		bookings: bookings,
		tickets:  NewTicketService(store, store, expiry, 2, logger),
		users:    NewUserService(store, bcrypt.MinCost, logger),
		payments: NewPaymentService(PaymentDeps{
			Bookings:     store,
			Tickets:      store,
			Ledger:       store,
			Transactions: store,
			Gateway:      gw,
			Events:       events,
			Expiry:       expiry,
			Config:       PaymentConfig{PublishableKey: "pk_test", Currency: "BDT"},
			Views:        bookings,
			Monitor:      mon,
			Log:          logger,
		}),
	}

	admin := &model.User{Name: "Root", Email: "admin@example.com", Role: model.RoleAdmin}
	require.NoError(t, store.CreateUser(h.ctx, admin))
	h.admin = h.users.Session(admin)
	h.vendor = h.register(t, "Green Line", "vendor@example.com", "vendor")
	h.otherVendor = h.register(t, "Shohagh", "other@example.com", "vendor")
	h.alice = h.register(t, "Alice", "alice@example.com", "user")
	h.bob = h.register(t, "Bob", "bob@example.com", "")
	return h
}

func (h *harness) register(t *testing.T, name, email, role string) session.Session {
	t.Helper()
	u, err := h.users.Register(h.ctx, RegisterInput{Name: name, Email: email, Password: "password1", Role: role})
	require.NoError(t, err)
	return h.users.Session(u)
}

func ticketInput(price int64, qty int) TicketInput {
	return TicketInput{
		Title:         "Dhaka Express",
		From:          "Dhaka",
		To:            "Chittagong",
		Transport:     "bus",
		Price:         decimal.NewFromInt(price),
		Quantity:      qty,
		DepartureDate: testDepartureDate,
		DepartureTime: testDepartureTime,
		Perks:         []string{"AC", " WiFi ", ""},
	}
}

// approvedTicket lists a ticket for h.vendor and approves it.
func (h *harness) approvedTicket(t *testing.T, price int64, qty int) *model.Ticket {
	t.Helper()
	tk, err := h.tickets.Create(h.ctx, h.vendor, ticketInput(price, qty))
	require.NoError(t, err)
	tk, err = h.tickets.Approve(h.ctx, h.admin, tk.ID)
	require.NoError(t, err)
	return tk
}

// acceptedBooking books qty units as user and has the vendor accept.
func (h *harness) acceptedBooking(t *testing.T, user session.Session, ticketID uint64, qty int) *BookingView {
	t.Helper()
	b, err := h.bookings.Create(h.ctx, user, CreateBookingInput{TicketID: ticketID, Quantity: qty})
	require.NoError(t, err)
	b, err = h.bookings.Accept(h.ctx, h.vendor, b.ID)
	require.NoError(t, err)
	return b
}

// intent creates a payment intent and completes the card step.
func (h *harness) intent(t *testing.T, user session.Session, bookingID uint64) string {
	t.Helper()
	in, err := h.payments.CreateIntent(h.ctx, user, bookingID)
	require.NoError(t, err)
	require.True(t, h.gw.Succeed(in.PaymentIntentID))
	return in.PaymentIntentID
}

func (h *harness) pay(t *testing.T, user session.Session, bookingID uint64) (*ConfirmResult, error) {
	t.Helper()
	id := h.intent(t, user, bookingID)
	return h.payments.Confirm(h.ctx, user, ConfirmInput{BookingID: bookingID, PaymentIntentID: id})
}

func (h *harness) quantity(t *testing.T, ticketID uint64) int {
	t.Helper()
	tk, err := h.store.GetTicket(h.ctx, ticketID)
	require.NoError(t, err)
	return tk.Quantity
}

func (h *harness) transactions(t *testing.T) []model.Transaction {
	t.Helper()
	items, err := h.store.ListAllTransactions(h.ctx)
	require.NoError(t, err)
	return items
}
