package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
	"github.com/iliyamo/travel-ticket-booking/internal/repository"
	"github.com/iliyamo/travel-ticket-booking/internal/service"
)

var (
	_ service.TicketStore      = (*Store)(nil)
	_ service.BookingStore     = (*Store)(nil)
	_ service.PaymentLedger    = (*Store)(nil)
	_ service.TransactionStore = (*Store)(nil)
	_ service.UserStore        = (*Store)(nil)
	_ service.TokenStore       = (*Store)(nil)
)

func seed(t *testing.T, s *Store, qty int) (*model.Ticket, *model.User) {
	t.Helper()
	ctx := context.Background()
	vendor := &model.User{Name: "Green Line", Email: "vendor@example.com", Role: model.RoleVendor}
	require.NoError(t, s.CreateUser(ctx, vendor))
	buyer := &model.User{Name: "Rahim", Email: "rahim@example.com", Role: model.RoleUser}
	require.NoError(t, s.CreateUser(ctx, buyer))
	tk := &model.Ticket{
		VendorID: vendor.ID, Title: "Dhaka Express", From: "Dhaka", To: "Chittagong",
		Transport: model.TransportBus, Price: decimal.NewFromInt(100), Quantity: qty,
		DepartureDate: "2099-01-01", DepartureTime: "08:00", Verification: model.VerificationApproved,
	}
	require.NoError(t, s.CreateTicket(ctx, tk))
	return tk, buyer
}

func acceptedBooking(t *testing.T, s *Store, tk *model.Ticket, userID uint64, qty int) *model.Booking {
	t.Helper()
	ctx := context.Background()
	b := &model.Booking{
		UserID: userID, TicketID: tk.ID, VendorID: tk.VendorID, Snapshot: tk.Snapshot(),
		Quantity: qty, TotalPrice: tk.Price.Mul(decimal.NewFromInt(int64(qty))),
		Status: model.BookingPending, PaymentStatus: model.PaymentUnpaid,
	}
	require.NoError(t, s.CreateBooking(ctx, b))
	require.NoError(t, s.TransitionBooking(ctx, b.ID, model.BookingPending, model.BookingAccepted))
	return b
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &model.User{Email: "A@x.io", Role: model.RoleUser}))
	err := s.CreateUser(ctx, &model.User{Email: "a@x.io ", Role: model.RoleUser})
	assert.ErrorIs(t, err, repository.ErrEmailExists)
}

func TestFinalizePayment_DecrementsAndRecords(t *testing.T) {
	s := New()
	ctx := context.Background()
	tk, buyer := seed(t, s, 5)
	b := acceptedBooking(t, s, tk, buyer.ID, 3)

	txn := &model.Transaction{UserID: buyer.ID, Amount: b.TotalPrice, Currency: "bdt", ProcessorRef: "pi_1"}
	require.NoError(t, s.FinalizePayment(ctx, b.ID, txn))
	assert.NotZero(t, txn.ID)
	assert.Equal(t, b.ID, txn.BookingID)

	got, err := s.GetTicket(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Quantity)

	paid, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPaid, paid.Status)
	assert.Equal(t, model.PaymentPaid, paid.PaymentStatus)

	// A second finalisation neither decrements nor records again.
	err = s.FinalizePayment(ctx, b.ID, &model.Transaction{UserID: buyer.ID, ProcessorRef: "pi_1"})
	assert.ErrorIs(t, err, repository.ErrStateChanged)
	got, _ = s.GetTicket(ctx, tk.ID)
	assert.Equal(t, 2, got.Quantity)
	txns, _ := s.ListAllTransactions(ctx)
	assert.Len(t, txns, 1)
}

func TestFinalizePayment_InsufficientLeavesStateUntouched(t *testing.T) {
	s := New()
	ctx := context.Background()
	tk, buyer := seed(t, s, 2)
	first := acceptedBooking(t, s, tk, buyer.ID, 2)
	second := acceptedBooking(t, s, tk, buyer.ID, 2)

	require.NoError(t, s.FinalizePayment(ctx, first.ID, &model.Transaction{UserID: buyer.ID, ProcessorRef: "pi_a"}))
	err := s.FinalizePayment(ctx, second.ID, &model.Transaction{UserID: buyer.ID, ProcessorRef: "pi_b"})
	assert.ErrorIs(t, err, repository.ErrInsufficientAvailability)

	b, _ := s.GetBooking(ctx, second.ID)
	assert.Equal(t, model.BookingAccepted, b.Status)
	assert.Equal(t, model.PaymentUnpaid, b.PaymentStatus)
	got, _ := s.GetTicket(ctx, tk.ID)
	assert.Equal(t, 0, got.Quantity)
	txns, _ := s.ListAllTransactions(ctx)
	assert.Len(t, txns, 1)
}

func TestFinalizePayment_ConcurrentPayersNeverOversell(t *testing.T) {
	s := New()
	ctx := context.Background()
	tk, buyer := seed(t, s, 10)

	const payers = 25
	bookings := make([]*model.Booking, payers)
	for i := range bookings {
		bookings[i] = acceptedBooking(t, s, tk, buyer.ID, 2)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for _, b := range bookings {
		wg.Add(1)
		go func(b *model.Booking) {
			defer wg.Done()
			err := s.FinalizePayment(ctx, b.ID, &model.Transaction{UserID: buyer.ID})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, repository.ErrInsufficientAvailability)
		}(b)
	}
	wg.Wait()

	assert.Equal(t, 5, success)
	got, _ := s.GetTicket(ctx, tk.ID)
	assert.Equal(t, 0, got.Quantity)
	txns, _ := s.ListAllTransactions(ctx)
	assert.Len(t, txns, 5)
}

func TestTransitionBooking_CompareAndSwap(t *testing.T) {
	s := New()
	ctx := context.Background()
	tk, buyer := seed(t, s, 1)
	b := acceptedBooking(t, s, tk, buyer.ID, 1)

	assert.ErrorIs(t, s.TransitionBooking(ctx, b.ID, model.BookingPending, model.BookingRejected), repository.ErrStateChanged)
	assert.ErrorIs(t, s.TransitionBooking(ctx, 9999, model.BookingPending, model.BookingRejected), repository.ErrNotFound)
}

func TestSoftDeleteHidesTicket(t *testing.T) {
	s := New()
	ctx := context.Background()
	tk, _ := seed(t, s, 1)
	require.NoError(t, s.SoftDeleteTicket(ctx, tk.ID))
	_, err := s.GetTicket(ctx, tk.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	all, _ := s.ListAllTickets(ctx)
	assert.Empty(t, all)
}

func TestListPublicTickets_FilterSortPage(t *testing.T) {
	s := New()
	ctx := context.Background()
	vendor := &model.User{Name: "V", Email: "v@x.io", Role: model.RoleVendor}
	require.NoError(t, s.CreateUser(ctx, vendor))
	fraud := &model.User{Name: "F", Email: "f@x.io", Role: model.RoleVendor, IsFraud: true}
	require.NoError(t, s.CreateUser(ctx, fraud))

	mk := func(vendorID uint64, to string, mode model.TransportMode, price int64, status model.VerificationStatus) {
		require.NoError(t, s.CreateTicket(ctx, &model.Ticket{
			VendorID: vendorID, Title: "to " + to, From: "Dhaka", To: to, Transport: mode,
			Price: decimal.NewFromInt(price), Quantity: 5, DepartureDate: "2099-01-01",
			DepartureTime: "10:00", Verification: status,
		}))
	}
	mk(vendor.ID, "Sylhet", model.TransportBus, 500, model.VerificationApproved)
	mk(vendor.ID, "Khulna", model.TransportTrain, 300, model.VerificationApproved)
	mk(vendor.ID, "Barisal", model.TransportLaunch, 700, model.VerificationApproved)
	mk(vendor.ID, "Rajshahi", model.TransportBus, 100, model.VerificationPending)
	mk(fraud.ID, "Sylhet", model.TransportBus, 50, model.VerificationApproved)

	items, total, err := s.ListPublicTickets(ctx, model.TicketQuery{SortBy: model.SortPriceLow, Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "Khulna", items[0].To)
	assert.Equal(t, "Sylhet", items[1].To)

	items, total, err = s.ListPublicTickets(ctx, model.TicketQuery{SortBy: model.SortPriceLow, Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Barisal", items[0].To)

	items, total, err = s.ListPublicTickets(ctx, model.TicketQuery{Search: "syl", Transport: model.TransportBus, Page: 1, Limit: 9})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "V", items[0].VendorName)
}

func TestSetAdvertised_Limit(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, _ := seed(t, s, 1)
	b := &model.Ticket{VendorID: a.VendorID, Title: "b", Transport: model.TransportBus, Price: decimal.NewFromInt(1),
		DepartureDate: "2099-01-01", DepartureTime: "10:00", Verification: model.VerificationApproved}
	require.NoError(t, s.CreateTicket(ctx, b))

	require.NoError(t, s.SetAdvertised(ctx, a.ID, true, 1))
	assert.ErrorIs(t, s.SetAdvertised(ctx, b.ID, true, 1), repository.ErrConflict)
	require.NoError(t, s.SetAdvertised(ctx, a.ID, false, 1))
	require.NoError(t, s.SetAdvertised(ctx, b.ID, true, 1))
}

func TestRefreshTokens(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.StoreRefresh(ctx, 7, "h1", time.Now().Add(time.Hour)))
	require.NoError(t, s.StoreRefresh(ctx, 7, "h2", time.Now().Add(-time.Hour)))

	uid, err := s.ValidateRefresh(ctx, "h1")
	require.NoError(t, err)
	assert.EqualValues(t, 7, uid)
	_, err = s.ValidateRefresh(ctx, "h2")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.RevokeAllForUser(ctx, 7))
	_, err = s.ValidateRefresh(ctx, "h1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteUser_PinnedByBookings(t *testing.T) {
	s := New()
	ctx := context.Background()
	tk, buyer := seed(t, s, 5)
	acceptedBooking(t, s, tk, buyer.ID, 1)

	assert.ErrorIs(t, s.DeleteUser(ctx, buyer.ID), repository.ErrConflict)
	assert.ErrorIs(t, s.DeleteUser(ctx, tk.VendorID), repository.ErrConflict)
	got, err := s.GetTicket(ctx, tk.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DeletedAt)

	idle := &model.User{Name: "Idle", Email: "idle@example.com", Role: model.RoleVendor}
	require.NoError(t, s.CreateUser(ctx, idle))
	require.NoError(t, s.DeleteUser(ctx, idle.ID))
	_, err = s.GetUserByID(ctx, idle.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFinalizePayment_ProcessorRefIsUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	tk, buyer := seed(t, s, 5)
	first := acceptedBooking(t, s, tk, buyer.ID, 1)
	second := acceptedBooking(t, s, tk, buyer.ID, 1)

	require.NoError(t, s.FinalizePayment(ctx, first.ID, &model.Transaction{UserID: buyer.ID, ProcessorRef: "pi_same"}))
	err := s.FinalizePayment(ctx, second.ID, &model.Transaction{UserID: buyer.ID, ProcessorRef: "pi_same"})
	assert.ErrorIs(t, err, repository.ErrStateChanged)

	b, _ := s.GetBooking(ctx, second.ID)
	assert.Equal(t, model.BookingAccepted, b.Status)
	got, _ := s.GetTicket(ctx, tk.ID)
	assert.Equal(t, 4, got.Quantity)
}
