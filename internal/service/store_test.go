package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
	"github.com/iliyamo/travel-ticket-booking/internal/repository"
)

// The MySQL repositories satisfy the store contracts.
var (
	_ TicketStore      = (*repository.TicketRepo)(nil)
	_ BookingStore     = (*repository.BookingRepo)(nil)
	_ PaymentLedger    = (*repository.TransactionRepo)(nil)
	_ TransactionStore = (*repository.TransactionRepo)(nil)
	_ UserStore        = (*repository.UserRepo)(nil)
	_ TokenStore       = (*repository.TokenRepo)(nil)
)

func TestExpiryPolicy(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, dhaka)
	p := ExpiryPolicy{Now: func() time.Time { return now }, Loc: dhaka}

	assert.False(t, p.Expired("2030-01-01", "12:00:01"))
	assert.True(t, p.Expired("2030-01-01", "12:00"), "departure instant itself is expired")
	assert.True(t, p.Expired("2029-12-31", "23:59"))
	assert.True(t, p.Expired("not-a-date", "12:00"))

	// wall clock is interpreted in the policy zone, not UTC
	utc := ExpiryPolicy{Now: p.Now, Loc: time.UTC}
	assert.False(t, utc.Expired("2030-01-01", "08:00"))
	assert.True(t, p.Expired("2030-01-01", "08:00"))

	b := &model.Booking{
		Status:        model.BookingAccepted,
		PaymentStatus: model.PaymentUnpaid,
		Snapshot:      model.TicketSnapshot{DepartureDate: "2030-01-02", DepartureTime: "13:01"},
	}
	assert.True(t, p.Payable(b))
	assert.Equal(t, model.Countdown{Days: 1, Hours: 1, Minutes: 1}, p.Countdown(b))

	b.PaymentStatus = model.PaymentPaid
	assert.False(t, p.Payable(b))
}

func TestExpiryPolicy_Monotonic(t *testing.T) {
	dep := time.Date(2030, 3, 1, 6, 0, 0, 0, dhaka)
	now := dep.Add(-3 * time.Second)
	p := ExpiryPolicy{Now: func() time.Time { return now }, Loc: dhaka}

	seen := false
	for i := 0; i < 10; i++ {
		exp := p.Expired("2030-03-01", "06:00")
		if seen {
			assert.True(t, exp, "once expired, always expired")
		}
		seen = seen || exp
		now = now.Add(time.Second)
	}
	assert.True(t, seen)
}
