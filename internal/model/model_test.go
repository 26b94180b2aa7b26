package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingTransitions(t *testing.T) {
	allowed := map[BookingStatus][]BookingStatus{
		BookingPending:  {BookingAccepted, BookingRejected, BookingCancelled},
		BookingAccepted: {BookingPaid, BookingCancelled},
	}
	all := []BookingStatus{BookingPending, BookingAccepted, BookingRejected, BookingPaid, BookingCancelled}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	for _, s := range []BookingStatus{BookingRejected, BookingPaid, BookingCancelled} {
		assert.True(t, s.IsTerminal(), s)
	}
	assert.False(t, BookingPending.IsTerminal())
	assert.False(t, BookingAccepted.IsTerminal())

	// paid is reachable only through accepted
	assert.False(t, BookingPending.CanTransitionTo(BookingPaid))

	_, err := ParseBookingStatus("expired")
	assert.Error(t, err)
	st, err := ParseBookingStatus("accepted")
	require.NoError(t, err)
	assert.Equal(t, BookingAccepted, st)
}

func TestRole(t *testing.T) {
	r, err := ParseRole(" Vendor ")
	require.NoError(t, err)
	assert.Equal(t, RoleVendor, r)
	_, err = ParseRole("owner")
	assert.Error(t, err)
	assert.False(t, Role(0).Valid())

	b, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{RoleAdmin})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"admin"}`, string(b))

	var out struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"user"}`), &out))
	assert.Equal(t, RoleUser, out.Role)
	assert.Error(t, json.Unmarshal([]byte(`{"role":"root"}`), &out))
}

func TestParseTransportMode(t *testing.T) {
	m, err := ParseTransportMode("plane")
	require.NoError(t, err)
	assert.Equal(t, TransportPlane, m)
	_, err = ParseTransportMode("ship")
	assert.Error(t, err)
}

func TestDepartureAt(t *testing.T) {
	loc := time.FixedZone("BDT", 6*3600)

	got, err := DepartureAt("2030-05-01", "18:45", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 5, 1, 18, 45, 0, 0, loc), got)

	got, err = DepartureAt("2030-05-01", "18:45:30", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 5, 1, 18, 45, 30, 0, time.UTC), got)

	_, err = DepartureAt("2030-13-01", "18:45", loc)
	assert.Error(t, err)
	_, err = DepartureAt("2030-05-01", "", loc)
	assert.Error(t, err)
}

func TestIsExpiredAndCountdown(t *testing.T) {
	dep := time.Date(2030, 1, 10, 10, 0, 0, 0, time.UTC)

	assert.False(t, IsExpired(dep.Add(-time.Nanosecond), dep))
	assert.True(t, IsExpired(dep, dep))
	assert.True(t, IsExpired(dep.Add(time.Hour), dep))

	cd := CountdownAt(dep.Add(-(2*24*time.Hour + 3*time.Hour + 4*time.Minute + 5*time.Second)), dep)
	assert.Equal(t, Countdown{Days: 2, Hours: 3, Minutes: 4, Seconds: 5}, cd)
	assert.Equal(t, Countdown{Expired: true}, CountdownAt(dep, dep))
}

func TestBookingPayable(t *testing.T) {
	b := Booking{
		Status:        BookingAccepted,
		PaymentStatus: PaymentUnpaid,
		Snapshot:      TicketSnapshot{DepartureDate: "2030-01-10", DepartureTime: "10:00"},
	}
	before := time.Date(2030, 1, 10, 9, 59, 59, 0, time.UTC)
	after := time.Date(2030, 1, 10, 10, 0, 0, 0, time.UTC)

	assert.True(t, b.Payable(before, time.UTC))
	assert.False(t, b.Payable(after, time.UTC))

	b.Status = BookingPending
	assert.False(t, b.Payable(before, time.UTC))

	b.Snapshot.DepartureTime = "bogus"
	b.Status = BookingAccepted
	assert.False(t, b.Payable(before, time.UTC))
}

func TestSnapshot(t *testing.T) {
	tk := Ticket{Title: "Night coach", From: "Dhaka", To: "Sylhet", Transport: TransportBus,
		Price: decimal.RequireFromString("850.50"), DepartureDate: "2030-02-02", DepartureTime: "22:00"}
	s := tk.Snapshot()
	tk.Price = decimal.NewFromInt(1)
	tk.Title = "changed"
	assert.Equal(t, "Night coach", s.Title)
	assert.True(t, decimal.RequireFromString("850.50").Equal(s.UnitPrice))
}

func TestPagination(t *testing.T) {
	assert.Equal(t, Pagination{Total: 0, Page: 1, Limit: 9, TotalPages: 0}, NewPagination(0, 1, 9))
	assert.Equal(t, 2, NewPagination(10, 1, 9).TotalPages)
	assert.Equal(t, 1, NewPagination(9, 1, 9).TotalPages)
	assert.Equal(t, 18, TicketQuery{Page: 3, Limit: 9}.Offset())
	assert.Equal(t, 0, TicketQuery{Page: 0, Limit: 9}.Offset())
}
