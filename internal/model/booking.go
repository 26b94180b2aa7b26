package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the stored lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingAccepted  BookingStatus = "accepted"
	BookingRejected  BookingStatus = "rejected"
	BookingPaid      BookingStatus = "paid"
	BookingCancelled BookingStatus = "cancelled"
)

// bookingTransitions is the booking state machine.  Terminal states map to
// an empty slice.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingAccepted, BookingRejected, BookingCancelled},
	BookingAccepted:  {BookingPaid, BookingCancelled},
	BookingRejected:  {},
	BookingPaid:      {},
	BookingCancelled: {},
}

// IsValid returns true if the status is a recognised booking status.
func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// CanTransitionTo returns true if moving from s to target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible.
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// ParseBookingStatus converts a string to a BookingStatus.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

// PaymentStatus tracks whether money has been collected for a booking.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// TicketSnapshot is the copy of ticket attributes taken when a booking is
// created.  Later ticket edits never reach it.
type TicketSnapshot struct {
	Title         string          `json:"title"`
	From          string          `json:"from_location"`
	To            string          `json:"to_location"`
	Transport     TransportMode   `json:"transport_type"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	DepartureDate string          `json:"departure_date"`
	DepartureTime string          `json:"departure_time"`
}

// Booking is a user's request to buy Quantity units of a ticket.
//
// Fields:
//  ID              – primary key identifier.
//  UserID          – booking owner.
//  TicketID        – referenced ticket.
//  VendorID        – owner of the ticket at booking time.
//  Snapshot        – ticket fields frozen at creation.
//  Quantity        – requested units, at least one.
//  TotalPrice      – Snapshot.UnitPrice * Quantity, fixed at creation.
//  Status          – lifecycle state.
//  PaymentStatus   – unpaid until the payment is finalised.
//  PaymentIntentID – last payment intent created for this booking.
type Booking struct {
	ID              uint64          `json:"id"`
	UserID          uint64          `json:"user_id"`
	UserName        string          `json:"user_name,omitempty"`
	UserEmail       string          `json:"user_email,omitempty"`
	TicketID        uint64          `json:"ticket_id"`
	VendorID        uint64          `json:"vendor_id"`
	Snapshot        TicketSnapshot  `json:"ticket_snapshot"`
	Quantity        int             `json:"booking_quantity"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Status          BookingStatus   `json:"status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	PaymentIntentID string          `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Departure resolves the snapshot departure in loc.
func (b *Booking) Departure(loc *time.Location) (time.Time, error) {
	return DepartureAt(b.Snapshot.DepartureDate, b.Snapshot.DepartureTime, loc)
}

// Payable reports whether the booking may still be paid at now.  An
// accepted booking past departure stays accepted in storage but is never
// payable again.
func (b *Booking) Payable(now time.Time, loc *time.Location) bool {
	if b.Status != BookingAccepted || b.PaymentStatus == PaymentPaid {
		return false
	}
	dep, err := b.Departure(loc)
	if err != nil {
		return false
	}
	return !IsExpired(now, dep)
}

// VendorRevenue is the vendor dashboard summary.
type VendorRevenue struct {
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	TotalTicketsSold  int             `json:"totalTicketsSold"`
	TotalTicketsAdded int             `json:"totalTicketsAdded"`
}
