package service

import (
	"time"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
)

// ExpiryPolicy decides whether a departure has passed.  Departures are
// stored as wall-clock date and time in Loc; Now is injectable for tests.
// Nothing about expiry is persisted: every check recomputes from Now.
type ExpiryPolicy struct {
	Now func() time.Time
	Loc *time.Location
}

// NewExpiryPolicy returns a policy on the real clock in loc.
func NewExpiryPolicy(loc *time.Location) ExpiryPolicy {
	if loc == nil {
		loc = time.UTC
	}
	return ExpiryPolicy{Now: time.Now, Loc: loc}
}

func (p ExpiryPolicy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// Departure resolves a date and time pair in the policy's zone.
func (p ExpiryPolicy) Departure(date, clock string) (time.Time, error) {
	return model.DepartureAt(date, clock, p.Loc)
}

// Expired reports whether the departure has been reached.  Unparseable
// departures count as expired so they can never be booked or paid.
func (p ExpiryPolicy) Expired(date, clock string) bool {
	dep, err := p.Departure(date, clock)
	if err != nil {
		return true
	}
	return model.IsExpired(p.now(), dep)
}

// TicketExpired applies Expired to a ticket's departure.
func (p ExpiryPolicy) TicketExpired(t *model.Ticket) bool {
	return p.Expired(t.DepartureDate, t.DepartureTime)
}

// BookingExpired applies Expired to a booking's snapshot departure.
func (p ExpiryPolicy) BookingExpired(b *model.Booking) bool {
	return p.Expired(b.Snapshot.DepartureDate, b.Snapshot.DepartureTime)
}

// Payable reports whether b can still be paid now.
func (p ExpiryPolicy) Payable(b *model.Booking) bool {
	return b.Payable(p.now(), p.Loc)
}

// Countdown returns the display countdown for a booking.
func (p ExpiryPolicy) Countdown(b *model.Booking) model.Countdown {
	dep, err := b.Departure(p.Loc)
	if err != nil {
		return model.Countdown{Expired: true}
	}
	return model.CountdownAt(p.now(), dep)
}
