// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingPaidQueue is the durable queue carrying BookingPaidEvent.
const BookingPaidQueue = "booking.paid"

// BookingPaidEvent is published once a booking payment is finalised.  It
// carries enough of the booking snapshot for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
type BookingPaidEvent struct {
	BookingID     uint64 `json:"booking_id"`
	TransactionID uint64 `json:"transaction_id"`
	UserID        uint64 `json:"user_id"`
	VendorID      uint64 `json:"vendor_id"`
	TicketID      uint64 `json:"ticket_id"`
	Title         string `json:"title"`
	Route         string `json:"route"`
	Transport     string `json:"transport_type"`
	Departure     string `json:"departure"`
	Quantity      int    `json:"quantity"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	ProcessorRef  string `json:"processor_ref"`
	PaidAt        string `json:"paid_at"`
}
