package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the immutable record of a completed payment.  Exactly one
// exists per paid booking; rows are never updated after insert.
//
// Fields:
//  ID           – primary key identifier.
//  BookingID    – the paid booking (unique).
//  UserID       – payer.
//  TicketTitle  – copied from the booking snapshot for history views.
//  Amount       – charged amount, equal to the booking total.
//  Currency     – ISO currency code charged by the processor.
//  ProcessorRef – payment intent ID at the processor.
//  CreatedAt    – when the payment was finalised.
type Transaction struct {
	ID           uint64          `json:"id"`
	BookingID    uint64          `json:"booking_id"`
	UserID       uint64          `json:"user_id"`
	TicketTitle  string          `json:"ticket_title"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	ProcessorRef string          `json:"transaction_id"`
	CreatedAt    time.Time       `json:"created_at"`
}
