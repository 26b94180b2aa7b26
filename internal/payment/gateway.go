// Package payment abstracts the external card processor.  The booking
// flow only needs three calls: create an intent for a booking amount, read
// an intent back to verify the client-side confirmation, and refund an
// intent whose booking could not be finalised.
package payment

import (
	"context"
	"errors"
)

// IntentStatus mirrors the processor's payment intent lifecycle.  Only
// StatusSucceeded means money was captured.
type IntentStatus string

const (
	StatusRequiresPaymentMethod IntentStatus = "requires_payment_method"
	StatusRequiresConfirmation  IntentStatus = "requires_confirmation"
	StatusRequiresAction        IntentStatus = "requires_action"
	StatusProcessing            IntentStatus = "processing"
	StatusSucceeded             IntentStatus = "succeeded"
	StatusCanceled              IntentStatus = "canceled"
)

// Intent is the processor-side view of a payment attempt.  Amounts are in
// the currency's minor unit.  A refund leaves Status at succeeded, so
// AmountRefunded is what tells a returned charge apart.
type Intent struct {
	ID             string
	ClientSecret   string
	Amount         int64
	AmountRefunded int64
	Currency       string
	Status         IntentStatus
	Metadata       map[string]string
}

// IntentRequest describes a new payment attempt.
type IntentRequest struct {
	Amount   int64
	Currency string
	Metadata map[string]string
}

// Gateway is implemented by every processor backend.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	Refund(ctx context.Context, intentID string) error
}

// ErrIntentNotFound is returned when the processor does not know the id.
var ErrIntentNotFound = errors.New("payment intent not found")
