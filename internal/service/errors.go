package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure.  Handlers map kinds to HTTP status
// codes; the Code inside the error is the stable reason shown to clients.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindPrecondition
	KindForbidden
	KindNotFound
	KindConflict
	KindAvailability
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAvailability:
		return "availability"
	case KindExternal:
		return "external"
	}
	return "unknown"
}

// Error is the error type returned by every service operation.  A failed
// operation never leaves partial state behind.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Code so callers can compare against the
// sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// WithMessage returns a copy of e with a more specific message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Validation.
var (
	ErrInvalidInput     = newErr(KindValidation, "invalid_input", "request is invalid")
	ErrInvalidQuantity  = newErr(KindValidation, "invalid_quantity", "quantity must be at least 1")
	ErrInvalidPrice     = newErr(KindValidation, "invalid_price", "price must be greater than zero")
	ErrInvalidDeparture = newErr(KindValidation, "invalid_departure", "departure must be a valid future date and time")
	ErrInvalidRole      = newErr(KindValidation, "invalid_role", "role must be user or vendor")
)

// Preconditions on lifecycle state.
var (
	ErrTicketNotApproved    = newErr(KindPrecondition, "ticket_not_approved", "ticket is not approved")
	ErrTicketExpired        = newErr(KindPrecondition, "ticket_expired", "ticket departure has passed")
	ErrTicketRejected       = newErr(KindPrecondition, "ticket_rejected", "rejected tickets cannot be changed")
	ErrTicketNotPending     = newErr(KindPrecondition, "ticket_not_pending", "ticket is not pending review")
	ErrBookingNotPending    = newErr(KindPrecondition, "booking_not_pending", "booking is not pending")
	ErrBookingNotAccepted   = newErr(KindPrecondition, "booking_not_accepted", "booking is not accepted")
	ErrBookingNotCancelable = newErr(KindPrecondition, "booking_not_cancelable", "booking can no longer be cancelled")
	ErrAlreadyPaid          = newErr(KindPrecondition, "already_paid", "booking is already paid")
	ErrBookingExpired       = newErr(KindPrecondition, "booking_expired", "booking departure has passed")
	ErrPaymentNotConfirmed  = newErr(KindPrecondition, "payment_not_confirmed", "payment was not confirmed by the processor")
	ErrNotVendor            = newErr(KindPrecondition, "not_vendor", "only vendors can be marked as fraud")
)

// Authorization.
var (
	ErrUnauthenticated = newErr(KindForbidden, "unauthenticated", "authentication required")
	ErrForbidden       = newErr(KindForbidden, "forbidden", "operation not allowed for this role")
	ErrNotOwner        = newErr(KindForbidden, "not_owner", "caller does not own this resource")
	ErrFraudVendor     = newErr(KindForbidden, "fraud_vendor", "vendor account is flagged as fraud")
	ErrBadCredentials  = newErr(KindForbidden, "invalid_credentials", "invalid email or password")
	ErrInvalidToken    = newErr(KindForbidden, "invalid_token", "token is invalid or expired")
)

// Lookup and conflicts.
var (
	ErrTicketNotFound      = newErr(KindNotFound, "ticket_not_found", "ticket not found")
	ErrBookingNotFound     = newErr(KindNotFound, "booking_not_found", "booking not found")
	ErrTransactionNotFound = newErr(KindNotFound, "transaction_not_found", "transaction not found")
	ErrUserNotFound        = newErr(KindNotFound, "user_not_found", "user not found")

	ErrEmailTaken       = newErr(KindConflict, "email_taken", "email already registered")
	ErrAdvertiseLimit   = newErr(KindConflict, "advertise_limit", "advertise limit reached")
	ErrStateChanged     = newErr(KindConflict, "state_changed", "resource was modified concurrently")
	ErrUserHasBookings  = newErr(KindConflict, "user_in_use", "user still has bookings")
	ErrSelfModification = newErr(KindConflict, "self_modification", "admins cannot modify their own account here")
)

// Availability and dependencies.
var (
	ErrQuantityExceedsAvailability = newErr(KindAvailability, "quantity_exceeds_availability", "requested quantity exceeds available tickets")
	ErrInsufficientAvailability    = newErr(KindAvailability, "insufficient_availability", "tickets sold out before payment completed")

	ErrPaymentProvider = newErr(KindExternal, "payment_provider_unavailable", "payment processor is unavailable")
	ErrStorage         = newErr(KindExternal, "storage_unavailable", "storage failure")
)

// AsError extracts the service error from err.  Unknown errors come back
// as nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
