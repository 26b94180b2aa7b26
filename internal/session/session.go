// Package session carries the authenticated caller through a request.
// The auth middleware builds a Session from the access token and stores it
// in the request context; services receive it as an explicit argument.
package session

import (
	"context"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
)

// Session is the identity of the caller for one request.
type Session struct {
	UserID uint64
	Email  string
	Role   model.Role
}

// Valid reports whether the session names a real user with a known role.
func (s Session) Valid() bool {
	return s.UserID != 0 && s.Role.Valid()
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok && s.Valid()
}
