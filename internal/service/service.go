// Package service implements the booking marketplace use cases on top of
// the store interfaces in store.go.  Every operation takes the caller's
// session explicitly and authorises it with an exhaustive match on the
// role; failures are returned as *Error values.
package service

import (
	"errors"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
	"github.com/iliyamo/travel-ticket-booking/internal/repository"
	"github.com/iliyamo/travel-ticket-booking/internal/session"
)

// requireRole admits only sessions holding one of roles.
func requireRole(sess session.Session, roles ...model.Role) error {
	if !sess.Valid() {
		return ErrUnauthenticated
	}
	for _, r := range roles {
		if sess.Role == r {
			return nil
		}
	}
	return ErrForbidden
}

// storeErr translates repository sentinels into service errors.  notFound
// names the missing resource.
func storeErr(err error, notFound *Error) error {
	switch {
	case err == nil:
		return nil
	case AsError(err) != nil:
		return err
	case errors.Is(err, repository.ErrNotFound):
		return notFound
	case errors.Is(err, repository.ErrForbidden):
		return ErrNotOwner
	case errors.Is(err, repository.ErrEmailExists):
		return ErrEmailTaken
	case errors.Is(err, repository.ErrInsufficientAvailability):
		return ErrInsufficientAvailability
	case errors.Is(err, repository.ErrStateChanged):
		return ErrStateChanged
	case errors.Is(err, repository.ErrConflict):
		return ErrStateChanged.Wrap(err)
	}
	return ErrStorage.Wrap(err)
}
