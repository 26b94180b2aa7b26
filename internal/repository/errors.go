// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services to distinguish between different failure scenarios without
// inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist (or is
// soft deleted).
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state, such as the advertise limit being reached.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned on duplicate registration.
var ErrEmailExists = errors.New("email already exists")

// ErrInsufficientAvailability is returned by the payment ledger when the
// ticket no longer has enough units for the booking being paid.
var ErrInsufficientAvailability = errors.New("insufficient availability")

// ErrStateChanged is returned when a conditional update finds the row no
// longer in the expected state (e.g. booking already paid).
var ErrStateChanged = errors.New("state changed")

// isDuplicateKey reports whether err is a MySQL 1062 duplicate entry error.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// isForeignKeyViolation reports whether err is MySQL 1451 (row still
// referenced by a child table).
func isForeignKeyViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1451
}
