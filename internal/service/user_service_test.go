package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
)

func TestRegister(t *testing.T) {
	h := newHarness(t)

	u, err := h.users.Register(h.ctx, RegisterInput{Name: " Carol ", Email: " Carol@Example.COM ", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", u.Email)
	assert.Equal(t, "Carol", u.Name)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.NotEqual(t, "password1", u.PasswordHash)

	_, err = h.users.Register(h.ctx, RegisterInput{Name: "Carol", Email: "carol@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = h.users.Register(h.ctx, RegisterInput{Name: "Eve", Email: "eve@example.com", Password: "password1", Role: "admin"})
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = h.users.Register(h.ctx, RegisterInput{Name: "Eve", Email: "eve@example.com", Password: "password1", Role: "pilot"})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t)

	u, err := h.users.Authenticate(h.ctx, "ALICE@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, h.alice.UserID, u.ID)

	_, err = h.users.Authenticate(h.ctx, "alice@example.com", "nope")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = h.users.Authenticate(h.ctx, "ghost@example.com", "password1")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestProfile(t *testing.T) {
	h := newHarness(t)
	u, err := h.users.UpdateProfile(h.ctx, h.alice, ProfileInput{Name: "Alice B", PhotoURL: "https://img.example.com/a.png"})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", u.Name)
	assert.Equal(t, "https://img.example.com/a.png", u.PhotoURL)

	_, err = h.users.UpdateProfile(h.ctx, h.alice, ProfileInput{Name: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAdminUserManagement(t *testing.T) {
	h := newHarness(t)

	_, err := h.users.List(h.ctx, h.vendor, "", "")
	assert.ErrorIs(t, err, ErrForbidden)

	vendors, err := h.users.List(h.ctx, h.admin, "vendor", "")
	require.NoError(t, err)
	assert.Len(t, vendors, 2)
	found, err := h.users.List(h.ctx, h.admin, "all", "ALI")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, h.alice.UserID, found[0].ID)

	st, err := h.users.Stats(h.ctx, h.admin)
	require.NoError(t, err)
	assert.Equal(t, model.UserStats{Total: 5, Users: 2, Vendors: 2, Admins: 1}, st)

	u, err := h.users.MakeVendor(h.ctx, h.admin, h.bob.UserID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleVendor, u.Role)

	u, err = h.users.MarkFraud(h.ctx, h.admin, h.bob.UserID)
	require.NoError(t, err)
	assert.True(t, u.IsFraud)
	u, err = h.users.UnmarkFraud(h.ctx, h.admin, h.bob.UserID)
	require.NoError(t, err)
	assert.False(t, u.IsFraud)

	_, err = h.users.MarkFraud(h.ctx, h.admin, h.alice.UserID)
	assert.ErrorIs(t, err, ErrNotVendor)

	u, err = h.users.MakeAdmin(h.ctx, h.admin, h.alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)

	_, err = h.users.MakeVendor(h.ctx, h.admin, h.admin.UserID)
	assert.ErrorIs(t, err, ErrSelfModification)
	_, err = h.users.Get(h.ctx, h.admin, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteUser(t *testing.T) {
	h := newHarness(t)
	tk := h.approvedTicket(t, 100, 5)
	_, err := h.bookings.Create(h.ctx, h.alice, CreateBookingInput{TicketID: tk.ID, Quantity: 1})
	require.NoError(t, err)

	assert.ErrorIs(t, h.users.Delete(h.ctx, h.admin, h.alice.UserID), ErrUserHasBookings)
	// the vendor is pinned by bookings other users made on its ticket
	assert.ErrorIs(t, h.users.Delete(h.ctx, h.admin, h.vendor.UserID), ErrUserHasBookings)
	assert.ErrorIs(t, h.users.Delete(h.ctx, h.admin, h.admin.UserID), ErrSelfModification)
	assert.ErrorIs(t, h.users.Delete(h.ctx, h.bob, h.alice.UserID), ErrForbidden)

	require.NoError(t, h.users.Delete(h.ctx, h.admin, h.bob.UserID))
	_, err = h.users.Get(h.ctx, h.admin, h.bob.UserID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestErrorKinds(t *testing.T) {
	assert.Equal(t, KindAvailability, ErrInsufficientAvailability.Kind)
	assert.Equal(t, "precondition", ErrBookingExpired.Kind.String())

	wrapped := ErrStorage.Wrap(assert.AnError)
	assert.ErrorIs(t, wrapped, ErrStorage)
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.NotErrorIs(t, ErrAlreadyPaid, ErrBookingExpired)
	assert.Nil(t, AsError(assert.AnError))
}
