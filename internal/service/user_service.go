package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
	"github.com/iliyamo/travel-ticket-booking/internal/repository"
	"github.com/iliyamo/travel-ticket-booking/internal/session"
	"github.com/iliyamo/travel-ticket-booking/internal/utils"
)

// RegisterInput is the sign-up form.  Role may be "user" (default) or
// "vendor"; admins are only ever promoted by another admin.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=190"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	PhotoURL string `json:"photoURL" validate:"omitempty,url,max=500"`
	Role     string `json:"role" validate:"omitempty,oneof=user vendor"`
}

// ProfileInput carries the editable profile fields.
type ProfileInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	PhotoURL string `json:"photoURL" validate:"omitempty,url,max=500"`
}

// UserService manages accounts, credentials and the admin user tools.
type UserService struct {
	users      UserStore
	bcryptCost int
	log        logrus.FieldLogger
}

func NewUserService(users UserStore, bcryptCost int, log logrus.FieldLogger) *UserService {
	return &UserService{users: users, bcryptCost: bcryptCost, log: log.WithField("component", "user")}
}

// Register creates an account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	if email == "" || in.Password == "" || name == "" {
		return nil, ErrInvalidInput.WithMessage("name, email and password are required")
	}
	role := model.RoleUser
	if strings.TrimSpace(in.Role) != "" {
		r, err := model.ParseRole(in.Role)
		if err != nil {
			return nil, ErrInvalidRole
		}
		role = r
	}
	switch role {
	case model.RoleUser, model.RoleVendor:
	case model.RoleAdmin:
		return nil, ErrInvalidRole
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return nil, ErrInvalidInput.WithMessage(err.Error())
	}
	if err != nil {
		return nil, ErrStorage.Wrap(err)
	}
	u := &model.User{
		Name:         name,
		Email:        email,
		PhotoURL:     strings.TrimSpace(in.PhotoURL),
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, storeErr(err, ErrUserNotFound)
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "role": role.String()}).Info("user registered")
	return u, nil
}

// Authenticate checks credentials.  Unknown emails and wrong passwords
// fail the same way.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, storeErr(err, ErrUserNotFound)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// Session builds the request session of a stored user.
func (s *UserService) Session(u *model.User) session.Session {
	return session.Session{UserID: u.ID, Email: u.Email, Role: u.Role}
}

// Me returns the caller's account.
func (s *UserService) Me(ctx context.Context, sess session.Session) (*model.User, error) {
	if !sess.Valid() {
		return nil, ErrUnauthenticated
	}
	u, err := s.users.GetUserByID(ctx, sess.UserID)
	return u, storeErr(err, ErrUserNotFound)
}

// Lookup loads a user by id without authorisation; used when rotating
// refresh tokens.
func (s *UserService) Lookup(ctx context.Context, id uint64) (*model.User, error) {
	u, err := s.users.GetUserByID(ctx, id)
	return u, storeErr(err, ErrUserNotFound)
}

// UpdateProfile changes the caller's display name and photo.
func (s *UserService) UpdateProfile(ctx context.Context, sess session.Session, in ProfileInput) (*model.User, error) {
	if !sess.Valid() {
		return nil, ErrUnauthenticated
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidInput.WithMessage("name is required")
	}
	if err := s.users.UpdateProfile(ctx, sess.UserID, name, strings.TrimSpace(in.PhotoURL)); err != nil {
		return nil, storeErr(err, ErrUserNotFound)
	}
	return s.Me(ctx, sess)
}

// List returns users filtered by role name and search text; admins only.
func (s *UserService) List(ctx context.Context, sess session.Session, role, query string) ([]model.User, error) {
	if err := requireRole(sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	var r model.Role
	if strings.TrimSpace(role) != "" && role != "all" {
		parsed, err := model.ParseRole(role)
		if err != nil {
			return nil, ErrInvalidInput.WithMessage("unknown role filter")
		}
		r = parsed
	}
	items, err := s.users.ListUsers(ctx, r, query)
	return items, storeErr(err, ErrUserNotFound)
}

// Stats counts accounts per role.
func (s *UserService) Stats(ctx context.Context, sess session.Session) (model.UserStats, error) {
	if err := requireRole(sess, model.RoleAdmin); err != nil {
		return model.UserStats{}, err
	}
	st, err := s.users.UserStats(ctx)
	return st, storeErr(err, ErrUserNotFound)
}

// Get returns any account; admins only.
func (s *UserService) Get(ctx context.Context, sess session.Session, id uint64) (*model.User, error) {
	if err := requireRole(sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	u, err := s.users.GetUserByID(ctx, id)
	return u, storeErr(err, ErrUserNotFound)
}

// target loads another user for an admin action.
func (s *UserService) target(ctx context.Context, sess session.Session, id uint64) (*model.User, error) {
	if err := requireRole(sess, model.RoleAdmin); err != nil {
		return nil, err
	}
	if id == sess.UserID {
		return nil, ErrSelfModification
	}
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, ErrUserNotFound)
	}
	return u, nil
}

// MakeAdmin promotes a user to admin.
func (s *UserService) MakeAdmin(ctx context.Context, sess session.Session, id uint64) (*model.User, error) {
	return s.setRole(ctx, sess, id, model.RoleAdmin)
}

// MakeVendor turns a user into a vendor.
func (s *UserService) MakeVendor(ctx context.Context, sess session.Session, id uint64) (*model.User, error) {
	return s.setRole(ctx, sess, id, model.RoleVendor)
}

func (s *UserService) setRole(ctx context.Context, sess session.Session, id uint64, role model.Role) (*model.User, error) {
	u, err := s.target(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if u.Role != role {
		if err := s.users.SetRole(ctx, id, role); err != nil {
			return nil, storeErr(err, ErrUserNotFound)
		}
		s.log.WithFields(logrus.Fields{"user_id": id, "admin_id": sess.UserID, "role": role.String()}).Info("role changed")
	}
	return s.Lookup(ctx, id)
}

// MarkFraud flags a vendor.  Their tickets drop out of the public
// catalogue and they can no longer list new ones.
func (s *UserService) MarkFraud(ctx context.Context, sess session.Session, id uint64) (*model.User, error) {
	return s.setFraud(ctx, sess, id, true)
}

// UnmarkFraud clears the vendor fraud flag.
func (s *UserService) UnmarkFraud(ctx context.Context, sess session.Session, id uint64) (*model.User, error) {
	return s.setFraud(ctx, sess, id, false)
}

func (s *UserService) setFraud(ctx context.Context, sess session.Session, id uint64, fraud bool) (*model.User, error) {
	u, err := s.target(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	switch u.Role {
	case model.RoleVendor:
	case model.RoleUser, model.RoleAdmin:
		return nil, ErrNotVendor
	}
	if err := s.users.SetFraud(ctx, id, fraud); err != nil {
		return nil, storeErr(err, ErrUserNotFound)
	}
	s.log.WithFields(logrus.Fields{"user_id": id, "admin_id": sess.UserID, "fraud": fraud}).Info("fraud flag changed")
	return s.Lookup(ctx, id)
}

// Delete removes an account that has no booking history.
func (s *UserService) Delete(ctx context.Context, sess session.Session, id uint64) error {
	if _, err := s.target(ctx, sess, id); err != nil {
		return err
	}
	err := s.users.DeleteUser(ctx, id)
	if errors.Is(err, repository.ErrConflict) {
		return ErrUserHasBookings
	}
	if err != nil {
		return storeErr(err, ErrUserNotFound)
	}
	s.log.WithFields(logrus.Fields{"user_id": id, "admin_id": sess.UserID}).Info("user deleted")
	return nil
}
