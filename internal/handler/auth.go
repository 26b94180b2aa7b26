package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
	"github.com/iliyamo/travel-ticket-booking/internal/service"
	"github.com/iliyamo/travel-ticket-booking/internal/utils"
)

// AuthConfig carries the token settings the auth endpoints need.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    AuthConfig
	Users  *service.UserService
	Tokens service.TokenStore
}

func NewAuthHandler(cfg AuthConfig, u *service.UserService, t service.TokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	User    *model.User `json:"user"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"`
}

// issue signs an access token and stores a fresh refresh token for u.
func (h *AuthHandler) issue(c echo.Context, u *model.User) (*authResp, error) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, h.Users.Session(u), h.Cfg.AccessTTLMin)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return nil, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, service.ErrStorage.Wrap(err)
	}
	return &authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Register: create user and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.Register(ctx, req)
	if err != nil {
		return respondError(c, err)
	}
	resp, err := h.issue(c, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	resp, err := h.issue(c, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// redeem validates a refresh token and loads its user.
func (h *AuthHandler) redeem(c echo.Context) (string, *model.User, error) {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return "", nil, service.ErrInvalidInput.WithMessage("refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := requestCtx(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return "", nil, service.ErrInvalidToken
	}
	u, err := h.Users.Lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return "", nil, service.ErrInvalidToken
		}
		return "", nil, err
	}
	return hash, u, nil
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	hash, u, err := h.redeem(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return respondError(c, service.ErrStorage.Wrap(err))
	}
	resp, err := h.issue(c, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// RefreshAccess returns a new access token without rotating the refresh
// token.  The role is re-read from storage so promotions take effect.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	_, u, err := h.redeem(c)
	if err != nil {
		return respondError(c, err)
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, h.Users.Session(u), h.Cfg.AccessTTLMin)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"access": tokenPart{Token: access.Token, Expires: access.Exp}})
}

// Logout revokes the refresh token in the body, or every refresh token of
// the caller when only a bearer token is supplied.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := requestCtx(c)
	defer cancel()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return respondError(c, service.ErrInvalidToken)
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return respondError(c, service.ErrStorage.Wrap(err))
		}
		return c.NoContent(http.StatusNoContent)
	}
	sess := currentSession(c)
	if !sess.Valid() {
		return respondError(c, service.ErrInvalidInput.WithMessage("provide Authorization header or refresh_token"))
	}
	if err := h.Tokens.RevokeAllForUser(ctx, sess.UserID); err != nil {
		return respondError(c, service.ErrStorage.Wrap(err))
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	u, err := h.Users.Me(ctx, currentSession(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateProfile changes the caller's name and photo.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req service.ProfileInput
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	u, err := h.Users.UpdateProfile(ctx, currentSession(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
