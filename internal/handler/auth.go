package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/accounts"
	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/authz"
	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
	"github.com/iliyamo/cinema-ticketing/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg          config.Config
	Accounts     *accounts.Service
	AccountStore repository.AccountStore
	Tokens       repository.TokenStore
}

func NewAuthHandler(cfg config.Config, svc *accounts.Service, store repository.AccountStore, tokens repository.TokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Accounts: svc, AccountStore: store, Tokens: tokens}
}

// ----- DTOs -----

type credentialsReq struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	Account accountResp `json:"account"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"`
}

// issue creates an access/refresh pair and stores the refresh hash.
func (h *AuthHandler) issue(ctx context.Context, a model.Account) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, a.ID, a.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, a.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		Account: toAccountResp(a),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Register creates an account of the given kind.  Self-registration (an
// anonymous client) receives a token pair right away; an admin creating an
// account receives the new account with its ETag.
func (h *AuthHandler) Register(kind authz.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req credentialsReq
		if err := bind(c, &req); err != nil {
			return respondError(c, err)
		}
		ctx, cancel := requestContext(c)
		defer cancel()

		actor := middleware.ActorFrom(c)
		a, tok, err := h.Accounts.Register(ctx, actor, kind, req.Login, req.Password)
		if err != nil {
			return respondError(c, err)
		}
		setETag(c, tok)
		if !actor.IsAnonymous() {
			return c.JSON(http.StatusCreated, toAccountResp(a))
		}
		resp, err := h.issue(ctx, a)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusCreated, resp)
	}
}

// Login verifies credentials of the given kind and returns a new pair.
func (h *AuthHandler) Login(kind authz.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req credentialsReq
		if err := bind(c, &req); err != nil {
			return respondError(c, err)
		}
		if strings.TrimSpace(req.Login) == "" || req.Password == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "login/password required"})
		}
		ctx, cancel := requestContext(c)
		defer cancel()

		a, err := h.Accounts.Authenticate(ctx, kind, req.Login, req.Password)
		if err != nil {
			return respondError(c, err)
		}
		resp, err := h.issue(ctx, a)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// refreshOwner validates a raw refresh token and loads its active owner.
func (h *AuthHandler) refreshOwner(ctx context.Context, raw string) (model.Account, string, error) {
	hash := utils.HashRefreshRaw(raw)
	id, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return model.Account{}, "", err
	}
	a, err := h.AccountStore.GetByID(ctx, id)
	if err != nil {
		return model.Account{}, "", err
	}
	if !a.Active {
		return model.Account{}, "", apperr.ErrAccountInactive
	}
	return a, hash, nil
}

func bindRefresh(c echo.Context) (string, bool) {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return "", false
	}
	raw := strings.TrimSpace(req.RefreshToken)
	return raw, raw != ""
}

func (h *AuthHandler) invalidRefresh(c echo.Context, err error) error {
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrAccountInactive) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	return respondError(c, err)
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw, ok := bindRefresh(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	a, hash, err := h.refreshOwner(ctx, raw)
	if err != nil {
		return h.invalidRefresh(c, err)
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return respondError(c, err)
	}
	resp, err := h.issue(ctx, a)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// RefreshAccess returns a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	raw, ok := bindRefresh(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	a, _, err := h.refreshOwner(ctx, raw)
	if err != nil {
		return h.invalidRefresh(c, err)
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, a.ID, a.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes one refresh token when the body carries it; otherwise an
// authenticated caller is logged out of every session.
func (h *AuthHandler) Logout(c echo.Context) error {
	raw, hasRefresh := bindRefresh(c)
	actor := middleware.ActorFrom(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	switch {
	case hasRefresh:
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return h.invalidRefresh(c, err)
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	case !actor.IsAnonymous():
		if err := h.Tokens.RevokeAllForAccount(ctx, actor.ID); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
}

// Me returns the caller's identity as carried by the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	a := middleware.ActorFrom(c)
	return c.JSON(http.StatusOK, echo.Map{
		"account_id": a.ID,
		"role":       a.Role,
	})
}
