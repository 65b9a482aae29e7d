package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/ragserve/internal/auth"
)

const (
	authModeEnabled  = "enabled"
	authModeDisabled = "disabled"
	guestMessage     = "Authentication is disabled. Using guest access."
)

// AuthHandler serves login and auth-status.
type AuthHandler struct {
	Accounts *auth.Accounts
	Tokens   *auth.JWTManager
}

func (a *AuthHandler) Register(e *echo.Echo) {
	e.POST("/login", a.login)
	e.GET("/auth-status", a.status)
}

func (a *AuthHandler) mode() string {
	if a.Accounts.Configured() {
		return authModeEnabled
	}
	return authModeDisabled
}

func (a *AuthHandler) guestToken() (string, error) {
	return a.Tokens.CreateToken("guest", auth.RoleGuest, map[string]any{"auth_mode": authModeDisabled})
}

// Login
//
//	@Summary		Login
//	@Description	Issues a bearer token. Without configured accounts a guest token is returned.
//	@Tags			auth
//	@Accept			x-www-form-urlencoded,json
//	@Produce		json
//	@Param			payload	body		LoginRequest	true	"Login payload"
//	@Success		200		{object}	TokenResponse
//	@Failure		401		{object}	HTTPError
//	@Router			/login [post]
func (a *AuthHandler) login(c echo.Context) error {
	if !a.Accounts.Configured() {
		tok, err := a.guestToken()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, TokenResponse{
			AccessToken: tok, TokenType: "bearer", AuthMode: authModeDisabled, Message: guestMessage,
		})
	}
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || !a.Accounts.Verify(req.Username, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect credentials")
	}
	tok, err := a.Tokens.CreateToken(req.Username, auth.RoleUser, map[string]any{"auth_mode": authModeEnabled})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderAuthorization, "Bearer "+tok)
	return c.JSON(http.StatusOK, TokenResponse{AccessToken: tok, TokenType: "bearer", AuthMode: authModeEnabled})
}

// Auth status
//
//	@Summary	Authentication status
//	@Tags		auth
//	@Produce	json
//	@Success	200	{object}	AuthStatusResponse
//	@Router		/auth-status [get]
func (a *AuthHandler) status(c echo.Context) error {
	if a.Accounts.Configured() {
		return c.JSON(http.StatusOK, AuthStatusResponse{AuthConfigured: true, AuthMode: authModeEnabled})
	}
	tok, err := a.guestToken()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, AuthStatusResponse{
		AccessToken: tok, TokenType: "bearer", AuthMode: authModeDisabled, Message: guestMessage,
	})
}
