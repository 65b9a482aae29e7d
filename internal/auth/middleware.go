package auth

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HeaderAPIKey carries the static API key.
const HeaderAPIKey = "X-API-Key"

const tokenInfoKey = "token_info"

var authLogger = log.New(log.Writer(), "[AUTH] ", log.LstdFlags)

// Middleware guards routes with the gate. observe, when non-nil, is called
// with every decision.
func (g *Gate) Middleware(observe func(Decision)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := Request{
				Path:        c.Request().URL.Path,
				BearerToken: ExtractBearer(c),
				APIKey:      c.Request().Header.Get(HeaderAPIKey),
			}
			d, err := g.Authorize(c.Request().Context(), req)
			if err != nil {
				authLogger.Printf("token validation failed for %s: %v", req.Path, err)
				return err
			}
			if observe != nil {
				observe(d)
			}
			if !d.Allowed {
				he := echo.NewHTTPError(d.Status, d.Reason)
				if d.Status == http.StatusUnauthorized {
					c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				}
				return he
			}
			if d.Token != nil {
				c.Set(tokenInfoKey, *d.Token)
			}
			return next(c)
		}
	}
}

// TokenFromContext returns the validated token stored by Middleware.
func TokenFromContext(c echo.Context) (TokenInfo, bool) {
	info, ok := c.Get(tokenInfoKey).(TokenInfo)
	return info, ok
}
