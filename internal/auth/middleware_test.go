package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func serve(t *testing.T, g *Gate, path string, headers map[string]string) (*httptest.ResponseRecorder, []Decision) {
	t.Helper()
	e := echo.New()
	var seen []Decision
	grp := e.Group("", g.Middleware(func(d Decision) { seen = append(seen, d) }))
	grp.GET("/*", func(c echo.Context) error {
		if info, ok := TokenFromContext(c); ok {
			return c.String(http.StatusOK, info.Subject)
		}
		return c.String(http.StatusOK, "ok")
	})
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddlewareAllowsWithToken(t *testing.T) {
	g := NewGate(GateConfig{AccountsConfigured: true, Validator: newFake()})
	rec, seen := serve(t, g, "/documents", map[string]string{"Authorization": "Bearer user-tok"})
	if rec.Code != http.StatusOK || rec.Body.String() != "alice" {
		t.Fatalf("expected 200 alice, got %d %q", rec.Code, rec.Body.String())
	}
	if len(seen) != 1 || !seen[0].Allowed {
		t.Fatalf("expected one allow decision, got %+v", seen)
	}
}

func TestMiddlewareDeniesWithStatus(t *testing.T) {
	g := NewGate(GateConfig{APIKey: "k", Validator: newFake()})
	rec, _ := serve(t, g, "/documents", map[string]string{HeaderAPIKey: "wrong"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	g = NewGate(GateConfig{AccountsConfigured: true, Validator: newFake()})
	rec, _ = serve(t, g, "/documents", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get(echo.HeaderWWWAuthenticate) != "Bearer" {
		t.Fatalf("expected WWW-Authenticate header on 401")
	}
}

func TestMiddlewareAPIKey(t *testing.T) {
	g := NewGate(GateConfig{APIKey: "k"})
	rec, _ := serve(t, g, "/documents", map[string]string{HeaderAPIKey: "k"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestExtractBearer(t *testing.T) {
	e := echo.New()
	for header, want := range map[string]string{
		"Bearer abc":  "abc",
		"bearer abc":  "abc",
		"Basic abc":   "",
		"Bearer":      "",
		"":            "",
		"Bearer  xyz": "xyz",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		c := e.NewContext(req, httptest.NewRecorder())
		if got := ExtractBearer(c); got != want {
			t.Errorf("ExtractBearer(%q)=%q want %q", header, got, want)
		}
	}
}
