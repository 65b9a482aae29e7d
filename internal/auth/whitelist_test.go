package auth

import "testing"

func TestParseWhitelist(t *testing.T) {
	w := ParseWhitelist(" /health , /api/*,, /docs")
	if len(w) != 3 {
		t.Fatalf("expected 3 rules, got %d: %+v", len(w), w)
	}
	if w[0] != (WhitelistRule{Pattern: "/health"}) {
		t.Fatalf("unexpected first rule: %+v", w[0])
	}
	if w[1] != (WhitelistRule{Pattern: "/api", Prefix: true}) {
		t.Fatalf("expected /api prefix rule, got %+v", w[1])
	}
}

func TestWhitelistAllows(t *testing.T) {
	w := ParseWhitelist("/health,/api/*")
	cases := map[string]bool{
		"/health":       true,
		"/health/":      false,
		"/healthz":      false,
		"/api":          true,
		"/api/version":  true,
		"/api/tags/x/y": true,
		"/query":        false,
		"":              false,
	}
	for path, want := range cases {
		if got := w.Allows(path); got != want {
			t.Errorf("Allows(%q)=%v want %v", path, got, want)
		}
	}
}

func TestEmptyWhitelist(t *testing.T) {
	if w := ParseWhitelist(""); len(w) != 0 || w.Allows("/") {
		t.Fatalf("empty whitelist must not allow anything: %+v", w)
	}
}
