package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestParseAccounts(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	a, err := ParseAccounts("admin:admin123, bob:{bcrypt}" + string(hash))
	if err != nil {
		t.Fatalf("ParseAccounts: %v", err)
	}
	if !a.Configured() {
		t.Fatalf("expected accounts configured")
	}
	if !a.Verify("admin", "admin123") || a.Verify("admin", "wrong") {
		t.Fatalf("plain password verification failed")
	}
	if !a.Verify("bob", "hunter2") {
		t.Fatalf("bcrypt password verification failed")
	}
	if a.Verify("carol", "x") {
		t.Fatalf("unknown user verified")
	}
	if got := a.Usernames(); len(got) != 2 || got[0] != "admin" || got[1] != "bob" {
		t.Fatalf("unexpected usernames: %v", got)
	}
}

func TestParseAccountsEmpty(t *testing.T) {
	a, err := ParseAccounts("  ")
	if err != nil {
		t.Fatalf("ParseAccounts: %v", err)
	}
	if a.Configured() {
		t.Fatalf("expected no accounts")
	}
	var nilAccounts *Accounts
	if nilAccounts.Configured() || nilAccounts.Verify("a", "b") {
		t.Fatalf("nil accounts must be unconfigured")
	}
}

func TestParseAccountsErrors(t *testing.T) {
	for _, raw := range []string{"admin", "admin:", ":pw", "a:1,a:2", "a:{bcrypt}notahash"} {
		if _, err := ParseAccounts(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}
