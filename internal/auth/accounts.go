package auth

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const bcryptPrefix = "{bcrypt}"

// Accounts maps usernames to bcrypt password hashes.
type Accounts struct {
	hashes map[string][]byte
}

// ParseAccounts reads "user:password,user2:{bcrypt}$2a$..." entries.
// Plain passwords are hashed on load.
func ParseAccounts(raw string) (*Accounts, error) {
	a := &Accounts{hashes: make(map[string][]byte)}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		user, pass, ok := strings.Cut(entry, ":")
		user = strings.TrimSpace(user)
		if !ok || user == "" || pass == "" {
			return nil, fmt.Errorf("invalid account entry %q: expected user:password", user)
		}
		if _, dup := a.hashes[user]; dup {
			return nil, fmt.Errorf("duplicate account %q", user)
		}
		if strings.HasPrefix(pass, bcryptPrefix) {
			hash := []byte(strings.TrimPrefix(pass, bcryptPrefix))
			if _, err := bcrypt.Cost(hash); err != nil {
				return nil, fmt.Errorf("account %q: bad bcrypt hash: %w", user, err)
			}
			a.hashes[user] = hash
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", user, err)
		}
		a.hashes[user] = hash
	}
	return a, nil
}

// Configured reports whether at least one account exists.
func (a *Accounts) Configured() bool {
	return a != nil && len(a.hashes) > 0
}

// Verify checks password for user.
func (a *Accounts) Verify(user, password string) bool {
	if a == nil {
		return false
	}
	hash, ok := a.hashes[user]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// Usernames returns the configured usernames, sorted.
func (a *Accounts) Usernames() []string {
	if a == nil {
		return nil
	}
	out := make([]string, 0, len(a.hashes))
	for u := range a.hashes {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
