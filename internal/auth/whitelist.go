package auth

import "strings"

// WhitelistRule is a path excluded from authentication. Prefix rules come
// from entries ending in "/*"; the suffix is stripped from Pattern.
type WhitelistRule struct {
	Pattern string
	Prefix  bool
}

// Matches reports whether path is covered by the rule.
func (r WhitelistRule) Matches(path string) bool {
	if r.Prefix {
		return strings.HasPrefix(path, r.Pattern)
	}
	return path == r.Pattern
}

// Whitelist is an immutable list of rules.
type Whitelist []WhitelistRule

// ParseWhitelist builds rules from a comma-separated list such as
// "/health,/api/*". Blank entries are skipped.
func ParseWhitelist(raw string) Whitelist {
	var rules Whitelist
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.HasSuffix(entry, "/*") {
			rules = append(rules, WhitelistRule{Pattern: strings.TrimSuffix(entry, "/*"), Prefix: true})
			continue
		}
		rules = append(rules, WhitelistRule{Pattern: entry})
	}
	return rules
}

// Allows reports whether any rule matches path.
func (w Whitelist) Allows(path string) bool {
	for _, r := range w {
		if r.Matches(path) {
			return true
		}
	}
	return false
}
