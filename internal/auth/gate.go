package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
)

// Denial reasons returned to clients.
const (
	ReasonInvalidToken   = "Invalid token. Please login again."
	ReasonNoCredentials  = "No credentials provided. Please login."
	ReasonInvalidAPIKey  = "Invalid API Key"
	ReasonAPIKeyRequired = "API Key required"
	ReasonLoginRequired  = "API Key required or login authentication required."
)

// ErrUnauthorized classifies validator failures that must map to 401.
var ErrUnauthorized = errors.New("unauthorized")

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (TokenInfo, error)
}

// Request carries the credential material of an inbound request.
type Request struct {
	Path        string
	BearerToken string
	APIKey      string
}

// Decision is the outcome of Authorize. Token is set when the request was
// allowed on the strength of a bearer token.
type Decision struct {
	Allowed bool
	Status  int
	Reason  string
	Rule    string
	Token   *TokenInfo
}

func allow(rule string) Decision {
	return Decision{Allowed: true, Status: http.StatusOK, Rule: rule}
}

func deny(rule string, status int, reason string) Decision {
	return Decision{Status: status, Reason: reason, Rule: rule}
}

// GateConfig is the process configuration the gate is built from.
type GateConfig struct {
	WhitelistPaths     string
	APIKey             string
	AccountsConfigured bool
	Validator          TokenValidator
}

// Gate decides whether a request may proceed. It is immutable after
// NewGate and safe for concurrent use.
type Gate struct {
	whitelist          Whitelist
	apiKey             string
	accountsConfigured bool
	validator          TokenValidator
	rules              []rule
}

// rule returns matched=false to hand the request to the next rule.
type rule struct {
	name string
	eval func(ctx context.Context, req Request) (d Decision, matched bool, err error)
}

// NewGate builds a gate from cfg.
func NewGate(cfg GateConfig) *Gate {
	g := &Gate{
		whitelist:          ParseWhitelist(cfg.WhitelistPaths),
		apiKey:             cfg.APIKey,
		accountsConfigured: cfg.AccountsConfigured,
		validator:          cfg.Validator,
	}
	g.rules = []rule{
		{name: "whitelist", eval: g.checkWhitelist},
		{name: "token", eval: g.checkToken},
		{name: "open", eval: g.checkOpen},
		{name: "api_key", eval: g.checkAPIKey},
		{name: "deny", eval: g.denial},
	}
	return g
}

// Whitelist returns the parsed whitelist rules.
func (g *Gate) Whitelist() Whitelist { return g.whitelist }

// AccountsConfigured reports whether login accounts exist.
func (g *Gate) AccountsConfigured() bool { return g.accountsConfigured }

// APIKeyConfigured reports whether a static API key is required.
func (g *Gate) APIKeyConfigured() bool { return g.apiKey != "" }

// Authorize evaluates req against the ranked rules; the first rule that
// matches decides. A non-nil error means the token validator failed for a
// reason other than ErrUnauthorized.
func (g *Gate) Authorize(ctx context.Context, req Request) (Decision, error) {
	for _, r := range g.rules {
		d, matched, err := r.eval(ctx, req)
		if err != nil {
			return Decision{}, err
		}
		if matched {
			return d, nil
		}
	}
	return deny("deny", http.StatusForbidden, ReasonLoginRequired), nil
}

func (g *Gate) checkWhitelist(_ context.Context, req Request) (Decision, bool, error) {
	if g.whitelist.Allows(req.Path) {
		return allow("whitelist"), true, nil
	}
	return Decision{}, false, nil
}

func (g *Gate) checkToken(ctx context.Context, req Request) (Decision, bool, error) {
	if req.BearerToken == "" {
		return Decision{}, false, nil
	}
	if g.validator == nil {
		return deny("token", http.StatusUnauthorized, ReasonInvalidToken), true, nil
	}
	info, err := g.validator.Validate(ctx, req.BearerToken)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return deny("token", http.StatusUnauthorized, ReasonInvalidToken), true, nil
		}
		return Decision{}, false, err
	}
	guest := info.Role == RoleGuest
	if (guest && !g.accountsConfigured) || (!guest && g.accountsConfigured) {
		d := allow("token")
		d.Token = &info
		return d, true, nil
	}
	return deny("token", http.StatusUnauthorized, ReasonInvalidToken), true, nil
}

func (g *Gate) checkOpen(_ context.Context, _ Request) (Decision, bool, error) {
	if !g.accountsConfigured && g.apiKey == "" {
		return allow("open"), true, nil
	}
	return Decision{}, false, nil
}

func (g *Gate) checkAPIKey(_ context.Context, req Request) (Decision, bool, error) {
	if g.apiKey != "" && req.APIKey != "" &&
		subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(g.apiKey)) == 1 {
		return allow("api_key"), true, nil
	}
	return Decision{}, false, nil
}

func (g *Gate) denial(_ context.Context, req Request) (Decision, bool, error) {
	switch {
	case g.accountsConfigured && req.BearerToken == "":
		return deny("deny", http.StatusUnauthorized, ReasonNoCredentials), true, nil
	case req.APIKey != "":
		return deny("deny", http.StatusForbidden, ReasonInvalidAPIKey), true, nil
	case g.apiKey != "":
		return deny("deny", http.StatusForbidden, ReasonAPIKeyRequired), true, nil
	default:
		return deny("deny", http.StatusForbidden, ReasonLoginRequired), true, nil
	}
}
