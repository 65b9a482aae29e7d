package server

import "github.com/mohammad-safakhou/ragserve/internal/search"

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// LoginRequest is the OAuth2 password-form (or JSON) login payload.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	AuthMode    string `json:"auth_mode"`
	Message     string `json:"message,omitempty"`
}

// AuthStatusResponse tells clients whether login is required. When it is
// not, a guest token is included.
type AuthStatusResponse struct {
	AuthConfigured bool   `json:"auth_configured"`
	AccessToken    string `json:"access_token,omitempty"`
	TokenType      string `json:"token_type,omitempty"`
	AuthMode       string `json:"auth_mode"`
	Message        string `json:"message,omitempty"`
}

// HealthResponse reports server and search engine state.
type HealthResponse struct {
	Status           string       `json:"status"`
	AuthMode         string       `json:"auth_mode"`
	APIKeyConfigured bool         `json:"api_key_configured"`
	Whitelist        []string     `json:"whitelist_paths"`
	Search           SearchHealth `json:"search"`
}

// SearchHealth is the search part of HealthResponse.
type SearchHealth struct {
	Enabled bool   `json:"enabled"`
	Index   string `json:"index,omitempty"`
	Count   int64  `json:"count"`
	Error   string `json:"error,omitempty"`
}

// BM25Request is a keyword query.
type BM25Request struct {
	Query  string   `json:"query"`
	TopK   int      `json:"top_k"`
	Fields []string `json:"fields"`
}

// BM25Response wraps ranked hits.
type BM25Response struct {
	Query string       `json:"query"`
	Hits  []search.Hit `json:"hits"`
}

// StatsResponse reports index document count.
type StatsResponse struct {
	Index string `json:"index"`
	Count int64  `json:"count"`
}

// ReindexResponse reports how many chunks a reindex accepted.
type ReindexResponse struct {
	Index   string `json:"index"`
	Indexed int    `json:"indexed"`
}
