package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Church is the minimal church reference embedded in most entities.
type Church struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// MemberRef is the member summary embedded in sanctions, contributions and
// transfers.
type MemberRef struct {
	ID        ID     `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// FullName joins first and last names.
func (m *MemberRef) FullName() string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m.Firstname + " " + m.Lastname)
}

// Account is the authenticated user returned by the login endpoint.
type Account struct {
	ID        ID     `json:"id"`
	Email     string `json:"email"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Role      string `json:"role"`
	Church    Church `json:"church"`
}

// LoginResult holds the issued bearer token and the account.
type LoginResult struct {
	Token string  `json:"token"`
	User  Account `json:"user"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	raw, err := c.doJSON(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return LoginResult{}, err
	}
	return DecodeOne[LoginResult](raw)
}

// AssetURL resolves a relative photo path against origin. Absolute URLs are
// returned untouched and an empty path stays empty.
func AssetURL(origin, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return strings.TrimRight(origin, "/") + "/" + strings.TrimLeft(path, "/")
}

// Church fetches a church by id.
func (c *Client) Church(ctx context.Context, id string) (Church, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, "/churches/"+url.PathEscape(id), nil)
	if err != nil {
		return Church{}, err
	}
	return DecodeOne[Church](raw)
}
