package remote

import (
	"context"
	"net/http"

	"mealsync/internal/shared"
)

// User is the account returned by the auth endpoints.
type User struct {
	ID    shared.ID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name,omitempty"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.Do(ctx, http.MethodPost, "/auth/login", credentials{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, &shared.Error{Kind: shared.KindUnknown, Op: "POST /auth/login", Message: "response carried no token"}
	}
	return &resp, nil
}

// Register creates an account and returns its token.
func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	body := credentials{Email: email, Password: password, Name: name}
	if err := c.Do(ctx, http.MethodPost, "/auth/register", body, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, &shared.Error{Kind: shared.KindUnknown, Op: "POST /auth/register", Message: "response carried no token"}
	}
	return &resp, nil
}

// Verify checks the current token and returns its user.
func (c *Client) Verify(ctx context.Context) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.Do(ctx, http.MethodGet, "/auth/verify", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}
