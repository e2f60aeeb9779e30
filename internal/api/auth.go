package api

import (
	"context"
	"log/slog"

	"github.com/pavelanni/learny/internal/model"
)

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.post(ctx, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account. The backend logs the new user in directly.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.post(ctx, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout tells the backend the token is done and always clears the local
// session, even when the call fails. The backend error is still returned.
func (c *Client) Logout(ctx context.Context) error {
	err := c.post(ctx, "/auth/logout", nil, nil)
	if c.session != nil {
		if cerr := c.session.Clear(); cerr != nil {
			slog.Error("failed to clear session on logout", "error", cerr)
		}
	}
	return err
}

// Validate checks the current token with the backend.
func (c *Client) Validate(ctx context.Context) error {
	return c.get(ctx, "/auth/validate", nil)
}
