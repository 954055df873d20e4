package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/pashurakshak/rakshak/internal/errs"
)

// SignIn exchanges credentials for a bearer token. No credential is attached.
func (c *Client) SignIn(ctx context.Context, in SignInRequest) (SignInResponse, error) {
	var out SignInResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/signin", body: in, public: true}, &out)
	return out, err
}

// SignUp registers an account and returns the backend's confirmation message.
func (c *Client) SignUp(ctx context.Context, in SignUpRequest) (string, error) {
	var msg string
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/signup", body: in, public: true}, &msg)
	return msg, err
}

// ValidateToken asks the backend whether the current credential is still good.
// A rejected credential is reported as (false, nil).
func (c *Client) ValidateToken(ctx context.Context) (bool, error) {
	var ok bool
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/validateToken"}, &ok)
	if errors.Is(err, errs.ErrUnauthorized) {
		return false, nil
	}
	return ok, err
}
