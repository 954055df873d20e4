package api

import (
	"context"
	"net/http"
	"strconv"
)

func (c *Client) Profile(ctx context.Context) (UserResponse, error) {
	var out UserResponse
	err := c.do(ctx, request{method: http.MethodGet, path: "/users/profile"}, &out)
	return out, err
}

func (c *Client) UpdateProfile(ctx context.Context, in UpdateUserRequest) (UserResponse, error) {
	var out UserResponse
	err := c.do(ctx, request{method: http.MethodPut, path: "/users/profile", body: in}, &out)
	return out, err
}

func (c *Client) ChangePassword(ctx context.Context, in ChangePasswordRequest) error {
	return c.do(ctx, request{method: http.MethodPut, path: "/users/change-password", body: in}, nil)
}

// Users lists every account (admin only).
func (c *Client) Users(ctx context.Context) ([]UserResponse, error) {
	var out []UserResponse
	err := c.do(ctx, request{method: http.MethodGet, path: "/users"}, &out)
	return out, err
}

func (c *Client) User(ctx context.Context, id int64) (UserResponse, error) {
	var out UserResponse
	err := c.do(ctx, request{method: http.MethodGet, path: "/users/" + strconv.FormatInt(id, 10)}, &out)
	return out, err
}

func (c *Client) UsersByRole(ctx context.Context, role string) ([]UserResponse, error) {
	var out []UserResponse
	err := c.do(ctx, request{method: http.MethodGet, path: "/users/role/" + escape(role)}, &out)
	return out, err
}

// ToggleUserStatus flips the enabled flag of an account.
func (c *Client) ToggleUserStatus(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodPut, path: "/users/" + strconv.FormatInt(id, 10) + "/toggle-status"}, nil)
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/users/" + strconv.FormatInt(id, 10)}, nil)
}

func (c *Client) AddRole(ctx context.Context, id int64, role string) error {
	return c.do(ctx, request{method: http.MethodPost, path: rolePath(id, role)}, nil)
}

func (c *Client) RemoveRole(ctx context.Context, id int64, role string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: rolePath(id, role)}, nil)
}

func rolePath(id int64, role string) string {
	return "/users/" + strconv.FormatInt(id, 10) + "/roles/" + escape(role)
}
