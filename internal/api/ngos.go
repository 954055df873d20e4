package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// NGOs lists active, approved NGOs.
func (c *Client) NGOs(ctx context.Context) ([]NGOResponse, error) {
	return c.ngoList(ctx, "/ngos", nil)
}

// AllNGOs lists every NGO regardless of moderation state (admin only).
func (c *Client) AllNGOs(ctx context.Context) ([]NGOResponse, error) {
	return c.ngoList(ctx, "/ngos/all", nil)
}

func (c *Client) PendingNGOs(ctx context.Context) ([]NGOResponse, error) {
	return c.ngoList(ctx, "/ngos/pending", nil)
}

// NearbyNGOs searches around a point; radius is in degrees as the backend expects.
func (c *Client) NearbyNGOs(ctx context.Context, lat, lon, radius float64) ([]NGOResponse, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(radius, 'f', -1, 64))
	return c.ngoList(ctx, "/ngos/nearby", q)
}

func (c *Client) NGO(ctx context.Context, id int64) (NGOResponse, error) {
	var out NGOResponse
	err := c.do(ctx, request{method: http.MethodGet, path: ngoPath(id)}, &out)
	return out, err
}

func (c *Client) ApproveNGO(ctx context.Context, id int64) (NGOResponse, error) {
	var out NGOResponse
	err := c.do(ctx, request{method: http.MethodPut, path: ngoPath(id) + "/approve"}, &out)
	return out, err
}

func (c *Client) RejectNGO(ctx context.Context, id int64, reason string) (NGOResponse, error) {
	var out NGOResponse
	err := c.do(ctx, request{method: http.MethodPut, path: ngoPath(id) + "/reject", body: RejectRequest{Reason: reason}}, &out)
	return out, err
}

func (c *Client) DeactivateNGO(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: ngoPath(id)}, nil)
}

func (c *Client) AddWorker(ctx context.Context, ngoID int64, in AddWorkerRequest) (UserResponse, error) {
	var out UserResponse
	err := c.do(ctx, request{method: http.MethodPost, path: ngoPath(ngoID) + "/workers", body: in}, &out)
	return out, err
}

func (c *Client) Workers(ctx context.Context, ngoID int64) ([]UserResponse, error) {
	var out []UserResponse
	err := c.do(ctx, request{method: http.MethodGet, path: ngoPath(ngoID) + "/workers"}, &out)
	return out, err
}

func (c *Client) ngoList(ctx context.Context, path string, q url.Values) ([]NGOResponse, error) {
	var out []NGOResponse
	err := c.do(ctx, request{method: http.MethodGet, path: path, query: q}, &out)
	return out, err
}

func ngoPath(id int64) string { return "/ngos/" + strconv.FormatInt(id, 10) }
