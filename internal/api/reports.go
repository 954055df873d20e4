package api

import (
	"context"
	"net/http"
	"strconv"
)

// CreateReport files a new report. Anonymous reporters are allowed: without a
// session no credential is sent.
func (c *Client) CreateReport(ctx context.Context, in ReportRequest) (ReportResponse, error) {
	var out ReportResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/reports", body: in}, &out)
	return out, err
}

// TrackReport looks a report up by its tracking id.
func (c *Client) TrackReport(ctx context.Context, trackingID string) (ReportResponse, error) {
	var out ReportResponse
	err := c.do(ctx, request{method: http.MethodGet, path: "/reports/track/" + escape(trackingID)}, &out)
	return out, err
}

func (c *Client) Reports(ctx context.Context) ([]ReportResponse, error) {
	return c.reportList(ctx, "/reports")
}

// AvailableReports lists reports no NGO has accepted yet.
func (c *Client) AvailableReports(ctx context.Context) ([]ReportResponse, error) {
	return c.reportList(ctx, "/reports/available")
}

func (c *Client) NgoReports(ctx context.Context, ngoID int64) ([]ReportResponse, error) {
	return c.reportList(ctx, "/reports/ngo/"+strconv.FormatInt(ngoID, 10))
}

func (c *Client) WorkerTasks(ctx context.Context, workerID int64) ([]ReportResponse, error) {
	return c.reportList(ctx, "/reports/worker/"+strconv.FormatInt(workerID, 10)+"/tasks")
}

// AcceptReport assigns an available report to an NGO.
func (c *Client) AcceptReport(ctx context.Context, trackingID string, in AcceptRequest) (ReportResponse, error) {
	var out ReportResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/reports/" + escape(trackingID) + "/accept", body: in}, &out)
	return out, err
}

// AssignReport hands an accepted report to one of the NGO's workers.
func (c *Client) AssignReport(ctx context.Context, trackingID string, in AssignRequest) (ReportResponse, error) {
	var out ReportResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/reports/" + escape(trackingID) + "/assign", body: in}, &out)
	return out, err
}

// UpdateStatus sends a single status transition. It is never retried.
func (c *Client) UpdateStatus(ctx context.Context, trackingID, status string) (ReportResponse, error) {
	var out ReportResponse
	err := c.do(ctx, request{method: http.MethodPut, path: "/reports/" + escape(trackingID) + "/status", body: StatusRequest{Status: status}}, &out)
	return out, err
}

func (c *Client) reportList(ctx context.Context, path string) ([]ReportResponse, error) {
	var out []ReportResponse
	err := c.do(ctx, request{method: http.MethodGet, path: path}, &out)
	return out, err
}
