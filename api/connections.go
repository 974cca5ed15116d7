package api

import (
	"context"
	"net/url"

	"github.com/karthikraju391/codecrush/models"
	"github.com/valyala/fasthttp"
)

// Connections loads the user's accepted connections.
func (c *Client) Connections(ctx context.Context) ([]models.Contact, error) {
	var resp models.DataResponse[[]models.Contact]
	if _, err := c.do(ctx, fasthttp.MethodGet, "/user/connections", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ReceivedRequests lists interested requests waiting for the user's review.
func (c *Client) ReceivedRequests(ctx context.Context) ([]models.ConnectionRequest, error) {
	var resp models.DataResponse[[]models.ConnectionRequest]
	if _, err := c.do(ctx, fasthttp.MethodGet, "/user/requests/received", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ReviewRequest accepts or rejects a received request.
func (c *Client) ReviewRequest(ctx context.Context, status, requestID string) (models.ConnectionRequest, error) {
	var resp models.DataResponse[models.ConnectionRequest]
	path := "/request/review/" + url.PathEscape(status) + "/" + url.PathEscape(requestID)
	if _, err := c.do(ctx, fasthttp.MethodPost, path, struct{}{}, &resp); err != nil {
		return models.ConnectionRequest{}, err
	}
	return resp.Data, nil
}

// SendRequest marks another user as interested or ignored.
func (c *Client) SendRequest(ctx context.Context, status, userID string) (models.ConnectionRequest, error) {
	var resp models.DataResponse[models.ConnectionRequest]
	path := "/request/send/" + url.PathEscape(status) + "/" + url.PathEscape(userID)
	if _, err := c.do(ctx, fasthttp.MethodPost, path, struct{}{}, &resp); err != nil {
		return models.ConnectionRequest{}, err
	}
	return resp.Data, nil
}
