package api

import (
	"context"
	"errors"

	"github.com/karthikraju391/codecrush/models"
	"github.com/valyala/fasthttp"
)

var ErrNoToken = errors.New("server did not set a session token")

type LoginRequest struct {
	EmailID  string `json:"emailId"`
	Password string `json:"password"`
}

type SignupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	EmailID   string `json:"emailId"`
	Password  string `json:"password"`
}

// Login authenticates and switches the client to the issued token.
func (c *Client) Login(ctx context.Context, email, password string) (models.User, string, error) {
	var user models.User
	token, err := c.do(ctx, fasthttp.MethodPost, "/login", LoginRequest{EmailID: email, Password: password}, &user)
	if err != nil {
		return models.User{}, "", err
	}
	if token == "" {
		return models.User{}, "", ErrNoToken
	}
	c.SetToken(token)
	return user, token, nil
}

// Signup creates an account; the relay logs the new user in.
func (c *Client) Signup(ctx context.Context, in SignupRequest) (models.User, string, error) {
	var resp models.DataResponse[models.User]
	token, err := c.do(ctx, fasthttp.MethodPost, "/signup", in, &resp)
	if err != nil {
		return models.User{}, "", err
	}
	if token == "" {
		return models.User{}, "", ErrNoToken
	}
	c.SetToken(token)
	return resp.Data, token, nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, fasthttp.MethodPost, "/logout", struct{}{}, nil)
	c.SetToken("")
	return err
}

// Profile returns the user behind the current token.
func (c *Client) Profile(ctx context.Context) (models.User, error) {
	var user models.User
	if _, err := c.do(ctx, fasthttp.MethodGet, "/profile/view", nil, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}
