// Package api is the REST client of the relay: session endpoints, the
// connection directory and message history.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/valyala/fasthttp"
)

// TokenCookie carries the session token on every authenticated call.
const TokenCookie = "token"

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrEmptyCounterparty = errors.New("counterparty id is empty")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.Code == fasthttp.StatusUnauthorized
}

type Client struct {
	http    *fasthttp.Client
	baseURL string
	timeout time.Duration
	token   string
	log     *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying fasthttp client.
func WithHTTPClient(hc *fasthttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken authenticates every request with the session token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, timeout time.Duration, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		http:    &fasthttp.Client{Name: "codecrush"},
		baseURL: baseURL,
		timeout: timeout,
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the session token the client sends, if any.
func (c *Client) Token() string {
	return c.token
}

// SetToken switches the session token, e.g. after Login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// do sends one JSON request and decodes a 2xx body into out. It returns the
// token cookie the server set, if any. fasthttp has no context support, so
// only the context deadline is honoured once the request is in flight.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if c.token != "" {
		req.Header.SetCookie(TokenCookie, c.token)
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return "", fmt.Errorf("failed to marshal %s %s body: %w", method, path, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	started := time.Now()
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.log.Debug("api call", "method", method, "path", path,
		"status", resp.StatusCode(), "took", time.Since(started))

	code := resp.StatusCode()
	if code < 200 || code >= 300 {
		return "", &StatusError{Method: method, Path: path, Code: code, Body: string(resp.Body())}
	}
	if out != nil && len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return "", fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
	}

	var cookie fasthttp.Cookie
	cookie.SetKey(TokenCookie)
	if resp.Header.Cookie(&cookie) {
		return string(cookie.Value()), nil
	}
	return "", nil
}
