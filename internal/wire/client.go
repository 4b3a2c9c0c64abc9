// Package wire talks to a JSON wire protocol endpoint over HTTP. Every
// request runs in the background and settles a fiber.Future with the decoded
// response body.
package wire

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"yqhp/syncbridge/internal/command"
	"yqhp/syncbridge/internal/fiber"
)

// DefaultTimeout is used when NewClient receives a non-positive timeout.
const DefaultTimeout = 30 * time.Second

// Client is a fasthttp client bound to a base URL.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *fasthttp.Client
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			MaxIdleConnDuration: 10 * time.Second,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
		},
	}
}

// BaseURL returns the URL every path is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues a GET request.
func (c *Client) Get(path string) *fiber.Future {
	return c.Do(fasthttp.MethodGet, path, nil)
}

// Post issues a POST request with body encoded as JSON.
func (c *Client) Post(path string, body any) *fiber.Future {
	return c.Do(fasthttp.MethodPost, path, body)
}

// Delete issues a DELETE request.
func (c *Client) Delete(path string) *fiber.Future {
	return c.Do(fasthttp.MethodDelete, path, nil)
}

// Do issues a request in the background. Responses with a status of 400 or
// above reject the future with the body's value as the reason.
func (c *Client) Do(method, path string, body any) *fiber.Future {
	fut := fiber.NewFuture()
	go func() {
		res, err := c.do(method, path, body)
		if err != nil {
			fut.Reject(err)
			return
		}
		fut.Resolve(res)
	}()
	return fut
}

func (c *Client) do(method, path string, body any) (map[string]any, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(data)
	}

	if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	var out map[string]any
	if raw := resp.Body(); len(raw) > 0 {
		if err := sonic.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("%s %s: decode body: %w", method, path, err)
		}
	}
	if resp.StatusCode() >= fasthttp.StatusBadRequest {
		return nil, fmt.Errorf("%s %s: status %d: %v", method, path, resp.StatusCode(), out["value"])
	}
	return out, nil
}

// Commands exposes the client as a command surface: get(path),
// post(path, body) and delete(path).
func (c *Client) Commands() map[string]command.Func {
	return command.Map{
		"get": func(ctx context.Context, args ...any) (any, error) {
			path, err := pathArg("get", args)
			if err != nil {
				return nil, err
			}
			return c.Get(path), nil
		},
		"post": func(ctx context.Context, args ...any) (any, error) {
			path, err := pathArg("post", args)
			if err != nil {
				return nil, err
			}
			var body any
			if len(args) > 1 {
				body = args[1]
			}
			return c.Post(path, body), nil
		},
		"delete": func(ctx context.Context, args ...any) (any, error) {
			path, err := pathArg("delete", args)
			if err != nil {
				return nil, err
			}
			return c.Delete(path), nil
		},
	}
}

// Field returns a mapper extracting name from a decoded body, for use with
// fiber.Future.Map.
func Field(name string) func(any) (any, error) {
	return func(v any) (any, error) {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected body %T", v)
		}
		return m[name], nil
	}
}

func pathArg(name string, args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%s expects a path", name)
	}
	path, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("%s expects a string path, got %T", name, args[0])
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path, nil
}
