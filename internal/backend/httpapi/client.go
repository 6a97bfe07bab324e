// Package httpapi implements the remote backend as a client of the kboard
// REST API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gmllt/kboard/internal/remote"
)

// StatusError is returned for an unexpected response status.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http = &http.Client{Timeout: d}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Lists(ctx context.Context) ([]remote.ListRecord, error) {
	var out []remote.ListRecord
	if _, err := c.do(ctx, http.MethodGet, "/api/lists", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Cards(ctx context.Context) ([]remote.CardRecord, error) {
	var out []remote.CardRecord
	if _, err := c.do(ctx, http.MethodGet, "/api/cards", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateList(ctx context.Context, title string, position int) (*remote.ListRecord, error) {
	var out remote.ListRecord
	body := map[string]any{"title": title, "position": position}
	status, err := c.do(ctx, http.MethodPost, "/api/lists", body, &out, http.StatusCreated, http.StatusUnprocessableEntity)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnprocessableEntity {
		return nil, nil
	}
	return &out, nil
}

func (c *Client) CreateCard(ctx context.Context, listID, title string) (*remote.CardRecord, error) {
	var out remote.CardRecord
	body := map[string]any{"list_id": listID, "title": title}
	status, err := c.do(ctx, http.MethodPost, "/api/cards", body, &out, http.StatusCreated, http.StatusUnprocessableEntity)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnprocessableEntity {
		c.logger.Debug("Card rejected by server", zap.String("list", listID))
		return nil, nil
	}
	return &out, nil
}

func (c *Client) UpdateCard(ctx context.Context, cardID, title string) error {
	body := map[string]any{"title": title}
	_, err := c.do(ctx, http.MethodPatch, "/api/cards/"+url.PathEscape(cardID), body, nil, http.StatusNoContent)
	return err
}

func (c *Client) MoveCard(ctx context.Context, cardID, listID string, position int) error {
	body := map[string]any{"list_id": listID, "position": position}
	_, err := c.do(ctx, http.MethodPut, "/api/cards/"+url.PathEscape(cardID)+"/position", body, nil, http.StatusNoContent)
	return err
}

func (c *Client) DeleteCard(ctx context.Context, cardID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/cards/"+url.PathEscape(cardID), nil, nil, http.StatusNoContent)
	return err
}

// do sends one request. The response body is decoded into out when the
// status is 200 or 201. A 404 maps to remote.ErrNotFound; any status outside
// accept is a *StatusError.
func (c *Client) do(ctx context.Context, method, path string, in, out any, accept ...int) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("["+method+"] "+path)
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, fmt.Errorf("%s %s: %w", method, path, remote.ErrNotFound)
	}
	accepted := false
	for _, s := range accept {
		if resp.StatusCode == s {
			accepted = true
			break
		}
	}
	if !accepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, &StatusError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(msg)),
		}
	}
	if out != nil && (resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated) {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}
