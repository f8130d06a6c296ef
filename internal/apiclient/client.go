// Package apiclient is a typed client for the remote users / groups /
// payments / attendance API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmynk/paytrack/internal/metrics"
	"github.com/mmynk/paytrack/internal/models"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 8 << 20

// Fallback messages used when the server gives no error text.
const (
	MsgLoginFailed    = "Login failed"
	MsgLoadGroups     = "Failed to load groups"
	MsgLoadUsers      = "Failed to load users"
	MsgLoadPayments   = "Failed to load payments"
	MsgMarkPaid       = "Failed to mark as paid"
	MsgMarkUnpaid     = "Failed to mark as unpaid"
	MsgSendMessage    = "Failed to send message"
	defaultAPITimeout = 15 * time.Second
)

// TokenFunc returns the bearer token for a request, or "" for none.
type TokenFunc func(ctx context.Context) string

// Client talks to the remote API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenFunc
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithToken sets the source of the bearer token.
func WithToken(fn TokenFunc) Option {
	return func(c *Client) { c.token = fn }
}

// WithMetrics instruments the client's transport.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a client for the API rooted at baseURL (e.g. "http://localhost:5000/api").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultAPITimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics != nil {
		c.httpClient.Transport = c.metrics.InstrumentTransport(c.httpClient.Transport)
	}
	return c
}

// BaseURL returns the API root the client was configured with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// PaymentRequest is the body of the mark paid / mark unpaid calls.
type PaymentRequest struct {
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Month   string `json:"month"`
	Year    int    `json:"year,string"`
}

type messageRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// Login exchanges admin credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/admin/login", loginRequest{username, password}, &resp, MsgLoginFailed); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", ErrNoToken
	}
	return resp.Token, nil
}

// ListGroups returns every group.
func (c *Client) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := c.do(ctx, http.MethodGet, "/groups", nil, &groups, MsgLoadGroups); err != nil {
		return nil, err
	}
	return groups, nil
}

// ListUsers returns every user, across all groups.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users, MsgLoadUsers); err != nil {
		return nil, err
	}
	return users, nil
}

// ListPayments returns the payment history of every user, keyed by user ID.
func (c *Client) ListPayments(ctx context.Context) (models.Payments, error) {
	var payments models.Payments
	if err := c.do(ctx, http.MethodGet, "/payments", nil, &payments, MsgLoadPayments); err != nil {
		return nil, err
	}
	if payments == nil {
		payments = models.Payments{}
	}
	return payments, nil
}

// MarkPaid records a payment for the request's month and year.
func (c *Client) MarkPaid(ctx context.Context, req PaymentRequest) error {
	return c.do(ctx, http.MethodPost, "/payments/paid", req, nil, MsgMarkPaid)
}

// MarkUnpaid records the request's month and year as unpaid.
func (c *Client) MarkUnpaid(ctx context.Context, req PaymentRequest) error {
	return c.do(ctx, http.MethodPost, "/payments/unpaid", req, nil, MsgMarkUnpaid)
}

// SendMessage delivers one message to one user through the attendance endpoint.
func (c *Client) SendMessage(ctx context.Context, userID, message string) error {
	return c.do(ctx, http.MethodPost, "/attendance", messageRequest{userID, message}, nil, MsgSendMessage)
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// do performs one JSON round trip. out may be nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any, fallback string) error {
	op := method + " " + path

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if token := c.token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("API request failed", "op", op, "error", err)
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	slog.Debug("API request completed",
		"op", op,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	serverMsg := errorMessage(data)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := serverMsg
		if msg == "" {
			msg = fallback
		}
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if serverMsg != "" {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: serverMsg}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// errorMessage extracts the "error" text from an object body.
// Array bodies and non-JSON bodies yield "".
func errorMessage(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return ""
	}
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ""
	}
	return strings.TrimSpace(env.Error)
}
