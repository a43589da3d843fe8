// Package sdk is the client-side library for the viaticos HTTP API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/celerix-dev/viaticos/internal/logging"
	"github.com/celerix-dev/viaticos/pkg/schema"
)

// DefaultAddr is used when VIATICOS_API_ADDR is unset.
const DefaultAddr = "http://localhost:7002"

// Client talks to a viaticosd instance. It implements Viaticos.
type Client struct {
	base     *url.URL
	http     *http.Client
	log      logging.Logger
	attempts int
	backoff  time.Duration
}

var _ Viaticos = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger reports retried requests to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = logging.NewSlogLogger(l) }
}

// WithRetry sets how many times a request is attempted and the base delay
// between attempts.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		c.attempts = max(attempts, 1)
		c.backoff = backoff
	}
}

// Connect returns a client for the API at addr, e.g. "http://localhost:7002".
func Connect(addr string, opts ...Option) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	base, err := url.Parse(strings.TrimRight(addr, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	c := &Client{
		base:     base,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      logging.Discard(),
		attempts: 3,
		backoff:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FromEnv connects to VIATICOS_API_ADDR, or DefaultAddr when unset.
func FromEnv(opts ...Option) (*Client, error) {
	addr := os.Getenv("VIATICOS_API_ADDR")
	if addr == "" {
		addr = DefaultAddr
	}
	return Connect(addr, opts...)
}

// retryable reports whether a request can be repeated after a transport
// error without risking a duplicate record.
func retryable(method string) bool {
	return method != http.MethodPost
}

// do sends one request and decodes a JSON answer into out when out is not
// nil. Transport failures on idempotent methods are retried with backoff.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// send returns a 2xx response or an error. The caller closes the body.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}

	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()

	attempts := 1
	if retryable(method) {
		attempts = c.attempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * c.backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.log.Warn(ctx, "request failed", "method", method, "path", path, "attempt", i+1, "error", err)
			continue
		}
		if resp.StatusCode >= 300 {
			err := decodeError(resp)
			resp.Body.Close()
			return nil, err
		}
		return resp, nil
	}
	return nil, fmt.Errorf("failed after %d attempts. last error: %w", attempts, lastErr)
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
	}
	return &APIError{Status: resp.StatusCode, Message: body.Error, Fields: body.Fields}
}

// --- Generics Support ---

// Get fetches path and decodes the answer into T.
func Get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var out T
	err := c.do(ctx, http.MethodGet, path, query, nil, &out)
	return out, err
}

func send[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var out T
	err := c.do(ctx, method, path, nil, body, &out)
	return out, err
}

func itemPath(kind string, id int) string {
	return "/api/" + kind + "/" + strconv.Itoa(id)
}

// --- Sync ---

func (c *Client) Status(ctx context.Context) (schema.Status, error) {
	return Get[schema.Status](ctx, c, "/api/status", nil)
}

func (c *Client) Sync(ctx context.Context) (schema.Status, error) {
	return send[schema.Status](ctx, c, http.MethodPost, "/api/sync", nil)
}

func (c *Client) ClearAllData(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/data", nil, nil, nil)
}

// Ping checks that the server answers its health probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// --- Users ---

func (c *Client) Users(ctx context.Context) ([]schema.User, error) {
	return Get[[]schema.User](ctx, c, "/api/users", nil)
}

func (c *Client) User(ctx context.Context, id int) (schema.User, error) {
	return Get[schema.User](ctx, c, itemPath("users", id), nil)
}

func (c *Client) AddUser(ctx context.Context, in schema.NewUser) (schema.User, error) {
	return send[schema.User](ctx, c, http.MethodPost, "/api/users", in)
}

func (c *Client) UpdateUser(ctx context.Context, id int, patch schema.UserPatch) (schema.User, error) {
	return send[schema.User](ctx, c, http.MethodPatch, itemPath("users", id), patch)
}

func (c *Client) DeleteUser(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, itemPath("users", id), nil, nil, nil)
}

// --- Trips ---

func tripQuery(f schema.TripFilter) url.Values {
	q := url.Values{}
	set(q, "search", f.Search)
	set(q, "estado", string(f.Status))
	if f.UserID > 0 {
		q.Set("usuarioId", strconv.Itoa(f.UserID))
	}
	set(q, "sort", f.SortField)
	set(q, "dir", f.SortDir)
	return q
}

func set(q url.Values, key, val string) {
	if val != "" {
		q.Set(key, val)
	}
}

func (c *Client) Trips(ctx context.Context, f schema.TripFilter) ([]schema.Trip, error) {
	return Get[[]schema.Trip](ctx, c, "/api/trips", tripQuery(f))
}

func (c *Client) Trip(ctx context.Context, id int) (schema.Trip, error) {
	return Get[schema.Trip](ctx, c, itemPath("trips", id), nil)
}

func (c *Client) AddTrip(ctx context.Context, in schema.NewTrip) (schema.Trip, error) {
	return send[schema.Trip](ctx, c, http.MethodPost, "/api/trips", in)
}

func (c *Client) UpdateTrip(ctx context.Context, id int, patch schema.TripPatch) (schema.Trip, error) {
	return send[schema.Trip](ctx, c, http.MethodPatch, itemPath("trips", id), patch)
}

func (c *Client) DeleteTrip(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, itemPath("trips", id), nil, nil, nil)
}

// --- Expenses ---

func (c *Client) Expenses(ctx context.Context, f schema.ExpenseFilter) ([]schema.Expense, error) {
	q := url.Values{}
	set(q, "search", f.Search)
	set(q, "categoria", f.Category)
	set(q, "aprobacion", f.Approval)
	if f.TripID > 0 {
		q.Set("viajeId", strconv.Itoa(f.TripID))
	}
	set(q, "sort", f.SortField)
	set(q, "dir", f.SortDir)
	return Get[[]schema.Expense](ctx, c, "/api/expenses", q)
}

// Categories lists the expense categories in use.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	return Get[[]string](ctx, c, "/api/expenses/categories", nil)
}

func (c *Client) Expense(ctx context.Context, id int) (schema.Expense, error) {
	return Get[schema.Expense](ctx, c, itemPath("expenses", id), nil)
}

func (c *Client) AddExpense(ctx context.Context, in schema.NewExpense) (schema.Expense, error) {
	return send[schema.Expense](ctx, c, http.MethodPost, "/api/expenses", in)
}

func (c *Client) UpdateExpense(ctx context.Context, id int, patch schema.ExpensePatch) (schema.Expense, error) {
	return send[schema.Expense](ctx, c, http.MethodPatch, itemPath("expenses", id), patch)
}

func (c *Client) DeleteExpense(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, itemPath("expenses", id), nil, nil, nil)
}

// --- Reports ---

func (c *Client) Dashboard(ctx context.Context) (schema.Summary, error) {
	return Get[schema.Summary](ctx, c, "/api/dashboard", nil)
}

func (c *Client) UserBudget(ctx context.Context, userID int) (schema.Usage, error) {
	return Get[schema.Usage](ctx, c, itemPath("users", userID)+"/budget", nil)
}

func (c *Client) UserSpend(ctx context.Context, userID int) (schema.Spend, error) {
	return Get[schema.Spend](ctx, c, itemPath("users", userID)+"/spend", nil)
}

// ExportTrips streams the TSV export of the filtered trips into w.
func (c *Client) ExportTrips(ctx context.Context, f schema.TripFilter, w io.Writer) error {
	resp, err := c.send(ctx, http.MethodGet, "/api/trips/export", tripQuery(f), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

// --- Notifications ---

func (c *Client) Notifications(ctx context.Context) ([]schema.Notification, error) {
	return Get[[]schema.Notification](ctx, c, "/api/notifications", nil)
}

func (c *Client) Dismiss(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notifications/"+id, nil, nil, nil)
}
