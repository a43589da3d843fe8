// Package sheets reads the viaticos spreadsheet through the Google Sheets v4
// values API and pushes local changes to an optional Apps Script webhook.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/celerix-dev/viaticos/internal/logging"
	"golang.org/x/time/rate"
)

// Sheet ranges holding each collection, header row excluded.
const (
	UsersRange    = "Usuarios!A2:F"
	TripsRange    = "Viajes!A2:J"
	ExpensesRange = "Gastos!A2:H"
)

// Options configures a Client. Zero values pick sensible defaults.
type Options struct {
	APIKey            string
	SheetID           string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            logging.Logger
	Now               func() time.Time
}

// Client is a read-only Sheets values client.
type Client struct {
	apiKey  string
	sheetID string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     logging.Logger
	now     func() time.Time
}

// ValueRange is one range of a batch read.
type ValueRange struct {
	Range  string     `json:"range"`
	Values [][]string `json:"values"`
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://sheets.googleapis.com/v4/spreadsheets"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		apiKey:  strings.TrimSpace(opts.APIKey),
		sheetID: opts.SheetID,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    opts.HTTPClient,
		limiter: rate.NewLimiter(limit, 1),
		log:     opts.Logger.With("component", "sheets"),
		now:     opts.Now,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// ReadRange returns the rows of a single A1 range, or no rows when the
// range is empty.
func (c *Client) ReadRange(ctx context.Context, rng string) ([][]string, error) {
	if !c.Configured() {
		return nil, errMissingAPIKey
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	endpoint := fmt.Sprintf("%s/%s/values/%s?%s", c.baseURL, url.PathEscape(c.sheetID), url.PathEscape(rng), q.Encode())

	var resp rawValueRange
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.rows(), nil
}

// ReadMultipleRanges reads several ranges in one request. The result has one
// entry per requested range, in request order.
func (c *Client) ReadMultipleRanges(ctx context.Context, ranges []string) ([]ValueRange, error) {
	if !c.Configured() {
		return nil, errMissingAPIKey
	}

	q := url.Values{}
	for _, r := range ranges {
		q.Add("ranges", r)
	}
	q.Set("key", c.apiKey)
	endpoint := fmt.Sprintf("%s/%s/values:batchGet?%s", c.baseURL, url.PathEscape(c.sheetID), q.Encode())

	var resp struct {
		ValueRanges []rawValueRange `json:"valueRanges"`
	}
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	out := make([]ValueRange, len(ranges))
	for i, r := range ranges {
		out[i].Range = r
		if i < len(resp.ValueRanges) {
			out[i].Values = resp.ValueRanges[i].rows()
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sheets rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	start := c.now()
	res, err := c.http.Do(req)
	if err != nil {
		c.log.Error(ctx, "sheets request failed", "error", err)
		return fmt.Errorf("sheets request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read sheets response: %w", err)
	}
	c.log.Debug(ctx, "sheets response", "status", res.StatusCode, "elapsed", c.now().Sub(start))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		reqErr := &RequestError{Status: res.StatusCode, Message: http.StatusText(res.StatusCode)}
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			reqErr.Message = apiErr.Error.Message
		}
		c.log.Error(ctx, "sheets request rejected", "status", reqErr.Status, "message", reqErr.Message)
		return reqErr
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode sheets response: %w", err)
	}
	return nil
}

// rawValueRange accepts any JSON scalar in a cell; unformatted reads return
// numbers and booleans rather than strings.
type rawValueRange struct {
	Range  string  `json:"range"`
	Values [][]any `json:"values"`
}

func (r rawValueRange) rows() [][]string {
	out := make([][]string, len(r.Values))
	for i, row := range r.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = cellString(v)
		}
		out[i] = cells
	}
	return out
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
