// CLAUDE:SUMMARY Google Sheets v4 REST client (resty + service-account oauth2): replace range, update one column, fetch values.
// Package sheets syncs result tables with a Google spreadsheet through the
// Sheets v4 REST API, authenticated with a service-account key.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scope is the OAuth scope needed for read/write access.
const Scope = "https://www.googleapis.com/auth/spreadsheets"

// ErrColumnNotFound is returned by UpdateColumn for an unknown header.
var ErrColumnNotFound = errors.New("sheets: column not found")

// Config configures a Client.
type Config struct {
	SpreadsheetID string
	// Range is the A1 range or sheet name replaced and fetched. Default "Sheet1".
	Range string
	// CredentialsFile is the service-account JSON key.
	CredentialsFile string
	// BaseURL defaults to the public Sheets endpoint.
	BaseURL string
	// HTTPClient overrides the authenticated client (tests).
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

func (c *Config) defaults() {
	if c.Range == "" {
		c.Range = "Sheet1"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://sheets.googleapis.com/v4"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client talks to one spreadsheet.
type Client struct {
	cfg  Config
	http *resty.Client
}

// New builds a Client. Without HTTPClient, the service-account key is read
// from CredentialsFile.
func New(ctx context.Context, cfg Config) (*Client, error) {
	cfg.defaults()
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("sheets: spreadsheet id required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("sheets: read credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, Scope)
		if err != nil {
			return nil, fmt.Errorf("sheets: parse credentials: %w", err)
		}
		hc = oauth2.NewClient(context.WithoutCancel(ctx), creds.TokenSource)
	}

	rc := resty.NewWithClient(hc).
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{cfg: cfg, http: rc}, nil
}

// valueRange is the Sheets ValueRange resource.
type valueRange struct {
	Range          string     `json:"range,omitempty"`
	MajorDimension string     `json:"majorDimension,omitempty"`
	Values         [][]string `json:"values"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) check(op string, res *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("sheets: %s: %w", op, err)
	}
	if res.IsError() {
		if e, ok := res.Error().(*apiError); ok && e.Error.Message != "" {
			return fmt.Errorf("sheets: %s: %d %s", op, res.StatusCode(), e.Error.Message)
		}
		return fmt.Errorf("sheets: %s: http %d", op, res.StatusCode())
	}
	return nil
}

func (c *Client) req(ctx context.Context, rng string) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetError(&apiError{}).
		SetPathParams(map[string]string{"id": c.cfg.SpreadsheetID, "range": rng})
}

// Clear empties rng.
func (c *Client) Clear(ctx context.Context, rng string) error {
	res, err := c.req(ctx, rng).
		SetBody(map[string]any{}).
		Post("/spreadsheets/{id}/values/{range}:clear")
	return c.check("clear", res, err)
}

// Update writes rows into rng as RAW values.
func (c *Client) Update(ctx context.Context, rng string, rows [][]string) error {
	res, err := c.req(ctx, rng).
		SetQueryParam("valueInputOption", "RAW").
		SetBody(valueRange{Range: rng, MajorDimension: "ROWS", Values: rows}).
		Put("/spreadsheets/{id}/values/{range}")
	return c.check("update", res, err)
}

// Replace clears the configured range and writes rows (header first).
func (c *Client) Replace(ctx context.Context, rows [][]string) error {
	if err := c.Clear(ctx, c.cfg.Range); err != nil {
		return err
	}
	if err := c.Update(ctx, c.cfg.Range, rows); err != nil {
		return err
	}
	c.cfg.Logger.Info("sheets: range replaced", "range", c.cfg.Range, "rows", len(rows))
	return nil
}

// Fetch returns the values of the configured range. Trailing empty cells
// are omitted by the API, so rows may be ragged.
func (c *Client) Fetch(ctx context.Context) ([][]string, error) {
	var vr valueRange
	res, err := c.req(ctx, c.cfg.Range).
		SetResult(&vr).
		Get("/spreadsheets/{id}/values/{range}")
	if err := c.check("fetch", res, err); err != nil {
		return nil, err
	}
	return vr.Values, nil
}

// UpdateColumn writes the column named column of a local table (header
// row + data rows) into the same column of the sheet, starting at
// startRow (1-based, default 2). Other columns are left untouched.
func (c *Client) UpdateColumn(ctx context.Context, header []string, rows [][]string, column string, startRow int) error {
	idx := -1
	for i, h := range header {
		if strings.TrimSpace(h) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}
	if startRow <= 0 {
		startRow = 2
	}
	if len(rows) == 0 {
		return nil
	}

	values := make([][]string, len(rows))
	for i, r := range rows {
		v := ""
		if idx < len(r) {
			v = r[idx]
		}
		values[i] = []string{v}
	}

	letter := ColumnLetter(idx)
	rng := fmt.Sprintf("%s!%s%d:%s%d", sheetName(c.cfg.Range), letter, startRow, letter, startRow+len(values)-1)
	if err := c.Update(ctx, rng, values); err != nil {
		return err
	}
	c.cfg.Logger.Info("sheets: column updated", "column", column, "range", rng)
	return nil
}

// ColumnLetter converts a 0-based column index to A1 letters (0=A, 26=AA).
func ColumnLetter(i int) string {
	var b []byte
	for i++; i > 0; i = (i - 1) / 26 {
		b = append([]byte{byte('A' + (i-1)%26)}, b...)
	}
	return string(b)
}

func sheetName(rng string) string {
	if i := strings.IndexByte(rng, '!'); i >= 0 {
		return rng[:i]
	}
	return rng
}
