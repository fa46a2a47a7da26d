// Package sheets owns the HTTP contract with the spreadsheet values API:
// range reads, single-row appends, and full-row updates, with bearer-token
// auth and optional refresh-token exchange.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arcline/sheetlog/internal/recerr"
)

// ColumnCount is the fixed row width: timestamp, email, contact, summary,
// history, userId.
const ColumnCount = 6

// Header holds the literal column titles written once when the sheet is empty.
var Header = []string{"Timestamp", "Email", "Contact", "Summary", "History", "UserId"}

type Config struct {
	BaseURL       string
	SpreadsheetID string
	SheetName     string

	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	TokenURL     string

	Timeout time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     *tokenSource
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://sheets.googleapis.com/v4/spreadsheets"
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		cfg.SheetName = "Sheet1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
	if strings.TrimSpace(cfg.RefreshToken) != "" {
		client.tokens = newTokenSource(cfg)
	}
	return client
}

// ReadRange fetches the rows in the given A1-notation range. Rows may be
// shorter than ColumnCount; callers pad at the deserialization boundary.
func (c *Client) ReadRange(ctx context.Context, rng string) ([][]string, error) {
	endpoint := c.valuesURL(rng)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Values [][]string `json:"values"`
	}
	if err := c.do(req, &response); err != nil {
		return nil, fmt.Errorf("read range %s: %w", rng, err)
	}
	return response.Values, nil
}

// AppendRow appends one row after the sheet's data and returns the 1-based
// row number the store reports having written, or 0 when it cannot be
// inferred from the response.
func (c *Client) AppendRow(ctx context.Context, row []string) (int, error) {
	body, err := json.Marshal(map[string]any{
		"values": [][]string{row},
	})
	if err != nil {
		return 0, fmt.Errorf("marshal append body: %w", err)
	}
	endpoint := c.valuesURL(c.dataRange()) + ":append?valueInputOption=RAW&insertDataOption=INSERT_ROWS"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	var response struct {
		Updates struct {
			UpdatedRange string `json:"updatedRange"`
		} `json:"updates"`
	}
	if err := c.do(req, &response); err != nil {
		return 0, fmt.Errorf("append row: %w", err)
	}
	return rowNumberFromRange(response.Updates.UpdatedRange), nil
}

// UpdateRow overwrites the entire row at the 1-based row number. All
// ColumnCount columns must be supplied; the store blanks omitted cells.
func (c *Client) UpdateRow(ctx context.Context, rowNumber int, row []string) error {
	if rowNumber < 1 {
		return fmt.Errorf("update row: invalid row number %d", rowNumber)
	}
	rng := fmt.Sprintf("%s!A%d:F%d", c.cfg.SheetName, rowNumber, rowNumber)
	body, err := json.Marshal(map[string]any{
		"range":  rng,
		"values": [][]string{row},
	})
	if err != nil {
		return fmt.Errorf("marshal update body: %w", err)
	}
	endpoint := c.valuesURL(rng) + "?valueInputOption=RAW"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("update row %d: %w", rowNumber, err)
	}
	return nil
}

// EnsureHeader writes the column titles into row 1 when the sheet has no
// header yet. Callers treat failures as non-fatal.
func (c *Client) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:F1", c.cfg.SheetName)
	rows, err := c.ReadRange(ctx, rng)
	if err != nil {
		return err
	}
	if len(rows) > 0 && len(rows[0]) > 0 && strings.TrimSpace(rows[0][0]) != "" {
		return nil
	}
	return c.UpdateRow(ctx, 1, Header)
}

// DataRange is the A1 range covering every data row below the header.
func (c *Client) DataRange() string {
	return fmt.Sprintf("%s!A2:F", c.cfg.SheetName)
}

func (c *Client) dataRange() string {
	return fmt.Sprintf("%s!A:F", c.cfg.SheetName)
}

func (c *Client) valuesURL(rng string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + url.PathEscape(c.cfg.SpreadsheetID) + "/values/" + url.PathEscape(rng)
}

func (c *Client) do(req *http.Request, out any) error {
	token, err := c.bearerToken(req.Context())
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", recerr.ErrStoreUnavailable, err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", recerr.ErrStoreUnavailable, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Error("sheets request failed", "method", req.Method, "status", res.StatusCode, "body", strings.TrimSpace(string(respBody)))
		return fmt.Errorf("%w: status %d", recerr.ErrStoreUnavailable, res.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", recerr.ErrStoreUnavailable, err)
	}
	return nil
}

func (c *Client) bearerToken(ctx context.Context) (string, error) {
	if c.tokens != nil {
		return c.tokens.bearer(ctx)
	}
	return strings.TrimSpace(c.cfg.AccessToken), nil
}

// rowNumberFromRange extracts the row number from an A1 range such as
// "Leads!A5:F5". Returns 0 when the range is not in that shape.
func rowNumberFromRange(rng string) int {
	if idx := strings.LastIndex(rng, "!"); idx >= 0 {
		rng = rng[idx+1:]
	}
	cell, _, _ := strings.Cut(rng, ":")
	digits := strings.TrimLeft(cell, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	number, err := strconv.Atoi(digits)
	if err != nil || number < 1 {
		return 0
	}
	return number
}
