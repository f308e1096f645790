package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"partsdash/internal/util"
)

// Client is a typed client for the parts-inventory REST backend.
//
// Every method performs exactly one HTTP call; retry policy belongs to the
// caller.
type Client struct {
	BaseURL *url.URL
	HTTP    *http.Client

	// MaxResponseBytes caps a successful response body. Zero means
	// DefaultMaxResponseBytes.
	MaxResponseBytes int64
}

// DefaultMaxResponseBytes is the body cap used when MaxResponseBytes is unset.
const DefaultMaxResponseBytes = 32 << 20

// ErrResponseTooLarge is returned when a response body exceeds the cap.
var ErrResponseTooLarge = errors.New("response body too large")

// NewClient constructs a backend client.
func NewClient(base string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse backend url: %q is not absolute", base)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		BaseURL: u,
		HTTP: &http.Client{
			Timeout: timeout,
		},
	}
	return c, nil
}

// Part is one row of the parts master table.
type Part struct {
	PartNo   string `json:"part_no"`
	PartName string `json:"part_name"`
	Status   string `json:"status"`
}

// StatusCount is one slice of a status chart (inventory health, suggested stock).
type StatusCount struct {
	Status    string `json:"status"`
	PartCount int    `json:"part_count"`
}

// Record is a loosely-typed backend row. Part-list endpoints return
// dealer-specific column sets, so they are kept as-is.
type Record = map[string]any

// PartListKind selects one of the inventory-health part lists.
type PartListKind string

const (
	PartListIdle     PartListKind = "idle"
	PartListPreIdle  PartListKind = "pre-idle"
	PartListDropShip PartListKind = "drop-ship"
	PartListNormal   PartListKind = "normal"
)

// PartListKinds lists the tabs in display order.
var PartListKinds = []PartListKind{PartListIdle, PartListPreIdle, PartListDropShip, PartListNormal}

// ParsePartListKind validates a tab name.
func ParsePartListKind(s string) (PartListKind, error) {
	k := PartListKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case PartListIdle, PartListPreIdle, PartListDropShip, PartListNormal:
		return k, nil
	default:
		return "", fmt.Errorf("unknown part list %q (must be idle|pre-idle|drop-ship|normal)", s)
	}
}

// Top100Entry is one row of the server-ranked prediction list. Rank is not
// stored; it is the entry's position in the list.
type Top100Entry struct {
	ItemNo            string          `json:"item_no"`
	PredictedMonthly  decimal.Decimal `json:"predicted_monthly"`
	SuggestedStockQty decimal.Decimal `json:"pe_suggested_stock_qty"`
}

// PredictPayload is the body of POST /predict.
type PredictPayload struct {
	DealerCode string `json:"dealer_code"`
	PartNumber string `json:"part_number"`
	Month      string `json:"month"`
}

// PredictResponse is the response of POST /predict.
type PredictResponse struct {
	PredictedQuantity decimal.Decimal `json:"predicted_quantity"`
}

// SuggestedStockField is the stock-details column holding the PI suggestion.
const SuggestedStockField = "pe_suggested_stock_qty"

// Parts fetches the parts table for a dealer.
func (c *Client) Parts(ctx context.Context, dealerCode string) ([]Part, error) {
	var out []Part
	q := url.Values{"dealer_code": {strings.TrimSpace(dealerCode)}}
	if err := c.getJSON(ctx, "parts", "/api/parts", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InventoryHealth fetches the inventory-health status counts for a dealer.
func (c *Client) InventoryHealth(ctx context.Context, dealerCode string) ([]StatusCount, error) {
	var out []StatusCount
	q := url.Values{"dealer_code": {strings.TrimSpace(dealerCode)}}
	if err := c.getJSON(ctx, "inv-health", "/api/inv-health", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SuggestedStocks fetches the suggested-stock status counts for a dealer.
func (c *Client) SuggestedStocks(ctx context.Context, dealerCode string) ([]StatusCount, error) {
	var out []StatusCount
	q := url.Values{"dealer_code": {strings.TrimSpace(dealerCode)}}
	if err := c.getJSON(ctx, "suggested-stocks", "/api/suggested-stocks", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PartList fetches one inventory-health part list. Both a bare array and a
// {"data": [...]} wrapper are accepted.
func (c *Client) PartList(ctx context.Context, kind PartListKind, dealerCode string) ([]Record, error) {
	op := string(kind) + "-part-list"
	q := url.Values{"dealer_code": {strings.TrimSpace(dealerCode)}}
	body, err := c.get(ctx, op, "/api/"+op, q)
	if err != nil {
		return nil, err
	}
	rows, err := util.DecodeRows(body)
	if err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return rows, nil
}

// StockDetails fetches the dealer stocking rows for one part. The backend
// returns at most one row; an empty slice means no match.
func (c *Client) StockDetails(ctx context.Context, custNumber, itemNo string) ([]Record, error) {
	q := url.Values{
		"cust_number": {strings.TrimSpace(custNumber)},
		"item_no":     {strings.TrimSpace(itemNo)},
	}
	body, err := c.get(ctx, "stock-details", "/api/stock-details", q)
	if err != nil {
		return nil, err
	}
	rows, err := util.DecodeRows(body)
	if err != nil {
		return nil, fmt.Errorf("stock-details: decode: %w", err)
	}
	return rows, nil
}

// SuggestedStock returns the PI suggested stock quantity from the first
// matching stock-details row. found is false when no row matches or the
// column is missing or non-numeric.
func (c *Client) SuggestedStock(ctx context.Context, dealerCode, partNumber string) (float64, bool, error) {
	rows, err := c.StockDetails(ctx, dealerCode, partNumber)
	if err != nil {
		return 0, false, err
	}
	qty, ok := SuggestedStockFromRows(rows)
	return qty, ok, nil
}

// SuggestedStockFromRows extracts the suggested quantity from the first row.
func SuggestedStockFromRows(rows []Record) (float64, bool) {
	if len(rows) == 0 {
		return 0, false
	}
	return util.ToFloat(rows[0][SuggestedStockField])
}

// Top100 fetches the ranked prediction list for a dealer and month. Server
// order is preserved.
func (c *Client) Top100(ctx context.Context, dealerCode, month string) ([]Top100Entry, error) {
	var out []Top100Entry
	q := url.Values{
		"dealer_code": {strings.TrimSpace(dealerCode)},
		"month":       {strings.TrimSpace(month)},
	}
	if err := c.getJSON(ctx, "top100-parts", "/api/top100-parts", q, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Top100Entry{}
	}
	return out, nil
}

// Predict issues one prediction call.
func (c *Client) Predict(ctx context.Context, p PredictPayload) (PredictResponse, error) {
	p.DealerCode = strings.TrimSpace(p.DealerCode)
	p.PartNumber = strings.TrimSpace(p.PartNumber)
	p.Month = strings.TrimSpace(p.Month)

	b, err := json.Marshal(p)
	if err != nil {
		return PredictResponse{}, err
	}

	u := c.BaseURL.ResolveReference(&url.URL{Path: "/predict"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return PredictResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, "predict")
	if err != nil {
		return PredictResponse{}, err
	}

	var raw struct {
		PredictedQuantity *decimal.Decimal `json:"predicted_quantity"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return PredictResponse{}, fmt.Errorf("predict: decode: %w", err)
	}
	if raw.PredictedQuantity == nil {
		return PredictResponse{}, fmt.Errorf("predict: response has no predicted_quantity")
	}
	return PredictResponse{PredictedQuantity: *raw.PredictedQuantity}, nil
}

// Ping checks that the backend answers HTTP at all. Any response below 500
// counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &NetworkError{Op: "ping", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode >= 500 {
		return &HTTPError{Op: "ping", StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, out any) error {
	body, err := c.get(ctx, op, path, q)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values) ([]byte, error) {
	u := c.BaseURL.ResolveReference(&url.URL{Path: path, RawQuery: q.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, op)
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := ioReadAllLimit(resp.Body, 4*1024)
		return nil, &HTTPError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(buf))}
	}

	limit := c.MaxResponseBytes
	if limit <= 0 {
		limit = DefaultMaxResponseBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%s: %w (limit %d bytes)", op, ErrResponseTooLarge, limit)
	}
	return body, nil
}

func ioReadAllLimit(r io.Reader, max int64) ([]byte, error) {
	buf := &bytes.Buffer{}
	if max <= 0 {
		return io.ReadAll(r)
	}
	_, err := io.CopyN(buf, r, max+1)
	if err != nil && err != io.EOF {
		return nil, err
	}
	b := buf.Bytes()
	if int64(len(b)) > max {
		return b[:max], nil
	}
	return b, nil
}
