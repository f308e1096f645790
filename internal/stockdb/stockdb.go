// Package stockdb reads PI suggested stock straight from the dealer
// stocking table when a database URL is configured.
package stockdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const suggestedStockQuery = `
	SELECT pe_suggested_stock_qty
	FROM public.dealer_stocking_details
	WHERE TRIM(cust_number) = $1
	  AND UPPER(TRIM(item_no)) = $2
	LIMIT 1
`

// Lookup resolves suggested stock with the same matching rules as the
// stock-details endpoint: trimmed dealer code, trimmed and upper-cased part.
type Lookup struct {
	db *sqlx.DB
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Lookup, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect stock database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Lookup{db: db}, nil
}

// New wraps an existing connection.
func New(db *sqlx.DB) *Lookup {
	return &Lookup{db: db}
}

// SuggestedStock returns the suggested quantity for a dealer and part.
// A missing row or a NULL column reports found=false.
func (l *Lookup) SuggestedStock(ctx context.Context, dealerCode, partNumber string) (float64, bool, error) {
	var qty sql.NullFloat64
	err := l.db.GetContext(ctx, &qty, suggestedStockQuery,
		strings.TrimSpace(dealerCode), strings.ToUpper(strings.TrimSpace(partNumber)))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query suggested stock: %w", err)
	}
	if !qty.Valid {
		return 0, false, nil
	}
	return qty.Float64, true, nil
}

// Ping checks the connection.
func (l *Lookup) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func (l *Lookup) Close() error {
	return l.db.Close()
}
