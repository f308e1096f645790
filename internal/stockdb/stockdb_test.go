package stockdb

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLookup(t *testing.T) (*Lookup, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

var queryPattern = regexp.QuoteMeta("SELECT pe_suggested_stock_qty")

func TestSuggestedStock(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(mock sqlmock.Sqlmock)
		wantQty   float64
		wantFound bool
		wantErr   bool
	}{
		{
			name: "row found",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(queryPattern).
					WithArgs("10131", "ABC123").
					WillReturnRows(sqlmock.NewRows([]string{"pe_suggested_stock_qty"}).AddRow(12.0))
			},
			wantQty:   12,
			wantFound: true,
		},
		{
			name: "no row",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(queryPattern).
					WithArgs("10131", "ABC123").
					WillReturnRows(sqlmock.NewRows([]string{"pe_suggested_stock_qty"}))
			},
		},
		{
			name: "null column",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(queryPattern).
					WithArgs("10131", "ABC123").
					WillReturnRows(sqlmock.NewRows([]string{"pe_suggested_stock_qty"}).AddRow(nil))
			},
		},
		{
			name: "query error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(queryPattern).
					WithArgs("10131", "ABC123").
					WillReturnError(errors.New("connection reset"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, mock := newMockLookup(t)
			tt.setup(mock)

			qty, found, err := l.SuggestedStock(context.Background(), " 10131 ", " abc123")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantQty, qty)
				assert.Equal(t, tt.wantFound, found)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
