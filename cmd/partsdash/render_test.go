package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsdash/internal/backend"
	"partsdash/internal/prediction"
	"partsdash/internal/storage"
)

func TestRenderRows(t *testing.T) {
	row := storage.NewLoadingRow("k1", "10131", "ABC123", "October")
	row = row.Apply(storage.RowUpdate{
		PIPrediction:  storage.Ptr(storage.NumberCell(12)),
		IAIPrediction: storage.Ptr(storage.FailedCell()),
		IsLoading:     storage.Ptr(false),
		Status:        storage.Ptr(storage.StatusFailed),
		Attempts:      storage.Ptr(3),
	})

	var buf bytes.Buffer
	require.NoError(t, renderRows(&buf, "table", row))
	out := buf.String()
	assert.Contains(t, out, "ABC123")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "12")

	buf.Reset()
	require.NoError(t, renderRows(&buf, "json", row))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "FAIL", decoded[0]["iai_prediction"])
}

func TestRenderTop100(t *testing.T) {
	view := prediction.Top100View{
		DealerCode: "10131",
		Month:      "October",
		Entries: []prediction.RankedEntry{
			{Rank: 11, Top100Entry: backend.Top100Entry{ItemNo: "P1", PredictedMonthly: decimal.NewFromInt(9), SuggestedStockQty: decimal.NewFromInt(4)}},
		},
		Page:       2,
		TotalPages: 2,
		TotalItems: 11,
	}

	var buf bytes.Buffer
	require.NoError(t, renderTop100(&buf, "table", view))
	assert.Contains(t, buf.String(), "P1")
	assert.Contains(t, buf.String(), "page 2 of 2")

	buf.Reset()
	require.NoError(t, renderTop100(&buf, "table", prediction.Top100View{}))
	assert.Equal(t, "(0 rows)\n", buf.String())
}
