package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsdash/internal/backend"
)

type fakeSource struct {
	parts     []backend.Part
	health    []backend.StatusCount
	stock     []backend.StatusCount
	lists     map[backend.PartListKind][]backend.Record
	failParts bool
	failList  backend.PartListKind
}

func (f *fakeSource) Parts(ctx context.Context, dealerCode string) ([]backend.Part, error) {
	if f.failParts {
		return nil, &backend.HTTPError{Op: "parts", StatusCode: 500}
	}
	return f.parts, nil
}

func (f *fakeSource) InventoryHealth(ctx context.Context, dealerCode string) ([]backend.StatusCount, error) {
	return f.health, nil
}

func (f *fakeSource) SuggestedStocks(ctx context.Context, dealerCode string) ([]backend.StatusCount, error) {
	return f.stock, nil
}

func (f *fakeSource) PartList(ctx context.Context, kind backend.PartListKind, dealerCode string) ([]backend.Record, error) {
	if kind == f.failList {
		return nil, errors.New("boom")
	}
	return f.lists[kind], nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeParts(n int) []backend.Part {
	out := make([]backend.Part, n)
	for i := range out {
		out[i] = backend.Part{PartNo: fmt.Sprintf("P%02d", i), Status: "normal"}
	}
	return out
}

func TestOverview(t *testing.T) {
	src := &fakeSource{
		parts:  makeParts(12),
		health: []backend.StatusCount{{Status: "normal", PartCount: 3}, {Status: "idle", PartCount: 1}},
		stock:  []backend.StatusCount{{Status: "Stock", PartCount: 2}},
	}
	svc := NewService(src, 5, nil, quietLogger())

	ov := svc.Overview(context.Background(), "10131", 3)
	assert.Equal(t, "10131", ov.DealerCode)
	assert.Nil(t, ov.Errors)
	assert.Equal(t, 4, ov.InventoryHealth.Total)
	assert.Equal(t, "NORMAL", ov.InventoryHealth.Points[0].Label)
	assert.Equal(t, 75.0, ov.InventoryHealth.Points[0].Percent)
	assert.Equal(t, "STOCK", ov.SuggestedStock.Points[0].Label)

	assert.Equal(t, 3, ov.Parts.TotalPages)
	assert.Len(t, ov.Parts.Items, 2)
	assert.Equal(t, "P10", ov.Parts.Items[0].PartNo)
}

func TestOverview_PartialFailure(t *testing.T) {
	src := &fakeSource{
		failParts: true,
		health:    []backend.StatusCount{{Status: "normal", PartCount: 3}},
	}
	svc := NewService(src, 5, nil, quietLogger())

	ov := svc.Overview(context.Background(), "10131", 1)
	require.Contains(t, ov.Errors, SourceParts)
	assert.Empty(t, ov.Parts.Items)
	assert.Equal(t, 1, ov.Parts.TotalPages)
	assert.Equal(t, 3, ov.InventoryHealth.Total, "other sections still load")
}

func TestBuildChart(t *testing.T) {
	c := BuildChart([]backend.StatusCount{{Status: "a", PartCount: 1}, {Status: "b", PartCount: 2}})
	assert.Equal(t, 3, c.Total)
	assert.Equal(t, 33.33, c.Points[0].Percent)
	assert.Equal(t, 66.67, c.Points[1].Percent)

	empty := BuildChart(nil)
	assert.Zero(t, empty.Total)
	assert.NotNil(t, empty.Points)

	zero := BuildChart([]backend.StatusCount{{Status: "a", PartCount: 0}})
	assert.Zero(t, zero.Points[0].Percent)
}

func TestPartLists(t *testing.T) {
	rows := make([]backend.Record, 7)
	for i := range rows {
		rows[i] = backend.Record{"part_no": fmt.Sprintf("I%d", i)}
	}
	src := &fakeSource{
		lists:    map[backend.PartListKind][]backend.Record{backend.PartListIdle: rows},
		failList: backend.PartListDropShip,
	}
	svc := NewService(src, 10, nil, quietLogger())

	tabs := svc.PartLists(context.Background(), "10131", nil, 2, 5)
	require.Len(t, tabs, 4)
	assert.Equal(t, backend.PartListIdle, tabs[0].Kind)
	assert.Len(t, tabs[0].Page.Items, 2)
	assert.Equal(t, 2, tabs[0].Page.TotalPages)

	assert.Equal(t, backend.PartListDropShip, tabs[2].Kind)
	assert.NotEmpty(t, tabs[2].Error)
	assert.Empty(t, tabs[2].Page.Items)

	one := svc.PartLists(context.Background(), "10131", []backend.PartListKind{backend.PartListIdle}, 1, 0)
	require.Len(t, one, 1)
	assert.Len(t, one[0].Page.Items, 7, "default page size applies")
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(nil)
	require.NoError(t, err)
	assert.Zero(t, s.Count)

	entries := make([]backend.Top100Entry, 10)
	for i := range entries {
		entries[i] = backend.Top100Entry{ItemNo: fmt.Sprint(i), PredictedMonthly: decimal.NewFromInt(int64(i + 1))}
	}
	s, err = Summarize(entries)
	require.NoError(t, err)
	assert.Equal(t, 10, s.Count)
	assert.Equal(t, 55.0, s.Total)
	assert.Equal(t, 5.5, s.Mean)
	assert.Equal(t, 5.5, s.Median)
	assert.Equal(t, 9.0, s.P90)
	assert.Equal(t, 10.0, s.Max)
}
