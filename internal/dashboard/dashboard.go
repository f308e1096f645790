// Package dashboard builds the view models behind the dashboard page:
// status charts, the parts table and the inventory-health part lists.
package dashboard

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"partsdash/internal/backend"
	"partsdash/internal/pagination"
	"partsdash/internal/supervisor"
)

// Source is the subset of the backend the dashboard reads.
type Source interface {
	Parts(ctx context.Context, dealerCode string) ([]backend.Part, error)
	InventoryHealth(ctx context.Context, dealerCode string) ([]backend.StatusCount, error)
	SuggestedStocks(ctx context.Context, dealerCode string) ([]backend.StatusCount, error)
	PartList(ctx context.Context, kind backend.PartListKind, dealerCode string) ([]backend.Record, error)
}

// Source names used as keys in Overview.Errors.
const (
	SourceParts           = "parts"
	SourceInventoryHealth = "inv-health"
	SourceSuggestedStocks = "suggested-stocks"
)

// ChartPoint is one labelled slice of a doughnut chart.
type ChartPoint struct {
	Label   string  `json:"label"`
	Value   int     `json:"value"`
	Percent float64 `json:"percent"`
}

// Chart is a status breakdown with its total.
type Chart struct {
	Points []ChartPoint `json:"points"`
	Total  int          `json:"total"`
}

// Overview is the dashboard for one dealer.
type Overview struct {
	DealerCode      string                        `json:"dealer_code"`
	InventoryHealth Chart                         `json:"inventory_health"`
	SuggestedStock  Chart                         `json:"suggested_stock"`
	Parts           pagination.Page[backend.Part] `json:"parts"`
	Errors          map[string]string             `json:"errors,omitempty"`
}

// PartListTab is one paginated part-list tab.
type PartListTab struct {
	Kind  backend.PartListKind            `json:"kind"`
	Page  pagination.Page[backend.Record] `json:"page"`
	Error string                          `json:"error,omitempty"`
}

// Service assembles dashboard views from the backend.
type Service struct {
	src      Source
	pageSize int
	metrics  *supervisor.Metrics
	logger   *slog.Logger
}

// NewService creates a Service. pageSize applies when a caller does not
// ask for a specific one.
func NewService(src Source, pageSize int, metrics *supervisor.Metrics, logger *slog.Logger) *Service {
	if pageSize < 1 {
		pageSize = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{src: src, pageSize: pageSize, metrics: metrics, logger: logger}
}

// Overview loads the parts table and both status charts concurrently.
// A failing source is reported in Errors and leaves its section empty.
func (s *Service) Overview(ctx context.Context, dealerCode string, page int) Overview {
	var (
		mu     sync.Mutex
		errs   = map[string]string{}
		parts  []backend.Part
		health []backend.StatusCount
		stock  []backend.StatusCount
	)
	record := func(source string, err error) {
		s.metrics.RecordBackend(source, backend.Classify(err))
		if err == nil {
			return
		}
		s.logger.Warn("dashboard source failed", "source", source, "dealer_code", dealerCode, "err", err)
		mu.Lock()
		errs[source] = err.Error()
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		var err error
		parts, err = s.src.Parts(ctx, dealerCode)
		record(SourceParts, err)
		return nil
	})
	g.Go(func() error {
		var err error
		health, err = s.src.InventoryHealth(ctx, dealerCode)
		record(SourceInventoryHealth, err)
		return nil
	})
	g.Go(func() error {
		var err error
		stock, err = s.src.SuggestedStocks(ctx, dealerCode)
		record(SourceSuggestedStocks, err)
		return nil
	})
	_ = g.Wait()

	if parts == nil {
		parts = []backend.Part{}
	}
	page = pagination.Clamp(page, pagination.TotalPages(len(parts), s.pageSize))

	ov := Overview{
		DealerCode:      dealerCode,
		InventoryHealth: BuildChart(health),
		SuggestedStock:  BuildChart(stock),
		Parts:           pagination.Paginate(parts, page, s.pageSize),
	}
	if len(errs) > 0 {
		ov.Errors = errs
	}
	return ov
}

// BuildChart upper-cases labels and computes each slice's share of the
// total, rounded to two places.
func BuildChart(counts []backend.StatusCount) Chart {
	c := Chart{Points: make([]ChartPoint, 0, len(counts))}
	for _, sc := range counts {
		c.Total += sc.PartCount
	}
	total := decimal.NewFromInt(int64(c.Total))
	for _, sc := range counts {
		p := ChartPoint{Label: strings.ToUpper(strings.TrimSpace(sc.Status)), Value: sc.PartCount}
		if c.Total > 0 {
			p.Percent = decimal.NewFromInt(int64(sc.PartCount)).
				Mul(decimal.NewFromInt(100)).
				Div(total).
				Round(2).
				InexactFloat64()
		}
		c.Points = append(c.Points, p)
	}
	return c
}

// PartList fetches one part list unpaginated.
func (s *Service) PartList(ctx context.Context, kind backend.PartListKind, dealerCode string) ([]backend.Record, error) {
	rows, err := s.src.PartList(ctx, kind, dealerCode)
	s.metrics.RecordBackend(string(kind)+"-part-list", backend.Classify(err))
	return rows, err
}

// PartLists loads the requested tabs concurrently, or all four when kinds
// is empty. Each tab is paginated independently; pageSize <= 0 uses the
// service default.
func (s *Service) PartLists(ctx context.Context, dealerCode string, kinds []backend.PartListKind, page, pageSize int) []PartListTab {
	if len(kinds) == 0 {
		kinds = backend.PartListKinds
	}
	if pageSize < 1 {
		pageSize = s.pageSize
	}

	tabs := make([]PartListTab, len(kinds))
	var g errgroup.Group
	for i, kind := range kinds {
		g.Go(func() error {
			tab := PartListTab{Kind: kind}
			rows, err := s.PartList(ctx, kind, dealerCode)
			if err != nil {
				s.logger.Warn("part list failed", "kind", kind, "dealer_code", dealerCode, "err", err)
				tab.Error = err.Error()
			}
			if rows == nil {
				rows = []backend.Record{}
			}
			p := pagination.Clamp(page, pagination.TotalPages(len(rows), pageSize))
			tab.Page = pagination.Paginate(rows, p, pageSize)
			tabs[i] = tab
			return nil
		})
	}
	_ = g.Wait()
	return tabs
}
