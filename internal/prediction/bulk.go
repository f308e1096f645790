package prediction

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"partsdash/internal/backend"
	"partsdash/internal/pagination"
	"partsdash/internal/supervisor"
)

// Top100Source fetches the server-ranked prediction list.
type Top100Source interface {
	Top100(ctx context.Context, dealerCode, month string) ([]backend.Top100Entry, error)
}

// RankedEntry is a Top-100 entry with its display rank.
type RankedEntry struct {
	Rank int `json:"rank"`
	backend.Top100Entry
}

// Top100View is one page of the bulk list plus its status.
type Top100View struct {
	DealerCode string        `json:"dealer_code"`
	Month      string        `json:"month"`
	Loading    bool          `json:"loading"`
	Error      string        `json:"error,omitempty"`
	FetchedAt  *time.Time    `json:"fetched_at,omitempty"`
	Entries    []RankedEntry `json:"entries"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalItems int           `json:"total_items"`
	TotalPages int           `json:"total_pages"`
	Window     []int         `json:"window"`
}

// BulkFetcher holds the Top-100 list. Each fetch replaces the list
// wholesale. Starting a fetch cancels the one in flight, and a result from
// a superseded fetch is dropped.
type BulkFetcher struct {
	source  Top100Source
	bus     *supervisor.EventBus
	metrics *supervisor.Metrics
	logger  *slog.Logger

	mu        sync.RWMutex
	entries   []backend.Top100Entry
	loading   bool
	errMsg    string
	dealer    string
	month     Month
	fetchedAt time.Time
	cursor    *pagination.State
	gen       uint64
	cancel    context.CancelFunc
}

// NewBulkFetcher creates a fetcher paging pageSize entries at a time.
func NewBulkFetcher(source Top100Source, pageSize int, bus *supervisor.EventBus, metrics *supervisor.Metrics, logger *slog.Logger) *BulkFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkFetcher{
		source:  source,
		bus:     bus,
		metrics: metrics,
		logger:  logger,
		cursor:  pagination.NewState(pageSize),
	}
}

// FetchTop100 loads the list for dealerCode and month. Failures are not
// returned; they become the advisory in the view. Only an empty dealer
// code is rejected up front.
func (b *BulkFetcher) FetchTop100(ctx context.Context, dealerCode string, month Month) error {
	dealerCode = strings.TrimSpace(dealerCode)
	if dealerCode == "" {
		return &ValidationError{Field: "dealer_code"}
	}
	if !month.Valid() {
		return &ValidationError{Field: "month", Message: "must be 1-12"}
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.gen++
	gen := b.gen
	b.cancel = cancel
	b.loading = true
	b.errMsg = ""
	b.entries = nil
	b.dealer = dealerCode
	b.month = month
	b.fetchedAt = time.Time{}
	b.cursor.SetTotal(0)
	b.cursor.Reset()
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if b.gen == gen {
			b.loading = false
			b.cancel = nil
		}
		b.mu.Unlock()
	}()

	b.bus.Publish(supervisor.Event{Type: supervisor.EventTop100Started, DealerCode: dealerCode, Month: month.String()})

	list, err := b.source.Top100(fetchCtx, dealerCode, month.String())
	b.metrics.RecordBackend("top100-parts", backend.Classify(err))

	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		b.metrics.RecordTop100("superseded")
		b.logger.Debug("dropping superseded top100 result", "dealer_code", dealerCode, "month", month.String())
		return nil
	}

	ev := supervisor.Event{DealerCode: dealerCode, Month: month.String()}
	var outcome string
	switch {
	case err != nil:
		b.errMsg = AdvisoryTop100Failed
		ev.Type, ev.Error, outcome = supervisor.EventTop100Failed, err.Error(), "failed"
	case len(list) == 0:
		b.errMsg = AdvisoryNoData
		ev.Type, outcome = supervisor.EventTop100Empty, "empty"
	default:
		b.entries = list
		b.cursor.SetTotal(len(list))
		ev.Type, ev.Count, outcome = supervisor.EventTop100Loaded, len(list), "loaded"
	}
	b.fetchedAt = time.Now()
	b.mu.Unlock()

	b.metrics.RecordTop100(outcome)
	if err != nil {
		b.logger.Warn("top100 fetch failed", "dealer_code", dealerCode, "month", month.String(), "err", err)
	} else {
		b.logger.Info("top100 fetched", "dealer_code", dealerCode, "month", month.String(), "count", len(list))
	}
	b.bus.Publish(ev)
	return nil
}

// View returns the given page, clamped to the list. page <= 0 keeps the
// current page.
func (b *BulkFetcher) View(page int) Top100View {
	b.mu.Lock()
	defer b.mu.Unlock()

	if page > 0 {
		b.cursor.GoTo(page)
	}
	cur := b.cursor.Current()
	size := b.cursor.PageSize()
	visible := pagination.Slice(b.entries, cur, size)

	ranked := make([]RankedEntry, len(visible))
	for i, e := range visible {
		ranked[i] = RankedEntry{Rank: pagination.Rank(cur, size, i), Top100Entry: e}
	}

	v := Top100View{
		DealerCode: b.dealer,
		Loading:    b.loading,
		Error:      b.errMsg,
		Entries:    ranked,
		Page:       cur,
		PageSize:   size,
		TotalItems: len(b.entries),
		TotalPages: b.cursor.TotalPages(),
		Window:     b.cursor.Window(),
	}
	if b.month.Valid() {
		v.Month = b.month.String()
	}
	if !b.fetchedAt.IsZero() {
		t := b.fetchedAt
		v.FetchedAt = &t
	}
	return v
}

// Entries returns a copy of the whole list in server order.
func (b *BulkFetcher) Entries() []backend.Top100Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]backend.Top100Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Loading reports whether a fetch is in flight.
func (b *BulkFetcher) Loading() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loading
}

// Reset cancels any fetch in flight and empties the list.
func (b *BulkFetcher) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.gen++
	b.loading = false
	b.errMsg = ""
	b.entries = nil
	b.dealer = ""
	b.month = 0
	b.fetchedAt = time.Time{}
	b.cursor.SetTotal(0)
	b.cursor.Reset()
}
