// Package prediction drives single-part predictions and the bulk Top-100
// list against the parts backend.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"partsdash/internal/backend"
	"partsdash/internal/pagination"
	"partsdash/internal/storage"
	"partsdash/internal/supervisor"
)

// Advisory messages shown above the tables.
const (
	AdvisoryPredictionFailed = "Prediction failed. Please check server."
	AdvisoryNoData           = "No prediction data available for selection."
	AdvisoryTop100Failed     = "Failed to load Top 100 predictions."
)

// InterruptedMessage is the row error for a prediction cut off by shutdown.
const InterruptedMessage = "interrupted"

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("prediction orchestrator closed")

// Predictor issues one prediction call.
type Predictor interface {
	Predict(ctx context.Context, p backend.PredictPayload) (backend.PredictResponse, error)
}

// Options configures an Orchestrator. Predictor, Stock and Table are required.
type Options struct {
	Predictor Predictor
	Stock     backend.SuggestedStockSource
	Table     storage.Table
	Retryer   *supervisor.Retryer
	Bus       *supervisor.EventBus
	Metrics   *supervisor.Metrics
	Logger    *slog.Logger
	PageSize  int
}

// Orchestrator owns the single-mode result table. Each Submit appends a
// loading row and resolves it in the background; rows are only ever
// touched by key.
type Orchestrator struct {
	predictor Predictor
	stock     backend.SuggestedStockSource
	table     storage.Table
	retryer   *supervisor.Retryer
	bus       *supervisor.EventBus
	metrics   *supervisor.Metrics
	logger    *slog.Logger
	pageSize  int
	newKey    func() string

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inFlight atomic.Int64

	lifeMu sync.RWMutex
	closed bool

	mu        sync.RWMutex
	lastError string
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Retryer == nil {
		opts.Retryer = supervisor.NewRetryer(supervisor.RetryConfig{MaxAttempts: 3, InitialDelay: time.Second}, opts.Metrics)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PageSize < 1 {
		opts.PageSize = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		predictor: opts.Predictor,
		stock:     opts.Stock,
		table:     opts.Table,
		retryer:   opts.Retryer,
		bus:       opts.Bus,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		pageSize:  opts.PageSize,
		newKey:    newRowKey,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func newRowKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Submit validates req, appends a loading row and starts resolving it.
// It returns the row as inserted. A *ValidationError means nothing was
// inserted and no call was made.
func (o *Orchestrator) Submit(req Request) (storage.Row, error) {
	req, _, err := req.Normalize()
	if err != nil {
		return storage.Row{}, err
	}
	o.lifeMu.RLock()
	defer o.lifeMu.RUnlock()
	if o.closed {
		return storage.Row{}, ErrClosed
	}

	row := storage.NewLoadingRow(o.newKey(), req.DealerCode, req.PartNumber, req.Month)
	if err := o.table.Insert(row); err != nil {
		return storage.Row{}, fmt.Errorf("insert row: %w", err)
	}

	o.logger.Debug("prediction submitted",
		"key", row.Key, "dealer_code", req.DealerCode, "part_number", req.PartNumber, "month", req.Month)
	o.bus.Publish(supervisor.Event{
		Type:       supervisor.EventRowSubmitted,
		Key:        row.Key,
		DealerCode: req.DealerCode,
		PartNumber: req.PartNumber,
		Month:      req.Month,
	})

	o.metrics.UpdateInFlight(int(o.inFlight.Add(1)))
	o.wg.Add(1)
	go o.resolve(row.Key, req)

	return row, nil
}

func (o *Orchestrator) resolve(key string, req Request) {
	defer o.wg.Done()
	defer func() { o.metrics.UpdateInFlight(int(o.inFlight.Add(-1))) }()

	start := time.Now()
	ctx := o.ctx

	pi := storage.PendingCell()
	var (
		resp     backend.PredictResponse
		attempts int
	)

	var g errgroup.Group
	g.Go(func() error {
		qty, found, err := o.stock.SuggestedStock(ctx, req.DealerCode, req.PartNumber)
		o.metrics.RecordBackend("stock-details", backend.Classify(err))
		if err != nil {
			o.logger.Debug("pi lookup failed", "key", key, "err", err)
			return nil
		}
		if found {
			pi = storage.NumberCell(qty)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		resp, attempts, err = supervisor.Do(ctx, o.retryer, func(ctx context.Context) (backend.PredictResponse, error) {
			r, err := o.predictor.Predict(ctx, backend.PredictPayload{
				DealerCode: req.DealerCode,
				PartNumber: req.PartNumber,
				Month:      req.Month,
			})
			o.metrics.RecordBackend("predict", backend.Classify(err))
			return r, err
		})
		return err
	})
	err := g.Wait()

	if o.ctx.Err() != nil {
		// Nobody is left to retry this row, so it must not stay loading.
		if _, uerr := o.table.Update(key, interruptedUpdate(pi, attempts)); uerr != nil {
			o.logger.Warn("failed to mark interrupted row", "key", key, "err", uerr)
		}
		o.logger.Debug("prediction interrupted by close", "key", key)
		return
	}

	var u storage.RowUpdate
	var status storage.Status
	if err == nil {
		status = storage.StatusResolved
		u = storage.RowUpdate{
			PIPrediction:  storage.Ptr(pi),
			IAIPrediction: storage.Ptr(storage.NumberCell(RoundQuantity(resp.PredictedQuantity))),
			IsLoading:     storage.Ptr(false),
			Status:        storage.Ptr(status),
			Attempts:      storage.Ptr(attempts),
		}
	} else {
		status = storage.StatusFailed
		u = storage.RowUpdate{
			PIPrediction:  storage.Ptr(pi),
			IAIPrediction: storage.Ptr(storage.FailedCell()),
			IsLoading:     storage.Ptr(false),
			Status:        storage.Ptr(status),
			Error:         storage.Ptr(err.Error()),
			Attempts:      storage.Ptr(attempts),
		}
	}

	ok, uerr := o.table.Update(key, u)
	if uerr != nil {
		o.logger.Error("failed to update prediction row", "key", key, "err", uerr)
		return
	}
	if !ok {
		// cleared or evicted while in flight
		o.logger.Debug("row gone before result arrived", "key", key)
		return
	}

	o.metrics.RecordPrediction(string(status), time.Since(start))
	ev := supervisor.Event{
		Key:        key,
		DealerCode: req.DealerCode,
		PartNumber: req.PartNumber,
		Month:      req.Month,
		Attempts:   attempts,
	}
	if err == nil {
		ev.Type = supervisor.EventRowResolved
		o.logger.Info("prediction resolved",
			"key", key, "part_number", req.PartNumber, "attempts", attempts,
			"duration_ms", time.Since(start).Milliseconds())
	} else {
		ev.Type = supervisor.EventRowFailed
		ev.Error = err.Error()
		o.setLastError(AdvisoryPredictionFailed)
		o.logger.Warn("prediction failed",
			"key", key, "part_number", req.PartNumber, "attempts", attempts, "err", err)
	}
	o.bus.Publish(ev)
}

func interruptedUpdate(pi storage.Cell, attempts int) storage.RowUpdate {
	return storage.RowUpdate{
		PIPrediction:  storage.Ptr(pi),
		IAIPrediction: storage.Ptr(storage.FailedCell()),
		IsLoading:     storage.Ptr(false),
		Status:        storage.Ptr(storage.StatusFailed),
		Error:         storage.Ptr(InterruptedMessage),
		Attempts:      storage.Ptr(attempts),
	}
}

// FailInterrupted marks rows left loading by an earlier process as failed
// and returns how many it changed. Call it before the first Submit; rows
// submitted by this orchestrator would otherwise be failed too.
func (o *Orchestrator) FailInterrupted() (int, error) {
	rows, err := o.table.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rows {
		if !r.IsLoading {
			continue
		}
		ok, err := o.table.Update(r.Key, interruptedUpdate(r.PIPrediction, r.Attempts))
		if err != nil {
			return n, fmt.Errorf("fail interrupted row %s: %w", r.Key, err)
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// RoundQuantity rounds half away from zero and clamps negatives to 0.
func RoundQuantity(q decimal.Decimal) float64 {
	if q.IsNegative() {
		return 0
	}
	return q.Round(0).InexactFloat64()
}

func (o *Orchestrator) setLastError(msg string) {
	o.mu.Lock()
	o.lastError = msg
	o.mu.Unlock()
}

// LastError returns the page-level advisory, empty when none.
func (o *Orchestrator) LastError() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastError
}

// Rows returns every row in insertion order.
func (o *Orchestrator) Rows() ([]storage.Row, error) {
	return o.table.List()
}

// Get returns one row, or nil when absent.
func (o *Orchestrator) Get(key string) (*storage.Row, error) {
	return o.table.GetByKey(key)
}

// Page returns one clamped page of rows.
func (o *Orchestrator) Page(page int) (pagination.Page[storage.Row], error) {
	rows, err := o.table.List()
	if err != nil {
		return pagination.Page[storage.Row]{}, err
	}
	page = pagination.Clamp(page, pagination.TotalPages(len(rows), o.pageSize))
	return pagination.Paginate(rows, page, o.pageSize), nil
}

// InFlight returns the number of rows still loading.
func (o *Orchestrator) InFlight() int {
	return int(o.inFlight.Load())
}

// Clear empties the table and the advisory. Results still in flight land
// on missing keys and are dropped.
func (o *Orchestrator) Clear() error {
	if err := o.table.Clear(); err != nil {
		return err
	}
	o.setLastError("")
	o.bus.Publish(supervisor.Event{Type: supervisor.EventRowsCleared})
	return nil
}

// Wait blocks until every submitted row has resolved or failed.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close cancels in-flight submissions and waits for them to return. Their
// rows end failed with InterruptedMessage.
func (o *Orchestrator) Close() {
	o.lifeMu.Lock()
	o.closed = true
	o.lifeMu.Unlock()
	o.cancel()
	o.wg.Wait()
}
