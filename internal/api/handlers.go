package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"partsdash/internal/backend"
	"partsdash/internal/dashboard"
	"partsdash/internal/dealer"
	"partsdash/internal/export"
	"partsdash/internal/pagination"
	"partsdash/internal/prediction"
	"partsdash/internal/storage"
)

// DealerResponse is the dealer selector state.
type DealerResponse struct {
	DealerCode string `json:"dealer_code"`
	Default    string `json:"default"`
}

// PredictionsResponse is one page of the single-mode result table.
type PredictionsResponse struct {
	Rows     pagination.Page[storage.Row] `json:"rows"`
	InFlight int                          `json:"in_flight"`
	Error    string                       `json:"error,omitempty"`
}

type submitRequest struct {
	DealerCode string `json:"dealer_code"`
	PartNumber string `json:"part_number"`
	Month      string `json:"month"`
}

type top100Request struct {
	DealerCode string `json:"dealer_code"`
	Month      string `json:"month"`
}

// GET /api/v1/dealer
func (s *Server) handleGetDealer(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, DealerResponse{
		DealerCode: s.dealer.Current(),
		Default:    s.dealer.Default(),
	})
}

// PUT /api/v1/dealer
// A change resets the dealer-scoped views: result rows and the bulk list.
func (s *Server) handlePutDealer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DealerCode string `json:"dealer_code"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	changed, err := s.dealer.Set(body.DealerCode)
	if errors.Is(err, dealer.ErrEmptyCode) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("failed to set dealer code", "err", err)
		s.writeError(w, http.StatusInternalServerError, "failed to persist dealer code")
		return
	}

	if changed {
		if err := s.orch.Clear(); err != nil {
			s.logger.Error("failed to clear prediction rows", "err", err)
		}
		s.bulk.Reset()
	}

	s.writeJSON(w, http.StatusOK, DealerResponse{
		DealerCode: s.dealer.Current(),
		Default:    s.dealer.Default(),
	})
}

// POST /api/v1/predictions
func (s *Server) handleSubmitPrediction(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	row, err := s.orch.Submit(prediction.Request{
		DealerCode: s.dealer.Resolve(body.DealerCode),
		PartNumber: body.PartNumber,
		Month:      body.Month,
	})
	var ve *prediction.ValidationError
	switch {
	case errors.As(err, &ve):
		s.writeError(w, http.StatusBadRequest, ve.Error())
		return
	case errors.Is(err, prediction.ErrClosed):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.logger.Error("failed to submit prediction", "err", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit prediction")
		return
	}

	s.writeJSON(w, http.StatusAccepted, row)
}

// GET /api/v1/predictions?page=N
func (s *Server) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	page, err := s.orch.Page(parseInt(r.URL.Query().Get("page"), 1))
	if err != nil {
		s.logger.Error("failed to list prediction rows", "err", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list predictions")
		return
	}
	s.writeJSON(w, http.StatusOK, PredictionsResponse{
		Rows:     page,
		InFlight: s.orch.InFlight(),
		Error:    s.orch.LastError(),
	})
}

// DELETE /api/v1/predictions
func (s *Server) handleClearPredictions(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Clear(); err != nil {
		s.logger.Error("failed to clear prediction rows", "err", err)
		s.writeError(w, http.StatusInternalServerError, "failed to clear predictions")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/top100
// Runs the fetch synchronously and answers with page 1.
func (s *Server) handleFetchTop100(w http.ResponseWriter, r *http.Request) {
	var body top100Request
	if !s.decodeBody(w, r, &body) {
		return
	}

	month := prediction.DefaultMonth
	if strings.TrimSpace(body.Month) != "" {
		m, err := prediction.ParseMonth(body.Month)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "month: "+err.Error())
			return
		}
		month = m
	}

	err := s.bulk.FetchTop100(r.Context(), s.dealer.Resolve(body.DealerCode), month)
	var ve *prediction.ValidationError
	if errors.As(err, &ve) {
		s.writeError(w, http.StatusBadRequest, ve.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.bulk.View(1))
}

// GET /api/v1/top100?page=N
func (s *Server) handleGetTop100(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.bulk.View(parseInt(r.URL.Query().Get("page"), 0)))
}

// GET /api/v1/top100/summary
func (s *Server) handleTop100Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := dashboard.Summarize(s.bulk.Entries())
	if err != nil {
		s.logger.Error("failed to summarize top100", "err", err)
		s.writeError(w, http.StatusInternalServerError, "failed to summarize")
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// GET /api/v1/overview?dealer_code=&page=
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	dealerCode := s.dealer.Resolve(r.URL.Query().Get("dealer_code"))
	page := max(parseInt(r.URL.Query().Get("page"), 1), 1)

	if ov, ok := s.cachedOverview(dealerCode, page); ok {
		s.writeJSON(w, http.StatusOK, ov)
		return
	}

	ov := s.dash.Overview(r.Context(), dealerCode, page)

	// Only complete overviews are cached.
	if len(ov.Errors) == 0 {
		s.storeOverview(dealerCode, ov)
	}

	s.writeJSON(w, http.StatusOK, ov)
}

func overviewKey(dealerCode string, page int) string {
	return fmt.Sprintf("%s|%d", dealerCode, page)
}

func (s *Server) cachedOverview(dealerCode string, page int) (dashboard.Overview, bool) {
	s.overviewCacheMu.RLock()
	defer s.overviewCacheMu.RUnlock()
	cached, ok := s.overviewCache[overviewKey(dealerCode, page)]
	if !ok || !time.Now().Before(cached.expiresAt) {
		return dashboard.Overview{}, false
	}
	return cached.data, true
}

// storeOverview keys the entry by the page actually served, so requests past
// the last page never add entries. Expired entries are swept on every write.
func (s *Server) storeOverview(dealerCode string, ov dashboard.Overview) {
	now := time.Now()

	s.overviewCacheMu.Lock()
	defer s.overviewCacheMu.Unlock()
	for k, c := range s.overviewCache {
		if !now.Before(c.expiresAt) {
			delete(s.overviewCache, k)
		}
	}
	if len(s.overviewCache) >= maxOverviewCacheEntries {
		clear(s.overviewCache)
	}
	s.overviewCache[overviewKey(dealerCode, ov.Parts.Page)] = &cachedOverview{
		data:      ov,
		expiresAt: now.Add(overviewCacheDuration),
	}
}

// GET /api/v1/part-lists?tab=&page=&page_size=
func (s *Server) handlePartLists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var kinds []backend.PartListKind
	if tab := q.Get("tab"); tab != "" && tab != "all" {
		kind, err := backend.ParsePartListKind(tab)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		kinds = []backend.PartListKind{kind}
	}

	tabs := s.dash.PartLists(r.Context(),
		s.dealer.Resolve(q.Get("dealer_code")),
		kinds,
		parseInt(q.Get("page"), 1),
		parseInt(q.Get("page_size"), 0),
	)
	s.writeJSON(w, http.StatusOK, map[string]any{"tabs": tabs})
}

// GET /api/v1/predictions/export
func (s *Server) handleExportPredictions(w http.ResponseWriter, r *http.Request) {
	rows, err := s.orch.Rows()
	if err != nil {
		s.logger.Error("failed to list prediction rows", "err", err)
		s.writeError(w, http.StatusInternalServerError, "failed to export predictions")
		return
	}
	s.writeWorkbook(w, "predictions.xlsx", export.PredictionRows(rows))
}

// GET /api/v1/top100/export
func (s *Server) handleExportTop100(w http.ResponseWriter, r *http.Request) {
	s.writeWorkbook(w, "top100.xlsx", export.Top100(s.bulk.Entries()))
}

// GET /api/v1/part-lists/{kind}/export
func (s *Server) handleExportPartList(w http.ResponseWriter, r *http.Request) {
	kind, err := backend.ParsePartListKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	records, err := s.dash.PartList(r.Context(), kind, s.dealer.Resolve(r.URL.Query().Get("dealer_code")))
	if err != nil {
		s.logger.Warn("part list export failed", "kind", kind, "err", err)
		s.writeError(w, http.StatusBadGateway, "failed to load part list")
		return
	}
	s.writeWorkbook(w, string(kind)+"-part-list.xlsx", export.PartList(kind, records))
}

func (s *Server) writeWorkbook(w http.ResponseWriter, filename string, t export.Table) {
	var buf bytes.Buffer
	if err := export.Write(&buf, t); err != nil {
		s.logger.Error("failed to write workbook", "file", filename, "err", err)
		s.writeError(w, http.StatusInternalServerError, "failed to build workbook")
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

// ConfigResponse is the non-secret runtime configuration.
type ConfigResponse struct {
	Mode              string   `json:"mode"`
	BackendURL        string   `json:"backend_url"`
	DefaultDealer     string   `json:"default_dealer"`
	Storage           string   `json:"storage"`
	StorageMaxRows    int      `json:"storage_max_rows"`
	RetryMaxAttempts  int      `json:"retry_max_attempts"`
	RetryInitialDelay string   `json:"retry_initial_delay"`
	RowsPerPage       int      `json:"rows_per_page"`
	StockDB           bool     `json:"stock_db"`
	Months            []string `json:"months"`
}

// GET /api/v1/config
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	months := make([]string, len(prediction.Months))
	for i, m := range prediction.Months {
		months[i] = m.String()
	}
	s.writeJSON(w, http.StatusOK, ConfigResponse{
		Mode:              string(s.cfg.Mode),
		BackendURL:        s.cfg.BackendURL,
		DefaultDealer:     s.cfg.DealerCode,
		Storage:           string(s.cfg.Storage),
		StorageMaxRows:    s.cfg.StorageMaxRows,
		RetryMaxAttempts:  s.cfg.RetryMaxAttempts,
		RetryInitialDelay: s.cfg.RetryInitialDelay.String(),
		RowsPerPage:       s.cfg.RowsPerPage,
		StockDB:           s.cfg.Features().StockDB,
		Months:            months,
	})
}
