// Package storage holds the single-mode prediction result table.
// Rows are appended on submit and updated in place by key; nothing else
// ever removes them except eviction at the bound or an explicit Clear.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Status is the lifecycle state of a prediction row.
type Status string

const (
	StatusLoading  Status = "loading"
	StatusResolved Status = "resolved"
	StatusFailed   Status = "failed"
)

// Placeholder values shown in place of a number.
const (
	PlaceholderPending = "-"
	PlaceholderFailed  = "FAIL"
)

// Cell is a table value that is either a number or a placeholder string.
// It marshals to a JSON number or a JSON string accordingly.
type Cell struct {
	Number      *float64
	Placeholder string
}

// NumberCell returns a cell holding v.
func NumberCell(v float64) Cell {
	return Cell{Number: &v}
}

// PendingCell returns the "-" placeholder.
func PendingCell() Cell {
	return Cell{Placeholder: PlaceholderPending}
}

// FailedCell returns the "FAIL" placeholder.
func FailedCell() Cell {
	return Cell{Placeholder: PlaceholderFailed}
}

// IsNumber reports whether the cell carries a number.
func (c Cell) IsNumber() bool {
	return c.Number != nil
}

// Value returns the number, or 0 and false for a placeholder.
func (c Cell) Value() (float64, bool) {
	if c.Number == nil {
		return 0, false
	}
	return *c.Number, true
}

func (c Cell) String() string {
	if c.Number != nil {
		return strconv.FormatFloat(*c.Number, 'f', -1, 64)
	}
	if c.Placeholder == "" {
		return PlaceholderPending
	}
	return c.Placeholder
}

func (c Cell) MarshalJSON() ([]byte, error) {
	if c.Number != nil {
		return json.Marshal(*c.Number)
	}
	return json.Marshal(c.String())
}

func (c *Cell) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = PendingCell()
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Cell{Placeholder: s}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("cell: %w", err)
	}
	*c = NumberCell(v)
	return nil
}

// Row is one entry of the single-mode result table.
type Row struct {
	Key           string `json:"key"`
	Seq           int64  `json:"seq"`
	DealerCode    string `json:"dealer_code"`
	PartNumber    string `json:"part_number"`
	Month         string `json:"month"`
	PIPrediction  Cell   `json:"pi_prediction"`
	IAIPrediction Cell   `json:"iai_prediction"`
	IsLoading     bool   `json:"is_loading"`
	Status        Status `json:"status"`
	Error         string `json:"error,omitempty"`
	Attempts      int    `json:"attempts"`
	CreatedAt     int64  `json:"created_at"` // unix ms
	UpdatedAt     int64  `json:"updated_at"` // unix ms
}

// NewLoadingRow returns a row in its initial loading state.
func NewLoadingRow(key, dealerCode, partNumber, month string) Row {
	now := time.Now().UnixMilli()
	return Row{
		Key:           key,
		DealerCode:    dealerCode,
		PartNumber:    partNumber,
		Month:         month,
		PIPrediction:  PendingCell(),
		IAIPrediction: PendingCell(),
		IsLoading:     true,
		Status:        StatusLoading,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// RowUpdate carries the fields to merge into a row. Nil fields are left alone.
type RowUpdate struct {
	PIPrediction  *Cell
	IAIPrediction *Cell
	IsLoading     *bool
	Status        *Status
	Error         *string
	Attempts      *int
}

// Apply returns r with u merged in.
func (r Row) Apply(u RowUpdate) Row {
	if u.PIPrediction != nil {
		r.PIPrediction = *u.PIPrediction
	}
	if u.IAIPrediction != nil {
		r.IAIPrediction = *u.IAIPrediction
	}
	if u.IsLoading != nil {
		r.IsLoading = *u.IsLoading
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.Error != nil {
		r.Error = *u.Error
	}
	if u.Attempts != nil {
		r.Attempts = *u.Attempts
	}
	r.UpdatedAt = time.Now().UnixMilli()
	return r
}

// IndexOfKey returns the position of key in rows, or -1.
func IndexOfKey(rows []Row, key string) int {
	for i := range rows {
		if rows[i].Key == key {
			return i
		}
	}
	return -1
}

// UpsertByKey returns a new slice where the row with the given key has u
// merged into it. When no row matches, rows is returned as is: there is no
// insert on miss. The input slice is never modified.
func UpsertByKey(rows []Row, key string, u RowUpdate) []Row {
	i := IndexOfKey(rows, key)
	if i < 0 {
		return rows
	}
	out := make([]Row, len(rows))
	copy(out, rows)
	out[i] = out[i].Apply(u)
	return out
}

// Table is the row store behind the orchestrator.
type Table interface {
	// Insert appends a row. When the table is full the oldest row is evicted.
	Insert(row Row) error

	// Update merges u into the row with key. It reports false when the
	// row is not present; that is not an error.
	Update(key string, u RowUpdate) (bool, error)

	// GetByKey returns the row or nil when absent.
	GetByKey(key string) (*Row, error)

	// List returns all rows in insertion order.
	List() ([]Row, error)

	// Count returns the number of rows.
	Count() (int, error)

	// Clear removes every row.
	Clear() error

	Close() error
}

// Ptr returns a pointer to v, for building RowUpdate values.
func Ptr[T any](v T) *T {
	return &v
}
