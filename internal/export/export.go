// Package export writes dashboard tables as one-sheet XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"partsdash/internal/backend"
	"partsdash/internal/storage"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Table is a header row plus data rows destined for one sheet.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]any
}

// Write renders t as an XLSX workbook to w.
func Write(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("name sheet: %w", err)
		}
	}

	for i, h := range t.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cellValue(c storage.Cell) any {
	if v, ok := c.Value(); ok {
		return v
	}
	return c.String()
}

// PredictionRows lays out the single-mode result table.
func PredictionRows(rows []storage.Row) Table {
	t := Table{
		Sheet:   "Predictions",
		Headers: []string{"No.", "Dealer Code", "Part Number", "Month", "PI Prediction", "iAI Prediction", "Status"},
		Rows:    make([][]any, 0, len(rows)),
	}
	for i, r := range rows {
		t.Rows = append(t.Rows, []any{
			i + 1, r.DealerCode, r.PartNumber, r.Month,
			cellValue(r.PIPrediction), cellValue(r.IAIPrediction), string(r.Status),
		})
	}
	return t
}

// Top100 lays out the bulk list with 1-based ranks in server order.
func Top100(entries []backend.Top100Entry) Table {
	t := Table{
		Sheet:   "Top 100",
		Headers: []string{"Rank", "Part Number", "Predicted Monthly", "PI Suggested Stock"},
		Rows:    make([][]any, 0, len(entries)),
	}
	for i, e := range entries {
		t.Rows = append(t.Rows, []any{
			i + 1, e.ItemNo, e.PredictedMonthly.InexactFloat64(), e.SuggestedStockQty.InexactFloat64(),
		})
	}
	return t
}

// PartList lays out a part list. Columns are the union of every record's
// keys, sorted, since the backend column set varies per list.
func PartList(kind backend.PartListKind, records []backend.Record) Table {
	seen := map[string]bool{}
	var headers []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	sort.Strings(headers)

	t := Table{
		Sheet:   string(kind),
		Headers: headers,
		Rows:    make([][]any, 0, len(records)),
	}
	for _, rec := range records {
		row := make([]any, len(headers))
		for i, h := range headers {
			row[i] = plain(rec[h])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// plain converts decoded JSON values into something SetCellValue renders.
func plain(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case interface{ Float64() (float64, error) }:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return fmt.Sprint(x)
	case string, bool, float64, int, int64:
		return x
	default:
		return fmt.Sprint(x)
	}
}
