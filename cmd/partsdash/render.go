package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"partsdash/internal/prediction"
	"partsdash/internal/storage"
)

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderRows(w io.Writer, format string, rows ...storage.Row) error {
	if format == "json" {
		return renderJSON(w, rows)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Dealer", "Part", "Month", "PI Prediction", "IAI Prediction", "Status", "Attempts"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	for _, r := range rows {
		t.AppendRow(table.Row{
			r.DealerCode, r.PartNumber, r.Month,
			r.PIPrediction.String(), r.IAIPrediction.String(),
			string(r.Status), r.Attempts,
		})
	}
	t.Render()
	return nil
}

func renderTop100(w io.Writer, format string, v prediction.Top100View) error {
	if format == "json" {
		return renderJSON(w, v)
	}
	if len(v.Entries) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Top 100 for %s, %s", v.DealerCode, v.Month))
	t.AppendHeader(table.Row{"Rank", "Item No", "Predicted Monthly", "PE Suggested Stock"})
	for _, e := range v.Entries {
		t.AppendRow(table.Row{e.Rank, e.ItemNo, e.PredictedMonthly.String(), e.SuggestedStockQty.String()})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("page %d of %d", v.Page, v.TotalPages), fmt.Sprintf("%d parts", v.TotalItems)})
	t.Render()
	return nil
}
