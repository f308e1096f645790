package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"partsdash/internal/prediction"
	"partsdash/internal/storage"
)

// backendStub answers the backend endpoints the CLI commands call.
func backendStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/predict":
			_, _ = w.Write([]byte(`{"predicted_quantity": 7.6}`))
		case "/api/stock-details":
			_, _ = w.Write([]byte(`[{"pe_suggested_stock_qty": 12}]`))
		case "/api/top100-parts":
			if r.URL.Query().Get("dealer_code") == "empty" {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_, _ = w.Write([]byte(`[
				{"item_no": "A1", "predicted_monthly": 40, "pe_suggested_stock_qty": 10},
				{"item_no": "B2", "predicted_monthly": 30, "pe_suggested_stock_qty": 8},
				{"item_no": "C3", "predicted_monthly": 20, "pe_suggested_stock_qty": 6}
			]`))
		case "/api/idle-part-list":
			_, _ = w.Write([]byte(`{"data": [{"item_no": "A1", "qty": 2}, {"item_no": "B2", "qty": 5}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// runCLI executes the root command against backendURL with an in-memory
// row table and returns stdout.
func runCLI(t *testing.T, backendURL string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MODE", "full")
	t.Setenv("BACKEND_URL", backendURL)
	t.Setenv("DEALER_CODE", "10131")
	t.Setenv("DEALER_STATE_PATH", filepath.Join(dir, "dealer.json"))
	t.Setenv("STORAGE", "memory")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RETRY_INITIAL_DELAY", "1ms")
	t.Setenv("ROWS_PER_PAGE", "2")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--env-file="}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPredictCmd_Table(t *testing.T) {
	srv := backendStub(t)

	out, err := runCLI(t, srv.URL, "predict", "--part", "ABC123", "--month", "March")
	require.NoError(t, err)
	assert.Contains(t, out, "ABC123")
	assert.Contains(t, out, "March")
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "8")
	assert.Contains(t, out, string(storage.StatusResolved))
}

func TestPredictCmd_JSON(t *testing.T) {
	srv := backendStub(t)

	out, err := runCLI(t, srv.URL, "predict", "--part", "ABC123", "--dealer", "20202", "-o", "json")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows), out)
	require.Len(t, rows, 1)
	assert.Equal(t, "20202", rows[0]["dealer_code"])
	assert.Equal(t, prediction.DefaultMonth.String(), rows[0]["month"])
	assert.Equal(t, float64(12), rows[0]["pi_prediction"])
	assert.Equal(t, float64(8), rows[0]["iai_prediction"])
	assert.Equal(t, false, rows[0]["is_loading"])
}

func TestPredictCmd_RequiresPart(t *testing.T) {
	srv := backendStub(t)

	_, err := runCLI(t, srv.URL, "predict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "part")
}

func TestTop100Cmd_Page(t *testing.T) {
	srv := backendStub(t)

	out, err := runCLI(t, srv.URL, "top100", "--page", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "C3")
	assert.NotContains(t, out, "A1")
	assert.Contains(t, out, "page 2 of 2")
}

func TestTop100Cmd_BadMonth(t *testing.T) {
	srv := backendStub(t)

	_, err := runCLI(t, srv.URL, "top100", "--month", "Smarch")
	require.Error(t, err)
}

func TestExportCmd_PartList(t *testing.T) {
	srv := backendStub(t)
	path := filepath.Join(t.TempDir(), "out", "idle.xlsx")

	_, err := runCLI(t, srv.URL, "export", "--kind", "idle", "--out", path)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("idle")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"item_no", "qty"}, rows[0])
	assert.Equal(t, "B2", rows[2][0])
}

func TestExportCmd_Top100(t *testing.T) {
	srv := backendStub(t)
	path := filepath.Join(t.TempDir(), "top.xlsx")

	_, err := runCLI(t, srv.URL, "export", "--kind", "top100", "--out", path)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Top 100")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestExportCmd_EmptyTop100IsAnError(t *testing.T) {
	srv := backendStub(t)

	_, err := runCLI(t, srv.URL, "export", "--kind", "top100", "--dealer", "empty",
		"--out", filepath.Join(t.TempDir(), "top.xlsx"))
	require.Error(t, err)
	assert.Equal(t, prediction.AdvisoryNoData, err.Error())
}

func TestExportCmd_UnknownKind(t *testing.T) {
	srv := backendStub(t)

	_, err := runCLI(t, srv.URL, "export", "--kind", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown kind "bogus"`)
}
