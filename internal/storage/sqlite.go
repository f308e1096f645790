//go:build !mips64 && !mips64le && !ppc64 && !s390x

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO required)
)

const schema = `
CREATE TABLE IF NOT EXISTS prediction_rows (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    row_key TEXT NOT NULL UNIQUE,
    dealer_code TEXT NOT NULL,
    part_number TEXT NOT NULL,
    month TEXT NOT NULL,
    pi_prediction TEXT NOT NULL DEFAULT '"-"',
    iai_prediction TEXT NOT NULL DEFAULT '"-"',
    is_loading INTEGER NOT NULL DEFAULT 1,
    status TEXT NOT NULL DEFAULT 'loading',
    error TEXT,
    attempts INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_prediction_rows_dealer ON prediction_rows(dealer_code, seq);
`

const rowColumns = `seq, row_key, dealer_code, part_number, month, pi_prediction, iai_prediction,
	is_loading, status, error, attempts, created_at, updated_at`

// SQLiteStore implements Table using SQLite with WAL mode, so rows survive
// a restart of the service.
type SQLiteStore struct {
	db      *sql.DB
	maxRows int
	pruneMu sync.Mutex
	logger  *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
func NewSQLiteStore(path string, maxRows int, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal=WAL&_sync=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SQLiteStore{
		db:      db,
		maxRows: maxRows,
		logger:  logger,
	}, nil
}

// Insert appends a row and prunes the oldest rows beyond maxRows.
func (s *SQLiteStore) Insert(row Row) error {
	pi, err := json.Marshal(row.PIPrediction)
	if err != nil {
		return fmt.Errorf("encode pi cell: %w", err)
	}
	iai, err := json.Marshal(row.IAIPrediction)
	if err != nil {
		return fmt.Errorf("encode iai cell: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO prediction_rows (
			row_key, dealer_code, part_number, month, pi_prediction, iai_prediction,
			is_loading, status, error, attempts, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		row.Key, row.DealerCode, row.PartNumber, row.Month, string(pi), string(iai),
		boolToInt(row.IsLoading), string(row.Status), nullString(row.Error), row.Attempts,
		row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert row: %w", err)
	}

	s.prune()
	return nil
}

// Update merges u into the row with key.
func (s *SQLiteStore) Update(key string, u RowUpdate) (bool, error) {
	current, err := s.GetByKey(key)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, nil
	}
	next := current.Apply(u)

	var sets []string
	var args []any

	if u.PIPrediction != nil {
		b, err := json.Marshal(next.PIPrediction)
		if err != nil {
			return false, fmt.Errorf("encode pi cell: %w", err)
		}
		sets = append(sets, "pi_prediction = ?")
		args = append(args, string(b))
	}
	if u.IAIPrediction != nil {
		b, err := json.Marshal(next.IAIPrediction)
		if err != nil {
			return false, fmt.Errorf("encode iai cell: %w", err)
		}
		sets = append(sets, "iai_prediction = ?")
		args = append(args, string(b))
	}
	if u.IsLoading != nil {
		sets = append(sets, "is_loading = ?")
		args = append(args, boolToInt(next.IsLoading))
	}
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(next.Status))
	}
	if u.Error != nil {
		sets = append(sets, "error = ?")
		args = append(args, nullString(next.Error))
	}
	if u.Attempts != nil {
		sets = append(sets, "attempts = ?")
		args = append(args, next.Attempts)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, next.UpdatedAt)
	args = append(args, key)

	query := "UPDATE prediction_rows SET " + strings.Join(sets, ", ") + " WHERE row_key = ?"
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("update row: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update row: %w", err)
	}
	return n > 0, nil
}

// GetByKey retrieves a single row or nil.
func (s *SQLiteStore) GetByKey(key string) (*Row, error) {
	row := s.db.QueryRow(`SELECT `+rowColumns+` FROM prediction_rows WHERE row_key = ?`, key)
	r, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get row: %w", err)
	}
	return r, nil
}

// List returns every row in insertion order.
func (s *SQLiteStore) List() ([]Row, error) {
	rows, err := s.db.Query(`SELECT ` + rowColumns + ` FROM prediction_rows ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM prediction_rows`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM prediction_rows`); err != nil {
		return fmt.Errorf("clear rows: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// prune deletes the oldest rows beyond maxRows.
func (s *SQLiteStore) prune() {
	if s.maxRows <= 0 {
		return
	}
	s.pruneMu.Lock()
	defer s.pruneMu.Unlock()

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM prediction_rows`).Scan(&count); err != nil {
		s.logger.Error("prune count query failed", "err", err)
		return
	}
	if count <= s.maxRows {
		return
	}

	toDelete := count - s.maxRows
	_, err := s.db.Exec(`
		DELETE FROM prediction_rows WHERE seq IN (
			SELECT seq FROM prediction_rows ORDER BY seq ASC LIMIT ?
		)
	`, toDelete)
	if err != nil {
		s.logger.Error("prune failed", "err", err)
		return
	}
	s.logger.Debug("pruned old prediction rows", "deleted", toDelete)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(sc rowScanner) (*Row, error) {
	var r Row
	var pi, iai, status string
	var errText sql.NullString
	var loading int

	err := sc.Scan(
		&r.Seq, &r.Key, &r.DealerCode, &r.PartNumber, &r.Month, &pi, &iai,
		&loading, &status, &errText, &r.Attempts, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(pi), &r.PIPrediction); err != nil {
		return nil, fmt.Errorf("decode pi cell: %w", err)
	}
	if err := json.Unmarshal([]byte(iai), &r.IAIPrediction); err != nil {
		return nil, fmt.Errorf("decode iai cell: %w", err)
	}
	r.IsLoading = loading != 0
	r.Status = Status(status)
	r.Error = errText.String
	return &r, nil
}
