//go:build mips64 || mips64le || ppc64 || s390x

package storage

import (
	"errors"
	"log/slog"
)

var errSQLiteUnavailable = errors.New("SQLite storage not available")

// SQLiteStore is a stub for platforms the pure Go driver does not support.
type SQLiteStore struct{}

// NewSQLiteStore always fails on this platform.
func NewSQLiteStore(path string, maxRows int, logger *slog.Logger) (*SQLiteStore, error) {
	return nil, errors.New("SQLite storage is not supported on this platform, use STORAGE=memory instead")
}

func (s *SQLiteStore) Insert(row Row) error { return errSQLiteUnavailable }
func (s *SQLiteStore) Update(key string, u RowUpdate) (bool, error) { return false, errSQLiteUnavailable }
func (s *SQLiteStore) GetByKey(key string) (*Row, error) { return nil, errSQLiteUnavailable }
func (s *SQLiteStore) List() ([]Row, error) { return nil, errSQLiteUnavailable }
func (s *SQLiteStore) Count() (int, error) { return 0, errSQLiteUnavailable }
func (s *SQLiteStore) Clear() error { return errSQLiteUnavailable }
func (s *SQLiteStore) Close() error { return nil }
