// Package dealer keeps the selected dealer code, persists it across
// restarts and announces changes on the event bus.
package dealer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"partsdash/internal/supervisor"
)

// ErrEmptyCode is returned when setting a blank dealer code.
var ErrEmptyCode = errors.New("dealer code is required")

type state struct {
	DealerCode string `json:"dealer_code"`
}

// Selector holds the current dealer code.
type Selector struct {
	path     string
	fallback string
	bus      *supervisor.EventBus
	logger   *slog.Logger

	mu      sync.RWMutex
	current string
	hooks   []func(code string)
}

// NewSelector loads the persisted code from path, falling back to
// defaultCode when the file is missing or unreadable. An empty path keeps
// the selection in memory only.
func NewSelector(path, defaultCode string, bus *supervisor.EventBus, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Selector{
		path:     path,
		fallback: strings.TrimSpace(defaultCode),
		bus:      bus,
		logger:   logger,
	}
	s.current = s.fallback

	if path == "" {
		return s
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to read dealer state, using default", "path", path, "err", err)
		}
		return s
	}
	var st state
	if err := json.Unmarshal(b, &st); err != nil {
		logger.Warn("invalid dealer state, using default", "path", path, "err", err)
		return s
	}
	if code := strings.TrimSpace(st.DealerCode); code != "" {
		s.current = code
	}
	return s
}

// Current returns the selected dealer code.
func (s *Selector) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Default returns the configured default code.
func (s *Selector) Default() string {
	return s.fallback
}

// Resolve returns code trimmed, or the current selection when code is blank.
func (s *Selector) Resolve(code string) string {
	if c := strings.TrimSpace(code); c != "" {
		return c
	}
	return s.Current()
}

// OnChange registers fn to run after every effective change.
func (s *Selector) OnChange(fn func(code string)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Set changes the dealer code. It reports whether the value changed.
// Setting the current value again is a no-op.
func (s *Selector) Set(code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, ErrEmptyCode
	}

	s.mu.Lock()
	if code == s.current {
		s.mu.Unlock()
		return false, nil
	}
	if err := s.persist(code); err != nil {
		s.mu.Unlock()
		return false, err
	}
	prev := s.current
	s.current = code
	hooks := append([]func(string){}, s.hooks...)
	s.mu.Unlock()

	s.logger.Info("dealer code changed", "from", prev, "to", code)
	for _, fn := range hooks {
		fn(code)
	}
	s.bus.Publish(supervisor.Event{Type: supervisor.EventDealerChanged, DealerCode: code})
	return true, nil
}

// persist writes the state file via a temp file and rename.
func (s *Selector) persist(code string) error {
	if s.path == "" {
		return nil
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dealer state directory: %w", err)
	}
	b, err := json.Marshal(state{DealerCode: code})
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".dealer-*.json")
	if err != nil {
		return fmt.Errorf("write dealer state: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write dealer state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write dealer state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write dealer state: %w", err)
	}
	return nil
}
