package dealer

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsdash/internal/supervisor"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSelector_DefaultWhenNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dealer.json")
	s := NewSelector(path, "10131", nil, quietLogger())
	assert.Equal(t, "10131", s.Current())
}

func TestSelector_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "dealer.json")

	s := NewSelector(path, "10131", nil, quietLogger())
	changed, err := s.Set(" 20456 ")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "20456", s.Current())

	reloaded := NewSelector(path, "10131", nil, quietLogger())
	assert.Equal(t, "20456", reloaded.Current())

	entries, _ := os.ReadDir(filepath.Dir(path))
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSelector_CorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dealer.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := NewSelector(path, "10131", nil, quietLogger())
	assert.Equal(t, "10131", s.Current())
}

func TestSelector_RejectsEmpty(t *testing.T) {
	s := NewSelector("", "10131", nil, quietLogger())
	_, err := s.Set("   ")
	assert.ErrorIs(t, err, ErrEmptyCode)
	assert.Equal(t, "10131", s.Current())
}

func TestSelector_SameValueIsNoop(t *testing.T) {
	s := NewSelector("", "10131", nil, quietLogger())
	calls := 0
	s.OnChange(func(string) { calls++ })

	changed, err := s.Set("10131")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, calls)
}

func TestSelector_NotifiesHooksAndBus(t *testing.T) {
	bus := supervisor.NewEventBus(8)
	defer bus.Shutdown()
	sub := bus.Subscribe()

	s := NewSelector("", "10131", bus, quietLogger())
	var got string
	s.OnChange(func(code string) { got = code })

	_, err := s.Set("30999")
	require.NoError(t, err)
	assert.Equal(t, "30999", got)

	select {
	case ev := <-sub:
		assert.Equal(t, supervisor.EventDealerChanged, ev.Type)
		assert.Equal(t, "30999", ev.DealerCode)
	case <-time.After(time.Second):
		t.Fatal("no dealer_changed event")
	}
}

func TestSelector_Resolve(t *testing.T) {
	s := NewSelector("", "10131", nil, quietLogger())
	assert.Equal(t, "10131", s.Resolve(""))
	assert.Equal(t, "777", s.Resolve(" 777 "))
}
