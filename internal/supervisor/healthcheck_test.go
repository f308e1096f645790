package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

type fakePinger struct {
	fail atomic.Bool
}

func (p *fakePinger) Ping(ctx context.Context) error {
	if p.fail.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}

func TestHealthChecker_Healthy(t *testing.T) {
	p := &fakePinger{}
	hc := NewHealthChecker(p, 20*time.Millisecond, time.Second, nil, testLogger())
	defer hc.Shutdown()

	waitFor(t, hc.Healthy)

	if hc.LastError() != "" {
		t.Errorf("expected no error, got: %s", hc.LastError())
	}
	if hc.LastCheck().IsZero() {
		t.Error("expected LastCheck to be set")
	}
}

func TestHealthChecker_Unhealthy(t *testing.T) {
	p := &fakePinger{}
	p.fail.Store(true)
	hc := NewHealthChecker(p, 20*time.Millisecond, time.Second, NewMetrics(), testLogger())
	defer hc.Shutdown()

	waitFor(t, func() bool { return hc.LastError() != "" })

	if hc.Healthy() {
		t.Error("expected health checker to be unhealthy")
	}
}

func TestHealthChecker_Recovers(t *testing.T) {
	p := &fakePinger{}
	p.fail.Store(true)
	hc := NewHealthChecker(p, 10*time.Millisecond, time.Second, nil, testLogger())
	defer hc.Shutdown()

	waitFor(t, func() bool { return hc.LastError() != "" })
	p.fail.Store(false)
	waitFor(t, hc.Healthy)
}

func TestHealthChecker_ShutdownTwice(t *testing.T) {
	hc := NewHealthChecker(&fakePinger{}, time.Hour, time.Second, nil, testLogger())
	hc.Shutdown()
	hc.Shutdown()
}
