package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Pinger checks backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker periodically checks backend health.
type HealthChecker struct {
	pinger        Pinger
	checkInterval time.Duration
	timeout       time.Duration
	healthy       atomic.Bool
	lastCheck     atomic.Value // time.Time
	lastError     atomic.Value // string
	metrics       *Metrics
	logger        *slog.Logger
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// NewHealthChecker creates a health checker and starts probing in the background.
func NewHealthChecker(pinger Pinger, checkInterval, timeout time.Duration, metrics *Metrics, logger *slog.Logger) *HealthChecker {
	if logger == nil {
		logger = slog.Default()
	}
	hc := &HealthChecker{
		pinger:        pinger,
		checkInterval: checkInterval,
		timeout:       timeout,
		metrics:       metrics,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}

	// Unhealthy until the first check completes
	hc.healthy.Store(false)

	go hc.run()

	return hc
}

// run performs periodic health checks.
func (hc *HealthChecker) run() {
	hc.check()

	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hc.check()
		case <-hc.stopCh:
			return
		}
	}
}

func (hc *HealthChecker) check() {
	ctx, cancel := context.WithTimeout(context.Background(), hc.timeout)
	defer cancel()

	if err := hc.pinger.Ping(ctx); err != nil {
		hc.updateHealth(false, err.Error())
		return
	}
	hc.updateHealth(true, "")
}

func (hc *HealthChecker) updateHealth(healthy bool, errMsg string) {
	was := hc.healthy.Swap(healthy)
	hc.lastCheck.Store(time.Now())
	hc.lastError.Store(errMsg)

	if was != healthy {
		if healthy {
			hc.logger.Info("backend healthy")
		} else {
			hc.logger.Warn("backend unhealthy", "error", errMsg)
		}
	} else if errMsg != "" {
		hc.logger.Debug("backend health check failed", "error", errMsg)
	}

	hc.metrics.UpdateBackendHealth(healthy)
}

// Healthy returns whether the backend is currently healthy.
func (hc *HealthChecker) Healthy() bool {
	return hc.healthy.Load()
}

// LastCheck returns the time of the last health check.
func (hc *HealthChecker) LastCheck() time.Time {
	if v := hc.lastCheck.Load(); v != nil {
		return v.(time.Time)
	}
	return time.Time{}
}

// LastError returns the last error message, if any.
func (hc *HealthChecker) LastError() string {
	if v := hc.lastError.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// Shutdown stops the health checker. Safe to call more than once.
func (hc *HealthChecker) Shutdown() {
	hc.stopOnce.Do(func() { close(hc.stopCh) })
}
