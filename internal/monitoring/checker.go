package monitoring

import (
	"context"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe checks one dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Checker runs dependency probes periodically in the background and keeps
// the latest result of each.
type Checker struct {
	probes   []Probe
	interval time.Duration
	timeout  time.Duration

	mu     sync.RWMutex
	status map[string]string
}

// NewChecker creates a background health checker. A non-positive interval
// defaults to 30 seconds.
func NewChecker(interval time.Duration, probes ...Probe) *Checker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Checker{
		probes:   probes,
		interval: interval,
		timeout:  5 * time.Second,
		status:   make(map[string]string),
	}
}

// Run probes immediately, then on every tick. It blocks until ctx is
// cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting health checker",
		zap.Duration("interval", c.interval),
		zap.Int("probes", len(c.probes)),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			c.CheckNow(ctx)
		}
		select {
		case <-ctx.Done():
			log.Info("health checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// CheckNow runs every probe once and records the results.
func (c *Checker) CheckNow(ctx context.Context) {
	for _, p := range c.probes {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		err := p.Check(pctx)
		cancel()

		result := "ok"
		up := 1.0
		if err != nil {
			result = err.Error()
			up = 0
			zap.L().Warn("monitoring: probe failed", zap.String("dependency", p.Name), zap.Error(err))
		}
		DependencyUp.WithLabelValues(p.Name).Set(up)

		c.mu.Lock()
		c.status[p.Name] = result
		c.mu.Unlock()
	}
}

// Status returns the latest result per dependency ("ok" or the error text)
// and whether every probed dependency is healthy. Dependencies not probed
// yet are absent and do not count as failures.
func (c *Checker) Status() (map[string]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthy := true
	for _, v := range c.status {
		if v != "ok" {
			healthy = false
		}
	}
	return maps.Clone(c.status), healthy
}
