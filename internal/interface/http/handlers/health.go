package handlers

import (
	"context"
	"sort"
	"sync"
	"time"
)

// HealthChecker reports readiness of the service dependencies.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc returns an error when the dependency is unusable.
type HealthCheckFunc func(ctx context.Context) error

// Pinger is anything with a connectivity probe (Postgres pool, Redis cache, memory store).
type Pinger interface {
	Ping(ctx context.Context) error
}

func PingCheck(p Pinger) HealthCheckFunc { return p.Ping }

// Статусы готовности.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded" // упала необязательная зависимость
	StatusDown     = "down"
)

// HealthStatus is the body of /ready. Healthy is false only when a required check fails.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Healthy   bool                   `json:"healthy"`
	Failing   []string               `json:"failing,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Required bool   `json:"required"`
	Error    string `json:"error,omitempty"`
	Took     string `json:"took"`
}

type probe struct {
	fn       HealthCheckFunc
	required bool
}

// CompositeHealthChecker runs all probes concurrently, each under its own timeout.
type CompositeHealthChecker struct {
	version string
	started time.Time
	timeout time.Duration

	mu     sync.RWMutex
	probes map[string]probe
}

func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		version: version,
		started: time.Now(),
		timeout: 3 * time.Second,
		probes:  make(map[string]probe),
	}
}

// AddCheck registers a required dependency; its failure makes the service not ready.
func (c *CompositeHealthChecker) AddCheck(name string, fn HealthCheckFunc) {
	c.add(name, fn, true)
}

// AddOptionalCheck registers a dependency whose failure only degrades the service.
func (c *CompositeHealthChecker) AddOptionalCheck(name string, fn HealthCheckFunc) {
	c.add(name, fn, false)
}

func (c *CompositeHealthChecker) add(name string, fn HealthCheckFunc, required bool) {
	c.mu.Lock()
	c.probes[name] = probe{fn: fn, required: required}
	c.mu.Unlock()
}

func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	probes := make(map[string]probe, len(c.probes))
	for k, v := range c.probes {
		probes[k] = v
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(probes))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, p := range probes {
		wg.Add(1)
		go func(name string, p probe) {
			defer wg.Done()
			res := c.run(ctx, p)
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()

	st := HealthStatus{
		Status:    StatusOK,
		Healthy:   true,
		Checks:    results,
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}
	for name, res := range results {
		if res.Healthy {
			continue
		}
		st.Failing = append(st.Failing, name)
		if res.Required {
			st.Healthy = false
		}
	}
	sort.Strings(st.Failing)
	switch {
	case !st.Healthy:
		st.Status = StatusDown
	case len(st.Failing) > 0:
		st.Status = StatusDegraded
	}
	return st
}

func (c *CompositeHealthChecker) run(ctx context.Context, p probe) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := p.fn(ctx)
	res := CheckResult{
		Healthy:  err == nil,
		Required: p.required,
		Took:     time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}
