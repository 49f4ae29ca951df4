package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-hotel/internal/observability"
)

// Status is the last known connectivity state.
type Status struct {
	Connected bool      `json:"connected"`
	LatencyMS int64     `json:"latency_ms"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// MonitorConfig tunes the monitor.
type MonitorConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  *observability.Pipeline
}

// Monitor probes on a fixed interval and on demand.
type Monitor struct {
	probe    Prober
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Pipeline
	trigger  chan struct{}

	mu        sync.RWMutex
	status    Status
	listeners []func(Status)
}

// NewMonitor constructs a Monitor. A zero interval means 30s.
func NewMonitor(probe Prober, cfg MonitorConfig) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		logger:   logger,
		metrics:  cfg.Metrics,
		trigger:  make(chan struct{}, 1),
	}
}

// Status returns the last observed state.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// OnChange registers fn to run whenever Connected flips.
func (m *Monitor) OnChange(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// TriggerOnline asks for an immediate probe, typically after a client reports
// it came back online. Repeated triggers before the probe runs collapse into one.
func (m *Monitor) TriggerOnline() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Run probes immediately, then on every tick or trigger until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.Check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		case <-m.trigger:
			m.Check(ctx)
			ticker.Reset(m.interval)
		}
	}
}

// Check runs one probe and records it.
func (m *Monitor) Check(ctx context.Context) Status {
	res := m.probe.Probe(ctx)
	status := Status{
		Connected: res.Reachable,
		LatencyMS: res.LatencyMS,
		Endpoint:  res.Endpoint,
		CheckedAt: time.Now().UTC(),
	}
	if res.Err != nil && !res.Reachable {
		status.Error = res.Err.Error()
	}
	m.metrics.Probe(res.Reachable, res.Latency.Seconds())

	m.mu.Lock()
	// The first probe only establishes the baseline; listeners hear transitions.
	first := m.status.CheckedAt.IsZero()
	changed := !first && m.status.Connected != status.Connected
	m.status = status
	listeners := append([]func(Status){}, m.listeners...)
	m.mu.Unlock()

	if first || changed {
		if status.Connected {
			m.logger.Info("store reachable", slog.String("endpoint", status.Endpoint), slog.Int64("latency_ms", status.LatencyMS))
		} else {
			m.logger.Warn("store unreachable", slog.String("error", status.Error))
		}
	}
	if changed {
		for _, fn := range listeners {
			fn(status)
		}
	}
	return status
}
