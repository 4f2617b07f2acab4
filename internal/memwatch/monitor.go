package memwatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/procfs"

	"capturebridge/internal/logging"
	"capturebridge/internal/metrics"
)

// Reading is one observation of process memory.
type Reading struct {
	RSSBytes  int64
	SampledAt time.Time
}

// MB returns the reading in megabytes.
func (r Reading) MB() float64 {
	return float64(r.RSSBytes) / (1024 * 1024)
}

// Monitor samples process RSS on a fixed interval and publishes the latest
// reading through an atomically readable value. It is purely observational;
// consumers decide what to do with a reading.
type Monitor struct {
	interval time.Duration
	logger   *slog.Logger
	readRSS  func() (int64, error)

	latest     atomic.Value // Reading
	generation atomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// Option configures optional Monitor behavior.
type Option func(*Monitor)

// WithReader overrides the RSS source used for sampling (for tests).
func WithReader(read func() (int64, error)) Option {
	return func(m *Monitor) {
		m.readRSS = read
	}
}

// New constructs a Monitor sampling at the given interval.
func New(interval time.Duration, logger *slog.Logger, opts ...Option) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Monitor{
		interval: interval,
		logger:   logger.With(logging.String(logging.FieldComponent, "memwatch")),
		readRSS:  procRSS,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins background sampling. Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	m.sample()
	go m.loop(runCtx, m.done)
}

// Stop terminates background sampling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	<-done
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	rss, err := m.readRSS()
	if err != nil {
		m.logger.Warn("memory sample failed", logging.Error(err))
		return
	}
	reading := Reading{RSSBytes: rss, SampledAt: time.Now().UTC()}
	m.latest.Store(reading)
	m.generation.Add(1)
	metrics.ProcessMemoryUsage.Set(reading.MB())
}

// Latest returns the most recent reading. The zero Reading is returned before
// the first successful sample.
func (m *Monitor) Latest() Reading {
	if v := m.latest.Load(); v != nil {
		return v.(Reading)
	}
	return Reading{}
}

// Generation returns a counter that increments on every successful sample.
func (m *Monitor) Generation() uint64 {
	return m.generation.Load()
}

// AwaitFreshSample blocks until a sample newer than the given generation has
// been taken, or the context is done. Used after an abandoned attempt to
// account for lingering memory before the next job starts.
func (m *Monitor) AwaitFreshSample(ctx context.Context, sinceGeneration uint64) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if m.generation.Load() > sinceGeneration {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// IsOverCeiling reports whether the latest reading exceeds ceilingBytes.
func (m *Monitor) IsOverCeiling(ceilingBytes int64) bool {
	return OverCeiling(m.Latest(), ceilingBytes)
}

// OverCeiling reports whether a reading exceeds ceilingBytes. A zero reading
// never trips the ceiling.
func OverCeiling(reading Reading, ceilingBytes int64) bool {
	return ceilingBytes > 0 && reading.RSSBytes > ceilingBytes
}

func procRSS() (int64, error) {
	proc, err := procfs.Self()
	if err != nil {
		return 0, fmt.Errorf("open /proc/self: %w", err)
	}
	stat, err := proc.Stat()
	if err != nil {
		return 0, fmt.Errorf("read proc stat: %w", err)
	}
	return int64(stat.ResidentMemory()), nil
}
