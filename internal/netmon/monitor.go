// Package netmon tracks the last-observed connectivity state. It is the
// single source of truth for "can we reach the remote backend": it never
// probes on the synchronous read path and treats probe errors as offline.
package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/mbelkin/cardsync/internal/logging"
)

// Status is the last-observed connectivity state.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Pinger probes the remote backend. Any returned error counts as offline.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor periodically probes the backend and notifies listeners once per
// status transition. A new Monitor starts out offline until the first
// successful probe.
type Monitor struct {
	pinger       Pinger
	interval     time.Duration
	probeTimeout time.Duration
	logger       logging.Logger

	mu        sync.Mutex
	status    Status
	nextID    int
	listeners map[int]func(Status)
}

func New(pinger Pinger, interval time.Duration, logger logging.Logger) *Monitor {
	return &Monitor{
		pinger:       pinger,
		interval:     interval,
		probeTimeout: 3 * time.Second,
		logger:       logger,
		status:       StatusOffline,
		listeners:    make(map[int]func(Status)),
	}
}

// Status returns the last-observed status without probing. Never blocks.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Online is shorthand for Status() == StatusOnline.
func (m *Monitor) Online() bool {
	return m.Status() == StatusOnline
}

// AddListener registers fn to be invoked exactly once per status transition
// (not per probe). The returned unsubscribe function is idempotent.
func (m *Monitor) AddListener(fn func(Status)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// SetStatus records an externally observed status (a probe result, or the
// outcome of a real remote call). Listeners fire only on transition, outside
// the monitor lock.
func (m *Monitor) SetStatus(s Status) {
	m.mu.Lock()
	if m.status == s {
		m.mu.Unlock()
		return
	}
	m.status = s
	fns := make([]func(Status), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	m.logger.Info(context.Background(), "connectivity changed", "status", string(s))
	for _, fn := range fns {
		fn(s)
	}
}

// Run probes the backend on a ticker until ctx is done. Probe errors are
// treated as offline; Run itself never fails.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ticker.C:
			m.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	if err := m.pinger.Ping(probeCtx); err != nil {
		m.SetStatus(StatusOffline)
		return
	}
	m.SetStatus(StatusOnline)
}
