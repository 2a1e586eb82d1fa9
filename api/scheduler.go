/*
scheduler.go - Background rolling compliance monitor

PURPOSE:
  Periodically evaluates the rolling picture at "now" so that limits crept
  up on by the passage of time (a 28-day window sliding past days off, a
  consecutive-day streak) show up in logs and metrics without anyone
  opening the app.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each run anchors duty.Rules.Rolling at the current instant
  - Publishes every rolling finding's severity as a gauge
  - Logs only findings whose severity changed since the previous run
  - Keeps the last run for GET /api/monitor

CONFIGURATION:
  - CheckInterval: How often to check (config key monitor_interval)
  - Enabled: Whether the monitor is active (interval > 0)

USAGE:
  monitor := NewRollingMonitor(handler, 15*time.Minute)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - handlers.go: GetRolling (the same snapshot on demand)
  - duty/rolling.go: Snapshot and RollingFindings
*/
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/duty-engine/generic"
)

// MonitorRun is the outcome of one monitor check.
type MonitorRun struct {
	At       string           `json:"at"`
	Worst    generic.Severity `json:"worst"`
	Findings generic.Findings `json:"findings"`
	Changed  []string         `json:"changed"`
}

// RollingMonitor re-evaluates the rolling picture on a timer.
type RollingMonitor struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu   sync.RWMutex
	last     *MonitorRun
	previous map[string]generic.Severity
}

// NewRollingMonitor creates a monitor. A non-positive interval disables it.
func NewRollingMonitor(h *Handler, interval time.Duration) *RollingMonitor {
	return &RollingMonitor{
		Handler:       h,
		CheckInterval: interval,
		Enabled:       interval > 0,
		previous:      make(map[string]generic.Severity),
	}
}

// Start begins the monitor.
func (m *RollingMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.Handler.Log.WithField("component", "monitor")
	if !m.Enabled {
		log.Info("disabled, not starting")
		return
	}
	if m.ticker != nil {
		return
	}

	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.run()

	log.WithField("interval", m.CheckInterval.String()).Info("started")
}

// Stop stops the monitor and waits for a running check to finish.
func (m *RollingMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	close(m.stop)
	m.wg.Wait()
	m.ticker = nil
	m.Handler.Log.WithField("component", "monitor").Info("stopped")
}

func (m *RollingMonitor) run() {
	defer m.wg.Done()

	// Run immediately on start
	m.check()

	for {
		select {
		case <-m.ticker.C:
			m.check()
		case <-m.stop:
			return
		}
	}
}

func (m *RollingMonitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout())
	defer cancel()
	if _, err := m.Check(ctx); err != nil {
		m.Handler.Log.WithField("component", "monitor").WithError(err).Error("check failed")
	}
}

func (m *RollingMonitor) timeout() time.Duration {
	if m.CheckInterval > 0 && m.CheckInterval < time.Minute {
		return m.CheckInterval
	}
	return time.Minute
}

// Check runs one evaluation now and records it as the last run.
func (m *RollingMonitor) Check(ctx context.Context) (MonitorRun, error) {
	h := m.Handler
	all, err := h.listDuties(ctx)
	if err != nil {
		return MonitorRun{}, err
	}

	now := h.now().In(h.loc())
	findings := h.Rules.RollingFindings(h.Rules.Rolling(all, now))
	h.Metrics.RecordEvaluation("monitor")
	h.Metrics.MarkMonitorRun(now)

	run := MonitorRun{
		At:       generic.FormatInstant(now),
		Worst:    findings.Worst(),
		Findings: nonNil(findings),
		Changed:  []string{},
	}

	m.lastMu.Lock()
	defer m.lastMu.Unlock()

	log := h.Log.WithField("component", "monitor")
	for _, f := range findings {
		h.Metrics.SetRollingSeverity(f.Key, f.Severity.Rank())

		before, seen := m.previous[f.Key]
		m.previous[f.Key] = f.Severity
		if seen && before == f.Severity {
			continue
		}
		run.Changed = append(run.Changed, f.Key)

		entry := log.WithFields(logrus.Fields{"key": f.Key, "severity": f.Severity})
		switch f.Severity {
		case generic.SeverityBad, generic.SeverityWarn:
			entry.Warn(f.Text)
		default:
			entry.Debug(f.Text)
		}
	}
	m.last = &run
	return run, nil
}

// Last returns the most recent run, if any.
func (m *RollingMonitor) Last() (MonitorRun, bool) {
	m.lastMu.RLock()
	defer m.lastMu.RUnlock()
	if m.last == nil {
		return MonitorRun{}, false
	}
	return *m.last, true
}

// ServeLast writes the most recent run, running a check first if there is none.
func (m *RollingMonitor) ServeLast(w http.ResponseWriter, r *http.Request) {
	run, ok := m.Last()
	if !ok {
		var err error
		if run, err = m.Check(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "Monitor check failed", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, run)
}
