// Package memory provides an in-memory Store implementation (for tests and demos).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/duty-engine/duty"
	"github.com/warp/duty-engine/fatigue"
	"github.com/warp/duty-engine/generic"
)

// =============================================================================
// MEMORY STORE - Implements duty.Store and fatigue.Store
// =============================================================================

type Store struct {
	mu       sync.RWMutex
	duties   map[string]duty.Duty
	sleep    map[string]fatigue.SleepEntry
	settings *fatigue.Settings
}

func New() *Store {
	return &Store{
		duties: make(map[string]duty.Duty),
		sleep:  make(map[string]fatigue.SleepEntry),
	}
}

func (m *Store) SaveDuty(_ context.Context, d duty.Duty) error {
	if d.ID == "" {
		return generic.NewValidationError(generic.ErrInvalidDuty, "id", "required")
	}
	if err := duty.Validate(d); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duties[d.ID] = d
	return nil
}

func (m *Store) GetDuty(_ context.Context, id string) (*duty.Duty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.duties[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrDutyNotFound, id)
	}
	return &d, nil
}

// ListDuties returns a copy, ordered by date then report then ID.
func (m *Store) ListDuties(_ context.Context) ([]duty.Duty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]duty.Duty, 0, len(m.duties))
	for _, d := range m.duties {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if !a.Report.Equal(b.Report) {
			return a.Report.Before(b.Report)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (m *Store) DeleteDuty(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.duties[id]; !ok {
		return fmt.Errorf("%w: %s", generic.ErrDutyNotFound, id)
	}
	delete(m.duties, id)
	return nil
}

func (m *Store) SaveSleep(_ context.Context, e fatigue.SleepEntry) error {
	if e.ID == "" {
		return generic.NewValidationError(generic.ErrInvalidSleep, "id", "required")
	}
	if err := fatigue.ValidateSleep(e); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleep[e.ID] = e
	return nil
}

func (m *Store) ListSleep(_ context.Context) ([]fatigue.SleepEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]fatigue.SleepEntry, 0, len(m.sleep))
	for _, e := range m.sleep {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Store) DeleteSleep(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sleep[id]; !ok {
		return fmt.Errorf("%w: %s", generic.ErrSleepNotFound, id)
	}
	delete(m.sleep, id)
	return nil
}

// LoadSettings returns the defaults until settings are saved.
func (m *Store) LoadSettings(_ context.Context) (fatigue.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return fatigue.DefaultSettings(), nil
	}
	return *m.settings, nil
}

func (m *Store) SaveSettings(_ context.Context, s fatigue.Settings) error {
	if err := fatigue.ValidateSettings(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *Store) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duties = make(map[string]duty.Duty)
	m.sleep = make(map[string]fatigue.SleepEntry)
	m.settings = nil
	return nil
}

func (m *Store) Ping(context.Context) error { return nil }
