/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists recorded duties, sleep entries and the settings singleton. The
  evaluators never see this package: callers list duties, hand the slice to
  duty.Rules and discard the results.

INTERFACES IMPLEMENTED:
  duty.Store:    Duty persistence
  fatigue.Store: Sleep entries and settings

KEY TABLES:
  duties:   One row per recorded duty; instants as RFC3339 with offset
  sleep:    Logged sleep periods
  settings: Single row (id = 1) holding the settings JSON

INDEXES:
  - idx_duties_date: Calendar lookups and day-ordered listings
  - idx_sleep_start: Trailing-window sleep queries

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block the
  single writer.

USAGE:
  store, err := sqlite.New("./data/duty.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - duty/store.go: duty.Store
  - fatigue/types.go: fatigue.Store
  - store/memory: In-memory implementation for tests and demos
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/duty-engine/duty"
	"github.com/warp/duty-engine/fatigue"
	"github.com/warp/duty-engine/generic"
)

// Store implements duty.Store and fatigue.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS duties (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		date TEXT,
		report_at TEXT,
		off_at TEXT,
		sectors INTEGER NOT NULL DEFAULT 0,
		location TEXT NOT NULL DEFAULT 'Home',
		discretion_minutes INTEGER NOT NULL DEFAULT 0,
		discretion_reason TEXT,
		discretion_by TEXT,
		sb_type TEXT,
		sb_start TEXT,
		sb_end TEXT,
		sb_called BOOLEAN NOT NULL DEFAULT FALSE,
		sb_call_at TEXT,
		sps INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_duties_date
		ON duties(date);

	CREATE TABLE IF NOT EXISTS sleep (
		id TEXT PRIMARY KEY,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		sleep_type TEXT NOT NULL,
		quality INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sleep_start
		ON sleep(start_at);

	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		settings_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DUTY STORE (duty.Store interface)
// =============================================================================

// SaveDuty inserts or replaces a duty by ID.
func (s *Store) SaveDuty(ctx context.Context, d duty.Duty) error {
	if d.ID == "" {
		return generic.NewValidationError(generic.ErrInvalidDuty, "id", "required")
	}
	if err := duty.Validate(d); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO duties
		(id, kind, date, report_at, off_at, sectors, location,
		 discretion_minutes, discretion_reason, discretion_by,
		 sb_type, sb_start, sb_end, sb_called, sb_call_at, sps, notes,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind, date = excluded.date,
			report_at = excluded.report_at, off_at = excluded.off_at,
			sectors = excluded.sectors, location = excluded.location,
			discretion_minutes = excluded.discretion_minutes,
			discretion_reason = excluded.discretion_reason,
			discretion_by = excluded.discretion_by,
			sb_type = excluded.sb_type, sb_start = excluded.sb_start,
			sb_end = excluded.sb_end, sb_called = excluded.sb_called,
			sb_call_at = excluded.sb_call_at, sps = excluded.sps,
			notes = excluded.notes, updated_at = excluded.updated_at
	`

	var date string
	if !d.Date.IsZero() {
		date = d.Date.String()
	}

	_, err := s.db.ExecContext(ctx, query,
		d.ID,
		string(d.Kind),
		nullString(date),
		nullTime(d.Report),
		nullTime(d.Off),
		d.Sectors,
		string(d.Location.Normalize()),
		int(d.Discretion.Minutes),
		nullString(d.Discretion.Reason),
		nullString(d.Discretion.AuthorisedBy),
		nullString(string(d.Standby.Type)),
		nullTime(d.Standby.Start),
		nullTime(d.Standby.End),
		d.Standby.Called,
		nullTime(d.Standby.Call),
		d.SPS,
		nullString(d.Notes),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save duty: %w", err)
	}
	return nil
}

const dutyColumns = `
	id, kind, date, report_at, off_at, sectors, location,
	discretion_minutes, discretion_reason, discretion_by,
	sb_type, sb_start, sb_end, sb_called, sb_call_at, sps, notes`

// GetDuty retrieves a duty by ID.
func (s *Store) GetDuty(ctx context.Context, id string) (*duty.Duty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+dutyColumns+" FROM duties WHERE id = ?", id)
	d, err := scanDuty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrDutyNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDuties returns every recorded duty, oldest first by report (or date).
func (s *Store) ListDuties(ctx context.Context) ([]duty.Duty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+dutyColumns+" FROM duties ORDER BY COALESCE(date, ''), COALESCE(report_at, ''), id")
	if err != nil {
		return nil, fmt.Errorf("failed to query duties: %w", err)
	}
	defer rows.Close()

	var out []duty.Duty
	for rows.Next() {
		d, err := scanDuty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDuty removes a duty by ID.
func (s *Store) DeleteDuty(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM duties WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete duty: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrDutyNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDuty(sc scanner) (duty.Duty, error) {
	var (
		d                             duty.Duty
		kind, location                string
		date, report, off             sql.NullString
		reason, by, sbType            sql.NullString
		sbStart, sbEnd, sbCall, notes sql.NullString
		discretion                    int
	)
	err := sc.Scan(&d.ID, &kind, &date, &report, &off, &d.Sectors, &location,
		&discretion, &reason, &by,
		&sbType, &sbStart, &sbEnd, &d.Standby.Called, &sbCall, &d.SPS, &notes)
	if err != nil {
		return duty.Duty{}, err
	}

	d.Kind = duty.Kind(kind)
	d.Location = duty.Location(location)
	d.Discretion = duty.Discretion{
		Minutes:      generic.Minutes(discretion),
		Reason:       reason.String,
		AuthorisedBy: by.String,
	}
	d.Standby.Type = duty.StandbyType(sbType.String)
	d.Notes = notes.String
	if date.Valid {
		if d.Date, err = generic.ParseDay(date.String); err != nil {
			return duty.Duty{}, err
		}
	}
	d.Report = parseTime(report)
	d.Off = parseTime(off)
	d.Standby.Start = parseTime(sbStart)
	d.Standby.End = parseTime(sbEnd)
	d.Standby.Call = parseTime(sbCall)
	return d, nil
}

// =============================================================================
// SLEEP STORE (fatigue.Store interface)
// =============================================================================

// SaveSleep inserts or replaces a sleep entry by ID.
func (s *Store) SaveSleep(ctx context.Context, e fatigue.SleepEntry) error {
	if e.ID == "" {
		return generic.NewValidationError(generic.ErrInvalidSleep, "id", "required")
	}
	if err := fatigue.ValidateSleep(e); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sleep (id, start_at, end_at, sleep_type, quality, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_at = excluded.start_at, end_at = excluded.end_at,
			sleep_type = excluded.sleep_type, quality = excluded.quality
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.Start.Format(time.RFC3339),
		e.End.Format(time.RFC3339),
		string(e.Type),
		e.Quality,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save sleep entry: %w", err)
	}
	return nil
}

// ListSleep returns every sleep entry, oldest first.
func (s *Store) ListSleep(ctx context.Context) ([]fatigue.SleepEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, start_at, end_at, sleep_type, quality FROM sleep ORDER BY start_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query sleep: %w", err)
	}
	defer rows.Close()

	var out []fatigue.SleepEntry
	for rows.Next() {
		var e fatigue.SleepEntry
		var start, end, typ string
		if err := rows.Scan(&e.ID, &start, &end, &typ, &e.Quality); err != nil {
			return nil, err
		}
		e.Type = fatigue.SleepType(typ)
		if e.Start, err = time.Parse(time.RFC3339, start); err != nil {
			return nil, fmt.Errorf("sleep %s: %w", e.ID, err)
		}
		if e.End, err = time.Parse(time.RFC3339, end); err != nil {
			return nil, fmt.Errorf("sleep %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteSleep removes a sleep entry by ID.
func (s *Store) DeleteSleep(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM sleep WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete sleep entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrSleepNotFound, id)
	}
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

// LoadSettings returns the stored settings, or the defaults when none were saved.
func (s *Store) LoadSettings(ctx context.Context) (fatigue.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT settings_json FROM settings WHERE id = 1").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fatigue.DefaultSettings(), nil
	}
	if err != nil {
		return fatigue.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	var out fatigue.Settings
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return fatigue.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return out, nil
}

// SaveSettings replaces the settings singleton.
func (s *Store) SaveSettings(ctx context.Context, settings fatigue.Settings) error {
	if err := fatigue.ValidateSettings(settings); err != nil {
		return err
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (id, settings_json, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET settings_json = excluded.settings_json, updated_at = excluded.updated_at
	`, string(raw), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears every table. Used when loading a demo scenario.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"duties", "sleep", "settings"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

// parseTime returns the zero time for NULL or unreadable values; the
// evaluators treat a missing instant as absent.
func parseTime(ns sql.NullString) time.Time {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
