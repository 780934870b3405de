package storage

import (
	"database/sql"
	"fmt"
)

// Migration represents a database schema migration.
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order.
var allMigrations = []Migration{
	{Version: 1, Name: "initial_schema", Up: migration001InitialSchema},
	{Version: 2, Name: "reference_uniqueness", Up: migration002ReferenceUniqueness},
	{Version: 3, Name: "sync_run_heartbeat_index", Up: migration003HeartbeatIndex},
}

// runMigrations executes all pending migrations.
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
			migration.Version, migration.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func (s *Storage) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

func migration001InitialSchema(tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE wholesalers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			base_url TEXT NOT NULL DEFAULT '',
			sync_mode TEXT NOT NULL DEFAULT 'single',
			schedule TEXT NOT NULL DEFAULT '6h',
			active INTEGER NOT NULL DEFAULT 1,
			rate_limit REAL NOT NULL DEFAULT 0,
			timeout_seconds INTEGER NOT NULL DEFAULT 30,
			auth_scheme TEXT NOT NULL DEFAULT 'none',
			credentials TEXT NOT NULL DEFAULT '',
			endpoints TEXT NOT NULL DEFAULT '',
			supports_availability INTEGER NOT NULL DEFAULT 0,
			supports_hold INTEGER NOT NULL DEFAULT 0,
			supports_modify INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE field_mappings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			wholesaler_id INTEGER NOT NULL REFERENCES wholesalers(id),
			section TEXT NOT NULL,
			target_field TEXT NOT NULL,
			api_path TEXT NOT NULL DEFAULT '',
			fixed_value TEXT NOT NULL DEFAULT '',
			transform TEXT NOT NULL DEFAULT '',
			transform_config TEXT NOT NULL DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0,
			CHECK ((api_path = '') != (fixed_value = ''))
		)`,
		`CREATE TABLE sync_cursors (
			wholesaler_id INTEGER NOT NULL REFERENCES wholesalers(id),
			sync_type TEXT NOT NULL,
			cursor TEXT NOT NULL DEFAULT '',
			last_synced_at TIMESTAMP,
			PRIMARY KEY (wholesaler_id, sync_type)
		)`,
		`CREATE TABLE sync_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL UNIQUE,
			wholesaler_id INTEGER NOT NULL REFERENCES wholesalers(id),
			type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'running',
			started_at TIMESTAMP NOT NULL,
			heartbeat_at TIMESTAMP,
			completed_at TIMESTAMP,
			counters TEXT NOT NULL DEFAULT '{}',
			error_summary TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE tours (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			wholesaler_id INTEGER NOT NULL REFERENCES wholesalers(id),
			external_id TEXT NOT NULL,
			code TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			country_id INTEGER REFERENCES countries(id),
			transport_id INTEGER REFERENCES transports(id),
			duration_days INTEGER NOT NULL DEFAULT 0,
			duration_nights INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			sections TEXT NOT NULL DEFAULT '',
			overridden_fields TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (wholesaler_id, external_id)
		)`,
		`CREATE TABLE periods (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tour_id INTEGER NOT NULL REFERENCES tours(id),
			external_id TEXT NOT NULL DEFAULT '',
			start_date DATE NOT NULL,
			end_date DATE,
			status TEXT NOT NULL DEFAULT 'available',
			seats INTEGER NOT NULL DEFAULT 0,
			seats_sold INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX idx_periods_external
			ON periods (tour_id, external_id) WHERE external_id != ''`,
		`CREATE UNIQUE INDEX idx_periods_start
			ON periods (tour_id, start_date) WHERE external_id = ''`,
		`CREATE TABLE offers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			period_id INTEGER NOT NULL UNIQUE REFERENCES periods(id),
			price REAL NOT NULL DEFAULT 0,
			child_price REAL NOT NULL DEFAULT 0,
			single_supplement REAL NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE itineraries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tour_id INTEGER NOT NULL REFERENCES tours(id),
			external_id TEXT NOT NULL DEFAULT '',
			day_number INTEGER NOT NULL DEFAULT 0,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			breakfast INTEGER,
			lunch INTEGER,
			dinner INTEGER,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX idx_itineraries_external
			ON itineraries (tour_id, external_id) WHERE external_id != ''`,
		`CREATE UNIQUE INDEX idx_itineraries_day
			ON itineraries (tour_id, day_number) WHERE external_id = ''`,
		`CREATE TABLE countries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL DEFAULT '',
			iso3 TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL
		)`,
		`CREATE TABLE transports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// migration002ReferenceUniqueness adds the uniqueness constraints that make
// concurrent find-or-create of reference rows safe.
func migration002ReferenceUniqueness(tx *sql.Tx) error {
	statements := []string{
		`CREATE UNIQUE INDEX idx_countries_code ON countries (code) WHERE code != ''`,
		`CREATE UNIQUE INDEX idx_countries_name ON countries (lower(name))`,
		`CREATE UNIQUE INDEX idx_transports_code ON transports (code) WHERE code != ''`,
		`CREATE UNIQUE INDEX idx_transports_name ON transports (lower(name))`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migration003HeartbeatIndex(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX idx_sync_runs_running
		ON sync_runs (status, heartbeat_at) WHERE status = 'running'`)
	return err
}
