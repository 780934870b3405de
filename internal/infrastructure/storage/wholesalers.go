package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const wholesalerColumns = `id, code, name, base_url, sync_mode, schedule, active,
	rate_limit, timeout_seconds, auth_scheme, credentials, endpoints,
	supports_availability, supports_hold, supports_modify, created_at, updated_at`

func scanWholesaler(row interface{ Scan(...any) error }) (*Wholesaler, error) {
	w := &Wholesaler{}
	err := row.Scan(
		&w.ID, &w.Code, &w.Name, &w.BaseURL, &w.SyncMode, &w.Schedule, &w.Active,
		&w.RateLimit, &w.TimeoutSeconds, &w.AuthScheme, &w.Credentials, &w.Endpoints,
		&w.SupportsAvailability, &w.SupportsHold, &w.SupportsModify,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// GetWholesaler retrieves a wholesaler by internal ID.
func (s *Storage) GetWholesaler(id int64) (*Wholesaler, error) {
	row := s.q.QueryRow(`SELECT `+wholesalerColumns+` FROM wholesalers WHERE id = ?`, id)
	w, err := scanWholesaler(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

// GetWholesalerByCode retrieves a wholesaler by its short code.
func (s *Storage) GetWholesalerByCode(code string) (*Wholesaler, error) {
	row := s.q.QueryRow(`SELECT `+wholesalerColumns+` FROM wholesalers WHERE code = ?`, code)
	w, err := scanWholesaler(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

// ListWholesalers returns all wholesalers, optionally only active ones.
func (s *Storage) ListWholesalers(activeOnly bool) ([]Wholesaler, error) {
	query := `SELECT ` + wholesalerColumns + ` FROM wholesalers`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY code`

	rows, err := s.q.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Wholesaler
	for rows.Next() {
		w, err := scanWholesaler(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// SaveWholesaler inserts or updates a wholesaler config.
func (s *Storage) SaveWholesaler(w *Wholesaler) error {
	now := time.Now().UTC()
	if w.ID == 0 {
		w.CreatedAt = now
		w.UpdatedAt = now
		res, err := s.q.Exec(`
			INSERT INTO wholesalers
			(code, name, base_url, sync_mode, schedule, active, rate_limit,
			 timeout_seconds, auth_scheme, credentials, endpoints,
			 supports_availability, supports_hold, supports_modify, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			w.Code, w.Name, w.BaseURL, w.SyncMode, w.Schedule, w.Active, w.RateLimit,
			w.TimeoutSeconds, w.AuthScheme, w.Credentials, w.Endpoints,
			w.SupportsAvailability, w.SupportsHold, w.SupportsModify, w.CreatedAt, w.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert wholesaler %s: %w", w.Code, err)
		}
		w.ID, err = res.LastInsertId()
		return err
	}

	w.UpdatedAt = now
	_, err := s.q.Exec(`
		UPDATE wholesalers SET code = ?, name = ?, base_url = ?, sync_mode = ?,
			schedule = ?, active = ?, rate_limit = ?, timeout_seconds = ?,
			auth_scheme = ?, credentials = ?, endpoints = ?,
			supports_availability = ?, supports_hold = ?, supports_modify = ?,
			updated_at = ?
		WHERE id = ?`,
		w.Code, w.Name, w.BaseURL, w.SyncMode, w.Schedule, w.Active, w.RateLimit,
		w.TimeoutSeconds, w.AuthScheme, w.Credentials, w.Endpoints,
		w.SupportsAvailability, w.SupportsHold, w.SupportsModify, w.UpdatedAt, w.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update wholesaler %d: %w", w.ID, err)
	}
	return nil
}

// ListFieldMappings returns mapping rows ordered by section then sort order.
func (s *Storage) ListFieldMappings(wholesalerID int64) ([]FieldMapping, error) {
	rows, err := s.q.Query(`
		SELECT id, wholesaler_id, section, target_field, api_path, fixed_value,
		       transform, transform_config, sort_order
		FROM field_mappings
		WHERE wholesaler_id = ?
		ORDER BY section, sort_order, id`, wholesalerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []FieldMapping
	for rows.Next() {
		var m FieldMapping
		if err := rows.Scan(&m.ID, &m.WholesalerID, &m.Section, &m.TargetField,
			&m.APIPath, &m.FixedValue, &m.Transform, &m.TransformCfg, &m.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveFieldMapping inserts or updates a mapping row.
func (s *Storage) SaveFieldMapping(m *FieldMapping) error {
	if m.ID == 0 {
		res, err := s.q.Exec(`
			INSERT INTO field_mappings
			(wholesaler_id, section, target_field, api_path, fixed_value,
			 transform, transform_config, sort_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.WholesalerID, m.Section, m.TargetField, m.APIPath, m.FixedValue,
			m.Transform, m.TransformCfg, m.SortOrder,
		)
		if err != nil {
			return err
		}
		m.ID, err = res.LastInsertId()
		return err
	}

	_, err := s.q.Exec(`
		UPDATE field_mappings SET section = ?, target_field = ?, api_path = ?,
			fixed_value = ?, transform = ?, transform_config = ?, sort_order = ?
		WHERE id = ?`,
		m.Section, m.TargetField, m.APIPath, m.FixedValue,
		m.Transform, m.TransformCfg, m.SortOrder, m.ID,
	)
	return err
}

// GetCursor retrieves the persisted cursor for (wholesaler, sync type).
func (s *Storage) GetCursor(wholesalerID int64, syncType string) (*SyncCursor, error) {
	c := &SyncCursor{}
	err := s.q.QueryRow(`
		SELECT wholesaler_id, sync_type, cursor, last_synced_at
		FROM sync_cursors WHERE wholesaler_id = ? AND sync_type = ?`,
		wholesalerID, syncType,
	).Scan(&c.WholesalerID, &c.SyncType, &c.Cursor, &c.LastSyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SaveCursor upserts the cursor row.
func (s *Storage) SaveCursor(c *SyncCursor) error {
	_, err := s.q.Exec(`
		INSERT INTO sync_cursors (wholesaler_id, sync_type, cursor, last_synced_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (wholesaler_id, sync_type)
		DO UPDATE SET cursor = excluded.cursor, last_synced_at = excluded.last_synced_at`,
		c.WholesalerID, c.SyncType, c.Cursor, c.LastSyncedAt,
	)
	return err
}
