package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// FindCountryByCode matches a country by ISO2 or ISO3 code.
func (s *Storage) FindCountryByCode(code string) (*Country, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}
	c := &Country{}
	err := s.q.QueryRow(`SELECT id, code, iso3, name FROM countries
		WHERE code = ? OR iso3 = ?`, code, code,
	).Scan(&c.ID, &c.Code, &c.ISO3, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindCountryByName matches a country by case-insensitive name.
func (s *Storage) FindCountryByName(name string) (*Country, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	c := &Country{}
	err := s.q.QueryRow(`SELECT id, code, iso3, name FROM countries
		WHERE lower(name) = lower(?)`, name,
	).Scan(&c.ID, &c.Code, &c.ISO3, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindOrCreateCountry inserts the country if absent and returns the stored
// row. The insert relies on the uniqueness indexes rather than a
// check-then-insert, so it is safe under concurrent sync runs.
func (s *Storage) FindOrCreateCountry(c *Country) (*Country, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("country name is required")
	}
	_, err := s.q.Exec(`INSERT INTO countries (code, iso3, name) VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`,
		strings.ToUpper(c.Code), strings.ToUpper(c.ISO3), c.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to insert country %q: %w", c.Name, err)
	}

	if c.Code != "" {
		if found, err := s.FindCountryByCode(c.Code); err != nil || found != nil {
			return found, err
		}
	}
	found, err := s.FindCountryByName(c.Name)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("country %q not found after insert", c.Name)
	}
	return found, nil
}

// FindTransportByCode matches a transport by code.
func (s *Storage) FindTransportByCode(code string) (*Transport, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}
	t := &Transport{}
	err := s.q.QueryRow(`SELECT id, code, name FROM transports WHERE code = ?`, code,
	).Scan(&t.ID, &t.Code, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FindTransportByName matches a transport by case-insensitive name.
func (s *Storage) FindTransportByName(name string) (*Transport, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	t := &Transport{}
	err := s.q.QueryRow(`SELECT id, code, name FROM transports
		WHERE lower(name) = lower(?)`, name,
	).Scan(&t.ID, &t.Code, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FindOrCreateTransport inserts the transport if absent and returns the
// stored row, using the same conflict-tolerant insert as countries.
func (s *Storage) FindOrCreateTransport(t *Transport) (*Transport, error) {
	if t.Name == "" {
		return nil, fmt.Errorf("transport name is required")
	}
	_, err := s.q.Exec(`INSERT INTO transports (code, name) VALUES (?, ?)
		ON CONFLICT DO NOTHING`, strings.ToUpper(t.Code), t.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transport %q: %w", t.Name, err)
	}

	if t.Code != "" {
		if found, err := s.FindTransportByCode(t.Code); err != nil || found != nil {
			return found, err
		}
	}
	found, err := s.FindTransportByName(t.Name)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("transport %q not found after insert", t.Name)
	}
	return found, nil
}
