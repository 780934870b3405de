package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const tourColumns = `id, wholesaler_id, external_id, code, name, description,
	country_id, transport_id, duration_days, duration_nights, status,
	sections, overridden_fields, created_at, updated_at`

func scanTour(row interface{ Scan(...any) error }) (*Tour, error) {
	t := &Tour{}
	err := row.Scan(
		&t.ID, &t.WholesalerID, &t.ExternalID, &t.Code, &t.Name, &t.Description,
		&t.CountryID, &t.TransportID, &t.DurationDays, &t.DurationNights, &t.Status,
		&t.Sections, &t.OverriddenFields, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FindTourByExternalID looks up the canonical tour for (wholesaler, external_id).
func (s *Storage) FindTourByExternalID(wholesalerID int64, externalID string) (*Tour, error) {
	row := s.q.QueryRow(`SELECT `+tourColumns+` FROM tours
		WHERE wholesaler_id = ? AND external_id = ?`, wholesalerID, externalID)
	t, err := scanTour(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// SaveTour inserts or updates a tour.
func (s *Storage) SaveTour(t *Tour) error {
	now := time.Now().UTC()
	if t.ID == 0 {
		t.CreatedAt = now
		t.UpdatedAt = now
		if t.Status == "" {
			t.Status = "active"
		}
		res, err := s.q.Exec(`
			INSERT INTO tours
			(wholesaler_id, external_id, code, name, description, country_id,
			 transport_id, duration_days, duration_nights, status, sections,
			 overridden_fields, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.WholesalerID, t.ExternalID, t.Code, t.Name, t.Description, t.CountryID,
			t.TransportID, t.DurationDays, t.DurationNights, t.Status, t.Sections,
			t.OverriddenFields, t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert tour %s: %w", t.ExternalID, err)
		}
		t.ID, err = res.LastInsertId()
		return err
	}

	t.UpdatedAt = now
	_, err := s.q.Exec(`
		UPDATE tours SET code = ?, name = ?, description = ?, country_id = ?,
			transport_id = ?, duration_days = ?, duration_nights = ?, status = ?,
			sections = ?, overridden_fields = ?, updated_at = ?
		WHERE id = ?`,
		t.Code, t.Name, t.Description, t.CountryID, t.TransportID,
		t.DurationDays, t.DurationNights, t.Status, t.Sections,
		t.OverriddenFields, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update tour %d: %w", t.ID, err)
	}
	return nil
}

// CountTours returns the number of tours for a wholesaler.
func (s *Storage) CountTours(wholesalerID int64) (int, error) {
	var n int
	err := s.q.QueryRow(`SELECT COUNT(*) FROM tours WHERE wholesaler_id = ?`, wholesalerID).Scan(&n)
	return n, err
}

const periodColumns = `id, tour_id, external_id, start_date, end_date, status,
	seats, seats_sold, created_at, updated_at`

func scanPeriod(row interface{ Scan(...any) error }) (*Period, error) {
	p := &Period{}
	var endDate sql.NullTime
	err := row.Scan(&p.ID, &p.TourID, &p.ExternalID, &p.StartDate, &endDate,
		&p.Status, &p.Seats, &p.SeatsSold, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if endDate.Valid {
		p.EndDate = endDate.Time
	}
	return p, nil
}

// FindPeriod looks up a period by (tour, external_id), falling back to
// (tour, start_date) when the upstream assigns no period IDs.
func (s *Storage) FindPeriod(tourID int64, externalID string, startDate time.Time) (*Period, error) {
	var row *sql.Row
	if externalID != "" {
		row = s.q.QueryRow(`SELECT `+periodColumns+` FROM periods
			WHERE tour_id = ? AND external_id = ?`, tourID, externalID)
	} else {
		row = s.q.QueryRow(`SELECT `+periodColumns+` FROM periods
			WHERE tour_id = ? AND external_id = '' AND start_date = ?`,
			tourID, startDate)
	}
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// SavePeriod inserts or updates a period.
func (s *Storage) SavePeriod(p *Period) error {
	now := time.Now().UTC()
	var endDate any
	if !p.EndDate.IsZero() {
		endDate = p.EndDate
	}
	if p.ID == 0 {
		p.CreatedAt = now
		p.UpdatedAt = now
		res, err := s.q.Exec(`
			INSERT INTO periods
			(tour_id, external_id, start_date, end_date, status, seats, seats_sold,
			 created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.TourID, p.ExternalID, p.StartDate, endDate, p.Status,
			p.Seats, p.SeatsSold, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert period for tour %d: %w", p.TourID, err)
		}
		p.ID, err = res.LastInsertId()
		return err
	}

	p.UpdatedAt = now
	_, err := s.q.Exec(`
		UPDATE periods SET external_id = ?, start_date = ?, end_date = ?,
			status = ?, seats = ?, seats_sold = ?, updated_at = ?
		WHERE id = ?`,
		p.ExternalID, p.StartDate, endDate, p.Status, p.Seats, p.SeatsSold,
		p.UpdatedAt, p.ID,
	)
	return err
}

// FindOfferByPeriod retrieves the 1:1 offer for a period.
func (s *Storage) FindOfferByPeriod(periodID int64) (*Offer, error) {
	o := &Offer{}
	err := s.q.QueryRow(`
		SELECT id, period_id, price, child_price, single_supplement, currency,
		       created_at, updated_at
		FROM offers WHERE period_id = ?`, periodID,
	).Scan(&o.ID, &o.PeriodID, &o.Price, &o.ChildPrice, &o.SingleSupplement,
		&o.Currency, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// SaveOffer inserts or updates an offer.
func (s *Storage) SaveOffer(o *Offer) error {
	now := time.Now().UTC()
	if o.ID == 0 {
		o.CreatedAt = now
		o.UpdatedAt = now
		res, err := s.q.Exec(`
			INSERT INTO offers
			(period_id, price, child_price, single_supplement, currency, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.PeriodID, o.Price, o.ChildPrice, o.SingleSupplement, o.Currency,
			o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert offer for period %d: %w", o.PeriodID, err)
		}
		o.ID, err = res.LastInsertId()
		return err
	}

	o.UpdatedAt = now
	_, err := s.q.Exec(`
		UPDATE offers SET price = ?, child_price = ?, single_supplement = ?,
			currency = ?, updated_at = ?
		WHERE id = ?`,
		o.Price, o.ChildPrice, o.SingleSupplement, o.Currency, o.UpdatedAt, o.ID,
	)
	return err
}

const itineraryColumns = `id, tour_id, external_id, day_number, title, description,
	breakfast, lunch, dinner, created_at, updated_at`

func scanItinerary(row interface{ Scan(...any) error }) (*Itinerary, error) {
	i := &Itinerary{}
	var breakfast, lunch, dinner sql.NullBool
	err := row.Scan(&i.ID, &i.TourID, &i.ExternalID, &i.DayNumber, &i.Title,
		&i.Description, &breakfast, &lunch, &dinner, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if breakfast.Valid {
		i.Breakfast = &breakfast.Bool
	}
	if lunch.Valid {
		i.Lunch = &lunch.Bool
	}
	if dinner.Valid {
		i.Dinner = &dinner.Bool
	}
	return i, nil
}

// FindItinerary looks up an itinerary day by (tour, external_id), falling
// back to (tour, day_number).
func (s *Storage) FindItinerary(tourID int64, externalID string, dayNumber int) (*Itinerary, error) {
	var row *sql.Row
	if externalID != "" {
		row = s.q.QueryRow(`SELECT `+itineraryColumns+` FROM itineraries
			WHERE tour_id = ? AND external_id = ?`, tourID, externalID)
	} else {
		row = s.q.QueryRow(`SELECT `+itineraryColumns+` FROM itineraries
			WHERE tour_id = ? AND external_id = '' AND day_number = ?`,
			tourID, dayNumber)
	}
	i, err := scanItinerary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return i, err
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

// SaveItinerary inserts or updates an itinerary day.
func (s *Storage) SaveItinerary(i *Itinerary) error {
	now := time.Now().UTC()
	if i.ID == 0 {
		i.CreatedAt = now
		i.UpdatedAt = now
		res, err := s.q.Exec(`
			INSERT INTO itineraries
			(tour_id, external_id, day_number, title, description,
			 breakfast, lunch, dinner, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			i.TourID, i.ExternalID, i.DayNumber, i.Title, i.Description,
			nullableBool(i.Breakfast), nullableBool(i.Lunch), nullableBool(i.Dinner),
			i.CreatedAt, i.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert itinerary for tour %d: %w", i.TourID, err)
		}
		i.ID, err = res.LastInsertId()
		return err
	}

	i.UpdatedAt = now
	_, err := s.q.Exec(`
		UPDATE itineraries SET external_id = ?, day_number = ?, title = ?,
			description = ?, breakfast = ?, lunch = ?, dinner = ?, updated_at = ?
		WHERE id = ?`,
		i.ExternalID, i.DayNumber, i.Title, i.Description,
		nullableBool(i.Breakfast), nullableBool(i.Lunch), nullableBool(i.Dinner),
		i.UpdatedAt, i.ID,
	)
	return err
}
