package storage

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	mu sync.Mutex

	wholesalers map[int64]*Wholesaler
	mappings    map[int64][]FieldMapping
	cursors     map[string]*SyncCursor
	runs        map[string]*SyncRun
	tours       map[int64]*Tour
	periods     map[int64]*Period
	offers      map[int64]*Offer
	itineraries map[int64]*Itinerary
	countries   map[int64]*Country
	transports  map[int64]*Transport
	nextID      int64

	// Error injection for testing error paths
	SaveTourErr     error
	SavePeriodErr   error
	StartSyncRunErr error
	FindOrCreateErr error
}

// Compile-time check that MockRepository implements Repository.
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		wholesalers: make(map[int64]*Wholesaler),
		mappings:    make(map[int64][]FieldMapping),
		cursors:     make(map[string]*SyncCursor),
		runs:        make(map[string]*SyncRun),
		tours:       make(map[int64]*Tour),
		periods:     make(map[int64]*Period),
		offers:      make(map[int64]*Offer),
		itineraries: make(map[int64]*Itinerary),
		countries:   make(map[int64]*Country),
		transports:  make(map[int64]*Transport),
	}
}

func (m *MockRepository) id() int64 {
	m.nextID++
	return m.nextID
}

// Tx runs fn against the mock directly; the mock has no transactions.
func (m *MockRepository) Tx(fn func(Repository) error) error { return fn(m) }

// Close is a no-op.
func (m *MockRepository) Close() error { return nil }

// GetWholesaler returns the wholesaler with the given ID, or nil.
func (m *MockRepository) GetWholesaler(id int64) (*Wholesaler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.wholesalers[id]; ok {
		copied := *w
		return &copied, nil
	}
	return nil, nil
}

// GetWholesalerByCode returns the wholesaler with the given code, or nil.
func (m *MockRepository) GetWholesalerByCode(code string) (*Wholesaler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wholesalers {
		if w.Code == code {
			copied := *w
			return &copied, nil
		}
	}
	return nil, nil
}

// ListWholesalers returns all stored wholesalers.
func (m *MockRepository) ListWholesalers(activeOnly bool) ([]Wholesaler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Wholesaler
	for _, w := range m.wholesalers {
		if activeOnly && !w.Active {
			continue
		}
		out = append(out, *w)
	}
	return out, nil
}

// SaveWholesaler stores the wholesaler, assigning an ID if new.
func (m *MockRepository) SaveWholesaler(w *Wholesaler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == 0 {
		w.ID = m.id()
	}
	copied := *w
	m.wholesalers[w.ID] = &copied
	return nil
}

// ListFieldMappings returns stored mapping rows for a wholesaler.
func (m *MockRepository) ListFieldMappings(wholesalerID int64) ([]FieldMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FieldMapping(nil), m.mappings[wholesalerID]...), nil
}

// SaveFieldMapping appends a mapping row.
func (m *MockRepository) SaveFieldMapping(fm *FieldMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fm.ID == 0 {
		fm.ID = m.id()
	}
	m.mappings[fm.WholesalerID] = append(m.mappings[fm.WholesalerID], *fm)
	return nil
}

// GetCursor returns the stored cursor, or nil.
func (m *MockRepository) GetCursor(wholesalerID int64, syncType string) (*SyncCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cursors[fmt.Sprintf("%d/%s", wholesalerID, syncType)]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

// SaveCursor upserts the cursor.
func (m *MockRepository) SaveCursor(c *SyncCursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *c
	m.cursors[fmt.Sprintf("%d/%s", c.WholesalerID, c.SyncType)] = &copied
	return nil
}

// StartSyncRun records a running run.
func (m *MockRepository) StartSyncRun(wholesalerID int64, syncType string) (*SyncRun, error) {
	if m.StartSyncRunErr != nil {
		return nil, m.StartSyncRunErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run := &SyncRun{
		ID:           m.id(),
		RunID:        uuid.NewString(),
		WholesalerID: wholesalerID,
		Type:         syncType,
		Status:       RunStatusRunning,
		StartedAt:    time.Now().UTC(),
	}
	m.runs[run.RunID] = run
	copied := *run
	return &copied, nil
}

// HeartbeatSyncRun refreshes the heartbeat of a running run.
func (m *MockRepository) HeartbeatSyncRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[runID]; ok && run.Status == RunStatusRunning {
		now := time.Now().UTC()
		run.HeartbeatAt = &now
	}
	return nil
}

// FinishSyncRun transitions a running run to a terminal status.
func (m *MockRepository) FinishSyncRun(runID string, status string, counters RunCounters, errorSummary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok || run.Status != RunStatusRunning {
		return nil
	}
	now := time.Now().UTC()
	run.Status = status
	run.CompletedAt = &now
	run.Counters = counters
	run.ErrorSummary = errorSummary
	return nil
}

// GetSyncRun returns a run by public ID, or nil.
func (m *MockRepository) GetSyncRun(runID string) (*SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[runID]; ok {
		copied := *run
		return &copied, nil
	}
	return nil, nil
}

// ListSyncRuns returns stored runs.
func (m *MockRepository) ListSyncRuns(wholesalerID int64, limit int) ([]SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SyncRun
	for _, run := range m.runs {
		if wholesalerID != 0 && run.WholesalerID != wholesalerID {
			continue
		}
		out = append(out, *run)
	}
	return out, nil
}

// ReapStuckRuns times out running runs older than threshold.
func (m *MockRepository) ReapStuckRuns(threshold time.Duration, reason string) ([]SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-threshold)
	var reaped []SyncRun
	for _, run := range m.runs {
		if run.Status != RunStatusRunning {
			continue
		}
		stamp := run.StartedAt
		if run.HeartbeatAt != nil {
			stamp = *run.HeartbeatAt
		}
		if stamp.Before(cutoff) {
			now := time.Now().UTC()
			run.Status = RunStatusTimeout
			run.CompletedAt = &now
			run.ErrorSummary = reason
			reaped = append(reaped, *run)
		}
	}
	return reaped, nil
}

// FindTourByExternalID returns the matching tour, or nil.
func (m *MockRepository) FindTourByExternalID(wholesalerID int64, externalID string) (*Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tours {
		if t.WholesalerID == wholesalerID && t.ExternalID == externalID {
			copied := *t
			return &copied, nil
		}
	}
	return nil, nil
}

// SaveTour stores the tour, assigning an ID if new.
func (m *MockRepository) SaveTour(t *Tour) error {
	if m.SaveTourErr != nil {
		return m.SaveTourErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == 0 {
		t.ID = m.id()
		t.CreatedAt = time.Now().UTC()
	}
	t.UpdatedAt = time.Now().UTC()
	copied := *t
	m.tours[t.ID] = &copied
	return nil
}

// CountTours counts tours for a wholesaler.
func (m *MockRepository) CountTours(wholesalerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tours {
		if t.WholesalerID == wholesalerID {
			n++
		}
	}
	return n, nil
}

// FindPeriod matches by external ID first, then start date.
func (m *MockRepository) FindPeriod(tourID int64, externalID string, startDate time.Time) (*Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.periods {
		if p.TourID != tourID {
			continue
		}
		if externalID != "" && p.ExternalID == externalID {
			copied := *p
			return &copied, nil
		}
		if externalID == "" && p.ExternalID == "" && p.StartDate.Equal(startDate) {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

// SavePeriod stores the period, assigning an ID if new.
func (m *MockRepository) SavePeriod(p *Period) error {
	if m.SavePeriodErr != nil {
		return m.SavePeriodErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.id()
	}
	copied := *p
	m.periods[p.ID] = &copied
	return nil
}

// FindOfferByPeriod returns the 1:1 offer, or nil.
func (m *MockRepository) FindOfferByPeriod(periodID int64) (*Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.offers {
		if o.PeriodID == periodID {
			copied := *o
			return &copied, nil
		}
	}
	return nil, nil
}

// SaveOffer stores the offer, assigning an ID if new.
func (m *MockRepository) SaveOffer(o *Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == 0 {
		o.ID = m.id()
	}
	copied := *o
	m.offers[o.ID] = &copied
	return nil
}

// FindItinerary matches by external ID first, then day number.
func (m *MockRepository) FindItinerary(tourID int64, externalID string, dayNumber int) (*Itinerary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range m.itineraries {
		if i.TourID != tourID {
			continue
		}
		if externalID != "" && i.ExternalID == externalID {
			copied := *i
			return &copied, nil
		}
		if externalID == "" && i.ExternalID == "" && i.DayNumber == dayNumber {
			copied := *i
			return &copied, nil
		}
	}
	return nil, nil
}

// SaveItinerary stores the itinerary, assigning an ID if new.
func (m *MockRepository) SaveItinerary(i *Itinerary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i.ID == 0 {
		i.ID = m.id()
	}
	copied := *i
	m.itineraries[i.ID] = &copied
	return nil
}

// FindCountryByCode matches by ISO2 or ISO3 code.
func (m *MockRepository) FindCountryByCode(code string) (*Country, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range m.countries {
		if c.Code == code || (c.ISO3 != "" && c.ISO3 == code) {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

// FindCountryByName matches by case-insensitive name.
func (m *MockRepository) FindCountryByName(name string) (*Country, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.countries {
		if strings.EqualFold(c.Name, name) {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

// FindOrCreateCountry inserts the country if absent.
func (m *MockRepository) FindOrCreateCountry(c *Country) (*Country, error) {
	if m.FindOrCreateErr != nil {
		return nil, m.FindOrCreateErr
	}
	if found, err := m.FindCountryByCode(c.Code); err != nil || found != nil {
		return found, err
	}
	if found, err := m.FindCountryByName(c.Name); err != nil || found != nil {
		return found, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	created := &Country{ID: m.id(), Code: strings.ToUpper(c.Code), ISO3: strings.ToUpper(c.ISO3), Name: c.Name}
	m.countries[created.ID] = created
	copied := *created
	return &copied, nil
}

// FindTransportByCode matches by code.
func (m *MockRepository) FindTransportByCode(code string) (*Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, t := range m.transports {
		if t.Code == code {
			copied := *t
			return &copied, nil
		}
	}
	return nil, nil
}

// FindTransportByName matches by case-insensitive name.
func (m *MockRepository) FindTransportByName(name string) (*Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transports {
		if strings.EqualFold(t.Name, name) {
			copied := *t
			return &copied, nil
		}
	}
	return nil, nil
}

// FindOrCreateTransport inserts the transport if absent.
func (m *MockRepository) FindOrCreateTransport(t *Transport) (*Transport, error) {
	if m.FindOrCreateErr != nil {
		return nil, m.FindOrCreateErr
	}
	if found, err := m.FindTransportByCode(t.Code); err != nil || found != nil {
		return found, err
	}
	if found, err := m.FindTransportByName(t.Name); err != nil || found != nil {
		return found, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	created := &Transport{ID: m.id(), Code: strings.ToUpper(t.Code), Name: t.Name}
	m.transports[created.ID] = created
	copied := *created
	return &copied, nil
}
