package storage

import "time"

// Repository defines the complete storage interface.
// This allows swapping implementations and makes testing with mocks
// straightforward.
type Repository interface {
	WholesalerRepository
	TourRepository
	ReferenceRepository
	SyncRunRepository
	CursorRepository

	// Tx runs fn against a transaction-scoped Repository. The transaction
	// commits when fn returns nil and rolls back otherwise. Lock granularity
	// for the sync pipeline is one tour plus its periods/itineraries/offer.
	Tx(fn func(Repository) error) error

	Close() error
}

// WholesalerRepository handles wholesaler configuration and mapping rows.
type WholesalerRepository interface {
	GetWholesaler(id int64) (*Wholesaler, error)
	GetWholesalerByCode(code string) (*Wholesaler, error)
	ListWholesalers(activeOnly bool) ([]Wholesaler, error)
	SaveWholesaler(w *Wholesaler) error

	// ListFieldMappings returns the mapping rows for a wholesaler ordered by
	// section then sort order.
	ListFieldMappings(wholesalerID int64) ([]FieldMapping, error)
	SaveFieldMapping(m *FieldMapping) error
}

// TourRepository handles the canonical entities.
type TourRepository interface {
	FindTourByExternalID(wholesalerID int64, externalID string) (*Tour, error)
	SaveTour(t *Tour) error

	FindPeriod(tourID int64, externalID string, startDate time.Time) (*Period, error)
	SavePeriod(p *Period) error

	FindOfferByPeriod(periodID int64) (*Offer, error)
	SaveOffer(o *Offer) error

	FindItinerary(tourID int64, externalID string, dayNumber int) (*Itinerary, error)
	SaveItinerary(i *Itinerary) error

	// CountTours returns the number of tours for a wholesaler, for reporting.
	CountTours(wholesalerID int64) (int, error)
}

// ReferenceRepository resolves and maintains reference rows. Find-or-create
// must be safe under concurrent invocation; implementations rely on
// uniqueness constraints, not check-then-insert.
type ReferenceRepository interface {
	FindCountryByCode(code string) (*Country, error)
	FindCountryByName(name string) (*Country, error)
	FindOrCreateCountry(c *Country) (*Country, error)

	FindTransportByCode(code string) (*Transport, error)
	FindTransportByName(name string) (*Transport, error)
	FindOrCreateTransport(t *Transport) (*Transport, error)
}

// SyncRunRepository tracks the sync run lifecycle.
type SyncRunRepository interface {
	// StartSyncRun inserts a running run and returns it with IDs populated.
	StartSyncRun(wholesalerID int64, syncType string) (*SyncRun, error)

	// HeartbeatSyncRun refreshes heartbeat_at for a running run.
	// heartbeat_at is monotonically non-decreasing while running.
	HeartbeatSyncRun(runID string) error

	// FinishSyncRun transitions a running run to a terminal status with
	// final counters. It is a no-op on runs already terminal.
	FinishSyncRun(runID string, status string, counters RunCounters, errorSummary string) error

	GetSyncRun(runID string) (*SyncRun, error)
	ListSyncRuns(wholesalerID int64, limit int) ([]SyncRun, error)

	// ReapStuckRuns transitions running runs whose heartbeat (or start, when
	// no heartbeat was ever recorded) is older than threshold to timeout,
	// recording reason. Returns the reaped runs.
	ReapStuckRuns(threshold time.Duration, reason string) ([]SyncRun, error)
}

// CursorRepository persists pagination cursors.
type CursorRepository interface {
	GetCursor(wholesalerID int64, syncType string) (*SyncCursor, error)
	SaveCursor(c *SyncCursor) error
}
