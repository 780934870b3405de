package storage

import (
	"encoding/json"
	"time"
)

// Wholesaler holds the connection and sync configuration for one upstream
// supplier. One row per wholesaler.
type Wholesaler struct {
	ID             int64   `json:"id"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	BaseURL        string  `json:"base_url"`
	SyncMode       string  `json:"sync_mode"`  // "single" or "two_phase"
	Schedule       string  `json:"schedule"`   // Go duration string, e.g. "6h"
	Active         bool    `json:"active"`
	RateLimit      float64 `json:"rate_limit"` // requests per second, 0 = unlimited
	TimeoutSeconds int     `json:"timeout_seconds"`

	// Auth
	AuthScheme  string `json:"auth_scheme"` // "none", "api_key", "bearer", "basic", "custom_headers", "oauth2"
	Credentials string `json:"-"`           // JSON blob, see httpx.Credentials

	// Endpoint table: logical name -> path template. An empty template means
	// the base URL is used verbatim.
	Endpoints string `json:"endpoints"`

	// Capability flags
	SupportsAvailability bool `json:"supports_availability"`
	SupportsHold         bool `json:"supports_hold"`
	SupportsModify       bool `json:"supports_modify"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EndpointTable decodes the endpoint JSON blob.
func (w *Wholesaler) EndpointTable() (map[string]string, error) {
	table := make(map[string]string)
	if w.Endpoints == "" {
		return table, nil
	}
	if err := json.Unmarshal([]byte(w.Endpoints), &table); err != nil {
		return nil, err
	}
	return table, nil
}

// FieldMapping is one declarative mapping row: for a wholesaler and canonical
// section, populate a target field from either an API path or a fixed value,
// optionally through a transform. Exactly one of APIPath/FixedValue is set.
type FieldMapping struct {
	ID           int64  `json:"id"`
	WholesalerID int64  `json:"wholesaler_id"`
	Section      string `json:"section"` // tour, departure, itinerary, content, media, seo
	TargetField  string `json:"target_field"`
	APIPath      string `json:"api_path,omitempty"`
	FixedValue   string `json:"fixed_value,omitempty"`
	Transform    string `json:"transform"`        // "", "direct", "value_map", "lookup", "template", "split"
	TransformCfg string `json:"transform_config"` // JSON blob, shape depends on Transform
	SortOrder    int    `json:"sort_order"`
}

// SyncCursor is the persisted pagination position per (wholesaler, sync type).
// Mutated only by the orchestrator after a successful fetch.
type SyncCursor struct {
	WholesalerID int64      `json:"wholesaler_id"`
	SyncType     string     `json:"sync_type"`
	Cursor       string     `json:"cursor"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// Sync run types.
const (
	RunTypeIncremental = "incremental"
	RunTypeFull        = "full"
	RunTypeManual      = "manual"
)

// Sync run statuses. Transitions are strictly forward:
// running -> {completed, failed, timeout}; terminal states never reopen.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusTimeout   = "timeout"
)

// EntityCounts aggregates created/updated/skipped counters for one entity type.
type EntityCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Add accumulates other into c.
func (c *EntityCounts) Add(other EntityCounts) {
	c.Created += other.Created
	c.Updated += other.Updated
	c.Skipped += other.Skipped
}

// Record bumps created or updated depending on whether the entity was new.
func (c *EntityCounts) Record(isNew bool) {
	if isNew {
		c.Created++
	} else {
		c.Updated++
	}
}

// RunCounters holds per-entity counters for a sync run.
type RunCounters struct {
	Tours       EntityCounts `json:"tours"`
	Periods     EntityCounts `json:"periods"`
	Offers      EntityCounts `json:"offers"`
	Itineraries EntityCounts `json:"itineraries"`
}

// Add accumulates other into c.
func (c *RunCounters) Add(other RunCounters) {
	c.Tours.Add(other.Tours)
	c.Periods.Add(other.Periods)
	c.Offers.Add(other.Offers)
	c.Itineraries.Add(other.Itineraries)
}

// SyncRun is the lifecycle record for one sync pass.
type SyncRun struct {
	ID           int64       `json:"-"`
	RunID        string      `json:"run_id"`
	WholesalerID int64       `json:"wholesaler_id"`
	Type         string      `json:"type"`
	Status       string      `json:"status"`
	StartedAt    time.Time   `json:"started_at"`
	HeartbeatAt  *time.Time  `json:"heartbeat_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	Counters     RunCounters `json:"counters"`
	ErrorSummary string      `json:"error_summary,omitempty"`
}

// Tour is the canonical tour entity, keyed by (wholesaler_id, external_id).
// Never hard-deleted by the pipeline; only status-closed.
type Tour struct {
	ID             int64  `json:"id"`
	WholesalerID   int64  `json:"wholesaler_id"`
	ExternalID     string `json:"external_id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	CountryID      *int64 `json:"country_id,omitempty"`
	TransportID    *int64 `json:"transport_id,omitempty"`
	DurationDays   int    `json:"duration_days,omitempty"`
	DurationNights int    `json:"duration_nights,omitempty"`
	Status         string `json:"status"` // "active" or "closed"

	// Sections holds the remaining canonical sections (content, media, seo)
	// as a JSON document.
	Sections string `json:"sections,omitempty"`

	// OverriddenFields lists fields manually edited by operators and
	// excluded from sync overwrites (JSON array of field names).
	OverriddenFields string `json:"overridden_fields,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OverrideSet decodes OverriddenFields into a lookup set.
func (t *Tour) OverrideSet() map[string]bool {
	set := make(map[string]bool)
	if t.OverriddenFields == "" {
		return set
	}
	var fields []string
	if err := json.Unmarshal([]byte(t.OverriddenFields), &fields); err != nil {
		return set
	}
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// Period is a departure window for a tour, keyed by (tour_id, external_id),
// falling back to (tour_id, start_date) when the upstream has no period IDs.
type Period struct {
	ID         int64     `json:"id"`
	TourID     int64     `json:"tour_id"`
	ExternalID string    `json:"external_id,omitempty"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Status     string    `json:"status"`
	Seats      int       `json:"seats,omitempty"`
	SeatsSold  int       `json:"seats_sold,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Offer carries the pricing for one period (1:1).
type Offer struct {
	ID               int64     `json:"id"`
	PeriodID         int64     `json:"period_id"`
	Price            float64   `json:"price"`
	ChildPrice       float64   `json:"child_price,omitempty"`
	SingleSupplement float64   `json:"single_supplement,omitempty"`
	Currency         string    `json:"currency,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Itinerary is one day's program for a tour, keyed by (tour_id, external_id),
// falling back to (tour_id, day_number).
type Itinerary struct {
	ID          int64  `json:"id"`
	TourID      int64  `json:"tour_id"`
	ExternalID  string `json:"external_id,omitempty"`
	DayNumber   int    `json:"day_number"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	// Meal flags are tri-state: nil = unknown (never collapsed to false).
	Breakfast *bool     `json:"breakfast,omitempty"`
	Lunch     *bool     `json:"lunch,omitempty"`
	Dinner    *bool     `json:"dinner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Country is an internal reference row resolvable from wholesaler tokens.
type Country struct {
	ID   int64  `json:"id"`
	Code string `json:"code"` // ISO2
	ISO3 string `json:"iso3,omitempty"`
	Name string `json:"name"`
}

// Transport is an internal reference row (airline, bus line, ...).
type Transport struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}
