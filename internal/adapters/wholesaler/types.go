// Package wholesaler defines the contract every wholesaler integration must
// support. Records flow through the contract as raw JSON; the mapping engine
// owns their interpretation.
package wholesaler

import (
	"context"
	"encoding/json"
)

// TourPage is one page of raw tour records from the upstream.
type TourPage struct {
	Tours      []json.RawMessage
	NextCursor string
	HasMore    bool
}

// BookingOutcome distinguishes success from "this wholesaler cannot do that".
type BookingOutcome string

const (
	OutcomeSuccess     BookingOutcome = "success"
	OutcomeUnsupported BookingOutcome = "unsupported"
	OutcomeFailed      BookingOutcome = "failed"
)

// BookingRequest carries the parameters for outbound booking operations.
type BookingRequest struct {
	TourCode   string         `json:"tour_code"`
	PeriodRef  string         `json:"period_ref,omitempty"`
	BookingRef string         `json:"booking_ref,omitempty"`
	Pax        int            `json:"pax,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// BookingResult is the typed result of an outbound booking operation.
type BookingResult struct {
	Outcome   BookingOutcome `json:"outcome"`
	Reference string         `json:"reference,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// Unsupported is the canonical result for capability-gated operations the
// wholesaler does not offer.
func Unsupported(op string) *BookingResult {
	return &BookingResult{Outcome: OutcomeUnsupported, Message: op + " not supported by this wholesaler"}
}

// Capabilities gates the outbound operations.
type Capabilities struct {
	Availability bool
	Hold         bool
	Modify       bool
}

// Adapter is the contract every wholesaler integration implements, whether
// generic REST or wholesaler-specific.
type Adapter interface {
	// Name identifies the wholesaler integration, e.g. "generic-rest".
	Name() string

	// FetchTours returns one page of raw tour records. cursor is the opaque
	// pagination token from the previous page, empty for the first.
	FetchTours(ctx context.Context, cursor string) (*TourPage, error)

	// FetchTourDetail returns the raw detail record for a tour code, or nil
	// when the upstream has no such tour.
	FetchTourDetail(ctx context.Context, code string) (json.RawMessage, error)

	// FetchPeriods returns raw departure records from a resolved endpoint.
	FetchPeriods(ctx context.Context, endpoint string) ([]json.RawMessage, error)

	// FetchItineraries returns raw itinerary records from a resolved endpoint.
	FetchItineraries(ctx context.Context, endpoint string) ([]json.RawMessage, error)

	// AcknowledgeSynced informs the upstream which tour codes a sync run
	// ingested. Returns false when the wholesaler has no acknowledge hook.
	AcknowledgeSynced(ctx context.Context, tourCodes []string, syncID string) (bool, error)

	// Outbound booking passthroughs, capability-gated.
	CheckAvailability(ctx context.Context, req BookingRequest) (*BookingResult, error)
	HoldBooking(ctx context.Context, req BookingRequest) (*BookingResult, error)
	ConfirmBooking(ctx context.Context, req BookingRequest) (*BookingResult, error)
	CancelBooking(ctx context.Context, req BookingRequest) (*BookingResult, error)
	ModifyBooking(ctx context.Context, req BookingRequest) (*BookingResult, error)

	// HealthCheck verifies the upstream is reachable.
	HealthCheck(ctx context.Context) error
}
