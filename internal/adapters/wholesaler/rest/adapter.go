// Package rest implements the wholesaler contract for conventional REST
// upstreams. All variability lives in configuration: the endpoint table,
// auth scheme, and capability flags are data, not code.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/anucha1993/tour-api-sub001/internal/adapters/httpx"
	"github.com/anucha1993/tour-api-sub001/internal/adapters/wholesaler"
	"github.com/anucha1993/tour-api-sub001/internal/errs"
)

// Config describes one REST wholesaler.
type Config struct {
	Name         string
	BaseURL      string
	Endpoints    map[string]string // logical name -> path template; "" = base URL verbatim
	Capabilities wholesaler.Capabilities
}

// Adapter is the configurable contract implementation for REST wholesalers.
type Adapter struct {
	cfg    Config
	client *httpx.Client
	logger *slog.Logger
}

// Compile-time check that Adapter satisfies the contract.
var _ wholesaler.Adapter = (*Adapter)(nil)

// New creates a REST adapter.
func New(cfg Config, client *httpx.Client, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{cfg: cfg, client: client, logger: logger}
}

// Name identifies the integration.
func (a *Adapter) Name() string {
	if a.cfg.Name != "" {
		return a.cfg.Name
	}
	return "generic-rest"
}

// Endpoint resolves a logical endpoint name to a full URL, substituting
// template placeholders against the anchor record when given.
func (a *Adapter) Endpoint(name string, anchor json.RawMessage) (string, error) {
	template, ok := a.cfg.Endpoints[name]
	if !ok {
		return "", errs.Newf(errs.KindConfiguration, "no %q endpoint configured", name)
	}
	if anchor != nil {
		resolved, err := ResolveTemplate(template, anchor)
		if err != nil {
			return "", err
		}
		template = resolved
	}
	return JoinURL(a.cfg.BaseURL, template), nil
}

// HasEndpoint reports whether a logical endpoint is configured.
func (a *Adapter) HasEndpoint(name string) bool {
	_, ok := a.cfg.Endpoints[name]
	return ok
}

// FetchTours returns one page of raw tour records.
func (a *Adapter) FetchTours(ctx context.Context, cursor string) (*wholesaler.TourPage, error) {
	endpoint, err := a.Endpoint(EndpointTours, nil)
	if err != nil {
		return nil, err
	}
	if cursor != "" {
		endpoint, err = withQueryParam(endpoint, "cursor", cursor)
		if err != nil {
			return nil, err
		}
	}

	body, err := a.client.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	records, strategy, err := extractRecords(body, tourWrapperKeys)
	if err != nil {
		return nil, err
	}

	nextCursor, hasMore := pageCursor(body)
	a.logger.Debug("fetched tour page",
		"wholesaler", a.Name(),
		"count", len(records),
		"strategy", strategy,
		"has_more", hasMore,
	)

	return &wholesaler.TourPage{Tours: records, NextCursor: nextCursor, HasMore: hasMore}, nil
}

// FetchTourDetail returns the raw detail record for a tour code, or nil when
// the upstream has no such tour.
func (a *Adapter) FetchTourDetail(ctx context.Context, code string) (json.RawMessage, error) {
	anchor, _ := json.Marshal(map[string]string{"code": code, "id": code, "tour_code": code})
	endpoint, err := a.Endpoint(EndpointTourDetail, anchor)
	if err != nil {
		return nil, err
	}

	body, err := a.client.Get(ctx, endpoint)
	if err != nil {
		var upstream *errs.UpstreamError
		if errors.As(err, &upstream) && upstream.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	// Detail endpoints sometimes wrap the single record the same way list
	// endpoints do.
	parsed := gjson.ParseBytes(body)
	for _, key := range genericWrapperKeys {
		if wrapped := parsed.Get(key); wrapped.IsObject() {
			return json.RawMessage(wrapped.Raw), nil
		}
	}
	return body, nil
}

// FetchPeriods returns raw departure records from a resolved endpoint.
func (a *Adapter) FetchPeriods(ctx context.Context, endpoint string) ([]json.RawMessage, error) {
	return a.fetchList(ctx, endpoint, tourWrapperKeys, "periods")
}

// FetchItineraries returns raw itinerary records from a resolved endpoint.
func (a *Adapter) FetchItineraries(ctx context.Context, endpoint string) ([]json.RawMessage, error) {
	return a.fetchList(ctx, endpoint, itineraryWrapperKeys, "itineraries")
}

func (a *Adapter) fetchList(ctx context.Context, endpoint string, kindKeys []string, kind string) ([]json.RawMessage, error) {
	body, err := a.client.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	records, strategy, err := extractRecords(body, kindKeys)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("fetched records",
		"wholesaler", a.Name(),
		"kind", kind,
		"count", len(records),
		"strategy", strategy,
	)
	return records, nil
}

// AcknowledgeSynced posts the ingested tour codes back to the upstream.
// Returns false when the wholesaler has no acknowledge hook configured.
func (a *Adapter) AcknowledgeSynced(ctx context.Context, tourCodes []string, syncID string) (bool, error) {
	if !a.HasEndpoint(EndpointAcknowledge) {
		return false, nil
	}
	endpoint, err := a.Endpoint(EndpointAcknowledge, nil)
	if err != nil {
		return false, err
	}

	payload, err := json.Marshal(map[string]any{
		"tour_codes": tourCodes,
		"sync_id":    syncID,
	})
	if err != nil {
		return false, err
	}

	if _, err := a.client.PostJSON(ctx, endpoint, payload); err != nil {
		return false, err
	}
	return true, nil
}

// CheckAvailability queries live availability when the wholesaler supports it.
func (a *Adapter) CheckAvailability(ctx context.Context, req wholesaler.BookingRequest) (*wholesaler.BookingResult, error) {
	if !a.cfg.Capabilities.Availability {
		return wholesaler.Unsupported("availability check"), nil
	}
	return a.bookingCall(ctx, EndpointAvailability, req)
}

// HoldBooking places a hold when the wholesaler supports it.
func (a *Adapter) HoldBooking(ctx context.Context, req wholesaler.BookingRequest) (*wholesaler.BookingResult, error) {
	if !a.cfg.Capabilities.Hold {
		return wholesaler.Unsupported("hold"), nil
	}
	return a.bookingCall(ctx, EndpointHold, req)
}

// ConfirmBooking confirms a held booking.
func (a *Adapter) ConfirmBooking(ctx context.Context, req wholesaler.BookingRequest) (*wholesaler.BookingResult, error) {
	if !a.cfg.Capabilities.Hold {
		return wholesaler.Unsupported("confirm"), nil
	}
	return a.bookingCall(ctx, EndpointConfirm, req)
}

// CancelBooking cancels a booking.
func (a *Adapter) CancelBooking(ctx context.Context, req wholesaler.BookingRequest) (*wholesaler.BookingResult, error) {
	if !a.cfg.Capabilities.Hold {
		return wholesaler.Unsupported("cancel"), nil
	}
	return a.bookingCall(ctx, EndpointCancel, req)
}

// ModifyBooking modifies a booking when the wholesaler supports it.
func (a *Adapter) ModifyBooking(ctx context.Context, req wholesaler.BookingRequest) (*wholesaler.BookingResult, error) {
	if !a.cfg.Capabilities.Modify {
		return wholesaler.Unsupported("modify"), nil
	}
	return a.bookingCall(ctx, EndpointModify, req)
}

func (a *Adapter) bookingCall(ctx context.Context, name string, req wholesaler.BookingRequest) (*wholesaler.BookingResult, error) {
	endpoint, err := a.Endpoint(name, nil)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	body, err := a.client.PostJSON(ctx, endpoint, payload)
	if err != nil {
		var upstream *errs.UpstreamError
		if errors.As(err, &upstream) {
			return &wholesaler.BookingResult{
				Outcome: wholesaler.OutcomeFailed,
				Message: fmt.Sprintf("upstream status %d", upstream.StatusCode),
			}, nil
		}
		return nil, err
	}

	parsed := gjson.ParseBytes(body)
	result := &wholesaler.BookingResult{Outcome: wholesaler.OutcomeSuccess}
	for _, path := range []string{"reference", "booking_ref", "id"} {
		if v := parsed.Get(path); v.Exists() {
			result.Reference = v.String()
			break
		}
	}
	result.Message = parsed.Get("message").String()
	return result, nil
}

// HealthCheck verifies the upstream is reachable via the health endpoint,
// falling back to the base URL.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	endpoint := a.cfg.BaseURL
	if a.HasEndpoint(EndpointHealth) {
		resolved, err := a.Endpoint(EndpointHealth, nil)
		if err != nil {
			return err
		}
		endpoint = resolved
	}
	_, err := a.client.Get(ctx, endpoint)
	return err
}

func withQueryParam(endpoint, key, value string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", errs.Wrap(err, errs.KindConfiguration, "invalid endpoint URL")
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
