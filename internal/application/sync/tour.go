package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/anucha1993/tour-api-sub001/internal/adapters/wholesaler/rest"
	"github.com/anucha1993/tour-api-sub001/internal/domain/mapping"
	"github.com/anucha1993/tour-api-sub001/internal/domain/normalize"
	"github.com/anucha1993/tour-api-sub001/internal/errs"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
)

// SyncModeTwoPhase marks wholesalers whose tour list returns anchors only;
// periods and itineraries need a second templated request per tour.
const (
	SyncModeSingle   = "single"
	SyncModeTwoPhase = "two_phase"
)

// Nested collection keys tried on single-call payloads.
var (
	nestedPeriodKeys    = []string{"periods", "departures", "schedules", "dates"}
	nestedItineraryKeys = []string{"itineraries", "days", "programs"}
)

// tourOutcome is the result of processing one tour.
type tourOutcome struct {
	TourID   int64
	TourCode string
	IsNew    bool
	Counters storage.RunCounters
	Warnings []string
}

// tourLabel identifies a raw record in error messages before mapping has run.
func tourLabel(record json.RawMessage) string {
	parsed := gjson.ParseBytes(record)
	for _, field := range []string{"id", "code", "tour_code"} {
		if v := parsed.Get(field); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return "unidentified record"
}

// isPreMapped reports whether a payload already carries canonical sections
// instead of a raw upstream shape.
func isPreMapped(record json.RawMessage) bool {
	return gjson.GetBytes(record, mapping.SectionTour).IsObject()
}

// mapTourRecord produces canonical sections for a tour record, running the
// engine for raw shapes and passing pre-mapped sections through.
func (o *Orchestrator) mapTourRecord(record json.RawMessage) (*mapping.Result, bool, error) {
	if isPreMapped(record) {
		result := &mapping.Result{Sections: map[string]json.RawMessage{}}
		parsed := gjson.ParseBytes(record)
		for _, section := range mapping.Sections {
			if doc := parsed.Get(section); doc.IsObject() {
				result.Sections[section] = json.RawMessage(doc.Raw)
			}
		}
		return result, true, nil
	}

	result, err := o.engine.Apply(record)
	if err != nil {
		return nil, false, err
	}
	return result, false, nil
}

// mapChildRecord maps one nested departure or itinerary record.
func (o *Orchestrator) mapChildRecord(record json.RawMessage, section string, pre bool) (*mapping.Result, error) {
	if pre {
		return &mapping.Result{Sections: map[string]json.RawMessage{section: record}}, nil
	}
	return o.engine.ApplySection(record, section)
}

// processTour runs the full map/resolve/upsert pipeline for one raw record.
// All writes for the tour and its children share one transaction.
func (o *Orchestrator) processTour(ctx context.Context, record json.RawMessage) (*tourOutcome, error) {
	mapped, pre, err := o.mapTourRecord(record)
	if err != nil {
		return nil, err
	}

	externalID := o.externalID(mapped, record)
	if externalID == "" {
		return nil, errs.New(errs.KindValidation, "record has no external identifier")
	}

	periods, itineraries := nestedRecords(record)

	if !pre && o.w.SyncMode == SyncModeTwoPhase {
		detail, fetchedPeriods, fetchedItineraries, err := o.fetchPhaseTwo(ctx, record, externalID)
		if err != nil {
			return nil, err
		}
		if detail != nil {
			detailMapped, err := o.engine.Apply(detail)
			if err != nil {
				return nil, err
			}
			mergeSections(mapped, detailMapped)
			detailPeriods, detailItineraries := nestedRecords(detail)
			if len(detailPeriods) > 0 {
				periods = detailPeriods
			}
			if len(detailItineraries) > 0 {
				itineraries = detailItineraries
			}
		}
		if len(fetchedPeriods) > 0 {
			periods = fetchedPeriods
		}
		if len(fetchedItineraries) > 0 {
			itineraries = fetchedItineraries
		}
	}

	outcome := &tourOutcome{Warnings: mapped.Warnings}
	err = o.repo.Tx(func(tx storage.Repository) error {
		tour, isNew, err := o.upsertTour(tx, externalID, mapped)
		if err != nil {
			return err
		}
		outcome.TourID = tour.ID
		outcome.TourCode = tour.Code
		outcome.IsNew = isNew
		outcome.Counters.Tours.Record(isNew)

		if err := o.upsertPeriods(tx, tour, periods, pre, outcome); err != nil {
			return err
		}
		return o.upsertItineraries(tx, tour, itineraries, pre, outcome)
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// externalID prefers the mapped identifier and falls back to conventional
// raw fields.
func (o *Orchestrator) externalID(mapped *mapping.Result, record json.RawMessage) string {
	if v := mapped.Field(mapping.SectionTour, "external_id"); v.Exists() && v.String() != "" {
		return v.String()
	}
	return firstNonEmpty(record, "id", "code", "tour_code")
}

func firstNonEmpty(record json.RawMessage, fields ...string) string {
	parsed := gjson.ParseBytes(record)
	for _, field := range fields {
		if v := parsed.Get(field); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// nestedRecords extracts embedded departure and itinerary collections from a
// single-call payload.
func nestedRecords(record json.RawMessage) (periods, itineraries []json.RawMessage) {
	parsed := gjson.ParseBytes(record)
	periods = nestedArray(parsed, nestedPeriodKeys)
	itineraries = nestedArray(parsed, nestedItineraryKeys)
	return periods, itineraries
}

func nestedArray(parsed gjson.Result, keys []string) []json.RawMessage {
	for _, key := range keys {
		if arr := parsed.Get(key); arr.IsArray() {
			items := arr.Array()
			out := make([]json.RawMessage, 0, len(items))
			for _, item := range items {
				out = append(out, json.RawMessage(item.Raw))
			}
			return out
		}
	}
	return nil
}

// fetchPhaseTwo resolves the per-tour endpoints against the anchor record and
// fetches detail, periods, and itineraries where configured.
func (o *Orchestrator) fetchPhaseTwo(ctx context.Context, anchor json.RawMessage, code string) (detail json.RawMessage, periods, itineraries []json.RawMessage, err error) {
	resolver, ok := o.adapter.(endpointResolver)
	if !ok {
		return nil, nil, nil, errs.New(errs.KindConfiguration,
			"two-phase mode requires an adapter with an endpoint table")
	}

	if resolver.HasEndpoint(rest.EndpointTourDetail) {
		detail, err = o.adapter.FetchTourDetail(ctx, code)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	if resolver.HasEndpoint(rest.EndpointPeriods) {
		endpoint, err := resolver.Endpoint(rest.EndpointPeriods, anchor)
		if err != nil {
			return nil, nil, nil, err
		}
		periods, err = o.adapter.FetchPeriods(ctx, endpoint)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	if resolver.HasEndpoint(rest.EndpointItineraries) {
		endpoint, err := resolver.Endpoint(rest.EndpointItineraries, anchor)
		if err != nil {
			return nil, nil, nil, err
		}
		itineraries, err = o.adapter.FetchItineraries(ctx, endpoint)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	return detail, periods, itineraries, nil
}

// mergeSections overlays the detail mapping over the list mapping, field by
// field. Detail wins; the list record is usually a thin anchor.
func mergeSections(base, overlay *mapping.Result) {
	for section, doc := range overlay.Sections {
		existing, ok := base.Sections[section]
		if !ok {
			base.Sections[section] = doc
			continue
		}
		merged := existing
		gjson.ParseBytes(doc).ForEach(func(key, value gjson.Result) bool {
			merged, _ = sjson.SetRawBytes(merged, key.String(), []byte(value.Raw))
			return true
		})
		base.Sections[section] = merged
	}
	base.Warnings = append(base.Warnings, overlay.Warnings...)
}

// upsertTour finds or creates the tour and applies non-overridden fields.
func (o *Orchestrator) upsertTour(tx storage.Repository, externalID string, mapped *mapping.Result) (*storage.Tour, bool, error) {
	tour, err := tx.FindTourByExternalID(o.w.ID, externalID)
	if err != nil {
		return nil, false, err
	}
	isNew := tour == nil
	if isNew {
		tour = &storage.Tour{WholesalerID: o.w.ID, ExternalID: externalID}
	}

	// Operator-edited fields stay untouched; the engine-wide protected list
	// applies to existing tours only, so first ingestion still populates them.
	protected := tour.OverrideSet()
	if !isNew {
		for _, field := range o.cfg.OverrideProtected {
			protected[field] = true
		}
	}
	apply := func(field string, set func(v gjson.Result)) {
		if protected[field] {
			return
		}
		if v := mapped.Field(mapping.SectionTour, field); v.Exists() {
			set(v)
		}
	}

	apply("code", func(v gjson.Result) { tour.Code = v.String() })
	apply("name", func(v gjson.Result) { tour.Name = v.String() })
	apply("description", func(v gjson.Result) { tour.Description = v.String() })
	apply("duration_days", func(v gjson.Result) { tour.DurationDays = int(v.Int()) })
	apply("duration_nights", func(v gjson.Result) { tour.DurationNights = int(v.Int()) })
	apply("status", func(v gjson.Result) { tour.Status = v.String() })
	apply("country_id", func(v gjson.Result) { tour.CountryID = int64Ptr(v.Int()) })
	apply("transport_id", func(v gjson.Result) { tour.TransportID = int64Ptr(v.Int()) })
	if tour.Code == "" {
		tour.Code = externalID
	}

	sections := tour.Sections
	if sections == "" {
		sections = "{}"
	}
	for _, section := range []string{mapping.SectionContent, mapping.SectionMedia, mapping.SectionSEO} {
		doc := mapped.Section(section)
		if doc == nil || protected[section] {
			continue
		}
		sections, err = sjson.SetRaw(sections, section, string(doc))
		if err != nil {
			return nil, false, errs.Wrap(err, errs.KindMapping, "assembling tour sections")
		}
	}
	tour.Sections = sections

	if err := tx.SaveTour(tour); err != nil {
		return nil, false, err
	}
	return tour, isNew, nil
}

func int64Ptr(v int64) *int64 { return &v }

// upsertPeriods maps and persists the departure records for one tour.
// Past departures beyond the configured threshold are skipped and counted.
func (o *Orchestrator) upsertPeriods(tx storage.Repository, tour *storage.Tour, records []json.RawMessage, pre bool, outcome *tourOutcome) error {
	cutoff := pastCutoff(o.cfg.PastPeriodDays)

	for _, record := range records {
		mapped, err := o.mapChildRecord(record, mapping.SectionDeparture, pre)
		if err != nil {
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("tour %s period: %v", tour.Code, err))
			continue
		}
		outcome.Warnings = append(outcome.Warnings, mapped.Warnings...)

		field := func(name string) gjson.Result {
			return mapped.Field(mapping.SectionDeparture, name)
		}

		startRaw := field("start_date").String()
		startDate, err := normalize.ParseDate(startRaw)
		if err != nil {
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("tour %s period: invalid start date %q", tour.Code, startRaw))
			continue
		}

		if o.cfg.SkipPastPeriods && startDate.Before(cutoff) {
			outcome.Counters.Periods.Skipped++
			continue
		}

		externalID := field("external_id").String()
		period, err := tx.FindPeriod(tour.ID, externalID, startDate)
		if err != nil {
			return err
		}
		isNew := period == nil
		if isNew {
			period = &storage.Period{TourID: tour.ID, ExternalID: externalID, StartDate: startDate}
		}
		period.StartDate = startDate
		if v := field("end_date"); v.Exists() {
			if endDate, err := normalize.ParseDate(v.String()); err == nil {
				period.EndDate = endDate
			}
		}
		period.Status = normalize.PeriodStatus(field("status").String())
		if v := field("seats"); v.Exists() {
			period.Seats = int(v.Int())
		}
		if v := field("seats_sold"); v.Exists() {
			period.SeatsSold = int(v.Int())
		}

		if err := tx.SavePeriod(period); err != nil {
			return err
		}
		outcome.Counters.Periods.Record(isNew)

		if err := o.upsertOffer(tx, period.ID, mapped, outcome); err != nil {
			return err
		}
	}
	return nil
}

// pastCutoff computes the skip threshold as a date, today minus the grace
// window, so same-day departures always survive.
func pastCutoff(graceDays int) time.Time {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -graceDays)
}

// upsertOffer maintains the 1:1 offer when the departure carries pricing.
func (o *Orchestrator) upsertOffer(tx storage.Repository, periodID int64, mapped *mapping.Result, outcome *tourOutcome) error {
	price := mapped.Field(mapping.SectionDeparture, "price")
	if !price.Exists() {
		return nil
	}

	offer, err := tx.FindOfferByPeriod(periodID)
	if err != nil {
		return err
	}
	isNew := offer == nil
	if isNew {
		offer = &storage.Offer{PeriodID: periodID}
	}
	offer.Price = price.Float()
	if v := mapped.Field(mapping.SectionDeparture, "child_price"); v.Exists() {
		offer.ChildPrice = v.Float()
	}
	if v := mapped.Field(mapping.SectionDeparture, "single_supplement"); v.Exists() {
		offer.SingleSupplement = v.Float()
	}
	if v := mapped.Field(mapping.SectionDeparture, "currency"); v.Exists() {
		offer.Currency = v.String()
	}

	if err := tx.SaveOffer(offer); err != nil {
		return err
	}
	outcome.Counters.Offers.Record(isNew)
	return nil
}

// upsertItineraries maps and persists the day-by-day program for one tour.
// Meal flags keep their tri-state: an unknown encoding stays NULL.
func (o *Orchestrator) upsertItineraries(tx storage.Repository, tour *storage.Tour, records []json.RawMessage, pre bool, outcome *tourOutcome) error {
	for idx, record := range records {
		mapped, err := o.mapChildRecord(record, mapping.SectionItinerary, pre)
		if err != nil {
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("tour %s itinerary: %v", tour.Code, err))
			continue
		}
		outcome.Warnings = append(outcome.Warnings, mapped.Warnings...)

		field := func(name string) gjson.Result {
			return mapped.Field(mapping.SectionItinerary, name)
		}

		dayNumber := idx + 1
		if v := field("day_number"); v.Exists() {
			dayNumber = int(v.Int())
		}
		externalID := field("external_id").String()

		itinerary, err := tx.FindItinerary(tour.ID, externalID, dayNumber)
		if err != nil {
			return err
		}
		isNew := itinerary == nil
		if isNew {
			itinerary = &storage.Itinerary{TourID: tour.ID, ExternalID: externalID}
		}
		itinerary.DayNumber = dayNumber
		if v := field("title"); v.Exists() {
			itinerary.Title = v.String()
		}
		if v := field("description"); v.Exists() {
			itinerary.Description = v.String()
		}
		itinerary.Breakfast = mealFlag(field("breakfast"))
		itinerary.Lunch = mealFlag(field("lunch"))
		itinerary.Dinner = mealFlag(field("dinner"))

		if err := tx.SaveItinerary(itinerary); err != nil {
			return err
		}
		outcome.Counters.Itineraries.Record(isNew)
	}
	return nil
}

// mealFlag coerces a heterogeneous truthy encoding into a nullable bool.
func mealFlag(v gjson.Result) *bool {
	if !v.Exists() {
		return nil
	}
	if value, known := normalize.ToBoolean(v.Value()).Bool(); known {
		return &value
	}
	return nil
}
