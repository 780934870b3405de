package rest

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/anucha1993/tour-api-sub001/internal/errs"
)

// Wrapper keys tried per record kind, after the generic ones. Keeping the
// candidates as an explicit ordered list makes cross-wholesaler behavior
// auditable; the matched strategy is logged by the adapter.
var (
	genericWrapperKeys   = []string{"data", "items"}
	tourWrapperKeys      = []string{"tours", "schedules", "periods", "departures"}
	itineraryWrapperKeys = []string{"itineraries", "days", "programs"}
)

// extractRecords normalizes a response body into a flat record list.
// Strategies, in priority order: raw top-level array, then each wrapper key.
// Returns the records and the name of the strategy that matched.
func extractRecords(body []byte, kindKeys []string) ([]json.RawMessage, string, error) {
	parsed := gjson.ParseBytes(body)

	if parsed.IsArray() {
		return rawArray(parsed), "array", nil
	}

	if !parsed.IsObject() {
		return nil, "", errs.New(errs.KindValidation, "response is neither array nor object")
	}

	for _, key := range append(append([]string{}, genericWrapperKeys...), kindKeys...) {
		if wrapped := parsed.Get(key); wrapped.IsArray() {
			return rawArray(wrapped), "wrapper:" + key, nil
		}
	}

	return nil, "", errs.New(errs.KindValidation, "no known record wrapper in response")
}

func rawArray(result gjson.Result) []json.RawMessage {
	items := result.Array()
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		out = append(out, json.RawMessage(item.Raw))
	}
	return out
}

// pageCursor derives the pagination cursor and has-more flag heuristically.
// Candidates: next_cursor, cursor, pagination.next; has_more defaults to
// cursor presence when the API doesn't state it.
func pageCursor(body []byte) (cursor string, hasMore bool) {
	parsed := gjson.ParseBytes(body)

	for _, path := range []string{"next_cursor", "cursor", "pagination.next"} {
		if v := parsed.Get(path); v.Exists() && v.String() != "" {
			cursor = v.String()
			break
		}
	}

	for _, path := range []string{"has_more", "pagination.has_more"} {
		if v := parsed.Get(path); v.Exists() {
			return cursor, v.Bool()
		}
	}

	return cursor, cursor != ""
}
