package rest

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/anucha1993/tour-api-sub001/internal/errs"
)

// Logical endpoint names in a wholesaler's endpoint table.
const (
	EndpointTours        = "tours"
	EndpointTourDetail   = "tour_detail"
	EndpointPeriods      = "periods"
	EndpointItineraries  = "itineraries"
	EndpointAcknowledge  = "acknowledge"
	EndpointAvailability = "availability"
	EndpointHold         = "hold"
	EndpointConfirm      = "confirm"
	EndpointCancel       = "cancel"
	EndpointModify       = "modify"
	EndpointHealth       = "health"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// fallbackFields is the ordered candidate list tried when a template field
// is absent from the anchor record.
var fallbackFields = []string{"id", "code", "tour_code"}

// ResolveTemplate substitutes {field} tokens in a path template against an
// anchor record. Each token resolves through the field itself, then the
// fallback candidates. Resolution fails explicitly rather than producing a
// URL with a literal placeholder.
func ResolveTemplate(template string, anchor json.RawMessage) (string, error) {
	record := gjson.ParseBytes(anchor)

	resolved := placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		field := token[1 : len(token)-1]
		if v := record.Get(field); v.Exists() && v.String() != "" {
			return v.String()
		}
		for _, candidate := range fallbackFields {
			if candidate == field {
				continue
			}
			if v := record.Get(candidate); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
		return token
	})

	if leftover := placeholderPattern.FindString(resolved); leftover != "" {
		return "", errs.Newf(errs.KindEndpointTemplate,
			"unresolved placeholder %s in template %s", leftover, template)
	}

	return resolved, nil
}

// JoinURL appends a path to the base URL. An empty path means the base URL
// is used verbatim; some APIs expose the collection directly at the base.
func JoinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
