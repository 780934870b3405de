// Package normalize coerces the loose value vocabularies wholesaler APIs use
// into the canonical representations the store persists.
package normalize

import "strings"

// Canonical period statuses.
const (
	StatusAvailable  = "available"
	StatusClosed     = "closed"
	StatusSoldOut    = "sold_out"
	StatusGuaranteed = "guaranteed"
)

// periodStatusTable maps upstream status vocabulary to the canonical enum.
// Unknown values default to available.
var periodStatusTable = map[string]string{
	"available":  StatusAvailable,
	"open":       StatusAvailable,
	"active":     StatusAvailable,
	"on_sale":    StatusAvailable,
	"closed":     StatusClosed,
	"close":      StatusClosed,
	"inactive":   StatusClosed,
	"cancelled":  StatusClosed,
	"canceled":   StatusClosed,
	"sold_out":   StatusSoldOut,
	"soldout":    StatusSoldOut,
	"sold-out":   StatusSoldOut,
	"full":       StatusSoldOut,
	"guaranteed": StatusGuaranteed,
	"guarantee":  StatusGuaranteed,
	"confirmed":  StatusGuaranteed,
}

// PeriodStatus maps an upstream departure status to the canonical enum.
func PeriodStatus(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if mapped, ok := periodStatusTable[key]; ok {
		return mapped
	}
	return StatusAvailable
}
