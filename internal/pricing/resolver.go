package pricing

import (
	"sort"
	"strings"

	"github.com/emberthread/storefront/pkg/models"
)

// Prices are ZAR cents. The table is the source of truth for what the store
// will charge; anything that doesn't resolve here blocks checkout and routes
// the customer to a quote instead.
var priceTable = map[string]int64{
	"pink ruffle hat":       28000,
	"ruffle hat":            26000,
	"chunky beanie":         22000,
	"granny square blanket": 95000,
	"baby blanket":          68000,
	"market tote":           32000,
	"amigurumi bear":        38000,
	"amigurumi bunny":       38000,
	"fingerless gloves":     18000,
	"infinity scarf":        30000,
	"plant hanger":          15000,
	"dish cloth set":        12000,
}

// XLSurcharge covers the extra yarn on the largest sizes.
const XLSurcharge int64 = 3500

var sortedNames []string

func init() {
	sortedNames = make([]string, 0, len(priceTable))
	for name := range priceTable {
		sortedNames = append(sortedNames, name)
	}
	sort.Strings(sortedNames)
}

// Resolve maps an item description and size to an amount in cents. The
// second return is false when no price can be resolved; that is a normal
// terminal state, not an error. Resolve is pure: no I/O, no clock, and the
// substring fallback walks the table in sorted order so the same input
// always yields the same amount.
func Resolve(item string, size models.Size) (int64, bool) {
	name := strings.ToLower(strings.TrimSpace(item))
	if name == "" {
		return 0, false
	}

	base, ok := priceTable[name]
	if !ok {
		for _, key := range sortedNames {
			if strings.Contains(key, name) || strings.Contains(name, key) {
				base = priceTable[key]
				ok = true
				break
			}
		}
	}
	if !ok {
		return 0, false
	}

	if size == models.SizeXL {
		base += XLSurcharge
	}
	return base, true
}

// Quote resolves the full amount for a line: unit price times quantity.
func Quote(item string, size models.Size, quantity int) (int64, bool) {
	if quantity < 1 {
		return 0, false
	}
	unit, ok := Resolve(item, size)
	if !ok {
		return 0, false
	}
	return unit * int64(quantity), true
}

// Items returns the known item names, for the quote endpoint.
func Items() []string {
	out := make([]string, len(sortedNames))
	copy(out, sortedNames)
	return out
}
