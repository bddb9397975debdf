// Package pricing computes trip cost breakdowns. Everything here is pure:
// fixed rate tables in, deterministic breakdown out, no state, no errors.
// Malformed input degrades to safe defaults instead of failing so a quote
// can always be shown.
package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/travelika/forest-bookings/internal/domain"
)

// Per-person-per-day pass rates in whole rupiah.
var forestBaseIDR = map[string]int64{
	"AMAZON":       900_000,
	"BORNEO":       700_000,
	"BLACK_FOREST": 650_000,
	"TONGASS":      800_000,
	"AOKIGAHARA":   600_000,
	"DAINTREE":     680_000,
	"OLYMPIC":      720_000,
}

// forestOrder fixes the display order of the comparison table.
var forestOrder = []string{
	"AMAZON", "BORNEO", "BLACK_FOREST", "TONGASS", "AOKIGAHARA", "DAINTREE", "OLYMPIC",
}

var forestLabels = map[string]string{
	"AMAZON":       "Amazon, Brazil",
	"BORNEO":       "Borneo, Indonesia",
	"BLACK_FOREST": "Black Forest, Germany",
	"TONGASS":      "Tongass, Alaska",
	"AOKIGAHARA":   "Aokigahara, Japan",
	"DAINTREE":     "Daintree, Australia",
	"OLYMPIC":      "Olympic, USA",
}

// Multipliers are decimals, not floats: 1.4 and 1.9 must multiply exactly.
var packageMultiplier = map[domain.PackageTier]decimal.Decimal{
	domain.PackageBase:       decimal.NewFromInt(1),
	domain.PackageExplorer:   decimal.RequireFromString("1.4"),
	domain.PackageExpedition: decimal.RequireFromString("1.9"),
}

const (
	// DefaultBaseIDR applies when the destination is unknown.
	DefaultBaseIDR = 600_000

	TransportPerPerson       = 350_000
	LodgingPerNightPerPerson = 450_000

	dateLayout = "2006-01-02"
)

// Breakdown is the itemized result of pricing one trip configuration.
// Derived, never persisted; bookings snapshot only the total.
type Breakdown struct {
	BasePerPersonPerDay int64           `json:"base_per_person_per_day"`
	Multiplier          decimal.Decimal `json:"multiplier"`
	Days                int             `json:"days"`
	Nights              int             `json:"nights"`
	PassCost            int64           `json:"pass_cost"`
	TransportCost       int64           `json:"transport_cost"`
	LodgingCost         int64           `json:"lodging_cost"`
	Total               int64           `json:"total"`
}

// Compute prices a trip configuration.
func Compute(cfg domain.TripConfig) Breakdown {
	base := BaseRate(cfg.Forest)

	mult, ok := packageMultiplier[domain.PackageTier(strings.ToLower(string(cfg.Package)))]
	if !ok {
		mult = decimal.NewFromInt(1)
	}

	guests := cfg.Guests
	if guests < 1 {
		guests = 1
	}

	days := 1
	if !cfg.DayTrip {
		out := cfg.DateOut
		if out == "" {
			out = cfg.DateIn
		}
		days = diffDays(cfg.DateIn, out)
	}
	nights := days - 1
	if nights < 0 {
		nights = 0
	}

	pass := decimal.NewFromInt(base).
		Mul(decimal.NewFromInt(int64(guests))).
		Mul(decimal.NewFromInt(int64(days))).
		Mul(mult).
		Round(0).
		IntPart()

	var transport int64
	if cfg.NeedTransport {
		transport = TransportPerPerson * int64(guests)
	}

	var lodging int64
	if cfg.NeedLodging && nights > 0 {
		lodging = LodgingPerNightPerPerson * int64(guests) * int64(nights)
	}

	return Breakdown{
		BasePerPersonPerDay: base,
		Multiplier:          mult,
		Days:                days,
		Nights:              nights,
		PassCost:            pass,
		TransportCost:       transport,
		LodgingCost:         lodging,
		Total:               pass + transport + lodging,
	}
}

// BaseRate resolves the per-person-per-day rate for a destination,
// falling back to DefaultBaseIDR for unknown forests.
func BaseRate(forest string) int64 {
	if rate, ok := forestBaseIDR[strings.ToUpper(forest)]; ok {
		return rate
	}
	return DefaultBaseIDR
}

// ForestLabel returns the display name for a destination key.
func ForestLabel(forest string) string {
	if label, ok := forestLabels[strings.ToUpper(forest)]; ok {
		return label
	}
	if forest == "" {
		return "-"
	}
	return forest
}

// DestinationQuote pairs a destination with its breakdown for the same
// trip configuration.
type DestinationQuote struct {
	Forest    string    `json:"forest"`
	Label     string    `json:"label"`
	Breakdown Breakdown `json:"breakdown"`
}

// Destinations prices the given configuration against every known forest,
// in display order.
func Destinations(cfg domain.TripConfig) []DestinationQuote {
	quotes := make([]DestinationQuote, 0, len(forestOrder))
	for _, f := range forestOrder {
		c := cfg
		c.Forest = f
		quotes = append(quotes, DestinationQuote{
			Forest:    f,
			Label:     ForestLabel(f),
			Breakdown: Compute(c),
		})
	}
	return quotes
}

// diffDays returns the rounded whole-day span between two yyyy-mm-dd dates,
// clamped to at least 1. Unparseable dates count as a single day.
func diffDays(a, b string) int {
	start, err := time.Parse(dateLayout, a)
	if err != nil {
		return 1
	}
	end, err := time.Parse(dateLayout, b)
	if err != nil {
		return 1
	}

	days := int(end.Sub(start).Round(24*time.Hour) / (24 * time.Hour))
	if days < 1 {
		return 1
	}
	return days
}
