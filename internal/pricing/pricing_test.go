package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelika/forest-bookings/internal/domain"
)

func TestCompute_MultiDayWithExtras(t *testing.T) {
	cfg := domain.TripConfig{
		Forest:        "AMAZON",
		DateIn:        "2026-03-10",
		DateOut:       "2026-03-13",
		Guests:        2,
		Package:       domain.PackageExplorer,
		NeedTransport: true,
		NeedLodging:   true,
	}

	b := Compute(cfg)

	assert.Equal(t, int64(900_000), b.BasePerPersonPerDay)
	assert.Equal(t, 3, b.Days)
	assert.Equal(t, 2, b.Nights)
	// 900_000 * 2 guests * 3 days * 1.4
	assert.Equal(t, int64(7_560_000), b.PassCost)
	assert.Equal(t, int64(700_000), b.TransportCost)
	assert.Equal(t, int64(1_800_000), b.LodgingCost)
	assert.Equal(t, int64(10_060_000), b.Total)
}

func TestCompute_DayTrip(t *testing.T) {
	cfg := domain.TripConfig{
		Forest:  "BORNEO",
		DateIn:  "2026-03-10",
		DayTrip: true,
		Guests:  1,
		Package: domain.PackageBase,
	}

	b := Compute(cfg)

	assert.Equal(t, 1, b.Days)
	assert.Equal(t, 0, b.Nights)
	assert.Equal(t, int64(700_000), b.PassCost)
	assert.Equal(t, int64(0), b.TransportCost)
	assert.Equal(t, int64(0), b.LodgingCost)
	assert.Equal(t, int64(700_000), b.Total)
}

func TestCompute_LodgingSkippedWithoutNights(t *testing.T) {
	cfg := domain.TripConfig{
		Forest:      "TONGASS",
		DateIn:      "2026-03-10",
		DateOut:     "2026-03-10",
		Guests:      2,
		Package:     domain.PackageBase,
		NeedLodging: true,
	}

	b := Compute(cfg)

	assert.Equal(t, 1, b.Days)
	assert.Equal(t, 0, b.Nights)
	assert.Equal(t, int64(0), b.LodgingCost)
}

func TestCompute_UnknownInputsFallBack(t *testing.T) {
	cfg := domain.TripConfig{
		Forest:  "ATLANTIS",
		DateIn:  "not-a-date",
		DateOut: "also-bad",
		Guests:  0,
		Package: "platinum",
	}

	b := Compute(cfg)

	assert.Equal(t, int64(DefaultBaseIDR), b.BasePerPersonPerDay)
	assert.True(t, b.Multiplier.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 1, b.Days)
	// guests clamp to 1
	assert.Equal(t, int64(600_000), b.PassCost)
	assert.Equal(t, int64(600_000), b.Total)
}

func TestCompute_ReversedDatesClampToOneDay(t *testing.T) {
	cfg := domain.TripConfig{
		Forest:  "DAINTREE",
		DateIn:  "2026-03-13",
		DateOut: "2026-03-10",
		Guests:  1,
		Package: domain.PackageBase,
	}

	b := Compute(cfg)

	assert.Equal(t, 1, b.Days)
	assert.Equal(t, int64(680_000), b.Total)
}

func TestCompute_ExpeditionMultiplierIsExact(t *testing.T) {
	cfg := domain.TripConfig{
		Forest:  "AOKIGAHARA",
		DateIn:  "2026-05-01",
		DateOut: "2026-05-03",
		Guests:  3,
		Package: domain.PackageExpedition,
	}

	b := Compute(cfg)

	// 600_000 * 3 * 2 * 1.9
	assert.Equal(t, int64(6_840_000), b.PassCost)
	assert.True(t, b.Multiplier.Equal(decimal.RequireFromString("1.9")))
}

func TestDestinations(t *testing.T) {
	cfg := domain.TripConfig{
		DateIn:  "2026-03-10",
		DateOut: "2026-03-12",
		Guests:  2,
		Package: domain.PackageExplorer,
	}

	quotes := Destinations(cfg)
	require.Len(t, quotes, 7)

	assert.Equal(t, "AMAZON", quotes[0].Forest)
	assert.Equal(t, "Amazon, Brazil", quotes[0].Label)
	assert.Equal(t, "OLYMPIC", quotes[6].Forest)

	for _, q := range quotes {
		want := BaseRate(q.Forest)
		assert.Equal(t, want, q.Breakdown.BasePerPersonPerDay, q.Forest)
		assert.Equal(t, 2, q.Breakdown.Days, q.Forest)
	}
}

func TestForestLabel(t *testing.T) {
	assert.Equal(t, "Black Forest, Germany", ForestLabel("black_forest"))
	assert.Equal(t, "NOWHERE", ForestLabel("NOWHERE"))
	assert.Equal(t, "-", ForestLabel(""))
}
