package parking

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parkFor parks plate, lets d pass on the clock and releases it.
func parkFor(t *testing.T, s *Store, clock *ManualClock, plate string, c Category, d time.Duration) HistoryRecord {
	t.Helper()
	slot, err := s.Allocate(NewVehicle(plate, "", c))
	require.NoError(t, err)
	clock.Advance(d)
	rec, err := s.Release(slot.ID)
	require.NoError(t, err)
	return rec
}

func TestAnalyticsOnEmptyStore(t *testing.T) {
	s, clock := newTestStore(t, 6)

	assert.Equal(t, map[Category]int{CategoryCar: 0, CategoryBike: 0, CategoryTruck: 0}, CountsByCategory(s))
	assert.Equal(t, int64(0), TotalRevenue(s))
	assert.Equal(t, int64(0), AverageDuration(s))
	assert.Equal(t, 0, VehiclesProcessedToday(s, clock.Now()))

	days, err := RevenueByDay(s, clock.Now(), 7)
	require.NoError(t, err)
	require.Len(t, days, 7)
	for _, d := range days {
		assert.Equal(t, int64(0), d.Revenue)
	}
}

func TestCountsByCategoryIncludesParkedVehicles(t *testing.T) {
	s, clock := newTestStore(t, 6)
	parkFor(t, s, clock, "A", CategoryCar, time.Minute)
	parkFor(t, s, clock, "B", CategoryTruck, time.Minute)

	// A is back and parked again: counted in history and as parked
	_, err := s.Allocate(NewVehicle("A", "", CategoryCar))
	require.NoError(t, err)

	counts := CountsByCategory(s)
	assert.Equal(t, 2, counts[CategoryCar])
	assert.Equal(t, 1, counts[CategoryTruck])
	assert.Equal(t, 0, counts[CategoryBike])
}

func TestRevenueAndAverageDuration(t *testing.T) {
	s, clock := newTestStore(t, 6)
	parkFor(t, s, clock, "A", CategoryCar, 10*time.Minute) // 20
	parkFor(t, s, clock, "B", CategoryCar, 31*time.Minute) // 70
	parkFor(t, s, clock, "C", CategoryBike, 2*time.Hour)   // 120

	assert.Equal(t, int64(210), TotalRevenue(s))
	want := (10*time.Minute + 31*time.Minute + 2*time.Hour).Milliseconds() / 3
	assert.Equal(t, want, AverageDuration(s))
}

func TestRevenueByDayBuckets(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	start := time.Date(2026, 3, 8, 23, 0, 0, 0, loc)
	clock := NewManualClock(start)
	s, err := NewStore(Options{TotalSlots: 4, Categories: AllCategories, Fees: DefaultFeePolicy(), Clock: clock})
	require.NoError(t, err)

	// exits 2026-03-08 23:10 local: outside a 7 day window ending 03-15
	parkFor(t, s, clock, "OLD", CategoryCar, 10*time.Minute)

	// exits 2026-03-09 00:10 local, first day of the window
	clock.Set(time.Date(2026, 3, 9, 0, 0, 0, 0, loc))
	parkFor(t, s, clock, "D1", CategoryCar, 10*time.Minute)

	// exits 2026-03-12 11:00 local
	clock.Set(time.Date(2026, 3, 12, 9, 0, 0, 0, loc))
	parkFor(t, s, clock, "D4", CategoryCar, 2*time.Hour)

	// exits 2026-03-15 23:59:59.999 local, last millisecond of today
	clock.Set(time.Date(2026, 3, 15, 23, 50, 0, 0, loc))
	parkFor(t, s, clock, "TODAY", CategoryBike, 9*time.Minute+59*time.Second+999*time.Millisecond)

	now := time.Date(2026, 3, 15, 23, 59, 59, 999_000_000, loc)
	days, err := RevenueByDay(s, now, 7)
	require.NoError(t, err)
	require.Len(t, days, 7)

	var sum int64
	for i, d := range days {
		assert.Equal(t, time.Date(2026, 3, 9+i, 0, 0, 0, 0, loc), d.Day)
		assert.GreaterOrEqual(t, d.Revenue, int64(0))
		sum += d.Revenue
	}
	assert.Equal(t, int64(20), days[0].Revenue)
	assert.Equal(t, int64(120), days[3].Revenue)
	assert.Equal(t, int64(20), days[6].Revenue)
	assert.Equal(t, 1, days[6].Vehicles)
	assert.Equal(t, TotalRevenue(s)-20, sum, "only the OLD record falls outside the window")

	assert.Equal(t, 1, VehiclesProcessedToday(s, now))
}

func TestRevenueByDayRejectsOutOfBoundsRange(t *testing.T) {
	s, clock := newTestStore(t, 1)

	for _, days := range []int{0, -1, MaxDaysBack + 1, 1_000_000_000, math.MaxInt} {
		_, err := RevenueByDay(s, clock.Now(), days)
		require.ErrorIs(t, err, ErrInvalidRange, "daysBack %d", days)
	}

	days, err := RevenueByDay(s, clock.Now(), MaxDaysBack)
	require.NoError(t, err)
	assert.Len(t, days, MaxDaysBack)
}

func TestSummarize(t *testing.T) {
	s, clock := newTestStore(t, 3)
	parkFor(t, s, clock, "A", CategoryCar, time.Hour)
	_, err := s.Allocate(NewVehicle("B", "", CategoryTruck))
	require.NoError(t, err)

	sum, err := Summarize(s, clock.Now(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(70), sum.TotalRevenue)
	assert.Equal(t, time.Hour.Milliseconds(), sum.AverageDurationMs)
	assert.Equal(t, 1, sum.VehiclesToday)
	assert.Len(t, sum.RevenueByDay, 3)
	assert.Equal(t, 1, sum.Occupancy.Occupied)
	assert.Equal(t, 1, sum.Counts[CategoryTruck])
}
