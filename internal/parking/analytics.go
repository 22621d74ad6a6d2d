package parking

import (
	"fmt"
	"time"
)

// MaxDaysBack bounds the RevenueByDay window to roughly ten years.
const MaxDaysBack = 3660

// DailyRevenue is the revenue of one local calendar day.
type DailyRevenue struct {
	Day      time.Time
	Revenue  int64
	Vehicles int
}

// Summary bundles every analytics figure for one point in time.
type Summary struct {
	GeneratedAt       time.Time
	Counts            map[Category]int
	TotalRevenue      int64
	AverageDurationMs int64
	VehiclesToday     int
	RevenueByDay      []DailyRevenue
	Occupancy         Occupancy
}

// CountsByCategory tallies closed sessions plus vehicles parked right now.
// A vehicle that has left before and is parked again is counted twice.
func CountsByCategory(s *Store) map[Category]int {
	counts := make(map[Category]int, len(AllCategories))
	for _, c := range AllCategories {
		counts[c] = 0
	}
	for record := range s.Ledger().All() {
		counts[record.Category]++
	}
	for _, slot := range s.Registry().Occupied() {
		counts[slot.Session.Category]++
	}
	return counts
}

func TotalRevenue(s *Store) int64 {
	var total int64
	for record := range s.Ledger().All() {
		total += record.Fee
	}
	return total
}

// AverageDuration is the integer mean duration in milliseconds, 0 for an
// empty ledger.
func AverageDuration(s *Store) int64 {
	var total, n int64
	for record := range s.Ledger().All() {
		total += record.DurationMs
		n++
	}
	if n == 0 {
		return 0
	}
	return total / n
}

// RevenueByDay returns exactly daysBack buckets, oldest first, the last one
// being the local day containing now.
func RevenueByDay(s *Store, now time.Time, daysBack int) ([]DailyRevenue, error) {
	if daysBack <= 0 || daysBack > MaxDaysBack {
		return nil, fmt.Errorf("%w: daysBack must be between 1 and %d, got %d", ErrInvalidRange, MaxDaysBack, daysBack)
	}

	today := startOfDay(now)
	buckets := make([]DailyRevenue, daysBack)
	for i := range buckets {
		buckets[i].Day = today.AddDate(0, 0, i-(daysBack-1))
	}

	from := buckets[0].Day
	to := today.AddDate(0, 0, 1)
	for record := range s.Ledger().Query(ExitedBetween(from, to)) {
		exit := record.ExitTime.In(now.Location())
		for i := len(buckets) - 1; i >= 0; i-- {
			if !exit.Before(buckets[i].Day) {
				buckets[i].Revenue += record.Fee
				buckets[i].Vehicles++
				break
			}
		}
	}

	return buckets, nil
}

// VehiclesProcessedToday counts sessions closed during the local day of now.
func VehiclesProcessedToday(s *Store, now time.Time) int {
	from := startOfDay(now)
	n := 0
	for range s.Ledger().Query(ExitedBetween(from, from.AddDate(0, 0, 1))) {
		n++
	}
	return n
}

func Summarize(s *Store, now time.Time, daysBack int) (Summary, error) {
	byDay, err := RevenueByDay(s, now, daysBack)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		GeneratedAt:       now,
		Counts:            CountsByCategory(s),
		TotalRevenue:      TotalRevenue(s),
		AverageDurationMs: AverageDuration(s),
		VehiclesToday:     VehiclesProcessedToday(s, now),
		RevenueByDay:      byDay,
		Occupancy:         s.Registry().Stats(),
	}, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
