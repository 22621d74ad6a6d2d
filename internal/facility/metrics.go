package facility

import (
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	allocations       metric.Int64Counter
	releases          metric.Int64Counter
	revenue           metric.Int64Counter
	persistFailures   metric.Int64Counter
	occupancyGauge    metric.Int64UpDownCounter
	totalSlotsGauge   metric.Int64UpDownCounter
	operationDuration metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	var m metrics
	var err error

	m.allocations, err = meter.Int64Counter("parking_allocations_total",
		metric.WithDescription("Total number of allocation attempts"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	m.releases, err = meter.Int64Counter("parking_releases_total",
		metric.WithDescription("Total number of release attempts"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	m.revenue, err = meter.Int64Counter("parking_revenue_total",
		metric.WithDescription("Fees charged on release"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	m.persistFailures, err = meter.Int64Counter("parking_persist_failures_total",
		metric.WithDescription("Snapshots that could not be saved"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	m.occupancyGauge, err = meter.Int64UpDownCounter("parking_facility_occupancy",
		metric.WithDescription("Current number of occupied parking slots"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	m.totalSlotsGauge, err = meter.Int64UpDownCounter("parking_facility_total_slots",
		metric.WithDescription("Total number of parking slots"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	m.operationDuration, err = meter.Float64Histogram("operation_duration_seconds",
		metric.WithDescription("Duration of facility operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &m, nil
}
