// Package facility serialises access to the parking store, persists it
// after every mutation and instruments each operation.
package facility

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"parking-facility/internal/events"
	"parking-facility/internal/logging"
	"parking-facility/internal/parking"
	"parking-facility/internal/persistence"
	"parking-facility/internal/telemetry"
)

// ErrPersist wraps a failed save. The mutation that triggered it has been
// rolled back.
var ErrPersist = errors.New("facility state could not be saved")

type Facility struct {
	mu        sync.Mutex
	opts      parking.Options
	store     *parking.Store
	adapter   *persistence.Adapter
	publisher events.Publisher
	tracer    trace.Tracer
	metrics   *metrics

	reportedOccupied int64
	reportedSlots    int64
}

// New builds a facility over a fresh store. Call Load to pick up the
// persisted state.
func New(opts parking.Options, adapter *persistence.Adapter, publisher events.Publisher, tp *telemetry.Provider) (*Facility, error) {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if tp == nil {
		tp = telemetry.NewNoopProvider()
	}

	store, err := parking.NewStore(opts)
	if err != nil {
		return nil, err
	}

	m, err := newMetrics(tp.Meter())
	if err != nil {
		return nil, err
	}

	f := &Facility{
		opts:      opts,
		store:     store,
		adapter:   adapter,
		publisher: publisher,
		tracer:    tp.Tracer(),
		metrics:   m,
	}
	f.reportGauges(context.Background())
	return f, nil
}

// Open is New followed by Load.
func Open(ctx context.Context, opts parking.Options, adapter *persistence.Adapter, publisher events.Publisher, tp *telemetry.Provider) (*Facility, error) {
	f, err := New(opts, adapter, publisher, tp)
	if err != nil {
		return nil, err
	}
	if err := f.Load(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

// Load replaces the in-memory state with the persisted snapshot. A missing
// or corrupt snapshot starts an empty facility from the configured options
// and saves it; an unreachable store is an error.
func (f *Facility) Load(ctx context.Context) error {
	ctx, span := f.tracer.Start(ctx, "facility.load")
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	snap, err := f.adapter.Load(ctx)
	switch {
	case persistence.IsCorrupt(err):
		logging.Warn(ctx, "persisted state is corrupt, starting empty", "key", f.adapter.Key(), "error", err)
		span.AddEvent("corrupt_snapshot")
	case err != nil:
		recordError(span, err)
		return err
	case snap == nil:
		logging.Info(ctx, "no persisted state, starting empty", "key", f.adapter.Key())
		span.AddEvent("empty_snapshot")
	default:
		store, rerr := parking.RestoreStore(f.opts, *snap)
		if rerr != nil {
			logging.Warn(ctx, "persisted state rejected, starting empty", "error", rerr)
			break
		}
		f.store = store
		f.reportGauges(ctx)
		logging.Info(ctx, "facility state loaded",
			"slots", store.Registry().Capacity(),
			"occupied", len(store.Registry().Occupied()),
			"history", store.Ledger().Len())
		return nil
	}

	store, err := parking.NewStore(f.opts)
	if err != nil {
		recordError(span, err)
		return err
	}
	f.store = store
	f.reportGauges(ctx)
	if err := f.adapter.Save(ctx, f.store.Snapshot()); err != nil {
		recordError(span, err)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// Save writes the current state.
func (f *Facility) Save(ctx context.Context) error {
	ctx, span := f.tracer.Start(ctx, "facility.save")
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.adapter.Save(ctx, f.store.Snapshot()); err != nil {
		recordError(span, err)
		f.metrics.persistFailures.Add(ctx, 1)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// Reset empties every slot and the ledger and drops the persisted state.
func (f *Facility) Reset(ctx context.Context) error {
	ctx, span := f.tracer.Start(ctx, "facility.reset")
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	backup := f.store.Clone()
	if err := f.store.Reset(); err != nil {
		recordError(span, err)
		return err
	}
	if err := f.adapter.Reset(ctx); err != nil {
		f.store = backup
		recordError(span, err)
		f.metrics.persistFailures.Add(ctx, 1)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	f.reportGauges(ctx)
	logging.Info(ctx, "facility reset")
	return nil
}

// persist saves the store; on failure the store is put back to backup.
// Callers hold f.mu.
func (f *Facility) persist(ctx context.Context, backup *parking.Store) error {
	if err := f.adapter.Save(ctx, f.store.Snapshot()); err != nil {
		f.store = backup
		f.metrics.persistFailures.Add(ctx, 1)
		logging.Error(ctx, "failed to persist facility state, change rolled back", "error", err)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// reportGauges moves the occupancy and size gauges to the current store.
// Callers hold f.mu (or own f exclusively).
func (f *Facility) reportGauges(ctx context.Context) {
	occupied := int64(len(f.store.Registry().Occupied()))
	slots := int64(f.store.Registry().Capacity())

	if d := occupied - f.reportedOccupied; d != 0 {
		f.metrics.occupancyGauge.Add(ctx, d)
	}
	if d := slots - f.reportedSlots; d != 0 {
		f.metrics.totalSlotsGauge.Add(ctx, d)
	}
	f.reportedOccupied = occupied
	f.reportedSlots = slots
}
