package facility

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"parking-facility/internal/events"
	"parking-facility/internal/logging"
	"parking-facility/internal/parking"
)

// HistoryQuery filters LedgerSnapshot results. Zero values match all.
type HistoryQuery struct {
	Limit    int
	Category parking.Category
	Plate    string
	From     time.Time
	To       time.Time
}

// Quote is what a live session would pay if it left now.
type Quote struct {
	Session parking.Session
	Fee     int64
	At      time.Time
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrPersist):
		return "persist_failed"
	default:
		return "failed"
	}
}

// Allocate parks v and persists the result.
func (f *Facility) Allocate(ctx context.Context, v parking.Vehicle) (parking.Slot, error) {
	ctx, span := f.tracer.Start(ctx, "facility.allocate",
		trace.WithAttributes(
			attribute.String("vehicle.plate", v.Plate),
			attribute.String("vehicle.category", v.Category.String()),
		))
	defer span.End()

	start := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	span.AddEvent("finding_available_slot")

	backup := f.store.Clone()
	slot, err := f.store.Allocate(v)
	if err == nil {
		err = f.persist(ctx, backup)
	}

	labels := []attribute.KeyValue{
		attribute.String("operation", "allocate"),
		attribute.String("category", v.Category.String()),
		attribute.String("status", statusOf(err)),
	}

	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(
			attribute.Int("slot.id", slot.ID),
			attribute.String("slot.category", slot.Category.String()),
		)
		span.AddEvent("slot_allocated", trace.WithAttributes(attribute.Int("slot_id", slot.ID)))
		f.reportGauges(ctx)
		logging.Info(ctx, "vehicle parked", "plate", v.Plate, "slot", slot.ID, "category", slot.Category)
	}

	f.metrics.allocations.Add(ctx, 1, metric.WithAttributes(labels...))
	f.metrics.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))

	if err != nil {
		return parking.Slot{}, err
	}
	return slot, nil
}

// Release closes the session on slotID, persists the result and publishes
// a SessionClosed event.
func (f *Facility) Release(ctx context.Context, slotID int) (parking.HistoryRecord, error) {
	ctx, span := f.tracer.Start(ctx, "facility.release",
		trace.WithAttributes(attribute.Int("slot.id", slotID)))
	defer span.End()

	start := time.Now()

	record, err := f.release(ctx, span, slotID, start)
	if err != nil {
		return parking.HistoryRecord{}, err
	}

	if perr := f.publisher.PublishSessionClosed(ctx, events.NewSessionClosed(record)); perr != nil {
		span.AddEvent("event_publish_failed")
		logging.Warn(ctx, "failed to publish session closed event", "slot", slotID, "error", perr)
	}
	return record, nil
}

// release frees the slot and persists the result under f.mu. The event is
// published by the caller once the lock is dropped.
func (f *Facility) release(ctx context.Context, span trace.Span, slotID int, start time.Time) (parking.HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	span.AddEvent("releasing_slot")

	backup := f.store.Clone()
	record, err := f.store.Release(slotID)
	if err == nil {
		err = f.persist(ctx, backup)
	}

	labels := []attribute.KeyValue{
		attribute.String("operation", "release"),
		attribute.String("status", statusOf(err)),
	}

	if err != nil {
		recordError(span, err)
	} else {
		labels = append(labels, attribute.String("category", record.Category.String()))
		span.SetAttributes(
			attribute.String("vehicle.plate", record.VehiclePlate),
			attribute.Int64("session.duration_ms", record.DurationMs),
			attribute.Int64("session.fee", record.Fee),
		)
		span.AddEvent("slot_released")
		f.reportGauges(ctx)
		f.metrics.revenue.Add(ctx, record.Fee, metric.WithAttributes(attribute.String("category", record.Category.String())))
		logging.Info(ctx, "vehicle left", "plate", record.VehiclePlate, "slot", slotID, "fee", record.Fee, "duration_ms", record.DurationMs)
	}

	f.metrics.releases.Add(ctx, 1, metric.WithAttributes(labels...))
	f.metrics.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))

	if err != nil {
		return parking.HistoryRecord{}, err
	}
	return record, nil
}

// RegistrySnapshot lists every slot in id order.
func (f *Facility) RegistrySnapshot(ctx context.Context) []parking.Slot {
	_, span := f.tracer.Start(ctx, "facility.registry_snapshot")
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	slots := f.store.Registry().Slots()
	span.SetAttributes(attribute.Int("slots.count", len(slots)))
	return slots
}

func (f *Facility) Slot(ctx context.Context, slotID int) (parking.Slot, error) {
	_, span := f.tracer.Start(ctx, "facility.slot", trace.WithAttributes(attribute.Int("slot.id", slotID)))
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.store.Registry().Slot(slotID)
}

func (f *Facility) Occupied(ctx context.Context) []parking.Slot {
	_, span := f.tracer.Start(ctx, "facility.occupied")
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	slots := f.store.Registry().Occupied()
	span.SetAttributes(attribute.Int("occupied_slots_count", len(slots)))
	return slots
}

func (f *Facility) Occupancy(ctx context.Context) parking.Occupancy {
	_, span := f.tracer.Start(ctx, "facility.occupancy")
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.store.Registry().Stats()
}

func (f *Facility) FindByPlate(ctx context.Context, plate string) (parking.Slot, error) {
	_, span := f.tracer.Start(ctx, "facility.find_by_plate",
		trace.WithAttributes(attribute.String("vehicle.plate", plate)))
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	slot, err := f.store.Registry().FindByPlate(plate)
	if err != nil {
		span.AddEvent("vehicle_not_found")
		return parking.Slot{}, err
	}
	span.AddEvent("vehicle_found", trace.WithAttributes(attribute.Int("slot_id", slot.ID)))
	return slot, nil
}

// LedgerSnapshot returns up to limit records, most recent first. limit <= 0
// returns all of them.
func (f *Facility) LedgerSnapshot(ctx context.Context, limit int) []parking.HistoryRecord {
	return f.History(ctx, HistoryQuery{Limit: limit})
}

// History returns matching records, most recent first.
func (f *Facility) History(ctx context.Context, q HistoryQuery) []parking.HistoryRecord {
	_, span := f.tracer.Start(ctx, "facility.history")
	defer span.End()

	var preds []func(parking.HistoryRecord) bool
	if q.Category != "" {
		preds = append(preds, parking.ByCategory(q.Category))
	}
	if q.Plate != "" {
		preds = append(preds, parking.ByPlate(q.Plate))
	}
	if !q.From.IsZero() {
		preds = append(preds, parking.ExitedSince(q.From))
	}
	if !q.To.IsZero() {
		preds = append(preds, parking.ExitedBefore(q.To))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out []parking.HistoryRecord
	for r := range f.store.Ledger().Query(parking.MatchAll(preds...)) {
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
		out = append(out, r)
	}
	span.SetAttributes(attribute.Int("records.count", len(out)))
	return out
}

// Record returns the ledger entry at index, 0 being the most recent.
func (f *Facility) Record(ctx context.Context, index int) (parking.HistoryRecord, error) {
	_, span := f.tracer.Start(ctx, "facility.record", trace.WithAttributes(attribute.Int("record.index", index)))
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.store.Ledger().At(index)
}

func (f *Facility) Quote(ctx context.Context, slotID int) (Quote, error) {
	_, span := f.tracer.Start(ctx, "facility.quote", trace.WithAttributes(attribute.Int("slot.id", slotID)))
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	slot, err := f.store.Registry().Slot(slotID)
	if err != nil {
		return Quote{}, err
	}
	fee, err := f.store.Quote(slotID)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Session: *slot.Session, Fee: fee, At: f.store.Now()}, nil
}

// Analytics summarises the facility as of now.
func (f *Facility) Analytics(ctx context.Context, daysBack int) (parking.Summary, error) {
	_, span := f.tracer.Start(ctx, "facility.analytics", trace.WithAttributes(attribute.Int("days_back", daysBack)))
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	summary, err := parking.Summarize(f.store, f.store.Now(), daysBack)
	if err != nil {
		recordError(span, err)
		return parking.Summary{}, err
	}
	return summary, nil
}

func (f *Facility) Fees() parking.FeePolicy {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store.Fees()
}

func (f *Facility) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store.Now()
}
