package parking

import (
	"fmt"
	"iter"
	"time"
)

// Ledger is the append-only history of closed sessions. Readers always see
// it most-recent-first.
type Ledger struct {
	// oldest first; Records and Query walk it backwards
	records []HistoryRecord
}

// NewLedger builds a ledger from records given most-recent-first, the order
// in which they are persisted and displayed.
func NewLedger(records ...HistoryRecord) *Ledger {
	l := &Ledger{records: make([]HistoryRecord, 0, len(records))}
	for i := len(records) - 1; i >= 0; i-- {
		l.records = append(l.records, records[i])
	}
	return l
}

func (l *Ledger) Append(record HistoryRecord) {
	l.records = append(l.records, record)
}

func (l *Ledger) Len() int {
	return len(l.records)
}

// Records returns up to limit records, most recent first. A limit <= 0
// returns everything.
func (l *Ledger) Records(limit int) []HistoryRecord {
	n := len(l.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]HistoryRecord, 0, n)
	for record := range l.All() {
		if len(out) == n {
			break
		}
		out = append(out, record)
	}
	return out
}

// At returns the record at position index in most-recent-first order.
func (l *Ledger) At(index int) (HistoryRecord, error) {
	if index < 0 || index >= len(l.records) {
		return HistoryRecord{}, fmt.Errorf("%w: history index %d", ErrInvalidRange, index)
	}
	return l.records[len(l.records)-1-index], nil
}

func (l *Ledger) All() iter.Seq[HistoryRecord] {
	return l.Query(nil)
}

// Query lazily yields the records matching pred, most recent first. The
// sequence is bounded by the ledger length at call time and may be ranged
// over any number of times.
func (l *Ledger) Query(pred func(HistoryRecord) bool) iter.Seq[HistoryRecord] {
	records := l.records
	return func(yield func(HistoryRecord) bool) {
		for i := len(records) - 1; i >= 0; i-- {
			if pred != nil && !pred(records[i]) {
				continue
			}
			if !yield(records[i]) {
				return
			}
		}
	}
}

func (l *Ledger) clone() *Ledger {
	records := make([]HistoryRecord, len(l.records))
	copy(records, l.records)
	return &Ledger{records: records}
}

// ExitedBetween matches records whose exit time lies in [from, to).
func ExitedBetween(from, to time.Time) func(HistoryRecord) bool {
	return func(r HistoryRecord) bool {
		return !r.ExitTime.Before(from) && r.ExitTime.Before(to)
	}
}

// ExitedSince matches records that left at or after from.
func ExitedSince(from time.Time) func(HistoryRecord) bool {
	return func(r HistoryRecord) bool {
		return !r.ExitTime.Before(from)
	}
}

// ExitedBefore matches records that left strictly before to.
func ExitedBefore(to time.Time) func(HistoryRecord) bool {
	return func(r HistoryRecord) bool {
		return r.ExitTime.Before(to)
	}
}

func ByCategory(c Category) func(HistoryRecord) bool {
	return func(r HistoryRecord) bool {
		return r.Category == c
	}
}

func ByPlate(plate string) func(HistoryRecord) bool {
	plate = normalizePlate(plate)
	return func(r HistoryRecord) bool {
		return r.VehiclePlate == plate
	}
}

// MatchAll combines predicates; nil entries are ignored.
func MatchAll(preds ...func(HistoryRecord) bool) func(HistoryRecord) bool {
	return func(r HistoryRecord) bool {
		for _, pred := range preds {
			if pred != nil && !pred(r) {
				return false
			}
		}
		return true
	}
}
