package parking

import (
	"fmt"
	"time"
)

// Options configure a new Store.
type Options struct {
	TotalSlots int
	Categories []Category
	Fees       FeePolicy
	Clock      Clock
}

func DefaultOptions() Options {
	return Options{
		TotalSlots: 48,
		Categories: []Category{CategoryCar, CategoryBike, CategoryTruck},
		Fees:       DefaultFeePolicy(),
		Clock:      SystemClock{},
	}
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	return o
}

// Store owns the registry and ledger of one facility. It is not safe for
// concurrent use; callers serialise access.
type Store struct {
	opts     Options
	registry *Registry
	ledger   *Ledger
}

// Snapshot is the durable part of a Store: slots with their live sessions
// and the ledger, most recent record first.
type Snapshot struct {
	Slots   []Slot
	History []HistoryRecord
}

func NewStore(opts Options) (*Store, error) {
	opts = opts.withDefaults()
	if err := opts.Fees.Validate(); err != nil {
		return nil, err
	}

	registry, err := NewRegistry(opts.TotalSlots, opts.Categories)
	if err != nil {
		return nil, err
	}

	return &Store{
		opts:     opts,
		registry: registry,
		ledger:   NewLedger(),
	}, nil
}

// RestoreStore rebuilds a Store from a persisted snapshot. The snapshot's
// slot count wins over opts.TotalSlots. Inconsistent snapshots are rejected
// with ErrCorruptStore.
func RestoreStore(opts Options, snap Snapshot) (*Store, error) {
	opts = opts.withDefaults()
	if err := opts.Fees.Validate(); err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	slots := make([]*Slot, len(snap.Slots))
	for i, s := range snap.Slots {
		slots[i] = NewSlot(s.ID, s.Category)
	}
	registry := newRegistry(slots)
	for _, s := range snap.Slots {
		if s.Session == nil {
			continue
		}
		if err := registry.Occupy(s.ID, *s.Session); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
		}
	}

	return &Store{
		opts:     opts,
		registry: registry,
		ledger:   NewLedger(snap.History...),
	}, nil
}

func (s *Store) Registry() *Registry {
	return s.registry
}

func (s *Store) Ledger() *Ledger {
	return s.ledger
}

func (s *Store) Fees() FeePolicy {
	return s.opts.Fees
}

func (s *Store) Now() time.Time {
	return s.opts.Clock.Now()
}

// Allocate opens a session for v on the slot chosen by the registry.
func (s *Store) Allocate(v Vehicle) (Slot, error) {
	return s.registry.Allocate(v, s.Now())
}

// Release closes the session on slotID, bills it and records it in the
// ledger. Every check runs before anything is mutated, so either the slot
// is freed and the record appended, or nothing changes.
func (s *Store) Release(slotID int) (HistoryRecord, error) {
	slot, err := s.registry.Slot(slotID)
	if err != nil {
		return HistoryRecord{}, err
	}
	if !slot.Occupied {
		return HistoryRecord{}, fmt.Errorf("%w: slot %d", ErrInvalidState, slotID)
	}

	now := s.Now()
	if now.Before(slot.Session.EntryTime) {
		// wall clock stepped back; bill zero time rather than a negative span
		now = slot.Session.EntryTime
	}
	durationMs := slot.Session.Elapsed(now).Milliseconds()
	fee, err := s.opts.Fees.ComputeFee(durationMs)
	if err != nil {
		return HistoryRecord{}, err
	}
	record := closeSession(*slot.Session, now, durationMs, fee)

	if _, err := s.registry.Release(slotID); err != nil {
		return HistoryRecord{}, err
	}
	s.ledger.Append(record)

	return record, nil
}

// Quote is the fee the session on slotID would pay if it left now.
func (s *Store) Quote(slotID int) (int64, error) {
	slot, err := s.registry.Slot(slotID)
	if err != nil {
		return 0, err
	}
	if !slot.Occupied {
		return 0, fmt.Errorf("%w: slot %d", ErrInvalidState, slotID)
	}
	return s.opts.Fees.ComputeFee(slot.Session.Elapsed(s.Now()).Milliseconds())
}

// Reset empties the facility: every slot is recreated free from the
// configured size and categories and the ledger is cleared.
func (s *Store) Reset() error {
	registry, err := NewRegistry(s.opts.TotalSlots, s.opts.Categories)
	if err != nil {
		return err
	}
	s.registry = registry
	s.ledger = NewLedger()
	return nil
}

func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Slots:   s.registry.Slots(),
		History: s.ledger.Records(0),
	}
}

// Clone returns an independent deep copy.
func (s *Store) Clone() *Store {
	return &Store{
		opts:     s.opts,
		registry: s.registry.clone(),
		ledger:   s.ledger.clone(),
	}
}

// Validate checks the invariants a snapshot must satisfy before it can be
// trusted as facility state.
func (snap Snapshot) Validate() error {
	if len(snap.Slots) == 0 {
		return fmt.Errorf("%w: no slots", ErrCorruptStore)
	}

	seen := make(map[int]bool, len(snap.Slots))
	plates := make(map[string]bool)
	for _, slot := range snap.Slots {
		if slot.ID < 1 {
			return fmt.Errorf("%w: slot id %d", ErrCorruptStore, slot.ID)
		}
		if seen[slot.ID] {
			return fmt.Errorf("%w: duplicate slot id %d", ErrCorruptStore, slot.ID)
		}
		seen[slot.ID] = true

		if !slot.Category.Valid() {
			return fmt.Errorf("%w: slot %d has category %q", ErrCorruptStore, slot.ID, slot.Category)
		}
		if slot.Occupied != (slot.Session != nil) {
			return fmt.Errorf("%w: slot %d occupancy does not match its session", ErrCorruptStore, slot.ID)
		}
		if slot.Session == nil {
			continue
		}
		if slot.Session.SlotID != slot.ID {
			return fmt.Errorf("%w: session on slot %d points at slot %d", ErrCorruptStore, slot.ID, slot.Session.SlotID)
		}
		if slot.Session.VehiclePlate == "" || !slot.Session.Category.Valid() {
			return fmt.Errorf("%w: slot %d has an invalid session", ErrCorruptStore, slot.ID)
		}
		if plates[slot.Session.VehiclePlate] {
			return fmt.Errorf("%w: vehicle %s parked twice", ErrCorruptStore, slot.Session.VehiclePlate)
		}
		plates[slot.Session.VehiclePlate] = true
	}

	for i, r := range snap.History {
		if r.DurationMs < 0 || r.Fee < 0 {
			return fmt.Errorf("%w: history record %d has negative duration or fee", ErrCorruptStore, i)
		}
		if !r.Category.Valid() {
			return fmt.Errorf("%w: history record %d has category %q", ErrCorruptStore, i, r.Category)
		}
		if r.ExitTime.Before(r.EntryTime) {
			return fmt.Errorf("%w: history record %d exits before it enters", ErrCorruptStore, i)
		}
	}

	return nil
}
