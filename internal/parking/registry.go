package parking

import (
	"fmt"
	"sort"
	"time"
)

// Registry is the fixed, ordered set of slots. Slot ids start at 1 and are
// never renumbered.
type Registry struct {
	capacity int
	slots    []*Slot
	byID     map[int]*Slot
}

// Occupancy summarises free and taken slots.
type Occupancy struct {
	Capacity       int
	Occupied       int
	Free           int
	FreeByCategory map[Category]int
}

func NewRegistry(capacity int, categories []Category) (*Registry, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: no categories configured", ErrUnknownCategory)
	}
	for _, c := range categories {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
		}
	}

	slots := make([]*Slot, capacity)
	for i := 1; i <= capacity; i++ {
		slots[i-1] = NewSlot(i, categories[i%len(categories)])
	}

	return newRegistry(slots), nil
}

func newRegistry(slots []*Slot) *Registry {
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].ID < slots[j].ID
	})

	byID := make(map[int]*Slot, len(slots))
	for _, slot := range slots {
		byID[slot.ID] = slot
	}

	return &Registry{
		capacity: len(slots),
		slots:    slots,
		byID:     byID,
	}
}

func (r *Registry) Capacity() int {
	return r.capacity
}

// Allocate parks v on the lowest-numbered free slot of its category, or on
// the lowest-numbered free slot of any category when none of its own is
// free. A full facility is left untouched.
func (r *Registry) Allocate(v Vehicle, now time.Time) (Slot, error) {
	if err := v.Validate(); err != nil {
		return Slot{}, err
	}
	if _, err := r.FindByPlate(v.Plate); err == nil {
		return Slot{}, fmt.Errorf("%w: %s", ErrDuplicateVehicle, v.Plate)
	}

	var fallback *Slot
	var chosen *Slot
	for _, slot := range r.slots {
		if slot.Occupied {
			continue
		}
		if slot.Category == v.Category {
			chosen = slot
			break
		}
		if fallback == nil {
			fallback = slot
		}
	}
	if chosen == nil {
		chosen = fallback
	}
	if chosen == nil {
		return Slot{}, ErrCapacityExhausted
	}

	if err := chosen.Park(openSession(v, chosen.ID, now)); err != nil {
		return Slot{}, err
	}
	return chosen.snapshot(), nil
}

// Occupy places an already opened session on a specific slot. It fails
// with ErrInvalidState if the slot is taken or the session names another
// slot.
func (r *Registry) Occupy(slotID int, session Session) error {
	slot, ok := r.byID[slotID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSlot, slotID)
	}
	if session.SlotID != slotID {
		return fmt.Errorf("%w: session belongs to slot %d", ErrInvalidState, session.SlotID)
	}
	return slot.Park(&session)
}

// Release frees the slot and hands back the session that occupied it.
func (r *Registry) Release(slotID int) (Session, error) {
	slot, ok := r.byID[slotID]
	if !ok {
		return Session{}, fmt.Errorf("%w: %d", ErrUnknownSlot, slotID)
	}

	session, err := slot.Leave()
	if err != nil {
		return Session{}, err
	}
	return *session, nil
}

func (r *Registry) Slot(slotID int) (Slot, error) {
	slot, ok := r.byID[slotID]
	if !ok {
		return Slot{}, fmt.Errorf("%w: %d", ErrUnknownSlot, slotID)
	}
	return slot.snapshot(), nil
}

// Slots returns a detached copy of every slot, ordered by id.
func (r *Registry) Slots() []Slot {
	out := make([]Slot, len(r.slots))
	for i, slot := range r.slots {
		out[i] = slot.snapshot()
	}
	return out
}

// Occupied returns the occupied slots ordered by id.
func (r *Registry) Occupied() []Slot {
	var occupied []Slot
	for _, slot := range r.slots {
		if slot.Occupied {
			occupied = append(occupied, slot.snapshot())
		}
	}
	return occupied
}

func (r *Registry) FindByPlate(plate string) (Slot, error) {
	plate = normalizePlate(plate)
	for _, slot := range r.slots {
		if slot.Occupied && slot.Session.VehiclePlate == plate {
			return slot.snapshot(), nil
		}
	}
	return Slot{}, fmt.Errorf("%w: %s", ErrVehicleNotFound, plate)
}

func (r *Registry) Stats() Occupancy {
	stats := Occupancy{
		Capacity:       r.capacity,
		FreeByCategory: make(map[Category]int, len(AllCategories)),
	}
	for _, c := range AllCategories {
		stats.FreeByCategory[c] = 0
	}
	for _, slot := range r.slots {
		if slot.Occupied {
			stats.Occupied++
			continue
		}
		stats.Free++
		stats.FreeByCategory[slot.Category]++
	}
	return stats
}

func (r *Registry) clone() *Registry {
	slots := make([]*Slot, len(r.slots))
	for i, slot := range r.slots {
		s := slot.snapshot()
		slots[i] = &s
	}
	return newRegistry(slots)
}
