package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"parking-facility/internal/parking"
)

// document is the persisted JSON blob. Instants are Unix milliseconds.
type document struct {
	Slots   []slotJSON   `json:"slots"`
	History []recordJSON `json:"history"`
}

type slotJSON struct {
	ID       int              `json:"id"`
	Category parking.Category `json:"category"`
	Occupied bool             `json:"occupied"`
	Session  *sessionJSON     `json:"session,omitempty"`
}

type sessionJSON struct {
	VehiclePlate string           `json:"vehiclePlate"`
	OwnerName    string           `json:"ownerName"`
	Category     parking.Category `json:"category"`
	SlotID       int              `json:"slotId"`
	EntryTime    int64            `json:"entryTime"`
}

type recordJSON struct {
	VehiclePlate string           `json:"vehiclePlate"`
	OwnerName    string           `json:"ownerName"`
	Category     parking.Category `json:"category"`
	SlotID       int              `json:"slotId"`
	EntryTime    int64            `json:"entryTime"`
	ExitTime     int64            `json:"exitTime"`
	DurationMs   int64            `json:"durationMs"`
	Fee          int64            `json:"fee"`
}

// Encode serialises the durable part of the facility.
func Encode(snap parking.Snapshot) ([]byte, error) {
	doc := document{
		Slots:   make([]slotJSON, len(snap.Slots)),
		History: make([]recordJSON, len(snap.History)),
	}

	for i, slot := range snap.Slots {
		doc.Slots[i] = slotJSON{
			ID:       slot.ID,
			Category: slot.Category,
			Occupied: slot.Occupied,
		}
		if slot.Session != nil {
			doc.Slots[i].Session = &sessionJSON{
				VehiclePlate: slot.Session.VehiclePlate,
				OwnerName:    slot.Session.OwnerName,
				Category:     slot.Session.Category,
				SlotID:       slot.Session.SlotID,
				EntryTime:    slot.Session.EntryTime.UnixMilli(),
			}
		}
	}

	for i, r := range snap.History {
		doc.History[i] = recordJSON{
			VehiclePlate: r.VehiclePlate,
			OwnerName:    r.OwnerName,
			Category:     r.Category,
			SlotID:       r.SlotID,
			EntryTime:    r.EntryTime.UnixMilli(),
			ExitTime:     r.ExitTime.UnixMilli(),
			DurationMs:   r.DurationMs,
			Fee:          r.Fee,
		}
	}

	return json.Marshal(doc)
}

// Decode parses and validates a persisted blob. Any problem is reported as
// parking.ErrCorruptStore.
func Decode(data []byte, loc *time.Location) (parking.Snapshot, error) {
	if loc == nil {
		loc = time.Local
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return parking.Snapshot{}, fmt.Errorf("%w: %v", parking.ErrCorruptStore, err)
	}

	snap := parking.Snapshot{
		Slots:   make([]parking.Slot, len(doc.Slots)),
		History: make([]parking.HistoryRecord, len(doc.History)),
	}

	for i, s := range doc.Slots {
		snap.Slots[i] = parking.Slot{
			ID:       s.ID,
			Category: s.Category,
			Occupied: s.Occupied,
		}
		if s.Session != nil {
			snap.Slots[i].Session = &parking.Session{
				VehiclePlate: s.Session.VehiclePlate,
				OwnerName:    s.Session.OwnerName,
				Category:     s.Session.Category,
				SlotID:       s.Session.SlotID,
				EntryTime:    time.UnixMilli(s.Session.EntryTime).In(loc),
			}
		}
	}

	for i, r := range doc.History {
		snap.History[i] = parking.HistoryRecord{
			VehiclePlate: r.VehiclePlate,
			OwnerName:    r.OwnerName,
			Category:     r.Category,
			SlotID:       r.SlotID,
			EntryTime:    time.UnixMilli(r.EntryTime).In(loc),
			ExitTime:     time.UnixMilli(r.ExitTime).In(loc),
			DurationMs:   r.DurationMs,
			Fee:          r.Fee,
		}
	}

	if err := snap.Validate(); err != nil {
		return parking.Snapshot{}, err
	}
	return snap, nil
}
