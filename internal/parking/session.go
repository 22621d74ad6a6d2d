package parking

import "time"

// Session is the live occupancy of one slot. It is owned by that slot and
// turns into a HistoryRecord when the slot is released.
type Session struct {
	VehiclePlate string
	OwnerName    string
	Category     Category
	SlotID       int
	EntryTime    time.Time
}

func openSession(v Vehicle, slotID int, now time.Time) *Session {
	return &Session{
		VehiclePlate: v.Plate,
		OwnerName:    v.Owner,
		Category:     v.Category,
		SlotID:       slotID,
		EntryTime:    now,
	}
}

// Elapsed is the time parked so far. It never goes negative.
func (s Session) Elapsed(now time.Time) time.Duration {
	d := now.Sub(s.EntryTime)
	if d < 0 {
		return 0
	}
	return d
}

// HistoryRecord is a closed session with its computed fee.
type HistoryRecord struct {
	VehiclePlate string
	OwnerName    string
	Category     Category
	SlotID       int
	EntryTime    time.Time
	ExitTime     time.Time
	DurationMs   int64
	Fee          int64
}

func (r HistoryRecord) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

func closeSession(s Session, exit time.Time, durationMs, fee int64) HistoryRecord {
	return HistoryRecord{
		VehiclePlate: s.VehiclePlate,
		OwnerName:    s.OwnerName,
		Category:     s.Category,
		SlotID:       s.SlotID,
		EntryTime:    s.EntryTime,
		ExitTime:     exit,
		DurationMs:   durationMs,
		Fee:          fee,
	}
}
