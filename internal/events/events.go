// Package events publishes facility domain events. Publishing is best
// effort: callers log failures and carry on.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"parking-facility/internal/parking"
)

// SessionClosed is emitted once a released session has been persisted.
type SessionClosed struct {
	ID           string           `json:"id"`
	VehiclePlate string           `json:"vehiclePlate"`
	OwnerName    string           `json:"ownerName"`
	Category     parking.Category `json:"category"`
	SlotID       int              `json:"slotId"`
	EntryTime    time.Time        `json:"entryTime"`
	ExitTime     time.Time        `json:"exitTime"`
	DurationMs   int64            `json:"durationMs"`
	Fee          int64            `json:"fee"`
}

func NewSessionClosed(r parking.HistoryRecord) SessionClosed {
	return SessionClosed{
		ID:           uuid.NewString(),
		VehiclePlate: r.VehiclePlate,
		OwnerName:    r.OwnerName,
		Category:     r.Category,
		SlotID:       r.SlotID,
		EntryTime:    r.EntryTime,
		ExitTime:     r.ExitTime,
		DurationMs:   r.DurationMs,
		Fee:          r.Fee,
	}
}

type Publisher interface {
	PublishSessionClosed(ctx context.Context, event SessionClosed) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishSessionClosed(context.Context, SessionClosed) error { return nil }

func (NoopPublisher) Close() error { return nil }
