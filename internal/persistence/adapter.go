// Package persistence stores the facility snapshot under a single key of a
// key-value store. Writes are synchronous and always carry the whole
// snapshot.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parking-facility/internal/parking"
)

const DefaultKey = "parking_state"

// ErrCorruptStore is returned by Load when the stored blob cannot be used.
var ErrCorruptStore = parking.ErrCorruptStore

// KV is the minimal key-value contract the adapter needs. Get returns
// (nil, nil) for a missing key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type Adapter struct {
	kv  KV
	key string
	loc *time.Location
}

func NewAdapter(kv KV, key string, loc *time.Location) *Adapter {
	if key == "" {
		key = DefaultKey
	}
	if loc == nil {
		loc = time.Local
	}
	return &Adapter{kv: kv, key: key, loc: loc}
}

func (a *Adapter) Key() string {
	return a.key
}

func (a *Adapter) Save(ctx context.Context, snap parking.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := a.kv.Set(ctx, a.key, data); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load returns (nil, nil) when nothing has been saved yet and
// ErrCorruptStore when the saved blob is unusable. Callers start from an
// empty facility in both cases.
func (a *Adapter) Load(ctx context.Context) (*parking.Snapshot, error) {
	data, err := a.kv.Get(ctx, a.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	snap, err := Decode(data, a.loc)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (a *Adapter) Reset(ctx context.Context) error {
	if err := a.kv.Delete(ctx, a.key); err != nil {
		return fmt.Errorf("failed to reset snapshot: %w", err)
	}
	return nil
}

// IsCorrupt reports whether err came from an unusable snapshot rather than
// an unreachable store.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorruptStore)
}
