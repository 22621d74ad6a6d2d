package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-facility/internal/parking"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func sampleStore(t *testing.T) *parking.Store {
	t.Helper()
	clock := parking.NewManualClock(testNow)
	store, err := parking.NewStore(parking.Options{
		TotalSlots: 4,
		Categories: parking.AllCategories,
		Fees:       parking.DefaultFeePolicy(),
		Clock:      clock,
	})
	require.NoError(t, err)

	_, err = store.Allocate(parking.NewVehicle("KA01AB1234", "Asha", parking.CategoryCar))
	require.NoError(t, err)
	slot, err := store.Allocate(parking.NewVehicle("MH12ZZ0001", "Ravi", parking.CategoryBike))
	require.NoError(t, err)

	clock.Advance(95 * time.Minute)
	_, err = store.Release(slot.ID)
	require.NoError(t, err)

	_, err = store.Allocate(parking.NewVehicle("TN09TR7777", "", parking.CategoryTruck))
	require.NoError(t, err)
	return store
}

func newSQLiteKV(t *testing.T) KV {
	t.Helper()
	db, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteKV(db)
}

func newRedisKV(t *testing.T) KV {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisKV(client)
}

func backends(t *testing.T) map[string]func(t *testing.T) KV {
	return map[string]func(t *testing.T) KV{
		"memory": func(t *testing.T) KV { return NewMemoryKV() },
		"file": func(t *testing.T) KV {
			kv, err := NewFileKV(t.TempDir())
			require.NoError(t, err)
			return kv
		},
		"sqlite": newSQLiteKV,
		"redis":  newRedisKV,
	}
}

func TestAdapter_RoundTrip(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			adapter := NewAdapter(open(t), "", time.UTC)
			store := sampleStore(t)

			require.NoError(t, adapter.Save(ctx, store.Snapshot()))

			snap, err := adapter.Load(ctx)
			require.NoError(t, err)
			require.NotNil(t, snap)

			want, err := Encode(store.Snapshot())
			require.NoError(t, err)
			got, err := Encode(*snap)
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(got))

			require.Len(t, snap.History, 1)
			assert.Equal(t, "MH12ZZ0001", snap.History[0].VehiclePlate)
			assert.Equal(t, int64(95*60*1000), snap.History[0].DurationMs)
			assert.True(t, snap.History[0].EntryTime.Equal(testNow))

			restored, err := parking.RestoreStore(parking.DefaultOptions(), *snap)
			require.NoError(t, err)
			assert.Len(t, restored.Registry().Occupied(), 2)
			assert.Equal(t, 1, restored.Ledger().Len())
		})
	}
}

func TestAdapter_LoadEmpty(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			adapter := NewAdapter(open(t), "", time.UTC)

			snap, err := adapter.Load(context.Background())
			assert.NoError(t, err)
			assert.Nil(t, snap)
		})
	}
}

func TestAdapter_Reset(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			adapter := NewAdapter(open(t), "", time.UTC)
			require.NoError(t, adapter.Save(ctx, sampleStore(t).Snapshot()))

			require.NoError(t, adapter.Reset(ctx))
			// deleting twice is not an error
			require.NoError(t, adapter.Reset(ctx))

			snap, err := adapter.Load(ctx)
			assert.NoError(t, err)
			assert.Nil(t, snap)
		})
	}
}

func TestAdapter_LoadCorrupt(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	adapter := NewAdapter(kv, "state", time.UTC)

	require.NoError(t, kv.Set(ctx, "state", []byte("{not json")))

	snap, err := adapter.Load(ctx)
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, parking.ErrCorruptStore)
	assert.True(t, IsCorrupt(err))
}

func TestAdapter_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	adapter := NewAdapter(kv, "", time.UTC)
	store := sampleStore(t)

	require.NoError(t, adapter.Save(ctx, store.Snapshot()))
	require.NoError(t, store.Reset())
	require.NoError(t, adapter.Save(ctx, store.Snapshot()))

	snap, err := adapter.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.History)
	for _, slot := range snap.Slots {
		assert.False(t, slot.Occupied)
	}
}

func TestAdapter_DefaultKey(t *testing.T) {
	adapter := NewAdapter(NewMemoryKV(), "", nil)
	assert.Equal(t, "parking_state", adapter.Key())
}

func TestSQLiteKV_Upsert(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)
	_, err = db.Exec(createKVTable)
	require.NoError(t, err)

	kv := NewSQLiteKV(db)
	require.NoError(t, kv.Set(ctx, "k", []byte("v1")))
	require.NoError(t, kv.Set(ctx, "k", []byte("v2")))

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM kv_store`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestMemoryKV_CopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	value := []byte("abc")
	require.NoError(t, kv.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestOpenKV(t *testing.T) {
	ctx := context.Background()

	kv, closeFn, err := OpenKV(ctx, Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryKV{}, kv)
	assert.NoError(t, closeFn())

	kv, closeFn, err = OpenKV(ctx, Options{Backend: BackendSQLite, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteKV{}, kv)
	assert.NoError(t, closeFn())

	mr := miniredis.RunT(t)
	kv, closeFn, err = OpenKV(ctx, Options{Backend: BackendRedis, RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisKV{}, kv)
	assert.NoError(t, closeFn())

	_, _, err = OpenKV(ctx, Options{Backend: "etcd"})
	assert.Error(t, err)
}
