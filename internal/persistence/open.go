package persistence

import (
	"context"
	"fmt"
	"path/filepath"
)

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Options selects and locates a KV backend.
type Options struct {
	Backend  string
	Path     string
	RedisURL string
}

// OpenKV opens the configured backend. The returned close function releases
// any connection it holds and is never nil.
func OpenKV(ctx context.Context, opts Options) (KV, func() error, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryKV(), noop, nil
	case BackendFile:
		kv, err := NewFileKV(opts.Path)
		if err != nil {
			return nil, noop, err
		}
		return kv, noop, nil
	case BackendSQLite:
		path := opts.Path
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "parking.db")
		}
		db, err := OpenSQLite(ctx, path)
		if err != nil {
			return nil, noop, err
		}
		return NewSQLiteKV(db), db.Close, nil
	case BackendRedis:
		client, err := NewRedisClient(ctx, opts.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		return NewRedisKV(client), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
