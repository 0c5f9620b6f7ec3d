// Package kv provides the key-value backends that hold the standby
// collection: in-process memory, Redis and a local SQLite file.
package kv

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/inspection-match/internal/config"
)

// Store is a byte-valued key-value store. Get returns nil, nil for a missing
// key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open returns the backend selected by cfg.Backend.
func Open(cfg config.StandbyConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(cfg.RedisURL)
	case "sqlite", "":
		return NewSQLite(cfg.SQLitePath)
	default:
		return nil, eris.Errorf("kv: unknown backend %q", cfg.Backend)
	}
}
