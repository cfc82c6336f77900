package store

import (
	"context"
	"fmt"

	flagforgedb "github.com/flagforge/flagforge/internal/db"
)

// NewStore creates a Store of the given kind.
//
//   - "memory": in-memory, data lost on restart - development and tests.
//   - "postgres": PostgreSQL-backed, persistent - production. dsn must be
//     non-empty; pool creation is lazy and does not itself verify
//     connectivity (call Ping separately if needed).
func NewStore(ctx context.Context, storeType, dsn string) (Store, error) {
	switch storeType {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("database DSN cannot be empty when using the postgres store (set DATABASE_URL)")
		}
		pool, err := flagforgedb.NewPool(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		return NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s (must be 'memory' or 'postgres')", storeType)
	}
}
