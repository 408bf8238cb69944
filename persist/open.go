package persist

import (
	"context"
	"fmt"
	"io"

	"github.com/tbxark/intakeagent/config"
	"github.com/tbxark/intakeagent/session"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the persister selected by cfg. The returned closer releases the backend.
func Open(ctx context.Context, cfg config.Store) (session.Persister, io.Closer, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewCachePersister(NewMemoryCache[[]byte](), DefaultNamespace), nopCloser{}, nil
	case "sqlite":
		db, err := NewSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	case "bolt":
		cache, err := NewBoltCache(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return NewCachePersister(cache, DefaultNamespace), cache, nil
	case "redis":
		cache, err := NewRedisCache(ctx, cfg.RedisAddr, 0)
		if err != nil {
			return nil, nil, err
		}
		return NewCachePersister(cache, DefaultNamespace), cache, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
