package persist

import (
	"context"
	"time"

	"github.com/tbxark/intakeagent/types"
)

const (
	DefaultNamespace = "intake"
	sessionsKey      = "sessions"
)

// CachePersister keeps the whole session set as one envelope in a Cache.
type CachePersister struct {
	cache Namespace[[]byte]
	now   func() time.Time
}

func NewCachePersister(core Cache[[]byte], namespace string) *CachePersister {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CachePersister{cache: NewNamespace(core, namespace), now: time.Now}
}

func (p *CachePersister) Save(ctx context.Context, sessions []types.PersistedSession) error {
	data, err := Encode(sessions, p.now())
	if err != nil {
		return err
	}
	return p.cache.Set(ctx, sessionsKey, data)
}

func (p *CachePersister) Load(ctx context.Context) ([]types.PersistedSession, error) {
	data, ok, err := p.cache.Get(ctx, sessionsKey)
	if err != nil {
		return nil, err
	}
	if !ok || len(data) == 0 {
		return nil, nil
	}
	return Decode(data)
}
