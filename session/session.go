package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/newsdigest/config"
	"github.com/mohammad-safakhou/newsdigest/session/inmemory"
	redis_session "github.com/mohammad-safakhou/newsdigest/session/redis"
	"github.com/mohammad-safakhou/newsdigest/session/session_models"
)

// ErrBusy is returned by Acquire while another turn holds the conversation.
var ErrBusy = session_models.ErrBusy

// Store holds conversation state keyed by conversation id.
type Store interface {
	// Get returns the stored conversation and whether it exists.
	Get(ctx context.Context, id string) (session_models.Conversation, bool, error)
	Save(ctx context.Context, conv session_models.Conversation) error
	Delete(ctx context.Context, id string) error
	// Acquire claims the conversation for one turn. The returned func
	// releases it; ErrBusy means a turn is already in flight.
	Acquire(ctx context.Context, id string) (func(), error)
	// EvictIdle drops conversations not updated since cutoff.
	EvictIdle(ctx context.Context, cutoff time.Time) (int, error)
	Len(ctx context.Context) (int, error)
}

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
	RedisStore    StoreType = "redis"
)

// NewStore builds the configured store. rdb is required for the redis store.
func NewStore(cfg config.SessionConfig, rdb *redis.Client) (Store, error) {
	switch StoreType(cfg.Store) {
	case InMemoryStore, "":
		return inmemory.NewInMemorySessionStore(), nil
	case RedisStore:
		if rdb == nil {
			return nil, fmt.Errorf("redis session store requires a redis client")
		}
		return redis_session.NewRedisSessionStore(rdb, cfg.IdleTTL, cfg.LockTTL), nil
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", cfg.Store)
	}
}
