package redis_session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/newsdigest/session/session_models"
)

const keyPrefix = "newsdigest:session:"

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// refreshScript extends the lock only if it still holds our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// Store keeps conversations in redis so several processes can share them.
// Keys expire after the idle ttl, which makes redis itself do the eviction.
type Store struct {
	client  *redis.Client
	idleTTL time.Duration
	lockTTL time.Duration
}

func NewRedisSessionStore(client *redis.Client, idleTTL, lockTTL time.Duration) *Store {
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &Store{client: client, idleTTL: idleTTL, lockTTL: lockTTL}
}

func stateKey(id string) string { return keyPrefix + id }
func lockKey(id string) string  { return keyPrefix + id + ":lock" }

func (store *Store) Get(ctx context.Context, id string) (session_models.Conversation, bool, error) {
	val, err := store.client.Get(ctx, stateKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return session_models.Conversation{}, false, nil
	}
	if err != nil {
		return session_models.Conversation{}, false, fmt.Errorf("get session %s: %w", id, err)
	}
	var conv session_models.Conversation
	if err := json.Unmarshal(val, &conv); err != nil {
		return session_models.Conversation{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return conv, true, nil
}

func (store *Store) Save(ctx context.Context, conv session_models.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	if err := store.client.Set(ctx, stateKey(conv.ID), data, store.idleTTL).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", conv.ID, err)
	}
	return nil
}

func (store *Store) Delete(ctx context.Context, id string) error {
	return store.client.Del(ctx, stateKey(id)).Err()
}

// Acquire takes a SetNX lock that expires on its own if the holder dies.
// While held, the lock is re-extended every third of lockTTL so a slow turn
// never outlives it.
func (store *Store) Acquire(ctx context.Context, id string) (func(), error) {
	token := uuid.NewString()
	key := lockKey(id)
	ok, err := store.client.SetNX(ctx, key, token, store.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("lock session %s: %w", id, err)
	}
	if !ok {
		return nil, session_models.ErrBusy
	}
	done := make(chan struct{})
	stopped := make(chan struct{})
	go store.keepAlive(key, token, done, stopped)
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-stopped
			// the turn's context may already be cancelled
			_ = releaseScript.Run(context.Background(), store.client, []string{key}, token).Err()
		})
	}, nil
}

func (store *Store) keepAlive(key, token string, done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(store.lockTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			held, err := refreshScript.Run(context.Background(), store.client, []string{key}, token, store.lockTTL.Milliseconds()).Int()
			if errors.Is(err, redis.ErrClosed) || (err == nil && held == 0) {
				return
			}
		}
	}
}

// EvictIdle removes states older than cutoff that redis has not expired yet,
// e.g. after idle_ttl was shortened.
func (store *Store) EvictIdle(ctx context.Context, cutoff time.Time) (int, error) {
	n := 0
	iter := store.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, ":lock") {
			continue
		}
		id := strings.TrimPrefix(key, keyPrefix)
		conv, ok, err := store.Get(ctx, id)
		if err != nil || !ok {
			continue
		}
		if conv.UpdatedAt.Before(cutoff) {
			if exists, _ := store.client.Exists(ctx, lockKey(id)).Result(); exists == 1 {
				continue
			}
			if err := store.client.Del(ctx, key).Err(); err == nil {
				n++
			}
		}
	}
	return n, iter.Err()
}

func (store *Store) Len(ctx context.Context) (int, error) {
	n := 0
	iter := store.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, ":lock") {
			continue
		}
		n++
	}
	return n, iter.Err()
}
