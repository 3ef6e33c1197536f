package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/companion/internal/config"
)

const (
	unreadTTL    = time.Hour
	unreadGenTTL = 24 * time.Hour
	swipeLockTTL = 10 * time.Second
)

// ErrLockHeld is returned when another request already holds a swipe lock.
var ErrLockHeld = errors.New("lock already held")

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForUnreadTotal generates Redis key for a user's total unread companion messages.
func (c *RedisCache) KeyForUnreadTotal(userID string) string {
	return fmt.Sprintf("unread:total:%s", userID)
}

// KeyForUnreadGeneration is bumped on every invalidation so fills computed
// before it can be told apart.
func (c *RedisCache) KeyForUnreadGeneration(userID string) string {
	return fmt.Sprintf("unread:gen:%s", userID)
}

// KeyForSwipeLock generates the lock key for one (user, companion) decision.
func (c *RedisCache) KeyForSwipeLock(userID, companionID string) string {
	return fmt.Sprintf("swipe:lock:%s:%s", userID, companionID)
}

func (c *RedisCache) UpdateUnreadTotal(ctx context.Context, userID string, count int64) error {
	// Always refresh TTL when updating
	return c.Client.Set(ctx, c.KeyForUnreadTotal(userID), count, unreadTTL).Err()
}

// GetUnreadTotal returns the cached unread total.
// ok is false on a cache miss so callers can fall back to the DB.
func (c *RedisCache) GetUnreadTotal(ctx context.Context, userID string) (count int64, ok bool, err error) {
	key := c.KeyForUnreadTotal(userID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil // corrupt entry, treat as miss
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, unreadTTL).Err()
	return n, true, nil
}

// InvalidateUnreadTotal drops the cached unread total for a user and bumps
// its generation, so an in-flight FillUnreadTotal cannot restore the old value.
func (c *RedisCache) InvalidateUnreadTotal(ctx context.Context, userID string) error {
	genKey := c.KeyForUnreadGeneration(userID)
	_, err := c.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, unreadGenTTL)
		pipe.Del(ctx, c.KeyForUnreadTotal(userID))
		return nil
	})
	return err
}

// UnreadGeneration reads the invalidation generation. Read it before counting
// in the DB and hand it to FillUnreadTotal.
func (c *RedisCache) UnreadGeneration(ctx context.Context, userID string) (string, error) {
	gen, err := c.Client.Get(ctx, c.KeyForUnreadGeneration(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

// FillUnreadTotal caches count only if no invalidation happened since gen was
// read. stored is false when the fill was discarded.
func (c *RedisCache) FillUnreadTotal(ctx context.Context, userID, gen string, count int64) (stored bool, err error) {
	n, err := fillScript.Run(ctx, c.Client,
		[]string{c.KeyForUnreadGeneration(userID), c.KeyForUnreadTotal(userID)},
		gen, count, int64(unreadTTL/time.Second),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

var fillScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[1])
if not gen then
	gen = "0"
end
if gen ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "EX", ARGV[3])
return 1
`)

// AcquireSwipeLock takes a short-lived SET NX lock on a (user, companion) pair.
// The returned release func deletes the lock only if this caller still owns it.
func (c *RedisCache) AcquireSwipeLock(ctx context.Context, userID, companionID, owner string) (func(), error) {
	key := c.KeyForSwipeLock(userID, companionID)
	ok, err := c.Client.SetNX(ctx, key, owner, swipeLockTTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func() {
		// background ctx: release must run even if the request ctx is done
		_ = releaseScript.Run(context.Background(), c.Client, []string{key}, owner).Err()
	}
	return release, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
