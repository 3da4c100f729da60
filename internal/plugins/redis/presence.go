package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisPresenceStore struct {
	rdb *redis.Client
}

func NewRedisPresenceStore(rdb *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{
		rdb: rdb,
	}
}

func presenceKey(userID string) string {
	return "presence:" + userID
}

// MarkOnline adds/updates a device in the user's ZSet with the current timestamp.
func (p *RedisPresenceStore) MarkOnline(
	ctx context.Context,
	userID string,
	deviceID string,
	ttl time.Duration, // "inactivity threshold"
) error {
	key := presenceKey(userID)
	pipe := p.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: deviceID,
	})
	// Expire the whole ZSet so it doesn't leak if every device goes away uncleanly.
	pipe.Expire(ctx, key, ttl*2)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *RedisPresenceStore) MarkOffline(ctx context.Context, userID, deviceID string) error {
	return p.rdb.ZRem(ctx, presenceKey(userID), deviceID).Err()
}

// OnlineDevices returns devices that checked in within ttl.
func (p *RedisPresenceStore) OnlineDevices(
	ctx context.Context,
	userID string,
	ttl time.Duration,
) ([]string, error) {
	key := presenceKey(userID)
	threshold := time.Now().Add(-ttl).Unix()
	// Remove stale members first (self-cleaning).
	if err := p.rdb.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(threshold, 10)).Err(); err != nil {
		return nil, err
	}
	return p.rdb.ZRange(ctx, key, 0, -1).Result()
}
