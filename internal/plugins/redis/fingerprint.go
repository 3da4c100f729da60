package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// FingerprintWindow is the shared dedup window. SET NX with a TTL is the
// atomic check-and-set, so concurrent writers on different nodes agree.
type FingerprintWindow struct {
	rdb     *redis.Client
	horizon time.Duration
}

func NewFingerprintWindow(rdb *redis.Client, horizon time.Duration) *FingerprintWindow {
	if horizon <= 0 {
		horizon = time.Minute
	}
	return &FingerprintWindow{rdb: rdb, horizon: horizon}
}

// forgetScript deletes the key only while it still holds the caller's stamp.
var forgetScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func fingerprintKey(userID, fingerprint string) string {
	return "dedup:" + userID + ":" + fingerprint
}

// ShouldAccept records now under the key if absent. Expiry is enforced by
// Redis, so now only serves as the stored value.
func (w *FingerprintWindow) ShouldAccept(ctx context.Context, userID, fingerprint string, now time.Time) (bool, error) {
	return w.rdb.SetNX(ctx, fingerprintKey(userID, fingerprint), now.UnixMilli(), w.horizon).Result()
}

func (w *FingerprintWindow) Forget(ctx context.Context, userID, fingerprint string, now time.Time) error {
	return forgetScript.Run(ctx, w.rdb, []string{fingerprintKey(userID, fingerprint)}, now.UnixMilli()).Err()
}
