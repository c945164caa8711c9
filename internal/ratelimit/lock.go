package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const keyClassSync = "fee:sync:class:%d"

// releaseLeaseScript deletes the key only while it still holds our token, so
// a lease that expired and was taken by another replica is left alone.
const releaseLeaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var ErrLockUnavailable = errors.New("class lock unavailable")

// Lease is a held class sync lock.
type Lease struct {
	Key   string
	Token string
}

// ClassLock serializes fee syncs of a class across replicas.
type ClassLock struct {
	client  *redis.Client
	release *redis.Script
}

func NewClassLock(client *redis.Client) *ClassLock {
	if client == nil {
		return nil
	}
	return &ClassLock{
		client:  client,
		release: redis.NewScript(releaseLeaseScript),
	}
}

func ClassSyncKey(classID snowflake.ID) string {
	return fmt.Sprintf(keyClassSync, classID.Int64())
}

// Acquire returns a nil lease and no error when another replica holds the class.
func (l *ClassLock) Acquire(ctx context.Context, classID snowflake.ID, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, ErrLockUnavailable
	}
	if classID == 0 || ttl <= 0 {
		return nil, fmt.Errorf("class lock: invalid class %d or ttl %s", classID, ttl)
	}

	lease := &Lease{Key: ClassSyncKey(classID), Token: uuid.NewString()}
	ok, err := l.client.SetNX(ctx, lease.Key, lease.Token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return lease, nil
}

func (l *ClassLock) Release(ctx context.Context, lease *Lease) error {
	if l == nil || l.client == nil || lease == nil {
		return nil
	}
	return l.release.Run(ctx, l.client, []string{lease.Key}, lease.Token).Err()
}
