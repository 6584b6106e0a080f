package mutex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis"
	"github.com/pkg/errors"
)

const (
	eventLockExpiration = time.Second * 30
	eventKeyPattern     = "dashboard:event:%v"
	eventLockTries      = 8
)

// Builder hands out Redis-backed locks so that several bot replicas polling
// the same sources do not race on the same event key.
type Builder struct {
	rs *redsync.Redsync
}

func NewBuilder(address string) *Builder {
	client := redis.NewClient(&redis.Options{Addr: address})
	pool := goredis.NewPool(client)
	rs := redsync.New(pool)
	return &Builder{rs: rs}
}

func (c *Builder) Event(key string) *redsync.Mutex {
	name := fmt.Sprintf(eventKeyPattern, key)
	return c.rs.NewMutex(
		name,
		redsync.WithExpiry(eventLockExpiration),
		redsync.WithTries(eventLockTries),
	)
}

// Lock takes the event lock for key and returns its release function. It gives
// up when ctx is done.
func (c *Builder) Lock(ctx context.Context, key string) (func(), error) {
	lock := c.Event(key)
	err := lock.LockContext(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to lock event %v", key)
	}
	return func() {
		_, err := lock.UnlockContext(context.Background())
		if err != nil {
			slog.Warn("unable to release event lock", "key", key, "error", err)
		}
	}, nil
}
