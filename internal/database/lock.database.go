package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cleanmarket/pkg/logger"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

const runLockKeyPattern = "lock:job:%s"

// Deletes the key only while it still holds our token.
var releaseScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Pushes the expiry out only while the key still holds our token.
var extendScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lease is a held run lock.
type Lease interface {
	// Extend resets the lock expiry to ttl. It reports false when the lock expired and
	// may now belong to someone else.
	Extend(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context)
}

// RunLocker coordinates job runs across service instances.
type RunLocker struct {
	client CacheClient
	log    logger.Logger
}

func NewRunLocker(client CacheClient) *RunLocker {
	return &RunLocker{
		client: client,
		log:    logger.New("runLocker"),
	}
}

// TryAcquire takes the lock for name if nobody holds it. The returned lease is nil when
// the lock was not acquired.
func (l *RunLocker) TryAcquire(
	ctx context.Context,
	name string,
	ttl time.Duration,
) (Lease, bool, error) {
	log := l.log.Function("TryAcquire")

	key := fmt.Sprintf(runLockKeyPattern, name)
	token := uuid.NewString()

	err := l.client.Do(
		ctx,
		l.client.B().Set().Key(key).Value(token).Nx().PxMilliseconds(ttl.Milliseconds()).Build(),
	).Error()
	if valkey.IsValkeyNil(err) {
		log.Info("Run lock held elsewhere", "job", name)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, log.Err("failed to acquire run lock", err, "job", name)
	}

	return &runLease{
		client: l.client,
		key:    key,
		token:  token,
		log:    l.log.With("job", name),
	}, true, nil
}

type runLease struct {
	client CacheClient
	key    string
	token  string
	log    logger.Logger
}

func (r *runLease) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	extended, err := extendScript.Exec(
		ctx,
		r.client,
		[]string{r.key},
		[]string{r.token, strconv.FormatInt(ttl.Milliseconds(), 10)},
	).AsInt64()
	if err != nil {
		return false, r.log.Function("Extend").Err("failed to extend run lock", err)
	}
	return extended == 1, nil
}

func (r *runLease) Release(ctx context.Context) {
	if err := releaseScript.Exec(ctx, r.client, []string{r.key}, []string{r.token}).Error(); err != nil {
		r.log.Function("Release").Er("failed to release run lock", err)
	}
}
