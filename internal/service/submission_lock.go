package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSubmissionLocked is returned when another request holds the lock for the pair.
var ErrSubmissionLocked = errors.New("submission lock held")

const defaultSubmissionLockTTL = 10 * time.Second

// SubmissionLocker serializes submits for one (assignment, user) pair across instances.
type SubmissionLocker interface {
	Acquire(ctx context.Context, assignmentID, userID uuid.UUID) (release func(), err error)
}

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisSubmissionLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSubmissionLocker returns a locker backed by SET NX with expiry. The TTL bounds
// how long a crashed request can block its pair.
func NewRedisSubmissionLocker(client *redis.Client, ttl time.Duration) SubmissionLocker {
	if ttl <= 0 {
		ttl = defaultSubmissionLockTTL
	}
	return &redisSubmissionLocker{client: client, ttl: ttl}
}

func submissionLockKey(assignmentID, userID uuid.UUID) string {
	return fmt.Sprintf("lock:submission:%s:%s", assignmentID, userID)
}

func (l *redisSubmissionLocker) Acquire(ctx context.Context, assignmentID, userID uuid.UUID) (func(), error) {
	key := submissionLockKey(assignmentID, userID)
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire submission lock: %w", err)
	}
	if !acquired {
		return nil, ErrSubmissionLocked
	}

	release := func() {
		// The request context may already be cancelled; the release must still run.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseLockScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}

	return release, nil
}
