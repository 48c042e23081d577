package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newLockerForTest(t *testing.T, ttl time.Duration) (SubmissionLocker, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSubmissionLocker(client, ttl), server
}

func TestRedisSubmissionLockerExcludesSecondHolder(t *testing.T) {
	locker, server := newLockerForTest(t, time.Minute)
	assignmentID, userID := uuid.New(), uuid.New()

	release, err := locker.Acquire(context.Background(), assignmentID, userID)
	require.NoError(t, err)
	require.True(t, server.Exists(submissionLockKey(assignmentID, userID)))

	_, err = locker.Acquire(context.Background(), assignmentID, userID)
	require.ErrorIs(t, err, ErrSubmissionLocked)

	other, err := locker.Acquire(context.Background(), assignmentID, uuid.New())
	require.NoError(t, err)
	other()

	release()
	require.False(t, server.Exists(submissionLockKey(assignmentID, userID)))

	again, err := locker.Acquire(context.Background(), assignmentID, userID)
	require.NoError(t, err)
	again()
}

func TestRedisSubmissionLockerExpires(t *testing.T) {
	locker, server := newLockerForTest(t, 5*time.Second)
	assignmentID, userID := uuid.New(), uuid.New()

	_, err := locker.Acquire(context.Background(), assignmentID, userID)
	require.NoError(t, err)

	server.FastForward(6 * time.Second)

	release, err := locker.Acquire(context.Background(), assignmentID, userID)
	require.NoError(t, err)
	release()
}

func TestRedisSubmissionLockerReleaseKeepsForeignToken(t *testing.T) {
	locker, server := newLockerForTest(t, 5*time.Second)
	assignmentID, userID := uuid.New(), uuid.New()
	key := submissionLockKey(assignmentID, userID)

	stale, err := locker.Acquire(context.Background(), assignmentID, userID)
	require.NoError(t, err)

	server.FastForward(6 * time.Second)
	_, err = locker.Acquire(context.Background(), assignmentID, userID)
	require.NoError(t, err)

	stale()
	require.True(t, server.Exists(key))
}

func TestRedisSubmissionLockerDefaultTTL(t *testing.T) {
	locker, server := newLockerForTest(t, 0)
	assignmentID, userID := uuid.New(), uuid.New()

	_, err := locker.Acquire(context.Background(), assignmentID, userID)
	require.NoError(t, err)
	require.Equal(t, defaultSubmissionLockTTL, server.TTL(submissionLockKey(assignmentID, userID)))
}
