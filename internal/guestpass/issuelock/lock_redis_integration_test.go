//go:build integration

package issuelock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/testutil/containers"
)

type RedisLockSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	lock  *RedisLock
}

func TestRedisLockSuite(t *testing.T) {
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	lock, err := NewRedisLock(s.redis.Client)
	s.Require().NoError(err)
	s.lock = lock
}

func (s *RedisLockSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockSuite) TestAcquireRelease() {
	ctx := context.Background()

	release, err := s.lock.Acquire(ctx, "proj-1:user-1:2026-08", 10*time.Second)
	s.Require().NoError(err)

	_, err = s.lock.Acquire(ctx, "proj-1:user-1:2026-08", 10*time.Second)
	s.ErrorIs(err, sentinel.ErrConflict)

	// A different key is independent.
	other, err := s.lock.Acquire(ctx, "proj-1:user-2:2026-08", 10*time.Second)
	s.Require().NoError(err)
	other()

	release()
	release2, err := s.lock.Acquire(ctx, "proj-1:user-1:2026-08", 10*time.Second)
	s.Require().NoError(err)
	release2()
}

func (s *RedisLockSuite) TestTTLReclaimsCrashedHolder() {
	ctx := context.Background()

	_, err := s.lock.Acquire(ctx, "proj-1:user-1:2026-08", 200*time.Millisecond)
	s.Require().NoError(err)

	_, err = s.lock.Acquire(ctx, "proj-1:user-1:2026-08", 10*time.Second)
	s.ErrorIs(err, sentinel.ErrConflict)

	s.Eventually(func() bool {
		release, err := s.lock.Acquire(ctx, "proj-1:user-1:2026-08", 10*time.Second)
		if err != nil {
			return false
		}
		release()
		return true
	}, 2*time.Second, 50*time.Millisecond)
}

func (s *RedisLockSuite) TestStaleReleaseDoesNotFreeSuccessor() {
	ctx := context.Background()

	// First holder's TTL lapses before it releases.
	staleRelease, err := s.lock.Acquire(ctx, "proj-1:user-1:2026-08", 200*time.Millisecond)
	s.Require().NoError(err)

	var release func()
	s.Eventually(func() bool {
		r, err := s.lock.Acquire(ctx, "proj-1:user-1:2026-08", 10*time.Second)
		if err != nil {
			return false
		}
		release = r
		return true
	}, 2*time.Second, 50*time.Millisecond)
	defer release()

	staleRelease()

	_, err = s.lock.Acquire(ctx, "proj-1:user-1:2026-08", 10*time.Second)
	s.ErrorIs(err, sentinel.ErrConflict, "the successor still holds the key")
}

func (s *RedisLockSuite) TestConcurrentAcquire() {
	ctx := context.Background()

	const contenders = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := s.lock.Acquire(ctx, "proj-1:user-1:2026-08", 10*time.Second)
			if err == nil {
				defer release()
				mu.Lock()
				winners++
				mu.Unlock()
			} else {
				s.ErrorIs(err, sentinel.ErrConflict)
			}
		}()
	}
	wg.Wait()

	s.Equal(1, winners, "only one contender may hold the lock")
}
