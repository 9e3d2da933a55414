//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"scorevc/internal/ratelimit/models"
	"scorevc/internal/ratelimit/store"
	"scorevc/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSlidingWindow() {
	ctx := context.Background()
	limit := models.Limit{Requests: 2, Window: time.Minute}
	t0 := time.Now().Truncate(time.Millisecond)

	res, err := s.store.Allow(ctx, "k", limit, t0)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(1, res.Remaining)

	res, err = s.store.Allow(ctx, "k", limit, t0.Add(10*time.Second))
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(0, res.Remaining)

	res, err = s.store.Allow(ctx, "k", limit, t0.Add(20*time.Second))
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.WithinDuration(t0.Add(time.Minute), res.ResetAt, time.Millisecond)
	s.Equal(40, res.RetryAfter)

	res, err = s.store.Allow(ctx, "k", limit, t0.Add(61*time.Second))
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *RedisStoreSuite) TestKeyExpires() {
	ctx := context.Background()
	limit := models.Limit{Requests: 1, Window: 5 * time.Second}

	_, err := s.store.Allow(ctx, "k", limit, time.Now())
	s.Require().NoError(err)

	ttl, err := s.redis.Client.PTTL(ctx, "k").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, 5*time.Second)
}

func (s *RedisStoreSuite) TestReset() {
	ctx := context.Background()
	limit := models.Limit{Requests: 1, Window: time.Minute}
	now := time.Now()

	_, err := s.store.Allow(ctx, "k", limit, now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Reset(ctx, "k"))

	res, err := s.store.Allow(ctx, "k", limit, now)
	s.Require().NoError(err)
	s.True(res.Allowed)
}
