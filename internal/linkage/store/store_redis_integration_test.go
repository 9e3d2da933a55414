//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"scorevc/internal/linkage/store"
	"scorevc/pkg/domain"
	"scorevc/pkg/platform/sentinel"
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
	err := s.redis.FlushAll(context.Background())
	s.Require().NoError(err)
}

func (s *RedisStoreSuite) TestLinkAndLookup() {
	ctx := context.Background()
	p := domain.MustPrincipal("2vxsx-fae")
	now := time.Unix(1_700_000_000, 0).UTC()

	_, err := s.store.Link(ctx, p, hashOf(1), 21.5, now)
	s.Require().NoError(err)

	link, err := s.store.Get(ctx, p)
	s.Require().NoError(err)
	s.Equal(21.5, link.Score)
	s.Equal(hashOf(1), link.AddressHash)
	s.Equal(now, link.LinkedAt)

	later := now.Add(time.Hour)
	link, err = s.store.Link(ctx, p, hashOf(1), 40, later)
	s.Require().NoError(err)
	s.Equal(now, link.LinkedAt)
	s.Equal(later, link.UpdatedAt)

	_, err = s.store.Link(ctx, p, hashOf(2), 1, now)
	s.ErrorIs(err, sentinel.ErrConflict)
	_, err = s.store.Link(ctx, domain.MustPrincipal("aaaaa-aa"), hashOf(1), 1, now)
	s.ErrorIs(err, sentinel.ErrConflict)
}

// TestWATCHConflictDetection races principals for one address; WATCH must
// let exactly one of them through.
func (s *RedisStoreSuite) TestWATCHConflictDetection() {
	ctx := context.Background()
	principals := []domain.Principal{
		domain.MustPrincipal("2vxsx-fae"),
		domain.MustPrincipal("aaaaa-aa"),
		domain.MustPrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai"),
	}

	var wg sync.WaitGroup
	var wins atomic.Int32
	for _, p := range principals {
		wg.Add(1)
		go func(p domain.Principal) {
			defer wg.Done()
			if _, err := s.store.Link(ctx, p, hashOf(9), 1, time.Now()); err == nil {
				wins.Add(1)
			}
		}(p)
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
}
