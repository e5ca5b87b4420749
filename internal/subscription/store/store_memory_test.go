package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"pushcast/internal/subscription/models"
	"pushcast/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func sub(endpoint string) models.Subscription {
	return models.Subscription{
		Endpoint: endpoint,
		Keys:     models.Keys{P256dh: "p256dh-" + endpoint, Auth: "auth"},
	}
}

func (s *InMemoryStoreSuite) TestAdd() {
	s.Run("same endpoint twice keeps one entry", func() {
		added, err := s.store.Add(s.ctx, sub("https://push.example/dup"))
		s.Require().NoError(err)
		s.True(added)

		added, err = s.store.Add(s.ctx, sub("https://push.example/dup"))
		s.Require().NoError(err)
		s.False(added)

		count, err := s.store.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, count)
	})

	s.Run("first registration wins on duplicate", func() {
		first := sub("https://push.example/keep")
		_, err := s.store.Add(s.ctx, first)
		s.Require().NoError(err)

		second := first
		second.Keys.Auth = "rotated"
		_, err = s.store.Add(s.ctx, second)
		s.Require().NoError(err)

		all, err := s.store.List(s.ctx)
		s.Require().NoError(err)
		for _, got := range all {
			if got.Endpoint == first.Endpoint {
				s.Equal("auth", got.Keys.Auth)
			}
		}
	})
}

func (s *InMemoryStoreSuite) TestCountDistinct() {
	const n = 25
	for i := range n {
		_, err := s.store.Add(s.ctx, sub(fmt.Sprintf("https://push.example/%d", i)))
		s.Require().NoError(err)
	}

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(n, count)
}

func (s *InMemoryStoreSuite) TestListIsInsertionOrderedSnapshot() {
	for _, e := range []string{"https://push.example/A", "https://push.example/B", "https://push.example/C"} {
		_, err := s.store.Add(s.ctx, sub(e))
		s.Require().NoError(err)
	}

	snapshot, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(snapshot, 3)
	s.Equal("https://push.example/A", snapshot[0].Endpoint)
	s.Equal("https://push.example/C", snapshot[2].Endpoint)

	// Mutating the registry after the snapshot leaves the snapshot untouched.
	_, err = s.store.Add(s.ctx, sub("https://push.example/D"))
	s.Require().NoError(err)
	snapshot[0].Endpoint = "mutated"

	again, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(again, 4)
	s.Equal("https://push.example/A", again[0].Endpoint)
	s.Len(snapshot, 3)
}

func (s *InMemoryStoreSuite) TestRemove() {
	for _, e := range []string{"https://push.example/A", "https://push.example/B", "https://push.example/C"} {
		_, err := s.store.Add(s.ctx, sub(e))
		s.Require().NoError(err)
	}

	s.Require().NoError(s.store.Remove(s.ctx, "https://push.example/B"))

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("https://push.example/A", all[0].Endpoint)
	s.Equal("https://push.example/C", all[1].Endpoint)

	err = s.store.Remove(s.ctx, "https://push.example/B")
	s.ErrorIs(err, sentinel.ErrNotFound)

	// A removed endpoint can register again.
	added, err := s.store.Add(s.ctx, sub("https://push.example/B"))
	s.Require().NoError(err)
	s.True(added)
}

func (s *InMemoryStoreSuite) TestClose() {
	_, err := s.store.Add(s.ctx, sub("https://push.example/A"))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Close())

	_, err = s.store.Add(s.ctx, sub("https://push.example/B"))
	s.ErrorIs(err, sentinel.ErrUnavailable)
	_, err = s.store.Count(s.ctx)
	s.ErrorIs(err, sentinel.ErrUnavailable)
	_, err = s.store.List(s.ctx)
	s.ErrorIs(err, sentinel.ErrUnavailable)
}

func (s *InMemoryStoreSuite) TestConcurrentAdd() {
	const n = 200
	var wg sync.WaitGroup

	for i := range n {
		wg.Go(func() {
			_, err := s.store.Add(s.ctx, sub(fmt.Sprintf("https://push.example/c/%d", i)))
			s.NoError(err)
		})
	}
	// Duplicates racing the originals must not inflate the count.
	for i := range n {
		wg.Go(func() {
			_, err := s.store.Add(s.ctx, sub(fmt.Sprintf("https://push.example/c/%d", i)))
			s.NoError(err)
		})
	}
	wg.Wait()

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(n, count)
}

func (s *InMemoryStoreSuite) TestListWhileAdding() {
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			_, err := s.store.Add(s.ctx, sub(fmt.Sprintf("https://push.example/l/%d", i)))
			s.NoError(err)
		})
		wg.Go(func() {
			_, err := s.store.List(s.ctx)
			s.NoError(err)
		})
	}
	wg.Wait()

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(50, count)
}
