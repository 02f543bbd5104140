// Package memory provides an in-process set store for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const cleanupInterval = time.Minute

type set map[string]struct{}

// SetStore mimics the Redis set commands on top of go-cache. Keys without an
// explicit Expire never expire, matching Redis.
type SetStore struct {
	mu sync.Mutex
	c  *gocache.Cache
}

func NewSetStore() *SetStore {
	return &SetStore{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (s *SetStore) SAdd(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exp := s.load(key)
	if current == nil {
		current = set{}
	}
	for _, m := range members {
		current[m] = struct{}{}
	}
	s.store(key, current, exp)
	return nil
}

func (s *SetStore) SRem(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exp := s.load(key)
	if current == nil {
		return nil
	}
	for _, m := range members {
		delete(current, m)
	}
	if len(current) == 0 {
		s.c.Delete(key)
		return nil
	}
	s.store(key, current, exp)
	return nil
}

func (s *SetStore) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, _ := s.load(key)
	out := make([]string, 0, len(current))
	for m := range current {
		out = append(out, m)
	}
	return out, nil
}

func (s *SetStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		s.c.Delete(k)
	}
	return nil
}

func (s *SetStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, _ := s.load(key)
	if current == nil {
		return nil
	}
	s.c.Set(key, current, ttl)
	return nil
}

// load returns a copy of the set and its absolute expiry (zero when none).
func (s *SetStore) load(key string) (set, time.Time) {
	v, exp, ok := s.c.GetWithExpiration(key)
	if !ok {
		return nil, time.Time{}
	}
	stored := v.(set)
	cp := make(set, len(stored))
	for m := range stored {
		cp[m] = struct{}{}
	}
	return cp, exp
}

func (s *SetStore) store(key string, members set, exp time.Time) {
	ttl := gocache.NoExpiration
	if !exp.IsZero() {
		ttl = time.Until(exp)
		if ttl <= 0 {
			s.c.Delete(key)
			return
		}
	}
	s.c.Set(key, members, ttl)
}
