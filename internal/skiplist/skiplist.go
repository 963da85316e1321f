// Package skiplist holds the "never analyze" company set: companies that
// already have a confident detection, so spending more LLM calls on their
// postings is waste. Membership is an optimization only — a miss is never an
// error, it just costs one more analysis.
package skiplist

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

type Checker interface {
	Contains(ctx context.Context, companyKey string) bool
	Refresh(ctx context.Context, companyKeys []string) error
}

const redisSetKey = "toolradar:never_analyze"

// RedisSet keeps the set in Redis so overlapping analyzer processes share one
// view of it.
type RedisSet struct {
	rdb *redis.Client
}

func NewRedisSet(rdb *redis.Client) *RedisSet {
	return &RedisSet{rdb: rdb}
}

func (s *RedisSet) Contains(ctx context.Context, companyKey string) bool {
	if companyKey == "" {
		return false
	}
	ok, err := s.rdb.SIsMember(ctx, redisSetKey, companyKey).Result()
	if err != nil {
		log.Printf("[skiplist] Redis SISMEMBER error (treating as not listed): %v", err)
		return false
	}
	return ok
}

// Refresh replaces the whole set atomically.
func (s *RedisSet) Refresh(ctx context.Context, companyKeys []string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, redisSetKey)
	if len(companyKeys) > 0 {
		members := make([]interface{}, len(companyKeys))
		for i, k := range companyKeys {
			members[i] = k
		}
		pipe.SAdd(ctx, redisSetKey, members...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// MemorySet is the in-process fallback used when no Redis is configured, and
// in tests.
type MemorySet struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewMemorySet() *MemorySet {
	return &MemorySet{keys: make(map[string]struct{})}
}

func (s *MemorySet) Contains(_ context.Context, companyKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[companyKey]
	return ok
}

func (s *MemorySet) Refresh(_ context.Context, companyKeys []string) error {
	next := make(map[string]struct{}, len(companyKeys))
	for _, k := range companyKeys {
		next[k] = struct{}{}
	}
	s.mu.Lock()
	s.keys = next
	s.mu.Unlock()
	return nil
}
