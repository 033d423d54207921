package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// RevocationStore is a deny-list of token ids. Entries only need to outlive
// the token they revoke.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revokedKeyPrefix = "auth:revoked:"

// RedisRevocationStore keeps revoked token ids in Redis with a TTL equal to the
// remaining token lifetime.
type RedisRevocationStore struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisRevocationStore builds a Redis-backed revocation store.
func NewRedisRevocationStore(client redis.Cmdable) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, now: time.Now}
}

// Revoke records tokenID as revoked until the given expiry.
func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return nil
	}
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("auth: revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID is on the deny-list.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	n, err := s.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("auth: check revocation: %w", err)
	}
	return n > 0, nil
}

// CachedRevocationStore remembers revoked ids in-process so repeated use of a
// revoked token skips the backing store. Only positive answers are cached; a
// revocation is permanent for the token's lifetime.
type CachedRevocationStore struct {
	next  RevocationStore
	cache *expirable.LRU[string, time.Time]
	now   func() time.Time
}

// NewCachedRevocationStore wraps next with an LRU of at most size entries.
func NewCachedRevocationStore(next RevocationStore, size int) *CachedRevocationStore {
	if size <= 0 {
		size = 10000
	}
	return &CachedRevocationStore{
		next:  next,
		cache: expirable.NewLRU[string, time.Time](size, nil, RefreshTokenTTL),
		now:   time.Now,
	}
}

// Revoke records the revocation in the backing store, then caches it.
func (s *CachedRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if err := s.next.Revoke(ctx, tokenID, until); err != nil {
		return err
	}
	if tokenID != "" && until.After(s.now()) {
		s.cache.Add(tokenID, until)
	}
	return nil
}

// IsRevoked answers from the cache when possible.
func (s *CachedRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if until, ok := s.cache.Get(tokenID); ok && until.After(s.now()) {
		return true, nil
	}
	revoked, err := s.next.IsRevoked(ctx, tokenID)
	if err != nil || !revoked {
		return revoked, err
	}
	// Remaining lifetime is unknown here; the LRU TTL bounds the entry.
	s.cache.Add(tokenID, s.now().Add(RefreshTokenTTL))
	return true, nil
}
