// internal/matching/profile_cache.go
package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-engine/internal/common/logger"
	"marketplace-engine/internal/models"

	"github.com/redis/go-redis/v9"
)

const profileCachePrefix = "buyer:profile:"

// CachedProfileStore fronts a ProfileStore with Redis. Read errors are logged
// and fall through to the store; writes invalidate instead of caching.
type CachedProfileStore struct {
	next   ProfileStore
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedProfileStore(next ProfileStore, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedProfileStore {
	return &CachedProfileStore{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "profile-cache"}),
	}
}

func (c *CachedProfileStore) GetProfile(ctx context.Context, subjectID string) (*models.BuyerProfile, error) {
	cacheKey := profileCachePrefix + subjectID

	cached, err := c.redis.Get(ctx, cacheKey).Result()
	switch {
	case err == nil:
		var p models.BuyerProfile
		if jsonErr := json.Unmarshal([]byte(cached), &p); jsonErr == nil {
			return &p, nil
		}
		c.logger.Warn("Discarding undecodable cached profile", map[string]interface{}{"subjectId": subjectID})
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Profile cache read failed", map[string]interface{}{"subjectId": subjectID, "error": err.Error()})
	}

	p, err := c.next.GetProfile(ctx, subjectID)
	if err != nil || p == nil {
		return p, err
	}
	c.store(ctx, *p)
	return p, nil
}

// UpsertProfile drops the cached entry before and after the write so the next
// read repopulates from the store. If the entry cannot be dropped first the
// write does not happen, since a stale entry would outlive the new row.
func (c *CachedProfileStore) UpsertProfile(ctx context.Context, p models.BuyerProfile) error {
	cacheKey := profileCachePrefix + p.SubjectID
	if err := c.redis.Del(ctx, cacheKey).Err(); err != nil {
		return fmt.Errorf("invalidate cached profile %s: %w", p.SubjectID, err)
	}
	if err := c.next.UpsertProfile(ctx, p); err != nil {
		return err
	}
	// a concurrent read may have refilled the key from the old row
	if err := c.redis.Del(ctx, cacheKey).Err(); err != nil {
		c.logger.Warn("Profile cache invalidation after write failed", map[string]interface{}{"subjectId": p.SubjectID, "error": err.Error()})
	}
	return nil
}

func (c *CachedProfileStore) store(ctx context.Context, p models.BuyerProfile) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, profileCachePrefix+p.SubjectID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Profile cache write failed", map[string]interface{}{"subjectId": p.SubjectID, "error": err.Error()})
	}
}
