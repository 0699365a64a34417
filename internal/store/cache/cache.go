// Package cache provides a Redis read-through cache for template reads.
//
// Dispatch loads its template on every send; trigger bursts (bulk sends, busy
// registration days) re-read the same handful of templates. The cache absorbs
// those reads and is invalidated on every admin write, so a template edit is
// visible on the next dispatch.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kmcoleman/bajarun-notify/internal/domain"
	"github.com/kmcoleman/bajarun-notify/internal/pkg/logger"
	"github.com/kmcoleman/bajarun-notify/internal/store"
)

const keyPrefix = "notify:template:"

// TemplateCache decorates a TemplateStore with a Redis read-through cache.
// Cache failures are soft: a Redis outage degrades to direct store reads.
type TemplateCache struct {
	inner store.TemplateStore
	rdb   *redis.Client
	ttl   time.Duration
}

// New wraps inner with a cache. A zero ttl defaults to five minutes.
func New(inner store.TemplateStore, rdb *redis.Client, ttl time.Duration) *TemplateCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TemplateCache{inner: inner, rdb: rdb, ttl: ttl}
}

// GetTemplate serves from Redis when possible, falling back to the inner
// store and populating the cache on a miss.
func (c *TemplateCache) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	if data, err := c.rdb.Get(ctx, keyPrefix+id).Bytes(); err == nil {
		var t domain.Template
		if err := json.Unmarshal(data, &t); err == nil {
			return &t, nil
		}
		// Corrupt cache entry: drop it and fall through to the store.
		c.rdb.Del(ctx, keyPrefix+id)
	}

	t, err := c.inner.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(t); err == nil {
		if err := c.rdb.Set(ctx, keyPrefix+id, data, c.ttl).Err(); err != nil {
			logger.Debug("template cache set failed", "template_id", id, "error", err.Error())
		}
	}
	return t, nil
}

// ListTemplates always reads through; listings are admin-only and rare.
func (c *TemplateCache) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	return c.inner.ListTemplates(ctx)
}

// CreateTemplate writes through and invalidates.
func (c *TemplateCache) CreateTemplate(ctx context.Context, t *domain.Template) error {
	if err := c.inner.CreateTemplate(ctx, t); err != nil {
		return err
	}
	c.invalidate(ctx, t.ID)
	return nil
}

// UpdateTemplate writes through and invalidates.
func (c *TemplateCache) UpdateTemplate(ctx context.Context, t *domain.Template) error {
	if err := c.inner.UpdateTemplate(ctx, t); err != nil {
		return err
	}
	c.invalidate(ctx, t.ID)
	return nil
}

// DeleteTemplate deletes through and invalidates.
func (c *TemplateCache) DeleteTemplate(ctx context.Context, id string) error {
	if err := c.inner.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *TemplateCache) invalidate(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		logger.Warn("template cache invalidation failed", "template_id", id, "error", err.Error())
	}
}
