// Package cache provides Redis read-through decorators for repositories.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/query"
	"github.com/tbourn/go-advisor-backend/internal/services"
)

// Clients decorates a ClientRepository with a per-client Redis cache. Reads
// by id are served from Redis; writes go to the inner repository first and
// then evict the entry. Redis errors never fail a call.
type Clients struct {
	inner     services.ClientRepository
	rdb       redis.Cmdable
	ttl       time.Duration
	namespace string
}

var _ services.ClientRepository = (*Clients)(nil)

// NewClients wraps inner. A nil rdb disables caching; ttl <= 0 means 5 minutes.
func NewClients(rdb redis.Cmdable, ttl time.Duration, inner services.ClientRepository) *Clients {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Clients{inner: inner, rdb: rdb, ttl: ttl, namespace: "clients"}
}

func (c *Clients) Create(ctx context.Context, cl *domain.Client) error {
	return c.inner.Create(ctx, cl)
}

// Get checks Redis first and fills it on a miss.
func (c *Clients) Get(ctx context.Context, id string) (*domain.Client, error) {
	if c.rdb == nil {
		return c.inner.Get(ctx, id)
	}
	key := c.key(id)
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out domain.Client
		if err := json.Unmarshal(b, &out); err == nil {
			return &out, nil
		}
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return out, nil
}

// List is not cached; its key space is every combination of query params.
func (c *Clients) List(ctx context.Context, params map[string]string, defLimit int) ([]domain.Client, query.Meta, error) {
	return c.inner.List(ctx, params, defLimit)
}

func (c *Clients) UpdateLive(ctx context.Context, id string, fields map[string]any) error {
	if err := c.inner.UpdateLive(ctx, id, fields); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

func (c *Clients) SoftDelete(ctx context.Context, id string) error {
	if err := c.inner.SoftDelete(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

func (c *Clients) evict(ctx context.Context, id string) {
	if c.rdb == nil {
		return
	}
	_ = c.rdb.Del(ctx, c.key(id)).Err()
}

func (c *Clients) key(id string) string { return c.namespace + ":" + id }
