package organization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"eap/internal/person/models"
	id "eap/pkg/domain"
	"eap/pkg/platform/circuit"
)

const (
	keyPrefix  = "eap:org:"
	defaultTTL = 5 * time.Minute
)

// Store is the durable organization store the cache fronts.
type Store interface {
	Create(ctx context.Context, o *models.Organization) error
	FindByID(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error)
	SetActive(ctx context.Context, orgID id.OrganizationID, active bool) error
}

// RedisCache is a read-through cache of organizations. Redis errors never
// fail a read: the call is served from the durable store and recorded on the
// breaker. While the breaker is open reads skip Redis entirely, except for one
// trial read per cooldown. Writes go to the store first, then drop the cached
// entry.
type RedisCache struct {
	client  *redis.Client
	store   Store
	ttl     time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type CacheOption func(*RedisCache)

func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *RedisCache) {
		c.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) CacheOption {
	return func(c *RedisCache) {
		c.breaker = b
	}
}

func NewRedisCache(client *redis.Client, store Store, ttl time.Duration, opts ...CacheOption) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	c := &RedisCache{
		client:  client,
		store:   store,
		ttl:     ttl,
		breaker: circuit.New("organization-cache"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type cachedOrganization struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

func (c *RedisCache) Create(ctx context.Context, o *models.Organization) error {
	return c.store.Create(ctx, o)
}

func (c *RedisCache) FindByID(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	if !c.breaker.Allow() {
		return c.store.FindByID(ctx, orgID)
	}
	raw, err := c.client.Get(ctx, cacheKey(orgID)).Bytes()
	switch {
	case err == nil:
		var cached cachedOrganization
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			c.recordSuccess()
			return &models.Organization{ID: orgID, Name: cached.Name, Active: cached.Active}, nil
		}
		// Unreadable entries are overwritten below.
	case errors.Is(err, redis.Nil):
		c.recordSuccess()
	default:
		c.recordFailure(ctx, err)
		return c.store.FindByID(ctx, orgID)
	}

	o, err := c.store.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	c.put(ctx, o)
	return o, nil
}

// SetActive updates the store and invalidates the entry. The delete is tried
// even with the breaker open, since a stale entry would outlive the outage. A
// failed delete is logged; the entry then expires with its TTL.
func (c *RedisCache) SetActive(ctx context.Context, orgID id.OrganizationID, active bool) error {
	if err := c.store.SetActive(ctx, orgID, active); err != nil {
		return err
	}
	if err := c.client.Del(ctx, cacheKey(orgID)).Err(); err != nil {
		c.recordFailure(ctx, err)
	}
	return nil
}

func (c *RedisCache) put(ctx context.Context, o *models.Organization) {
	if c.breaker.IsOpen() {
		return
	}
	payload, err := json.Marshal(cachedOrganization{Name: o.Name, Active: o.Active})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(o.ID), payload, c.ttl).Err(); err != nil {
		c.recordFailure(ctx, err)
	}
}

func (c *RedisCache) recordSuccess() {
	if _, change := c.breaker.RecordSuccess(); change.Closed && c.logger != nil {
		c.logger.Info("organization cache recovered", "breaker", c.breaker.Name())
	}
}

func (c *RedisCache) recordFailure(ctx context.Context, err error) {
	_, change := c.breaker.RecordFailure()
	if c.logger == nil {
		return
	}
	if change.Opened {
		c.logger.WarnContext(ctx, "organization cache degraded, reading from store",
			"breaker", c.breaker.Name(), "error", err)
		return
	}
	c.logger.DebugContext(ctx, "organization cache error", "error", err)
}

func cacheKey(orgID id.OrganizationID) string {
	return fmt.Sprintf("%s%s", keyPrefix, orgID)
}
