package occupancy

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	id "lodger/pkg/domain"

	"lodger/internal/lease/models"
	platformredis "lodger/internal/platform/redis"
)

// cacheTTL bounds staleness of the occupancy projection in the cache.
// Writes invalidate eagerly, but they do so while the surrounding database
// transaction is still open, so a concurrent read can re-cache the
// pre-commit row. The TTL caps that window and covers missed
// invalidations.
const cacheTTL = 5 * time.Minute

// Store is the occupancy persistence contract the cache decorates.
type Store interface {
	Create(ctx context.Context, o *models.Occupancy) error
	Update(ctx context.Context, o *models.Occupancy) error
	Delete(ctx context.Context, occupancyID id.OccupancyID) error
	FindByTenantAndUnit(ctx context.Context, tenantID id.UserID, propertyID id.PropertyID, unitID *id.UnitID) (*models.Occupancy, error)
	FindCurrent(ctx context.Context, tenantID id.UserID, propertyID id.PropertyID) (*models.Occupancy, error)
}

// Cached wraps an occupancy store with a Redis read-through cache on the
// FindCurrent path, which backs invoice-creation authorization checks.
// A nil client disables caching entirely.
type Cached struct {
	inner  Store
	client *platformredis.Client
	logger *slog.Logger
}

// NewCached decorates the store with the cache.
func NewCached(inner Store, client *platformredis.Client, logger *slog.Logger) *Cached {
	return &Cached{inner: inner, client: client, logger: logger}
}

func currentKey(tenantID id.UserID, propertyID id.PropertyID) string {
	return "occupancy:current:" + tenantID.String() + ":" + propertyID.String()
}

func (c *Cached) FindCurrent(ctx context.Context, tenantID id.UserID, propertyID id.PropertyID) (*models.Occupancy, error) {
	if c.client == nil {
		return c.inner.FindCurrent(ctx, tenantID, propertyID)
	}

	key := currentKey(tenantID, propertyID)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var o models.Occupancy
		if err := json.Unmarshal(raw, &o); err == nil {
			platformredis.RecordHit()
			return &o, nil
		}
		// Corrupt cache entries fall through to the store.
		c.client.Del(ctx, key)
	}
	platformredis.RecordMiss()

	o, err := c.inner.FindCurrent(ctx, tenantID, propertyID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(o); err == nil {
		if err := c.client.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
			c.logger.WarnContext(ctx, "occupancy cache write failed", "error", err)
		}
	}
	return o, nil
}

func (c *Cached) FindByTenantAndUnit(ctx context.Context, tenantID id.UserID, propertyID id.PropertyID, unitID *id.UnitID) (*models.Occupancy, error) {
	return c.inner.FindByTenantAndUnit(ctx, tenantID, propertyID, unitID)
}

func (c *Cached) Create(ctx context.Context, o *models.Occupancy) error {
	if err := c.inner.Create(ctx, o); err != nil {
		return err
	}
	c.invalidate(ctx, o)
	return nil
}

func (c *Cached) Update(ctx context.Context, o *models.Occupancy) error {
	if err := c.inner.Update(ctx, o); err != nil {
		return err
	}
	c.invalidate(ctx, o)
	return nil
}

func (c *Cached) Delete(ctx context.Context, occupancyID id.OccupancyID) error {
	// The key is derived from tenant and property, which the ID alone does
	// not carry; rely on the TTL for this rare path.
	return c.inner.Delete(ctx, occupancyID)
}

func (c *Cached) invalidate(ctx context.Context, o *models.Occupancy) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, currentKey(o.TenantID, o.PropertyID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "occupancy cache invalidation failed", "error", err)
	}
}
