package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// ItemCacheTTL is the time-to-live for cached listings.
	ItemCacheTTL = 24 * time.Hour

	itemCacheKeyPrefix = "item"
)

// CachedItem is the denormalized listing read model stored in Redis.
type CachedItem struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	CostPerDay  float64   `json:"cost_per_day"`
	ListedAt    time.Time `json:"listed_at"`
}

// ItemCache stores listings as Redis hashes keyed by owner.
// Key format: "item:{ownerID}:{itemID}"
type ItemCache struct {
	client *RedisClient
}

// NewItemCache creates a new ItemCache backed by the given RedisClient.
func NewItemCache(r *RedisClient) *ItemCache {
	return &ItemCache{client: r}
}

// Get retrieves a cached listing. Returns redis.Nil when the key does not
// exist or has expired.
func (c *ItemCache) Get(ctx context.Context, ownerID, itemID uuid.UUID) (*CachedItem, error) {
	vals, err := c.client.Client().HGetAll(ctx, c.key(ownerID, itemID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	if len(vals) == 0 {
		return nil, redis.Nil
	}

	id, err := uuid.Parse(vals["id"])
	if err != nil {
		return nil, fmt.Errorf("cache parse id: %w", err)
	}
	owner, err := uuid.Parse(vals["owner_id"])
	if err != nil {
		return nil, fmt.Errorf("cache parse owner_id: %w", err)
	}
	cost, err := strconv.ParseFloat(vals["cost_per_day"], 64)
	if err != nil {
		return nil, fmt.Errorf("cache parse cost_per_day: %w", err)
	}
	listedAt, err := time.Parse(time.RFC3339Nano, vals["listed_at"])
	if err != nil {
		return nil, fmt.Errorf("cache parse listed_at: %w", err)
	}

	return &CachedItem{
		ID:          id,
		OwnerID:     owner,
		Name:        vals["name"],
		Description: vals["description"],
		Category:    vals["category"],
		CostPerDay:  cost,
		ListedAt:    listedAt,
	}, nil
}

// Set writes a listing hash with ItemCacheTTL in one pipeline.
func (c *ItemCache) Set(ctx context.Context, item *CachedItem) error {
	key := c.key(item.OwnerID, item.ID)
	pipe := c.client.Client().Pipeline()
	pipe.HSet(ctx, key,
		"id", item.ID.String(),
		"owner_id", item.OwnerID.String(),
		"name", item.Name,
		"description", item.Description,
		"category", item.Category,
		"cost_per_day", strconv.FormatFloat(item.CostPerDay, 'f', -1, 64),
		"listed_at", item.ListedAt.UTC().Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, key, ItemCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Move re-keys a listing after an ownership change.
func (c *ItemCache) Move(ctx context.Context, item *CachedItem, previousOwner uuid.UUID) error {
	if previousOwner != item.OwnerID {
		if err := c.Delete(ctx, previousOwner, item.ID); err != nil {
			return err
		}
	}
	return c.Set(ctx, item)
}

// Delete removes a cached listing.
func (c *ItemCache) Delete(ctx context.Context, ownerID, itemID uuid.UUID) error {
	if err := c.client.Client().Del(ctx, c.key(ownerID, itemID)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (c *ItemCache) key(ownerID, itemID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", itemCacheKeyPrefix, ownerID, itemID)
}
