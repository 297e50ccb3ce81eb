package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	memberCacheKeyPrefix = "member"
	leaderboardKey       = "members:by_credits"
)

// CachedMember is the member read model: contact data plus current balance.
type CachedMember struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Phone   string    `json:"phone"`
	Credits float64   `json:"credits"`
}

// Ranked is one leaderboard entry.
type Ranked struct {
	MemberID uuid.UUID
	Credits  float64
}

// MemberCache stores members as hashes under "member:{id}" and mirrors every
// balance into the sorted set "members:by_credits". Entries do not expire;
// the worker removes them on member removal.
type MemberCache struct {
	client *RedisClient
}

// NewMemberCache creates a new MemberCache backed by the given RedisClient.
func NewMemberCache(r *RedisClient) *MemberCache {
	return &MemberCache{client: r}
}

// Set writes the full member hash and its leaderboard score.
func (c *MemberCache) Set(ctx context.Context, m *CachedMember) error {
	key := c.key(m.ID)
	pipe := c.client.Client().TxPipeline()
	pipe.HSet(ctx, key,
		"id", m.ID.String(),
		"name", m.Name,
		"email", m.Email,
		"phone", m.Phone,
		"credits", formatCredits(m.Credits),
	)
	pipe.ZAdd(ctx, leaderboardKey, redis.Z{Score: m.Credits, Member: m.ID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set member: %w", err)
	}
	return nil
}

// SetCredits updates only the balance of an already cached member.
func (c *MemberCache) SetCredits(ctx context.Context, id uuid.UUID, credits float64) error {
	pipe := c.client.Client().TxPipeline()
	pipe.HSet(ctx, c.key(id), "id", id.String(), "credits", formatCredits(credits))
	pipe.ZAdd(ctx, leaderboardKey, redis.Z{Score: credits, Member: id.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set credits: %w", err)
	}
	return nil
}

// Get retrieves a cached member. Returns redis.Nil when absent.
func (c *MemberCache) Get(ctx context.Context, id uuid.UUID) (*CachedMember, error) {
	vals, err := c.client.Client().HGetAll(ctx, c.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("cache get member: %w", err)
	}
	if len(vals) == 0 {
		return nil, redis.Nil
	}
	credits, err := strconv.ParseFloat(vals["credits"], 64)
	if err != nil {
		return nil, fmt.Errorf("cache parse credits: %w", err)
	}
	return &CachedMember{
		ID:      id,
		Name:    vals["name"],
		Email:   vals["email"],
		Phone:   vals["phone"],
		Credits: credits,
	}, nil
}

// Delete removes the member hash and leaderboard entry.
func (c *MemberCache) Delete(ctx context.Context, id uuid.UUID) error {
	pipe := c.client.Client().TxPipeline()
	pipe.Del(ctx, c.key(id))
	pipe.ZRem(ctx, leaderboardKey, id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache delete member: %w", err)
	}
	return nil
}

// Top returns up to n members with the highest balances, richest first.
func (c *MemberCache) Top(ctx context.Context, n int64) ([]Ranked, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := c.client.Client().ZRevRangeWithScores(ctx, leaderboardKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("cache leaderboard: %w", err)
	}
	out := make([]Ranked, 0, len(zs))
	for _, z := range zs {
		s, ok := z.Member.(string)
		if !ok {
			continue
		}
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		out = append(out, Ranked{MemberID: id, Credits: z.Score})
	}
	return out, nil
}

func (c *MemberCache) key(id uuid.UUID) string {
	return fmt.Sprintf("%s:%s", memberCacheKeyPrefix, id)
}

func formatCredits(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
