// Package projections keeps the Redis read model of the lending club in step
// with the domain events.
package projections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ghuser/lendingclub/pkg/cache"
	pkgevents "github.com/ghuser/lendingclub/pkg/events"
	"github.com/ghuser/lendingclub/pkg/logger"
	"github.com/ghuser/lendingclub/services/lending/domain/events"
)

// MemberStore is the member side of the read model. *cache.MemberCache implements it.
type MemberStore interface {
	Set(ctx context.Context, m *cache.CachedMember) error
	SetCredits(ctx context.Context, id uuid.UUID, credits float64) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*cache.CachedMember, error)
	Top(ctx context.Context, n int64) ([]cache.Ranked, error)
}

// ItemStore is the listing side of the read model. *cache.ItemCache implements it.
type ItemStore interface {
	Get(ctx context.Context, ownerID, itemID uuid.UUID) (*cache.CachedItem, error)
	Set(ctx context.Context, item *cache.CachedItem) error
	Move(ctx context.Context, item *cache.CachedItem, previousOwner uuid.UUID) error
	Delete(ctx context.Context, ownerID, itemID uuid.UUID) error
}

// ReadModel applies lending events to the member and item stores.
// Every handler is idempotent: replaying an event writes the same keys.
type ReadModel struct {
	members MemberStore
	items   ItemStore
	log     logger.Logger
}

// NewReadModel returns a ReadModel writing to the given stores.
func NewReadModel(members MemberStore, items ItemStore, log logger.Logger) *ReadModel {
	return &ReadModel{members: members, items: items, log: log}
}

// NewRedisReadModel wires a ReadModel to the Redis caches.
func NewRedisReadModel(r *cache.RedisClient, log logger.Logger) *ReadModel {
	return NewReadModel(cache.NewMemberCache(r), cache.NewItemCache(r), log)
}

// Register subscribes the read model to every lending topic. Subscriber
// errors are drained and logged until ctx ends.
func (p *ReadModel) Register(ctx context.Context, sub pkgevents.Subscriber) error {
	for _, topic := range events.Topics() {
		errCh, err := sub.Subscribe(ctx, topic, p.Handler(topic))
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		go func(topic string) {
			for err := range errCh {
				p.log.ErrorContext(ctx, "subscriber error", "topic", topic, "error", err)
			}
		}(topic)
	}
	p.log.Info("read model subscribers registered", "topics", events.Topics())
	return nil
}

// Handler returns the message handler for topic. Unknown topics are acked
// and ignored.
func (p *ReadModel) Handler(topic string) func(context.Context, *message.Message) error {
	switch topic {
	case events.TopicMemberRegistered:
		return p.memberRegistered
	case events.TopicMemberUpdated:
		return p.memberUpdated
	case events.TopicMemberRemoved:
		return p.memberRemoved
	case events.TopicItemListed:
		return p.itemListed
	case events.TopicItemUpdated:
		return p.itemUpdated
	case events.TopicItemRemoved:
		return p.itemRemoved
	case events.TopicDaySettled:
		return p.daySettled
	default:
		return func(ctx context.Context, msg *message.Message) error {
			p.log.DebugContext(ctx, "read model ignores topic", "topic", topic)
			return nil
		}
	}
}

func (p *ReadModel) memberRegistered(ctx context.Context, msg *message.Message) error {
	var evt events.MemberRegisteredEvent
	if err := pkgevents.DecodeJSON(msg, &evt); err != nil {
		return err
	}
	return p.members.Set(ctx, &cache.CachedMember{
		ID: evt.MemberID, Name: evt.Name, Email: evt.Email, Phone: evt.Phone, Credits: evt.Credits,
	})
}

func (p *ReadModel) memberUpdated(ctx context.Context, msg *message.Message) error {
	var evt events.MemberUpdatedEvent
	if err := pkgevents.DecodeJSON(msg, &evt); err != nil {
		return err
	}
	return p.members.Set(ctx, &cache.CachedMember{
		ID: evt.MemberID, Name: evt.Name, Email: evt.Email, Phone: evt.Phone, Credits: evt.Credits,
	})
}

func (p *ReadModel) memberRemoved(ctx context.Context, msg *message.Message) error {
	var evt events.MemberRemovedEvent
	if err := pkgevents.DecodeJSON(msg, &evt); err != nil {
		return err
	}
	return p.members.Delete(ctx, evt.MemberID)
}

func (p *ReadModel) itemListed(ctx context.Context, msg *message.Message) error {
	var evt events.ItemListedEvent
	if err := pkgevents.DecodeJSON(msg, &evt); err != nil {
		return err
	}
	if err := p.items.Set(ctx, &cache.CachedItem{
		ID:          evt.ItemID,
		OwnerID:     evt.OwnerID,
		Name:        evt.Name,
		Description: evt.Description,
		Category:    evt.Category.String(),
		CostPerDay:  evt.CostPerDay,
		ListedAt:    occurredAt(evt.Header),
	}); err != nil {
		return err
	}
	return p.members.SetCredits(ctx, evt.OwnerID, evt.OwnerCredits)
}

func (p *ReadModel) itemUpdated(ctx context.Context, msg *message.Message) error {
	var evt events.ItemUpdatedEvent
	if err := pkgevents.DecodeJSON(msg, &evt); err != nil {
		return err
	}

	// An edit keeps the original listing time. A missing entry (expired, or
	// the listing event was never seen) restarts it at the edit.
	listedAt := occurredAt(evt.Header)
	prev, err := p.items.Get(ctx, evt.PreviousOwnerID, evt.ItemID)
	switch {
	case err == nil:
		listedAt = prev.ListedAt
	case !errors.Is(err, redis.Nil):
		return err
	}

	return p.items.Move(ctx, &cache.CachedItem{
		ID:          evt.ItemID,
		OwnerID:     evt.OwnerID,
		Name:        evt.Name,
		Description: evt.Description,
		Category:    evt.Category.String(),
		CostPerDay:  evt.CostPerDay,
		ListedAt:    listedAt,
	}, evt.PreviousOwnerID)
}

func (p *ReadModel) itemRemoved(ctx context.Context, msg *message.Message) error {
	var evt events.ItemRemovedEvent
	if err := pkgevents.DecodeJSON(msg, &evt); err != nil {
		return err
	}
	return p.items.Delete(ctx, evt.OwnerID, evt.ItemID)
}

func (p *ReadModel) daySettled(ctx context.Context, msg *message.Message) error {
	var evt events.DaySettledEvent
	if err := pkgevents.DecodeJSON(msg, &evt); err != nil {
		return err
	}
	for _, b := range evt.Balances {
		if err := p.members.SetCredits(ctx, b.MemberID, b.Credits); err != nil {
			return err
		}
	}

	args := []any{"closed_day", evt.ClosedDay, "balances", len(evt.Balances)}
	top, err := p.members.Top(ctx, 1)
	if err != nil {
		p.log.WarnContext(ctx, "read model leaderboard unavailable", "error", err)
	} else if len(top) == 1 {
		args = append(args, "leader_id", top[0].MemberID, "leader_credits", top[0].Credits)
		if leader, err := p.members.Get(ctx, top[0].MemberID); err == nil {
			args = append(args, "leader_name", leader.Name)
		}
	}
	p.log.InfoContext(ctx, "read model balances refreshed", args...)
	return nil
}

func occurredAt(h events.Header) time.Time {
	if h.OccurredAt.IsZero() {
		return time.Now().UTC()
	}
	return h.OccurredAt
}
