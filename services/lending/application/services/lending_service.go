package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	pkgevents "github.com/ghuser/lendingclub/pkg/events"
	"github.com/ghuser/lendingclub/pkg/logger"
	"github.com/ghuser/lendingclub/pkg/telemetry"
	lendingdomain "github.com/ghuser/lendingclub/services/lending/domain"
	"github.com/ghuser/lendingclub/services/lending/domain/events"
	"github.com/ghuser/lendingclub/services/lending/domain/models"
	"github.com/ghuser/lendingclub/services/lending/domain/repositories"
	domainsvcs "github.com/ghuser/lendingclub/services/lending/domain/services"
)

const instrumentationName = "github.com/ghuser/lendingclub/services/lending"

// MemberInput carries the contact fields of a member.
type MemberInput struct {
	Name  string
	Email string
	Phone string
}

// ItemInput carries the listing fields of an item.
type ItemInput struct {
	OwnerID     uuid.UUID
	Name        string
	Description string
	Category    models.Category
	CostPerDay  float64
}

// LendInput carries the terms of a new contract. A nil StartDay means today;
// a nil TotalPrice is quoted from the item's daily cost.
type LendInput struct {
	LendeeID     uuid.UUID
	StartDay     *int
	DurationDays int
	TotalPrice   *float64
}

// DayReport describes one clock advance. Failure holds the last settlement
// error; transfers that succeeded are still listed.
type DayReport struct {
	ClosedDay int
	Day       int
	Transfers []models.Transfer
	Failure   string
}

// LendingService serializes all access to the lending System behind one mutex.
//
// After every successful mutation the service checkpoints the System through
// the repository, handing the domain events to the same transaction. Without
// a repository the events go straight to the publisher. A failed checkpoint
// rolls the in-memory System back, so memory and storage never diverge.
type LendingService struct {
	mu     sync.Mutex
	system *models.System

	repo repositories.SnapshotRepository
	pub  pkgevents.Publisher
	log  logger.Logger

	tracer  trace.Tracer
	metrics *lendingMetrics
}

// Option configures a LendingService.
type Option func(*LendingService)

// WithRepository checkpoints the System and writes events to the outbox of repo.
func WithRepository(repo repositories.SnapshotRepository) Option {
	return func(s *LendingService) { s.repo = repo }
}

// WithPublisher publishes events directly when no repository is configured.
func WithPublisher(pub pkgevents.Publisher) Option {
	return func(s *LendingService) { s.pub = pub }
}

// NewLendingService returns a service over an empty System on day 0.
func NewLendingService(log logger.Logger, opts ...Option) *LendingService {
	s := &LendingService{
		system: models.NewSystem(),
		log:    log,
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newLendingMetrics(otel.Meter(instrumentationName), log)
	return s
}

// Restore replaces the System with the last checkpoint. It reports false
// when there is no repository or nothing was saved yet.
func (s *LendingService) Restore(ctx context.Context) (restored bool, err error) {
	ctx, span := s.tracer.Start(ctx, "LendingService.Restore")
	defer func() { endSpan(span, err) }()

	if s.repo == nil {
		return false, nil
	}
	snap, ok, err := s.repo.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return false, nil
	}
	sys, err := models.RestoreSystem(snap)
	if err != nil {
		return false, fmt.Errorf("restore checkpoint: %w", err)
	}

	s.mu.Lock()
	s.system = sys
	s.mu.Unlock()

	s.metrics.day.Record(ctx, int64(snap.Day))
	s.log.InfoContext(ctx, "lending state restored",
		"day", snap.Day, "members", len(snap.Members), "items", len(snap.Items))
	return true, nil
}

// Seed loads snap into an empty System and announces every member and item.
// Returns ErrAlreadyExists when the System already holds data.
func (s *LendingService) Seed(ctx context.Context, snap models.Snapshot) (err error) {
	ctx, span := s.tracer.Start(ctx, "LendingService.Seed")
	defer func() { endSpan(span, err) }()

	seeded, err := models.RestoreSystem(snap)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.system.GetMembers()) > 0 || len(s.system.GetItems()) > 0 {
		return fmt.Errorf("seed: system is not empty: %w", lendingdomain.ErrAlreadyExists)
	}

	envs := make([]events.Envelope, 0, len(snap.Members)+len(snap.Items))
	for _, m := range seeded.GetMembers() {
		envs = append(envs, memberRegistered(m))
	}
	for _, it := range seeded.GetItems() {
		credits := 0.0
		if owner, err := seeded.GetMember(it.OwnerID); err == nil {
			credits = owner.Credits()
		}
		envs = append(envs, itemListed(it, credits))
	}

	previous := s.system
	s.system = seeded
	if err := s.commit(ctx, envs); err != nil {
		s.system = previous
		return err
	}
	s.metrics.day.Record(ctx, int64(snap.Day))
	s.log.InfoContext(ctx, "lending state seeded",
		"day", snap.Day, "members", len(snap.Members), "items", len(snap.Items))
	return nil
}

// Now returns the current day.
func (s *LendingService) Now(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.system.Now()
}

// RegisterMember adds a new member with zero credits.
func (s *LendingService) RegisterMember(ctx context.Context, in MemberInput) (m models.Member, err error) {
	ctx, span := s.tracer.Start(ctx, "LendingService.RegisterMember")
	defer func() { endSpan(span, err) }()

	m = models.NewMember(in.Name, in.Email, in.Phone)
	if err := domainsvcs.ValidateMember(m); err != nil {
		return models.Member{}, fmt.Errorf("%w: %w", lendingdomain.ErrInvalidMember, err)
	}

	err = s.mutate(ctx, func(sys *models.System) ([]events.Envelope, error) {
		if err := sys.AddMember(m); err != nil {
			return nil, err
		}
		return []events.Envelope{memberRegistered(m)}, nil
	})
	if err != nil {
		return models.Member{}, err
	}

	span.SetAttributes(attribute.String("member.id", m.ID.String()))
	s.log.InfoContext(ctx, "member registered", "member_id", m.ID)
	return m, nil
}

// UpdateMember replaces the contact fields of a member. Credits and owned
// items are kept.
func (s *LendingService) UpdateMember(ctx context.Context, id uuid.UUID, in MemberInput) (updated models.Member, err error) {
	ctx, span := s.tracer.Start(ctx, "LendingService.UpdateMember",
		trace.WithAttributes(attribute.String("member.id", id.String())))
	defer func() { endSpan(span, err) }()

	err = s.mutate(ctx, func(sys *models.System) ([]events.Envelope, error) {
		m, err := sys.GetMember(id)
		if err != nil {
			return nil, err
		}
		m.Name, m.Email, m.Phone = in.Name, in.Email, in.Phone
		if err := domainsvcs.ValidateMember(m); err != nil {
			return nil, fmt.Errorf("%w: %w", lendingdomain.ErrInvalidMember, err)
		}
		if err := sys.UpdateMember(id, m); err != nil {
			return nil, err
		}
		updated = m
		return []events.Envelope{memberUpdated(m)}, nil
	})
	if err != nil {
		return models.Member{}, err
	}

	s.log.InfoContext(ctx, "member updated", "member_id", id)
	return updated, nil
}

// RemoveMember deletes a member. Their items and contracts stay in place.
func (s *LendingService) RemoveMember(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := s.tracer.Start(ctx, "LendingService.RemoveMember",
		trace.WithAttributes(attribute.String("member.id", id.String())))
	defer func() { endSpan(span, err) }()

	err = s.mutate(ctx, func(sys *models.System) ([]events.Envelope, error) {
		if err := sys.RemoveMember(id); err != nil {
			return nil, err
		}
		return []events.Envelope{events.NewEnvelope(events.TopicMemberRemoved, events.MemberRemovedEvent{
			Header:   events.NewHeader(),
			MemberID: id,
		})}, nil
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "member removed", "member_id", id)
	return nil
}

// GetMember returns the member with the given ID.
func (s *LendingService) GetMember(_ context.Context, id uuid.UUID) (models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.system.GetMember(id)
}

// ListMembers returns every member in registration order.
func (s *LendingService) ListMembers(_ context.Context) []models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.system.GetMembers()
}

// Leaderboard returns up to n members ordered by credits, richest first.
// Ties keep registration order.
func (s *LendingService) Leaderboard(ctx context.Context, n int) []models.Member {
	members := s.ListMembers(ctx)
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Credits() > members[j].Credits()
	})
	if n >= 0 && n < len(members) {
		members = members[:n]
	}
	return members
}

// ListItem lists a new item for its owner, who receives the listing bonus.
func (s *LendingService) ListItem(ctx context.Context, in ItemInput) (item models.Item, err error) {
	ctx, span := s.tracer.Start(ctx, "LendingService.ListItem",
		trace.WithAttributes(attribute.String("owner.id", in.OwnerID.String())))
	defer func() { endSpan(span, err) }()

	item, err = models.NewItem(models.ItemParams{
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		OwnerID:     in.OwnerID,
		CostPerDay:  in.CostPerDay,
	})
	if err != nil {
		return models.Item{}, err
	}
	if err := domainsvcs.ValidateItemForListing(item); err != nil {
		return models.Item{}, fmt.Errorf("%w: %w", lendingdomain.ErrInvalidItem, err)
	}

	err = s.mutate(ctx, func(sys *models.System) ([]events.Envelope, error) {
		if err := sys.AddItem(item); err != nil {
			return nil, err
		}
		owner, err := sys.GetMember(item.OwnerID)
		if err != nil {
			return nil, err
		}
		return []events.Envelope{itemListed(item, owner.Credits())}, nil
	})
	if err != nil {
		return models.Item{}, err
	}

	s.metrics.itemsListed.Add(ctx, 1, metric.WithAttributes(attribute.String("category", item.Category.String())))
	s.log.InfoContext(ctx, "item listed", "item_id", item.ID, "owner_id", item.OwnerID)
	return item, nil
}

// UpdateItem replaces the listing fields of an item. Changing OwnerID moves
// the item to another stored member; contracts stay with the item.
func (s *LendingService) UpdateItem(ctx context.Context, id uuid.UUID, in ItemInput) (updated models.Item, err error) {
	ctx, span := s.tracer.Start(ctx, "LendingService.UpdateItem",
		trace.WithAttributes(attribute.String("item.id", id.String())))
	defer func() { endSpan(span, err) }()

	name, err := models.NewItemName(in.Name)
	if err != nil {
		return models.Item{}, fmt.Errorf("%w: %w", lendingdomain.ErrInvalidItem, err)
	}
	if !(in.CostPerDay >= 0) {
		return models.Item{}, fmt.Errorf("%w: cost per day must not be negative, got %v", lendingdomain.ErrInvalidItem, in.CostPerDay)
	}
	category := in.Category
	if category == "" {
		category = models.CategoryOther
	}

	err = s.mutate(ctx, func(sys *models.System) ([]events.Envelope, error) {
		it, err := sys.GetItem(id)
		if err != nil {
			return nil, err
		}
		previousOwner := it.OwnerID
		it.Name = name
		it.Description = in.Description
		it.Category = category
		it.CostPerDay = in.CostPerDay
		it.OwnerID = in.OwnerID
		if err := domainsvcs.ValidateItemForListing(it); err != nil {
			return nil, fmt.Errorf("%w: %w", lendingdomain.ErrInvalidItem, err)
		}
		if err := sys.UpdateItem(it); err != nil {
			return nil, err
		}
		updated = it
		return []events.Envelope{events.NewEnvelope(events.TopicItemUpdated, events.ItemUpdatedEvent{
			Header:          events.NewHeader(),
			ItemID:          it.ID,
			OwnerID:         it.OwnerID,
			PreviousOwnerID: previousOwner,
			Name:            it.Name.String(),
			Description:     it.Description,
			Category:        it.Category,
			CostPerDay:      it.CostPerDay,
		})}, nil
	})
	if err != nil {
		return models.Item{}, err
	}

	s.log.InfoContext(ctx, "item updated", "item_id", id, "owner_id", updated.OwnerID)
	return updated, nil
}

// RemoveItem withdraws an item. The listing bonus is not reclaimed.
func (s *LendingService) RemoveItem(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := s.tracer.Start(ctx, "LendingService.RemoveItem",
		trace.WithAttributes(attribute.String("item.id", id.String())))
	defer func() { endSpan(span, err) }()

	err = s.mutate(ctx, func(sys *models.System) ([]events.Envelope, error) {
		it, err := sys.GetItem(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", lendingdomain.ErrCannotDelete, err)
		}
		if err := sys.RemoveItem(id); err != nil {
			return nil, err
		}
		return []events.Envelope{events.NewEnvelope(events.TopicItemRemoved, events.ItemRemovedEvent{
			Header:  events.NewHeader(),
			ItemID:  id,
			OwnerID: it.OwnerID,
		})}, nil
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "item removed", "item_id", id)
	return nil
}

// GetItem returns the item with the given ID.
func (s *LendingService) GetItem(_ context.Context, id uuid.UUID) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.system.GetItem(id)
}

// ListItems returns every item in listing order.
func (s *LendingService) ListItems(_ context.Context) []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.system.GetItems()
}

// ListItemsForMember returns the items owned by a stored member.
func (s *LendingService) ListItemsForMember(_ context.Context, memberID uuid.UUID) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.system.GetMember(memberID); err != nil {
		return nil, err
	}
	return s.system.GetItemsForMember(memberID), nil
}

// CountItemsForMember counts the items whose owner is memberID.
func (s *LendingService) CountItemsForMember(_ context.Context, memberID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.system.CountItemsForMember(memberID)
}

// LendItem signs a contract lending itemID to in.LendeeID.
func (s *LendingService) LendItem(ctx context.Context, itemID uuid.UUID, in LendInput) (c models.Contract, err error) {
	ctx, span := s.tracer.Start(ctx, "LendingService.LendItem",
		trace.WithAttributes(
			attribute.String("item.id", itemID.String()),
			attribute.String("lendee.id", in.LendeeID.String()),
		))
	defer func() { endSpan(span, err) }()

	err = s.mutate(ctx, func(sys *models.System) ([]events.Envelope, error) {
		it, err := sys.GetItem(itemID)
		if err != nil {
			return nil, err
		}
		terms := models.ContractTerms{
			OwnerID:      it.OwnerID,
			LendeeID:     in.LendeeID,
			StartDay:     sys.Now(),
			DurationDays: in.DurationDays,
		}
		if in.StartDay != nil {
			terms.StartDay = *in.StartDay
		}
		terms.TotalPrice = domainsvcs.QuoteTotalPrice(it.CostPerDay, in.DurationDays)
		if in.TotalPrice != nil {
			terms.TotalPrice = *in.TotalPrice
		}
		if err := domainsvcs.ValidateLending(it, terms, sys.Now()); err != nil {
			return nil, fmt.Errorf("%w: %w", lendingdomain.ErrInvalidContract, err)
		}
		c, err = models.NewContract(terms)
		if err != nil {
			return nil, err
		}
		if err := sys.AddContract(itemID, c); err != nil {
			return nil, err
		}
		return []events.Envelope{events.NewEnvelope(events.TopicContractSigned, events.ContractSignedEvent{
			Header:       events.NewHeader(),
			ContractID:   c.ID,
			ItemID:       itemID,
			OwnerID:      c.OwnerID,
			LendeeID:     c.LendeeID,
			StartDay:     c.StartDay,
			DurationDays: c.DurationDays,
			TotalPrice:   c.TotalPrice,
		})}, nil
	})
	if err != nil {
		return models.Contract{}, err
	}

	s.metrics.contractsSigned.Add(ctx, 1)
	s.log.InfoContext(ctx, "contract signed",
		"contract_id", c.ID, "item_id", itemID, "lendee_id", c.LendeeID,
		"start_day", c.StartDay, "end_day", c.EndDay())
	return c, nil
}

// GetContract returns the contract with the given ID.
func (s *LendingService) GetContract(_ context.Context, id uuid.UUID) (models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.system.GetContract(id)
}

// GetItemForContract returns the item a contract was signed for.
func (s *LendingService) GetItemForContract(_ context.Context, contractID uuid.UUID) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.system.GetItemForContract(contractID)
	if !ok {
		return models.Item{}, fmt.Errorf("item for contract %s: %w", contractID, lendingdomain.ErrDoesntExist)
	}
	return it, nil
}

// AdvanceDay settles the closing day and moves the clock forward.
//
// A settlement failure does not fail the call: the day advances, the failure
// is reported in DayReport.Failure and sent to Sentry. Only a failed
// checkpoint returns an error, and then the day is not advanced.
func (s *LendingService) AdvanceDay(ctx context.Context) (report DayReport, err error) {
	ctx, span := s.tracer.Start(ctx, "LendingService.AdvanceDay")
	defer func() { endSpan(span, err) }()

	var settleErr error
	err = s.mutate(ctx, func(sys *models.System) ([]events.Envelope, error) {
		report.ClosedDay = sys.Now()
		report.Transfers, settleErr = sys.IncrTime()
		report.Day = sys.Now()
		if settleErr != nil {
			report.Failure = settleErr.Error()
		}
		return []events.Envelope{events.NewEnvelope(events.TopicDaySettled, events.DaySettledEvent{
			Header:    events.NewHeader(),
			ClosedDay: report.ClosedDay,
			Day:       report.Day,
			Transfers: report.Transfers,
			Balances:  balancesAfter(sys, report.Transfers),
			Failure:   report.Failure,
		})}, nil
	})
	if err != nil {
		return DayReport{}, err
	}

	span.SetAttributes(
		attribute.Int("lending.closed_day", report.ClosedDay),
		attribute.Int("lending.transfers", len(report.Transfers)),
	)
	s.metrics.recordSettlement(ctx, report)

	if settleErr != nil {
		s.log.WarnContext(ctx, "settlement finished with failures",
			"closed_day", report.ClosedDay, "transfers", len(report.Transfers), "error", settleErr)
		telemetry.CaptureError(settleErr, map[string]string{
			"component":  "settlement",
			"closed_day": strconv.Itoa(report.ClosedDay),
		})
	} else {
		s.log.InfoContext(ctx, "day settled",
			"closed_day", report.ClosedDay, "day", report.Day, "transfers", len(report.Transfers))
	}
	return report, nil
}

// mutate runs fn under the lock and commits the events it returns. When fn
// fails the System is untouched; when the commit fails the System is rolled
// back to the state before fn.
func (s *LendingService) mutate(ctx context.Context, fn func(sys *models.System) ([]events.Envelope, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var before models.Snapshot
	if s.repo != nil {
		before = s.system.Snapshot()
	}

	envs, err := fn(s.system)
	if err != nil {
		return err
	}

	if err := s.commit(ctx, envs); err != nil {
		restored, rerr := models.RestoreSystem(before)
		if rerr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
		s.system = restored
		return err
	}
	return nil
}

// commit must be called with mu held.
func (s *LendingService) commit(ctx context.Context, envs []events.Envelope) error {
	if s.repo != nil {
		if err := s.repo.Save(ctx, s.system.Snapshot(), envs...); err != nil {
			telemetry.CaptureError(err, map[string]string{"component": "checkpoint"})
			return fmt.Errorf("checkpoint: %w", err)
		}
		return nil
	}
	if s.pub == nil {
		return nil
	}
	for _, env := range envs {
		msg, err := pkgevents.NewJSONMessage(env.EventID.String(), events.Version, env.Payload)
		if err == nil {
			err = s.pub.Publish(ctx, env.Topic, msg)
		}
		if err != nil {
			s.log.WarnContext(ctx, "event publish failed", "topic", env.Topic, "error", err)
		}
	}
	return nil
}

func memberRegistered(m models.Member) events.Envelope {
	return events.NewEnvelope(events.TopicMemberRegistered, events.MemberRegisteredEvent{
		Header:   events.NewHeader(),
		MemberID: m.ID,
		Name:     m.Name,
		Email:    m.Email,
		Phone:    m.Phone,
		Credits:  m.Credits(),
	})
}

func memberUpdated(m models.Member) events.Envelope {
	return events.NewEnvelope(events.TopicMemberUpdated, events.MemberUpdatedEvent{
		Header:   events.NewHeader(),
		MemberID: m.ID,
		Name:     m.Name,
		Email:    m.Email,
		Phone:    m.Phone,
		Credits:  m.Credits(),
	})
}

func itemListed(it models.Item, ownerCredits float64) events.Envelope {
	return events.NewEnvelope(events.TopicItemListed, events.ItemListedEvent{
		Header:       events.NewHeader(),
		ItemID:       it.ID,
		OwnerID:      it.OwnerID,
		Name:         it.Name.String(),
		Description:  it.Description,
		Category:     it.Category,
		CostPerDay:   it.CostPerDay,
		OwnerCredits: ownerCredits,
	})
}

// balancesAfter lists the current balance of every stored member named in
// transfers, in order of first appearance.
func balancesAfter(sys *models.System, transfers []models.Transfer) []events.MemberBalance {
	seen := make(map[uuid.UUID]struct{})
	out := make([]events.MemberBalance, 0)
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		if m, err := sys.GetMember(id); err == nil {
			out = append(out, events.MemberBalance{MemberID: id, Credits: m.Credits()})
		}
	}
	for _, t := range transfers {
		add(t.OwnerID)
		add(t.LendeeID)
	}
	return out
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
