package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ghuser/lendingclub/pkg/logger"
	lendingdomain "github.com/ghuser/lendingclub/services/lending/domain"
	"github.com/ghuser/lendingclub/services/lending/domain/events"
	"github.com/ghuser/lendingclub/services/lending/domain/models"
)

type published struct {
	topic   string
	payload []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		p.msgs = append(p.msgs, published{topic: topic, payload: m.Payload})
	}
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.topic
	}
	return out
}

func (p *recordingPublisher) last() published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.msgs[len(p.msgs)-1]
}

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Save(ctx context.Context, snap models.Snapshot, outbox ...events.Envelope) error {
	return m.Called(ctx, snap, outbox).Error(0)
}

func (m *mockRepo) Load(ctx context.Context) (models.Snapshot, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Snapshot), args.Bool(1), args.Error(2)
}

func newTestService(t *testing.T) (*LendingService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	return NewLendingService(logger.Nop(), WithPublisher(pub)), pub
}

func register(t *testing.T, s *LendingService, name string) models.Member {
	t.Helper()
	m, err := s.RegisterMember(context.Background(), MemberInput{
		Name:  name,
		Email: name + "@lendingclub.test",
		Phone: "070-" + name,
	})
	require.NoError(t, err)
	return m
}

func list(t *testing.T, s *LendingService, owner uuid.UUID, cost float64) models.Item {
	t.Helper()
	it, err := s.ListItem(context.Background(), ItemInput{
		OwnerID:    owner,
		Name:       "Monopoly",
		Category:   models.CategoryGame,
		CostPerDay: cost,
	})
	require.NoError(t, err)
	return it
}

func TestLendingService_RegisterMember(t *testing.T) {
	ctx := context.Background()
	s, pub := newTestService(t)

	allan := register(t, s, "allan")
	got, err := s.GetMember(ctx, allan.ID)
	require.NoError(t, err)
	require.Equal(t, "allan", got.Name)
	require.Zero(t, got.Credits())
	require.Equal(t, []string{events.TopicMemberRegistered}, pub.topics())

	t.Run("duplicate email", func(t *testing.T) {
		_, err := s.RegisterMember(ctx, MemberInput{Name: "x", Email: "allan@lendingclub.test", Phone: "999"})
		require.ErrorIs(t, err, lendingdomain.ErrAlreadyExists)
	})

	t.Run("blank fields", func(t *testing.T) {
		_, err := s.RegisterMember(ctx, MemberInput{Name: " ", Email: "", Phone: "1"})
		require.ErrorIs(t, err, lendingdomain.ErrInvalidMember)
	})

	require.Len(t, s.ListMembers(ctx), 1)
}

func TestLendingService_UpdateMember_KeepsCredits(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	allan := register(t, s, "allan")
	it := list(t, s, allan.ID, 10)

	updated, err := s.UpdateMember(ctx, allan.ID, MemberInput{Name: "Allan T.", Email: "at@lendingclub.test", Phone: "1"})
	require.NoError(t, err)
	require.Equal(t, models.ListingBonus, updated.Credits())
	require.True(t, updated.OwnsItem(it.ID))

	_, err = s.UpdateMember(ctx, uuid.New(), MemberInput{Name: "a", Email: "b", Phone: "c"})
	require.ErrorIs(t, err, lendingdomain.ErrDoesntExist)
}

func TestLendingService_ListItem_CreditsBonus(t *testing.T) {
	ctx := context.Background()
	s, pub := newTestService(t)
	allan := register(t, s, "allan")

	it := list(t, s, allan.ID, 20)

	owner, err := s.GetMember(ctx, allan.ID)
	require.NoError(t, err)
	require.Equal(t, models.ListingBonus, owner.Credits())
	require.Equal(t, 1, s.CountItemsForMember(ctx, allan.ID))

	var evt events.ItemListedEvent
	require.Equal(t, events.TopicItemListed, pub.last().topic)
	require.NoError(t, json.Unmarshal(pub.last().payload, &evt))
	require.Equal(t, it.ID, evt.ItemID)
	require.Equal(t, models.ListingBonus, evt.OwnerCredits)

	t.Run("unknown owner leaves no trace", func(t *testing.T) {
		_, err := s.ListItem(ctx, ItemInput{OwnerID: uuid.New(), Name: "Kite", CostPerDay: 1})
		require.ErrorIs(t, err, lendingdomain.ErrDoesntExist)
		require.Len(t, s.ListItems(ctx), 1)
	})

	t.Run("negative cost", func(t *testing.T) {
		_, err := s.ListItem(ctx, ItemInput{OwnerID: allan.ID, Name: "Kite", CostPerDay: -1})
		require.ErrorIs(t, err, lendingdomain.ErrInvalidItem)
	})

	t.Run("padded name", func(t *testing.T) {
		_, err := s.ListItem(ctx, ItemInput{OwnerID: allan.ID, Name: " Kite", CostPerDay: 1})
		require.ErrorIs(t, err, lendingdomain.ErrInvalidItem)
	})
}

func TestLendingService_UpdateItem_MovesOwner(t *testing.T) {
	ctx := context.Background()
	s, pub := newTestService(t)
	allan := register(t, s, "allan")
	tina := register(t, s, "tina")
	it := list(t, s, allan.ID, 20)

	updated, err := s.UpdateItem(ctx, it.ID, ItemInput{
		OwnerID: tina.ID, Name: "Monopoly Deluxe", Category: models.CategoryGame, CostPerDay: 25,
	})
	require.NoError(t, err)
	require.Equal(t, tina.ID, updated.OwnerID)
	require.Equal(t, 0, s.CountItemsForMember(ctx, allan.ID))

	tinaItems, err := s.ListItemsForMember(ctx, tina.ID)
	require.NoError(t, err)
	require.Len(t, tinaItems, 1)
	require.Equal(t, "Monopoly Deluxe", tinaItems[0].Name.String())

	var evt events.ItemUpdatedEvent
	require.NoError(t, json.Unmarshal(pub.last().payload, &evt))
	require.Equal(t, allan.ID, evt.PreviousOwnerID)
	require.Equal(t, tina.ID, evt.OwnerID)

	t.Run("missing item", func(t *testing.T) {
		_, err := s.UpdateItem(ctx, uuid.New(), ItemInput{OwnerID: tina.ID, Name: "x", CostPerDay: 1})
		require.ErrorIs(t, err, lendingdomain.ErrDoesntExist)
	})

	t.Run("missing new owner", func(t *testing.T) {
		_, err := s.UpdateItem(ctx, it.ID, ItemInput{OwnerID: uuid.New(), Name: "x", CostPerDay: 1})
		require.ErrorIs(t, err, lendingdomain.ErrDoesntExist)
	})
}

func TestLendingService_RemoveItem(t *testing.T) {
	ctx := context.Background()
	s, pub := newTestService(t)
	allan := register(t, s, "allan")
	it := list(t, s, allan.ID, 20)

	require.NoError(t, s.RemoveItem(ctx, it.ID))
	require.Empty(t, s.ListItems(ctx))
	require.Equal(t, events.TopicItemRemoved, pub.last().topic)

	err := s.RemoveItem(ctx, it.ID)
	require.ErrorIs(t, err, lendingdomain.ErrCannotDelete)
}

func TestLendingService_ListItemsForMember_UnknownMember(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.ListItemsForMember(context.Background(), uuid.New())
	require.ErrorIs(t, err, lendingdomain.ErrDoesntExist)
}

func TestLendingService_LendItem(t *testing.T) {
	ctx := context.Background()
	s, pub := newTestService(t)
	allan := register(t, s, "allan")
	tina := register(t, s, "tina")
	it := list(t, s, allan.ID, 20)

	c, err := s.LendItem(ctx, it.ID, LendInput{LendeeID: tina.ID, DurationDays: 3})
	require.NoError(t, err)
	require.Equal(t, 0, c.StartDay)
	require.Equal(t, 60.0, c.TotalPrice)
	require.Equal(t, allan.ID, c.OwnerID)
	require.Equal(t, events.TopicContractSigned, pub.last().topic)

	got, err := s.GetContract(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, c, got)

	owning, err := s.GetItemForContract(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, it.ID, owning.ID)

	_, err = s.GetItemForContract(ctx, uuid.New())
	require.ErrorIs(t, err, lendingdomain.ErrDoesntExist)

	start := 5
	price := 1.0

	tests := []struct {
		name string
		item uuid.UUID
		in   LendInput
		want error
	}{
		{"still under contract", it.ID, LendInput{LendeeID: tina.ID, StartDay: &start, DurationDays: 1, TotalPrice: &price}, lendingdomain.ErrAlreadyUnderContract},
		{"owner borrows own item", it.ID, LendInput{LendeeID: allan.ID, DurationDays: 1}, lendingdomain.ErrInvalidContract},
		{"unknown lendee", it.ID, LendInput{LendeeID: uuid.New(), DurationDays: 1}, lendingdomain.ErrDoesntExist},
		{"unknown item", uuid.New(), LendInput{LendeeID: tina.ID, DurationDays: 1}, lendingdomain.ErrDoesntExist},
		{"zero duration", it.ID, LendInput{LendeeID: tina.ID, StartDay: &start, DurationDays: 0}, lendingdomain.ErrInvalidContract},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.LendItem(ctx, tt.item, tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLendingService_LendItem_PastStartRejected(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	allan := register(t, s, "allan")
	tina := register(t, s, "tina")
	it := list(t, s, allan.ID, 20)

	_, err := s.AdvanceDay(ctx)
	require.NoError(t, err)

	zero := 0
	_, err = s.LendItem(ctx, it.ID, LendInput{LendeeID: tina.ID, StartDay: &zero, DurationDays: 2})
	require.ErrorIs(t, err, lendingdomain.ErrInvalidContract)
}

func TestLendingService_AdvanceDay(t *testing.T) {
	ctx := context.Background()
	s, pub := newTestService(t)
	allan := register(t, s, "allan")
	tina := register(t, s, "tina")
	it := list(t, s, allan.ID, 20)
	_, err := s.LendItem(ctx, it.ID, LendInput{LendeeID: tina.ID, DurationDays: 2})
	require.NoError(t, err)

	for day := 1; day <= 3; day++ {
		report, err := s.AdvanceDay(ctx)
		require.NoError(t, err)
		require.Equal(t, day-1, report.ClosedDay)
		require.Equal(t, day, report.Day)
		require.Empty(t, report.Failure)
	}
	require.Equal(t, 3, s.Now(ctx))

	owner, _ := s.GetMember(ctx, allan.ID)
	lendee, _ := s.GetMember(ctx, tina.ID)
	require.Equal(t, models.ListingBonus+40, owner.Credits())
	require.Equal(t, -40.0, lendee.Credits())

	var evt events.DaySettledEvent
	require.Equal(t, events.TopicDaySettled, pub.last().topic)
	require.NoError(t, json.Unmarshal(pub.last().payload, &evt))
	require.Equal(t, 2, evt.ClosedDay)
	require.Empty(t, evt.Transfers)
}

func TestLendingService_AdvanceDay_MissingLendeeReported(t *testing.T) {
	ctx := context.Background()
	s, pub := newTestService(t)
	allan := register(t, s, "allan")
	tina := register(t, s, "tina")
	it := list(t, s, allan.ID, 20)
	_, err := s.LendItem(ctx, it.ID, LendInput{LendeeID: tina.ID, DurationDays: 2})
	require.NoError(t, err)
	require.NoError(t, s.RemoveMember(ctx, tina.ID))

	report, err := s.AdvanceDay(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, report.Failure)
	require.Equal(t, 1, report.Day)
	require.Len(t, report.Transfers, 1)
	require.True(t, report.Transfers[0].OwnerCredited)
	require.False(t, report.Transfers[0].LendeeDebited)

	var evt events.DaySettledEvent
	require.NoError(t, json.Unmarshal(pub.last().payload, &evt))
	require.Equal(t, report.Failure, evt.Failure)
	require.Equal(t, []events.MemberBalance{{MemberID: allan.ID, Credits: models.ListingBonus + 20}}, evt.Balances)
}

func TestLendingService_CheckpointFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")
	repo := &mockRepo{}
	repo.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil).Times(2)
	repo.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(boom)

	s := NewLendingService(logger.Nop(), WithRepository(repo))
	allan := register(t, s, "allan")
	list(t, s, allan.ID, 20)

	_, err := s.RegisterMember(ctx, MemberInput{Name: "tina", Email: "t@x", Phone: "2"})
	require.ErrorIs(t, err, boom)
	require.Len(t, s.ListMembers(ctx), 1)

	_, err = s.AdvanceDay(ctx)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, s.Now(ctx))

	// The rolled back System still holds the earlier state.
	owner, err := s.GetMember(ctx, allan.ID)
	require.NoError(t, err)
	require.Equal(t, models.ListingBonus, owner.Credits())
	require.Len(t, s.ListItems(ctx), 1)
}

func TestLendingService_CheckpointCarriesOutbox(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Save", mock.Anything,
		mock.MatchedBy(func(snap models.Snapshot) bool { return len(snap.Members) == 1 }),
		mock.MatchedBy(func(outbox []events.Envelope) bool {
			return len(outbox) == 1 && outbox[0].Topic == events.TopicMemberRegistered
		}),
	).Return(nil).Once()

	s := NewLendingService(logger.Nop(), WithRepository(repo))
	register(t, s, "allan")

	repo.AssertExpectations(t)
}

func TestLendingService_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("without repository", func(t *testing.T) {
		s, _ := newTestService(t)
		ok, err := s.Restore(ctx)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("empty store", func(t *testing.T) {
		repo := &mockRepo{}
		repo.On("Load", mock.Anything).Return(models.Snapshot{}, false, nil)
		s := NewLendingService(logger.Nop(), WithRepository(repo))
		ok, err := s.Restore(ctx)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("checkpoint", func(t *testing.T) {
		member := models.NewMember("jeff", "jeff@x", "4")
		repo := &mockRepo{}
		repo.On("Load", mock.Anything).Return(models.Snapshot{
			Day:     9,
			Members: []models.MemberState{member.State()},
		}, true, nil)

		s := NewLendingService(logger.Nop(), WithRepository(repo))
		ok, err := s.Restore(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 9, s.Now(ctx))
		_, err = s.GetMember(ctx, member.ID)
		require.NoError(t, err)
	})

	t.Run("load error", func(t *testing.T) {
		repo := &mockRepo{}
		repo.On("Load", mock.Anything).Return(models.Snapshot{}, false, errors.New("down"))
		s := NewLendingService(logger.Nop(), WithRepository(repo))
		_, err := s.Restore(ctx)
		require.Error(t, err)
	})
}

func TestLendingService_Seed(t *testing.T) {
	ctx := context.Background()
	src := models.NewSystem()
	allan := models.NewMember("allan", "allan@x", "1")
	require.NoError(t, src.AddMember(allan))
	it, err := models.NewItem(models.ItemParams{Name: "Hammer", OwnerID: allan.ID, CostPerDay: 5})
	require.NoError(t, err)
	require.NoError(t, src.AddItem(it))

	s, pub := newTestService(t)
	require.NoError(t, s.Seed(ctx, src.Snapshot()))
	require.Equal(t, []string{events.TopicMemberRegistered, events.TopicItemListed}, pub.topics())
	require.Len(t, s.ListItems(ctx), 1)

	err = s.Seed(ctx, src.Snapshot())
	require.ErrorIs(t, err, lendingdomain.ErrAlreadyExists)
}

func TestLendingService_Leaderboard(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	allan := register(t, s, "allan")
	tina := register(t, s, "tina")
	register(t, s, "jeff")
	list(t, s, tina.ID, 1)
	list(t, s, tina.ID, 1)
	list(t, s, allan.ID, 1)

	top := s.Leaderboard(ctx, 2)
	require.Len(t, top, 2)
	require.Equal(t, tina.ID, top[0].ID)
	require.Equal(t, allan.ID, top[1].ID)
	require.Len(t, s.Leaderboard(ctx, -1), 3)
}

func TestLendingService_ConcurrentRegistrations(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.RegisterMember(ctx, MemberInput{
				Name:  fmt.Sprintf("m%d", i),
				Email: fmt.Sprintf("m%d@x", i),
				Phone: fmt.Sprintf("%d", i),
			})
			if err != nil {
				t.Errorf("register %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	require.Len(t, s.ListMembers(ctx), n)
}
