package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/lendingclub/services/lending/domain"
)

// Member is a club participant holding a credit balance and a set of owned items.
//
// The balance is unexported: it only changes through AddCredits and
// DeductCredits. Values are copied in and out of the System, so a Member held
// by a caller is a snapshot; route changes back through System.UpdateMember.
type Member struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time

	credits float64
	owned   map[uuid.UUID]struct{}
}

// MemberState is the exported form of a Member used for persistence and seeding.
type MemberState struct {
	ID           uuid.UUID   `json:"id" yaml:"id"`
	Name         string      `json:"name" yaml:"name"`
	Email        string      `json:"email" yaml:"email"`
	Phone        string      `json:"phone" yaml:"phone"`
	Credits      float64     `json:"credits" yaml:"credits"`
	CreatedAt    time.Time   `json:"created_at" yaml:"created_at"`
	OwnedItemIDs []uuid.UUID `json:"owned_item_ids" yaml:"owned_item_ids"`
}

// NewMember constructs a Member with a fresh ID, zero credits and the current UTC time.
func NewMember(name, email, phone string) Member {
	return Member{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Phone:     phone,
		CreatedAt: time.Now().UTC(),
	}
}

// RestoreMember rebuilds a Member from its state, balance included.
func RestoreMember(s MemberState) Member {
	m := Member{
		ID:        s.ID,
		Name:      s.Name,
		Email:     s.Email,
		Phone:     s.Phone,
		CreatedAt: s.CreatedAt,
		credits:   s.Credits,
	}
	for _, id := range s.OwnedItemIDs {
		m.addOwnedItem(id)
	}
	return m
}

// State returns the exported form of m.
func (m Member) State() MemberState {
	return MemberState{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		Phone:        m.Phone,
		Credits:      m.credits,
		CreatedAt:    m.CreatedAt,
		OwnedItemIDs: m.OwnedItemIDs(),
	}
}

// Credits returns the current balance. It may be negative.
func (m Member) Credits() float64 {
	return m.credits
}

// AddCredits increases the balance by amount.
func (m *Member) AddCredits(amount float64) error {
	if !(amount >= 0) {
		return fmt.Errorf("%w: add %v", domain.ErrNegativeAmount, amount)
	}
	m.credits += amount
	return nil
}

// DeductCredits decreases the balance by amount. No floor is enforced.
func (m *Member) DeductCredits(amount float64) error {
	if !(amount >= 0) {
		return fmt.Errorf("%w: deduct %v", domain.ErrNegativeAmount, amount)
	}
	m.credits -= amount
	return nil
}

// IsDuplicateOf is the anti-duplicate predicate used on insert: two members
// clash when ANY of email, phone or ID match. It is not an identity relation;
// identity is the ID field alone.
func (m Member) IsDuplicateOf(other Member) bool {
	return m.Email == other.Email || m.Phone == other.Phone || m.ID == other.ID
}

// OwnsItem reports whether itemID is in the member's owned set.
func (m Member) OwnsItem(itemID uuid.UUID) bool {
	_, ok := m.owned[itemID]
	return ok
}

// OwnedItemIDs returns the owned item IDs in a stable order.
func (m Member) OwnedItemIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m.owned))
	for id := range m.owned {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Clone returns a deep copy of m.
func (m Member) Clone() Member {
	c := m
	c.owned = nil
	for id := range m.owned {
		c.addOwnedItem(id)
	}
	return c
}

func (m *Member) addOwnedItem(itemID uuid.UUID) {
	if m.owned == nil {
		m.owned = make(map[uuid.UUID]struct{})
	}
	m.owned[itemID] = struct{}{}
}

func (m *Member) removeOwnedItem(itemID uuid.UUID) {
	delete(m.owned, itemID)
}
