package models

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/ghuser/lendingclub/services/lending/domain"
)

// ListingBonus is credited to an item's owner once per successful AddItem.
const ListingBonus = 100.0

// System is the aggregate root of the lending club. It owns the canonical
// copy of every member and item plus the day clock.
//
// Values go in and come out as copies; nothing handed to a caller aliases
// internal state. Mutators either succeed or leave the System untouched.
//
// System is not safe for concurrent use. Callers serving concurrent requests
// must hold one exclusive lock around it.
type System struct {
	members map[uuid.UUID]Member
	items   map[uuid.UUID]Item
	day     int
}

// NewSystem returns an empty System on day 0.
func NewSystem() *System {
	return &System{
		members: make(map[uuid.UUID]Member),
		items:   make(map[uuid.UUID]Item),
	}
}

// Now returns the current day.
func (s *System) Now() int {
	return s.day
}

// AddMember stores m unless an existing member clashes with it under
// Member.IsDuplicateOf.
func (s *System) AddMember(m Member) error {
	if s.ExistsMember(m) {
		return fmt.Errorf("member %s: %w", m.ID, domain.ErrAlreadyExists)
	}
	s.members[m.ID] = m.Clone()
	return nil
}

// RemoveMember deletes the member with the given ID. Items owned by the
// member and contracts naming it are left in place.
func (s *System) RemoveMember(id uuid.UUID) error {
	if _, ok := s.members[id]; !ok {
		return fmt.Errorf("member %s: %w", id, domain.ErrDoesntExist)
	}
	delete(s.members, id)
	return nil
}

// UpdateMember replaces the member stored under id with updated. The key is
// authoritative: updated.ID is reset to id.
func (s *System) UpdateMember(id uuid.UUID, updated Member) error {
	if _, ok := s.members[id]; !ok {
		return fmt.Errorf("member %s: %w", id, domain.ErrDoesntExist)
	}
	updated.ID = id
	for otherID, other := range s.members {
		if otherID != id && other.IsDuplicateOf(updated) {
			return fmt.Errorf("member %s clashes with %s: %w", id, otherID, domain.ErrAlreadyExists)
		}
	}
	s.members[id] = updated.Clone()
	return nil
}

// ExistsMember reports whether any stored member clashes with m under the
// dedup predicate.
func (s *System) ExistsMember(m Member) bool {
	for _, stored := range s.members {
		if stored.IsDuplicateOf(m) {
			return true
		}
	}
	return false
}

// GetMember returns a copy of the member with the given ID.
func (s *System) GetMember(id uuid.UUID) (Member, error) {
	m, ok := s.members[id]
	if !ok {
		return Member{}, fmt.Errorf("member %s: %w", id, domain.ErrDoesntExist)
	}
	return m.Clone(), nil
}

// GetMembers returns copies of all members ordered by creation time.
func (s *System) GetMembers() []Member {
	out := make([]Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return createdBefore(out[i].CreatedAt.UnixNano(), out[j].CreatedAt.UnixNano(), out[i].ID, out[j].ID)
	})
	return out
}

// AddItem stores i and credits its owner with ListingBonus. The owner must
// be a stored member.
func (s *System) AddItem(i Item) error {
	if _, ok := s.items[i.ID]; ok {
		return fmt.Errorf("item %s: %w", i.ID, domain.ErrAlreadyExists)
	}
	owner, ok := s.members[i.OwnerID]
	if !ok {
		return fmt.Errorf("%w: owner %s of item %s: %w", domain.ErrCannotUpdate, i.OwnerID, i.ID, domain.ErrDoesntExist)
	}
	owner = owner.Clone()
	if err := owner.AddCredits(ListingBonus); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCannotUpdate, err)
	}
	owner.addOwnedItem(i.ID)
	if err := s.UpdateMember(owner.ID, owner); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCannotUpdate, err)
	}
	s.items[i.ID] = i.Clone()
	return nil
}

// RemoveItem deletes the item with the given ID and drops it from its
// owner's owned set when the owner is still stored.
func (s *System) RemoveItem(id uuid.UUID) error {
	it, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, domain.ErrCannotDelete)
	}
	if owner, ok := s.members[it.OwnerID]; ok {
		owner.removeOwnedItem(id)
		s.members[owner.ID] = owner
	}
	delete(s.items, id)
	return nil
}

// UpdateItem replaces the stored item with the same ID. Moving the item to
// another owner requires that owner to be stored; owned sets follow the move.
func (s *System) UpdateItem(i Item) error {
	stored, ok := s.items[i.ID]
	if !ok {
		return fmt.Errorf("item %s: %w", i.ID, domain.ErrCannotUpdate)
	}
	if stored.OwnerID != i.OwnerID {
		newOwner, ok := s.members[i.OwnerID]
		if !ok {
			return fmt.Errorf("%w: new owner %s: %w", domain.ErrCannotUpdate, i.OwnerID, domain.ErrDoesntExist)
		}
		if oldOwner, ok := s.members[stored.OwnerID]; ok {
			oldOwner.removeOwnedItem(i.ID)
			s.members[oldOwner.ID] = oldOwner
		}
		newOwner.addOwnedItem(i.ID)
		s.members[newOwner.ID] = newOwner
	}
	s.items[i.ID] = i.Clone()
	return nil
}

// GetItem returns a copy of the item with the given ID.
func (s *System) GetItem(id uuid.UUID) (Item, error) {
	it, ok := s.items[id]
	if !ok {
		return Item{}, fmt.Errorf("item %s: %w", id, domain.ErrDoesntExist)
	}
	return it.Clone(), nil
}

// GetItems returns copies of all items ordered by creation time.
func (s *System) GetItems() []Item {
	return s.filterItems(func(Item) bool { return true })
}

// GetItemsForMember returns copies of the items whose owner is memberID.
func (s *System) GetItemsForMember(memberID uuid.UUID) []Item {
	return s.filterItems(func(it Item) bool { return it.OwnerID == memberID })
}

// CountItemsForMember counts the items whose owner is memberID.
func (s *System) CountItemsForMember(memberID uuid.UUID) int {
	n := 0
	for _, it := range s.items {
		if it.OwnerID == memberID {
			n++
		}
	}
	return n
}

// GetItemForContract returns the item whose history holds contractID.
func (s *System) GetItemForContract(contractID uuid.UUID) (Item, bool) {
	for _, it := range s.items {
		if it.HasContract(contractID) {
			return it.Clone(), true
		}
	}
	return Item{}, false
}

// GetContract finds a contract by ID across all item histories.
func (s *System) GetContract(contractID uuid.UUID) (Contract, error) {
	for _, it := range s.items {
		if c, ok := it.Contract(contractID); ok {
			return c, nil
		}
	}
	return Contract{}, fmt.Errorf("contract %s: %w", contractID, domain.ErrDoesntExist)
}

// AddContract attaches c to the stored item itemID, checked against the
// current day. The lendee must be stored and c.OwnerID must be the item's
// owner. Item-level rejections come back wrapped in ErrCannotUpdate.
func (s *System) AddContract(itemID uuid.UUID, c Contract) error {
	it, ok := s.items[itemID]
	if !ok {
		return fmt.Errorf("item %s: %w", itemID, domain.ErrDoesntExist)
	}
	if _, ok := s.members[c.LendeeID]; !ok {
		return fmt.Errorf("lendee %s: %w", c.LendeeID, domain.ErrDoesntExist)
	}
	if c.OwnerID != it.OwnerID {
		return fmt.Errorf("%w: %w: contract owner %s does not own item %s",
			domain.ErrCannotUpdate, domain.ErrInvalidContract, c.OwnerID, itemID)
	}
	it = it.Clone()
	if err := it.AddContract(c, s.day); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCannotUpdate, err)
	}
	s.items[itemID] = it
	return nil
}

func (s *System) filterItems(keep func(Item) bool) []Item {
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		if keep(it) {
			out = append(out, it.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return createdBefore(out[i].CreatedAt.UnixNano(), out[j].CreatedAt.UnixNano(), out[i].ID, out[j].ID)
	})
	return out
}

func createdBefore(a, b int64, idA, idB uuid.UUID) bool {
	if a != b {
		return a < b
	}
	return idA.String() < idB.String()
}
