package models

import (
	"fmt"

	"github.com/ghuser/lendingclub/services/lending/domain"
)

// Snapshot is the complete exported state of a System.
type Snapshot struct {
	Day     int           `json:"day" yaml:"day"`
	Members []MemberState `json:"members" yaml:"members"`
	Items   []ItemState   `json:"items" yaml:"items"`
}

// Snapshot exports the current state, members and items in creation order.
func (s *System) Snapshot() Snapshot {
	members := s.GetMembers()
	items := s.GetItems()
	snap := Snapshot{
		Day:     s.day,
		Members: make([]MemberState, len(members)),
		Items:   make([]ItemState, len(items)),
	}
	for i, m := range members {
		snap.Members[i] = m.State()
	}
	for i, it := range items {
		snap.Items[i] = it.State()
	}
	return snap
}

// RestoreSystem rebuilds a System from snap without replaying bonuses or
// settlements. A negative day, members clashing under Member.IsDuplicateOf,
// duplicate item IDs and items breaking the listing rules are rejected.
// Orphaned items are kept.
func RestoreSystem(snap Snapshot) (*System, error) {
	if snap.Day < 0 {
		return nil, fmt.Errorf("restore system: negative day %d", snap.Day)
	}
	s := NewSystem()
	s.day = snap.Day
	for _, ms := range snap.Members {
		m := RestoreMember(ms)
		if err := s.AddMember(m); err != nil {
			return nil, fmt.Errorf("restore member %s: %w", ms.ID, err)
		}
	}
	for _, is := range snap.Items {
		if _, ok := s.items[is.ID]; ok {
			return nil, fmt.Errorf("restore item %s: %w", is.ID, domain.ErrAlreadyExists)
		}
		it, err := RestoreItem(is)
		if err != nil {
			return nil, err
		}
		s.items[it.ID] = it
		if owner, ok := s.members[it.OwnerID]; ok {
			owner.addOwnedItem(it.ID)
			s.members[owner.ID] = owner
		}
	}
	return s, nil
}
