package models

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/ghuser/lendingclub/services/lending/domain"
)

// Transfer records one item's settlement for one day.
type Transfer struct {
	Day        int       `json:"day"`
	ItemID     uuid.UUID `json:"item_id"`
	ContractID uuid.UUID `json:"contract_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	LendeeID   uuid.UUID `json:"lendee_id"`
	Amount     float64   `json:"amount"`
	// OwnerCredited is false when the owner is no longer a member.
	OwnerCredited bool `json:"owner_credited"`
	LendeeDebited bool `json:"lendee_debited"`
}

// IncrTime closes the current day and advances the clock by one.
//
// Every item is visited exactly once, in ID order. When an item has a
// contract active on the closing day, the owner is credited and the lendee
// debited by the item's CostPerDay. A missing owner is skipped silently. A
// missing lendee or a rejected credit mutation is reported as ErrCannotUpdate,
// but the remaining items are still settled and the day still advances. Only
// the last failure is returned.
func (s *System) IncrTime() ([]Transfer, error) {
	closing := s.day

	ids := make([]uuid.UUID, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	transfers := make([]Transfer, 0)
	var last error
	for _, id := range ids {
		it := s.items[id]
		c, ok := it.GetActiveContract(closing)
		if !ok {
			continue
		}
		t, err := s.settle(it, c, closing)
		if t.OwnerCredited || t.LendeeDebited {
			transfers = append(transfers, t)
		}
		if err != nil {
			last = err
		}
	}

	s.day++
	return transfers, last
}

func (s *System) settle(it Item, c Contract, day int) (Transfer, error) {
	t := Transfer{
		Day:        day,
		ItemID:     it.ID,
		ContractID: c.ID,
		OwnerID:    c.OwnerID,
		LendeeID:   c.LendeeID,
		Amount:     it.CostPerDay,
	}

	var ownerErr error
	if owner, ok := s.members[c.OwnerID]; ok {
		if err := owner.AddCredits(it.CostPerDay); err != nil {
			ownerErr = err
		} else {
			s.members[owner.ID] = owner
			t.OwnerCredited = true
		}
	}

	var lendeeErr error
	lendee, ok := s.members[c.LendeeID]
	switch {
	case !ok:
		lendeeErr = fmt.Errorf("lendee %s: %w", c.LendeeID, domain.ErrDoesntExist)
	default:
		if err := lendee.DeductCredits(it.CostPerDay); err != nil {
			lendeeErr = err
		} else {
			s.members[lendee.ID] = lendee
			t.LendeeDebited = true
		}
	}

	switch {
	case lendeeErr != nil:
		return t, fmt.Errorf("%w: settle item %s on day %d: %w", domain.ErrCannotUpdate, it.ID, day, lendeeErr)
	case ownerErr != nil:
		return t, fmt.Errorf("%w: settle item %s on day %d: %w", domain.ErrCannotUpdate, it.ID, day, ownerErr)
	}
	return t, nil
}
