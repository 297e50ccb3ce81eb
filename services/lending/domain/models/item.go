package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/lendingclub/services/lending/domain"
)

// Item is a lendable object owned by exactly one member. It keeps every
// contract ever signed for it in history; the latest accepted one is also
// held as the active contract.
type Item struct {
	ID          uuid.UUID
	Category    Category
	Name        ItemName
	Description string
	OwnerID     uuid.UUID
	CostPerDay  float64
	CreatedAt   time.Time

	active  *Contract
	history []Contract
}

// ItemParams are the caller-provided fields of a new Item.
type ItemParams struct {
	Name        string
	Description string
	Category    Category
	OwnerID     uuid.UUID
	CostPerDay  float64
}

// ItemState is the exported form of an Item used for persistence and seeding.
type ItemState struct {
	ID               uuid.UUID  `json:"id" yaml:"id"`
	Category         Category   `json:"category" yaml:"category"`
	Name             string     `json:"name" yaml:"name"`
	Description      string     `json:"description" yaml:"description"`
	OwnerID          uuid.UUID  `json:"owner_id" yaml:"owner_id"`
	CostPerDay       float64    `json:"cost_per_day" yaml:"cost_per_day"`
	CreatedAt        time.Time  `json:"created_at" yaml:"created_at"`
	ActiveContractID *uuid.UUID `json:"active_contract_id,omitempty" yaml:"active_contract_id,omitempty"`
	History          []Contract `json:"history" yaml:"history"`
}

// NewItem constructs an Item with a fresh ID and the current UTC time.
// An empty category defaults to CategoryOther.
func NewItem(p ItemParams) (Item, error) {
	name, category, err := checkItemFields(p.Name, p.Category, p.CostPerDay)
	if err != nil {
		return Item{}, err
	}
	return Item{
		ID:          uuid.New(),
		Category:    category,
		Name:        name,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		CostPerDay:  p.CostPerDay,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// checkItemFields applies the listing rules shared by new and restored items.
// An empty category defaults to CategoryOther.
func checkItemFields(rawName string, category Category, costPerDay float64) (ItemName, Category, error) {
	name, err := NewItemName(rawName)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", domain.ErrInvalidItem, err)
	}
	if category == "" {
		category = CategoryOther
	}
	if !category.Valid() {
		return "", "", fmt.Errorf("%w: %w: %q", domain.ErrInvalidItem, domain.ErrUnknownCategory, string(category))
	}
	if !(costPerDay >= 0) {
		return "", "", fmt.Errorf("%w: cost per day must not be negative, got %v", domain.ErrInvalidItem, costPerDay)
	}
	return name, category, nil
}

// RestoreItem rebuilds an Item from its state. Name, category and cost go
// through the same rules as NewItem; the history is replayed through the
// overlap guard, and the active contract must be part of it.
func RestoreItem(s ItemState) (Item, error) {
	name, category, err := checkItemFields(s.Name, s.Category, s.CostPerDay)
	if err != nil {
		return Item{}, fmt.Errorf("restore item %s: %w", s.ID, err)
	}
	it := Item{
		ID:          s.ID,
		Category:    category,
		Name:        name,
		Description: s.Description,
		OwnerID:     s.OwnerID,
		CostPerDay:  s.CostPerDay,
		CreatedAt:   s.CreatedAt,
	}
	for _, c := range s.History {
		if err := it.checkOverlap(c); err != nil {
			return Item{}, fmt.Errorf("restore item %s: %w", s.ID, err)
		}
		it.history = append(it.history, c)
	}
	if s.ActiveContractID != nil {
		c, ok := it.Contract(*s.ActiveContractID)
		if !ok {
			return Item{}, fmt.Errorf("restore item %s: active contract %s: %w", s.ID, *s.ActiveContractID, domain.ErrDoesntExist)
		}
		it.active = &c
	}
	return it, nil
}

// State returns the exported form of i.
func (i Item) State() ItemState {
	s := ItemState{
		ID:          i.ID,
		Category:    i.Category,
		Name:        i.Name.String(),
		Description: i.Description,
		OwnerID:     i.OwnerID,
		CostPerDay:  i.CostPerDay,
		CreatedAt:   i.CreatedAt,
		History:     i.History(),
	}
	if i.active != nil {
		id := i.active.ID
		s.ActiveContractID = &id
	}
	return s
}

// AddContract accepts c when the current active contract has expired by
// currentDay and c does not overlap any contract in history.
func (i *Item) AddContract(c Contract, currentDay int) error {
	if i.active != nil && !i.active.IsExpiredOn(currentDay) {
		return fmt.Errorf("%w: contract %s runs until day %d", domain.ErrAlreadyUnderContract, i.active.ID, i.active.EndDay())
	}
	if err := i.checkOverlap(c); err != nil {
		return err
	}
	i.history = append(i.history, c)
	i.active = &c
	return nil
}

// GetActiveContract returns the contract from history whose window contains day.
func (i Item) GetActiveContract(day int) (Contract, bool) {
	for _, c := range i.history {
		if c.IsActiveOn(day) {
			return c, true
		}
	}
	return Contract{}, false
}

// ActiveContract returns the most recently accepted contract, if any.
func (i Item) ActiveContract() (Contract, bool) {
	if i.active == nil {
		return Contract{}, false
	}
	return *i.active, true
}

// History returns a copy of all contracts in the order they were accepted.
func (i Item) History() []Contract {
	out := make([]Contract, len(i.history))
	copy(out, i.history)
	return out
}

// Contract looks up a contract in history by ID.
func (i Item) Contract(id uuid.UUID) (Contract, bool) {
	for _, c := range i.history {
		if c.ID == id {
			return c, true
		}
	}
	return Contract{}, false
}

// HasContract reports whether history contains a contract with the given ID.
func (i Item) HasContract(id uuid.UUID) bool {
	_, ok := i.Contract(id)
	return ok
}

// Clone returns a copy of i that shares no memory with it.
func (i Item) Clone() Item {
	c := i
	c.history = i.History()
	if i.active != nil {
		a := *i.active
		c.active = &a
	}
	return c
}

func (i Item) checkOverlap(c Contract) error {
	for _, h := range i.history {
		if h.ID == c.ID || h.Overlaps(c) {
			return fmt.Errorf("%w: days [%d,%d) clash with contract %s [%d,%d)",
				domain.ErrContractOverlap, c.StartDay, c.EndDay(), h.ID, h.StartDay, h.EndDay())
		}
	}
	return nil
}
