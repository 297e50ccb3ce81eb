package models

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ghuser/lendingclub/services/lending/domain"
)

// Contract binds an owner and a lendee to a lending window of whole days.
// The window is half-open: [StartDay, StartDay+DurationDays).
//
// Contracts are values; settlement reads them and never changes them.
type Contract struct {
	ID           uuid.UUID `json:"id" yaml:"id"`
	OwnerID      uuid.UUID `json:"owner_id" yaml:"owner_id"`
	LendeeID     uuid.UUID `json:"lendee_id" yaml:"lendee_id"`
	StartDay     int       `json:"start_day" yaml:"start_day"`
	DurationDays int       `json:"duration_days" yaml:"duration_days"`
	TotalPrice   float64   `json:"total_price" yaml:"total_price"`
}

// ContractTerms are the inputs to NewContract.
type ContractTerms struct {
	OwnerID      uuid.UUID
	LendeeID     uuid.UUID
	StartDay     int
	DurationDays int
	TotalPrice   float64
}

// NewContract validates terms and returns a Contract with a fresh ID.
func NewContract(t ContractTerms) (Contract, error) {
	if t.DurationDays < 1 {
		return Contract{}, fmt.Errorf("%w: duration must be at least 1 day, got %d", domain.ErrInvalidContract, t.DurationDays)
	}
	if t.StartDay < 0 {
		return Contract{}, fmt.Errorf("%w: start day must not be negative, got %d", domain.ErrInvalidContract, t.StartDay)
	}
	if !(t.TotalPrice >= 0) {
		return Contract{}, fmt.Errorf("%w: total price must not be negative, got %v", domain.ErrInvalidContract, t.TotalPrice)
	}
	return Contract{
		ID:           uuid.New(),
		OwnerID:      t.OwnerID,
		LendeeID:     t.LendeeID,
		StartDay:     t.StartDay,
		DurationDays: t.DurationDays,
		TotalPrice:   t.TotalPrice,
	}, nil
}

// EndDay is the first day the contract is no longer active.
func (c Contract) EndDay() int {
	return c.StartDay + c.DurationDays
}

// IsActiveOn reports whether day falls inside [StartDay, EndDay).
func (c Contract) IsActiveOn(day int) bool {
	return c.StartDay <= day && day < c.EndDay()
}

// IsExpiredOn reports whether the window closed before or on day.
func (c Contract) IsExpiredOn(day int) bool {
	return day >= c.EndDay()
}

// Overlaps reports whether the two windows share at least one day.
func (c Contract) Overlaps(other Contract) bool {
	return c.StartDay < other.EndDay() && other.StartDay < c.EndDay()
}
