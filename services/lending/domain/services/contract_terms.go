package services

import (
	"fmt"

	"github.com/ghuser/lendingclub/services/lending/domain/models"
)

// QuoteTotalPrice is the default contract price: the item's daily cost for
// every day of the window.
func QuoteTotalPrice(costPerDay float64, durationDays int) float64 {
	if durationDays < 1 {
		return 0
	}
	return costPerDay * float64(durationDays)
}

// ValidateLending checks the terms of a new contract against the item being
// lent and the current day. Structural checks (duration, price) live in
// models.NewContract.
func ValidateLending(item models.Item, terms models.ContractTerms, currentDay int) error {
	if terms.OwnerID != item.OwnerID {
		return fmt.Errorf("owner %s does not own item %s", terms.OwnerID, item.ID)
	}
	if terms.LendeeID == item.OwnerID {
		return fmt.Errorf("owner cannot borrow their own item")
	}
	if terms.StartDay < currentDay {
		return fmt.Errorf("start day %d is in the past (today is day %d)", terms.StartDay, currentDay)
	}
	return nil
}
