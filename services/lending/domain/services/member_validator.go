package services

import (
	"errors"
	"strings"

	"github.com/ghuser/lendingclub/services/lending/domain/models"
)

// ValidateMember checks that the contact fields used for deduplication are
// present. Formats are not checked; the club accepts whatever members type.
func ValidateMember(m models.Member) error {
	var errs []error
	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if strings.TrimSpace(m.Email) == "" {
		errs = append(errs, errors.New("email must not be empty"))
	}
	if strings.TrimSpace(m.Phone) == "" {
		errs = append(errs, errors.New("phone must not be empty"))
	}
	return errors.Join(errs...)
}
