package models

import (
	"fmt"
	"strings"

	"github.com/ghuser/lendingclub/services/lending/domain"
)

// Category classifies a lendable item.
type Category string

const (
	CategoryTool    Category = "Tool"
	CategoryVehicle Category = "Vehicle"
	CategoryGame    Category = "Game"
	CategoryToy     Category = "Toy"
	CategorySport   Category = "Sport"
	CategoryOther   Category = "Other"
)

// Categories lists every valid category in display order.
func Categories() []Category {
	return []Category{CategoryTool, CategoryVehicle, CategoryGame, CategoryToy, CategorySport, CategoryOther}
}

// ParseCategory matches s against the known categories ignoring case and
// surrounding whitespace.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownCategory, s)
}

// Valid reports whether c is exactly one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, string(c))
	}
	return []byte(c), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Matching is case-insensitive.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
