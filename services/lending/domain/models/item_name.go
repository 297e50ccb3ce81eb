package models

import (
	"fmt"
	"unicode/utf8"
)

// ItemName is a value object for the display name of a lendable item.
// Length is counted in runes: 1 <= len <= 120.
type ItemName string

const (
	minItemNameLength = 1
	maxItemNameLength = 120
)

// NewItemName returns a valid ItemName or an error describing the violated bound.
func NewItemName(s string) (ItemName, error) {
	n := utf8.RuneCountInString(s)
	if n < minItemNameLength {
		return "", fmt.Errorf("item name must be at least %d character", minItemNameLength)
	}
	if n > maxItemNameLength {
		return "", fmt.Errorf("item name must not exceed %d characters", maxItemNameLength)
	}
	return ItemName(s), nil
}

func (n ItemName) String() string {
	return string(n)
}
