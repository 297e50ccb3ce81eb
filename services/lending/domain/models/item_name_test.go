package models

import (
	"strings"
	"testing"
)

func TestNewItemName(t *testing.T) {
	t.Run("valid single character", func(t *testing.T) {
		n, err := NewItemName("a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n.String() != "a" {
			t.Fatalf("expected %q, got %q", "a", n.String())
		}
	})

	t.Run("valid at the upper bound", func(t *testing.T) {
		s := strings.Repeat("x", maxItemNameLength)
		if _, err := NewItemName(s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("multibyte runes counted once", func(t *testing.T) {
		s := strings.Repeat("ü", maxItemNameLength)
		if _, err := NewItemName(s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("empty string returns error", func(t *testing.T) {
		if _, err := NewItemName(""); err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("one over the bound returns error", func(t *testing.T) {
		if _, err := NewItemName(strings.Repeat("x", maxItemNameLength+1)); err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}
