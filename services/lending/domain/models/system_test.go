package models

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ghuser/lendingclub/services/lending/domain"
)

func seedMember(t *testing.T, s *System, name, email, phone string) Member {
	t.Helper()
	m := NewMember(name, email, phone)
	if err := s.AddMember(m); err != nil {
		t.Fatalf("AddMember(%s): %v", name, err)
	}
	return m
}

func seedItem(t *testing.T, s *System, owner uuid.UUID, cost float64) Item {
	t.Helper()
	it := mustItem(t, owner, cost)
	if err := s.AddItem(it); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	return it
}

func TestSystem_AddMember(t *testing.T) {
	s := NewSystem()
	allan := seedMember(t, s, "Allan", "allan@enigma.com", "0123456789")

	t.Run("same email rejected", func(t *testing.T) {
		err := s.AddMember(NewMember("Other", "allan@enigma.com", "5555555555"))
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("same phone rejected", func(t *testing.T) {
		err := s.AddMember(NewMember("Other", "other@enigma.com", "0123456789"))
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("same member twice rejected", func(t *testing.T) {
		if err := s.AddMember(allan); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	if n := len(s.GetMembers()); n != 1 {
		t.Fatalf("rejected inserts must not change the store, have %d members", n)
	}
}

func TestSystem_RemoveMember(t *testing.T) {
	s := NewSystem()
	m := seedMember(t, s, "Tina", "tina@somethingelse.com", "01234543210")

	if err := s.RemoveMember(m.ID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if s.ExistsMember(m) {
		t.Fatal("member still exists after removal")
	}
	if len(s.GetMembers()) != 0 {
		t.Fatal("member still listed after removal")
	}

	t.Run("missing member", func(t *testing.T) {
		seedMember(t, s, "Jeff", "jeff@bezos.com", "0987654321")
		err := s.RemoveMember(uuid.New())
		if !errors.Is(err, domain.ErrDoesntExist) {
			t.Fatalf("expected ErrDoesntExist, got %v", err)
		}
		if len(s.GetMembers()) != 1 {
			t.Fatal("store size changed")
		}
	})
}

func TestSystem_UpdateMember(t *testing.T) {
	s := NewSystem()
	allan := seedMember(t, s, "Allan", "allan@enigma.com", "0123456789")
	seedMember(t, s, "Turing", "turing@enigma.com", "9876567890")

	t.Run("replaces stored member and keeps the key", func(t *testing.T) {
		updated := allan.Clone()
		updated.ID = uuid.New()
		updated.Name = "Allan Turing"
		if err := s.UpdateMember(allan.ID, updated); err != nil {
			t.Fatalf("UpdateMember: %v", err)
		}
		got, err := s.GetMember(allan.ID)
		if err != nil {
			t.Fatalf("GetMember: %v", err)
		}
		if got.Name != "Allan Turing" || got.ID != allan.ID {
			t.Fatalf("unexpected member: %+v", got)
		}
	})

	t.Run("clash with another member rejected", func(t *testing.T) {
		updated := allan.Clone()
		updated.Email = "turing@enigma.com"
		if err := s.UpdateMember(allan.ID, updated); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("missing member", func(t *testing.T) {
		if err := s.UpdateMember(uuid.New(), allan); !errors.Is(err, domain.ErrDoesntExist) {
			t.Fatalf("expected ErrDoesntExist, got %v", err)
		}
	})
}

func TestSystem_GetMemberReturnsCopy(t *testing.T) {
	s := NewSystem()
	m := seedMember(t, s, "Jeff", "jeff@bezos.com", "0987654321")

	got, _ := s.GetMember(m.ID)
	_ = got.AddCredits(1000)

	again, _ := s.GetMember(m.ID)
	if again.Credits() != 0 {
		t.Fatalf("caller mutation leaked into the store: %v", again.Credits())
	}
}

func TestSystem_AddItem(t *testing.T) {
	s := NewSystem()
	owner := seedMember(t, s, "Allan", "allan@enigma.com", "0123456789")

	it := seedItem(t, s, owner.ID, 20)

	got, _ := s.GetMember(owner.ID)
	if got.Credits() != ListingBonus {
		t.Fatalf("expected listing bonus %v, got %v", ListingBonus, got.Credits())
	}
	if !got.OwnsItem(it.ID) {
		t.Fatal("item not added to owned set")
	}

	t.Run("same item twice rejected without a second bonus", func(t *testing.T) {
		if err := s.AddItem(it); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
		got, _ := s.GetMember(owner.ID)
		if got.Credits() != ListingBonus {
			t.Fatalf("bonus paid twice: %v", got.Credits())
		}
	})

	t.Run("missing owner", func(t *testing.T) {
		orphan := mustItem(t, uuid.New(), 5)
		err := s.AddItem(orphan)
		if !errors.Is(err, domain.ErrCannotUpdate) || !errors.Is(err, domain.ErrDoesntExist) {
			t.Fatalf("expected ErrCannotUpdate wrapping ErrDoesntExist, got %v", err)
		}
		if len(s.GetItems()) != 1 {
			t.Fatal("store size changed")
		}
	})
}

func TestSystem_RemoveItem(t *testing.T) {
	s := NewSystem()
	owner := seedMember(t, s, "Allan", "allan@enigma.com", "0123456789")
	it := seedItem(t, s, owner.ID, 20)

	if err := s.RemoveItem(it.ID); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if _, err := s.GetItem(it.ID); !errors.Is(err, domain.ErrDoesntExist) {
		t.Fatalf("expected ErrDoesntExist, got %v", err)
	}
	got, _ := s.GetMember(owner.ID)
	if got.OwnsItem(it.ID) {
		t.Fatal("item still in owned set")
	}
	if got.Credits() != ListingBonus {
		t.Fatalf("removal must not claw back the bonus, got %v", got.Credits())
	}

	t.Run("missing item", func(t *testing.T) {
		seedItem(t, s, owner.ID, 5)
		if err := s.RemoveItem(uuid.New()); !errors.Is(err, domain.ErrCannotDelete) {
			t.Fatalf("expected ErrCannotDelete, got %v", err)
		}
		if len(s.GetItems()) != 1 {
			t.Fatal("store size changed")
		}
	})
}

func TestSystem_UpdateItem(t *testing.T) {
	s := NewSystem()
	allan := seedMember(t, s, "Allan", "allan@enigma.com", "0123456789")
	tina := seedMember(t, s, "Tina", "tina@somethingelse.com", "01234543210")
	it := seedItem(t, s, allan.ID, 20)

	t.Run("change price", func(t *testing.T) {
		updated := it.Clone()
		updated.CostPerDay = 25
		if err := s.UpdateItem(updated); err != nil {
			t.Fatalf("UpdateItem: %v", err)
		}
		got, _ := s.GetItem(it.ID)
		if got.CostPerDay != 25 {
			t.Fatalf("expected 25, got %v", got.CostPerDay)
		}
	})

	t.Run("move to another owner", func(t *testing.T) {
		updated, _ := s.GetItem(it.ID)
		updated.OwnerID = tina.ID
		if err := s.UpdateItem(updated); err != nil {
			t.Fatalf("UpdateItem: %v", err)
		}
		a, _ := s.GetMember(allan.ID)
		tn, _ := s.GetMember(tina.ID)
		if a.OwnsItem(it.ID) || !tn.OwnsItem(it.ID) {
			t.Fatal("owned sets did not follow the move")
		}
		if s.CountItemsForMember(tina.ID) != 1 || s.CountItemsForMember(allan.ID) != 0 {
			t.Fatal("item counts did not follow the move")
		}
	})

	t.Run("move to missing owner rejected", func(t *testing.T) {
		updated, _ := s.GetItem(it.ID)
		updated.OwnerID = uuid.New()
		err := s.UpdateItem(updated)
		if !errors.Is(err, domain.ErrCannotUpdate) {
			t.Fatalf("expected ErrCannotUpdate, got %v", err)
		}
		got, _ := s.GetItem(it.ID)
		if got.OwnerID != tina.ID {
			t.Fatal("failed update changed the item")
		}
	})

	t.Run("missing item", func(t *testing.T) {
		if err := s.UpdateItem(mustItem(t, allan.ID, 1)); !errors.Is(err, domain.ErrCannotUpdate) {
			t.Fatalf("expected ErrCannotUpdate, got %v", err)
		}
	})
}

func TestSystem_ItemQueries(t *testing.T) {
	s := NewSystem()
	allan := seedMember(t, s, "Allan", "allan@enigma.com", "0123456789")
	tina := seedMember(t, s, "Tina", "tina@somethingelse.com", "01234543210")
	a1 := seedItem(t, s, allan.ID, 10)
	a2 := seedItem(t, s, allan.ID, 20)
	seedItem(t, s, tina.ID, 30)

	if n := len(s.GetItems()); n != 3 {
		t.Fatalf("expected 3 items, got %d", n)
	}
	if n := s.CountItemsForMember(allan.ID); n != 2 {
		t.Fatalf("expected 2 items for allan, got %d", n)
	}
	if n := s.CountItemsForMember(uuid.New()); n != 0 {
		t.Fatalf("expected 0 items for unknown member, got %d", n)
	}

	got := s.GetItemsForMember(allan.ID)
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	ids := map[uuid.UUID]bool{got[0].ID: true, got[1].ID: true}
	if !ids[a1.ID] || !ids[a2.ID] {
		t.Fatal("GetItemsForMember returned the wrong items")
	}
}

func TestSystem_AddContract(t *testing.T) {
	s := NewSystem()
	allan := seedMember(t, s, "Allan", "allan@enigma.com", "0123456789")
	tina := seedMember(t, s, "Tina", "tina@somethingelse.com", "01234543210")
	it := seedItem(t, s, allan.ID, 20)

	c := mustContract(t, allan.ID, tina.ID, 0, 5)
	if err := s.AddContract(it.ID, c); err != nil {
		t.Fatalf("AddContract: %v", err)
	}

	t.Run("contract lookups", func(t *testing.T) {
		got, err := s.GetContract(c.ID)
		if err != nil || got.ID != c.ID {
			t.Fatalf("GetContract: %v", err)
		}
		owner, ok := s.GetItemForContract(c.ID)
		if !ok || owner.ID != it.ID {
			t.Fatal("GetItemForContract did not find the item")
		}
		if _, err := s.GetContract(uuid.New()); !errors.Is(err, domain.ErrDoesntExist) {
			t.Fatalf("expected ErrDoesntExist, got %v", err)
		}
		if _, ok := s.GetItemForContract(uuid.New()); ok {
			t.Fatal("unknown contract must not resolve to an item")
		}
	})

	t.Run("item already under contract", func(t *testing.T) {
		err := s.AddContract(it.ID, mustContract(t, allan.ID, tina.ID, 10, 1))
		if !errors.Is(err, domain.ErrCannotUpdate) || !errors.Is(err, domain.ErrAlreadyUnderContract) {
			t.Fatalf("expected ErrCannotUpdate wrapping ErrAlreadyUnderContract, got %v", err)
		}
	})

	t.Run("missing item", func(t *testing.T) {
		err := s.AddContract(uuid.New(), mustContract(t, allan.ID, tina.ID, 0, 1))
		if !errors.Is(err, domain.ErrDoesntExist) {
			t.Fatalf("expected ErrDoesntExist, got %v", err)
		}
	})

	t.Run("missing lendee", func(t *testing.T) {
		other := seedItem(t, s, allan.ID, 5)
		err := s.AddContract(other.ID, mustContract(t, allan.ID, uuid.New(), 0, 1))
		if !errors.Is(err, domain.ErrDoesntExist) {
			t.Fatalf("expected ErrDoesntExist, got %v", err)
		}
	})

	t.Run("owner mismatch", func(t *testing.T) {
		other := seedItem(t, s, allan.ID, 5)
		err := s.AddContract(other.ID, mustContract(t, tina.ID, tina.ID, 0, 1))
		if !errors.Is(err, domain.ErrCannotUpdate) || !errors.Is(err, domain.ErrInvalidContract) {
			t.Fatalf("expected ErrCannotUpdate wrapping ErrInvalidContract, got %v", err)
		}
		got, _ := s.GetItem(other.ID)
		if len(got.History()) != 0 {
			t.Fatal("rejected contract reached history")
		}
	})
}
