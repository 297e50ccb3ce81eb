package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/lendingclub/services/lending/domain/models"
)

// Watermill topics published by the lending bounded context.
const (
	TopicMemberRegistered = "lending.member.registered"
	TopicMemberUpdated    = "lending.member.updated"
	TopicMemberRemoved    = "lending.member.removed"
	TopicItemListed       = "lending.item.listed"
	TopicItemUpdated      = "lending.item.updated"
	TopicItemRemoved      = "lending.item.removed"
	TopicContractSigned   = "lending.contract.signed"
	TopicDaySettled       = "lending.day.settled"
)

// Topics lists every lending topic, in the order consumers should subscribe.
func Topics() []string {
	return []string{
		TopicMemberRegistered,
		TopicMemberUpdated,
		TopicMemberRemoved,
		TopicItemListed,
		TopicItemUpdated,
		TopicItemRemoved,
		TopicContractSigned,
		TopicDaySettled,
	}
}

// Version is the current schema version of every payload below.
const Version = 1

// Envelope pairs a payload with its topic so callers can hand a batch of
// events to a publisher or an outbox in one call.
type Envelope struct {
	Topic   string
	EventID uuid.UUID
	Payload any
}

// Event is satisfied by every payload in this package through the embedded Header.
type Event interface {
	EventHeader() Header
}

// NewEnvelope wraps e for topic, taking the event ID from its header.
func NewEnvelope(topic string, e Event) Envelope {
	return Envelope{Topic: topic, EventID: e.EventHeader().EventID, Payload: e}
}

// Header carries the fields common to all lending payloads.
type Header struct {
	EventID    uuid.UUID `json:"event_id"` // Unique publish-time identifier for deduplication
	Version    int       `json:"version"`  // Schema version; increment on breaking changes
	OccurredAt time.Time `json:"occurred_at"`
}

// NewHeader stamps a fresh header at the current UTC time.
func NewHeader() Header {
	return Header{EventID: uuid.New(), Version: Version, OccurredAt: time.Now().UTC()}
}

// EventHeader returns h.
func (h Header) EventHeader() Header { return h }

// MemberRegisteredEvent is published after a member joins the club.
type MemberRegisteredEvent struct {
	Header
	MemberID uuid.UUID `json:"member_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone"`
	Credits  float64   `json:"credits"`
}

// MemberUpdatedEvent is published after a member's contact data or balance changed.
type MemberUpdatedEvent struct {
	Header
	MemberID uuid.UUID `json:"member_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone"`
	Credits  float64   `json:"credits"`
}

// MemberRemovedEvent is published after a member left. Their items stay listed.
type MemberRemovedEvent struct {
	Header
	MemberID uuid.UUID `json:"member_id"`
}

// ItemListedEvent is published after an item was listed and the owner received
// the listing bonus.
type ItemListedEvent struct {
	Header
	ItemID       uuid.UUID       `json:"item_id"`
	OwnerID      uuid.UUID       `json:"owner_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Category     models.Category `json:"category"`
	CostPerDay   float64         `json:"cost_per_day"`
	OwnerCredits float64         `json:"owner_credits"`
}

// ItemUpdatedEvent is published after an item's listing data or owner changed.
type ItemUpdatedEvent struct {
	Header
	ItemID          uuid.UUID       `json:"item_id"`
	OwnerID         uuid.UUID       `json:"owner_id"`
	PreviousOwnerID uuid.UUID       `json:"previous_owner_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Category        models.Category `json:"category"`
	CostPerDay      float64         `json:"cost_per_day"`
}

// ItemRemovedEvent is published after an item was withdrawn.
type ItemRemovedEvent struct {
	Header
	ItemID  uuid.UUID `json:"item_id"`
	OwnerID uuid.UUID `json:"owner_id"`
}

// ContractSignedEvent is published after a contract was attached to an item.
type ContractSignedEvent struct {
	Header
	ContractID   uuid.UUID `json:"contract_id"`
	ItemID       uuid.UUID `json:"item_id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	LendeeID     uuid.UUID `json:"lendee_id"`
	StartDay     int       `json:"start_day"`
	DurationDays int       `json:"duration_days"`
	TotalPrice   float64   `json:"total_price"`
}

// MemberBalance is a member's balance after a settlement run.
type MemberBalance struct {
	MemberID uuid.UUID `json:"member_id"`
	Credits  float64   `json:"credits"`
}

// DaySettledEvent is published once per clock advance, also when nothing was
// transferred. Balances lists every member touched by a transfer.
type DaySettledEvent struct {
	Header
	ClosedDay int               `json:"closed_day"`
	Day       int               `json:"day"`
	Transfers []models.Transfer `json:"transfers"`
	Balances  []MemberBalance   `json:"balances"`
	Failure   string            `json:"failure,omitempty"`
}
