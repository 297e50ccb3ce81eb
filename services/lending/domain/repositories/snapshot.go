package repositories

import (
	"context"

	"github.com/ghuser/lendingclub/services/lending/domain/events"
	"github.com/ghuser/lendingclub/services/lending/domain/models"
)

// SnapshotRepository persists checkpoints of the whole lending System.
// The domain layer owns this interface; infrastructure implements it.
type SnapshotRepository interface {
	// Save replaces the stored checkpoint with snap. The envelopes are
	// written to the event outbox in the same transaction.
	Save(ctx context.Context, snap models.Snapshot, outbox ...events.Envelope) error

	// Load returns the last saved checkpoint. ok is false when nothing was saved yet.
	Load(ctx context.Context) (snap models.Snapshot, ok bool, err error)
}
