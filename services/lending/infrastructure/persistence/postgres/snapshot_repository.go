// Package postgres checkpoints the lending System into PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ghuser/lendingclub/pkg/database"
	pkgevents "github.com/ghuser/lendingclub/pkg/events"
	"github.com/ghuser/lendingclub/services/lending/domain/events"
	"github.com/ghuser/lendingclub/services/lending/domain/models"
)

const (
	dialectPostgres = "postgres"

	tableClock     = "lending_clock"
	tableMembers   = "lending_members"
	tableItems     = "lending_items"
	tableContracts = "lending_contracts"

	clockRowID = 1
)

type clockRow struct {
	ID      int       `db:"id"`
	Day     int       `db:"day"`
	SavedAt time.Time `db:"saved_at"`
}

type memberRow struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Phone     string    `db:"phone"`
	Credits   float64   `db:"credits"`
	CreatedAt time.Time `db:"created_at"`
}

type itemRow struct {
	ID               uuid.UUID  `db:"id"`
	OwnerID          uuid.UUID  `db:"owner_id"`
	Name             string     `db:"name"`
	Description      string     `db:"description"`
	Category         string     `db:"category"`
	CostPerDay       float64    `db:"cost_per_day"`
	CreatedAt        time.Time  `db:"created_at"`
	ActiveContractID *uuid.UUID `db:"active_contract_id"`
}

type contractRow struct {
	ID           uuid.UUID `db:"id"`
	ItemID       uuid.UUID `db:"item_id"`
	Position     int       `db:"position"`
	OwnerID      uuid.UUID `db:"owner_id"`
	LendeeID     uuid.UUID `db:"lendee_id"`
	StartDay     int       `db:"start_day"`
	DurationDays int       `db:"duration_days"`
	TotalPrice   float64   `db:"total_price"`
}

// SnapshotRepository implements repositories.SnapshotRepository.
// Every Save replaces the whole checkpoint in one transaction.
type SnapshotRepository struct {
	db  *database.Database
	bus *pkgevents.EventBus
}

// NewSnapshotRepository returns a SnapshotRepository backed by the given pool.
// When bus is non-nil, the envelopes passed to Save are published through its
// transactional publisher in the same transaction.
func NewSnapshotRepository(db *database.Database, bus *pkgevents.EventBus) *SnapshotRepository {
	return &SnapshotRepository{db: db, bus: bus}
}

// Save replaces the stored checkpoint with snap and writes outbox to the
// event tables atomically with it.
func (r *SnapshotRepository) Save(ctx context.Context, snap models.Snapshot, outbox ...events.Envelope) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.replace(ctx, tx, snap); err != nil {
			return err
		}
		if r.bus != nil && len(outbox) > 0 {
			if err := r.publish(ctx, tx, outbox); err != nil {
				return fmt.Errorf("publish outbox: %w", err)
			}
		}
		return nil
	})
}

// Load reads the stored checkpoint. ok is false when nothing was saved yet.
func (r *SnapshotRepository) Load(ctx context.Context) (models.Snapshot, bool, error) {
	var snap models.Snapshot
	found := false
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		b := goqu.Dialect(dialectPostgres)

		query, args, err := b.From(tableClock).
			Select("id", "day", "saved_at").
			Where(goqu.C("id").Eq(clockRowID)).
			Prepared(true).ToSQL()
		if err != nil {
			return fmt.Errorf("build clock query: %w", err)
		}
		var clock clockRow
		if err := tx.GetContext(ctx, &clock, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("query clock: %w", err)
		}
		found = true
		snap.Day = clock.Day

		var members []memberRow
		if err := selectAll(ctx, tx, b.From(tableMembers).
			Select("id", "name", "email", "phone", "credits", "created_at").
			Order(goqu.I("created_at").Asc(), goqu.I("id").Asc()), &members); err != nil {
			return fmt.Errorf("query members: %w", err)
		}

		var items []itemRow
		if err := selectAll(ctx, tx, b.From(tableItems).
			Select("id", "owner_id", "name", "description", "category", "cost_per_day", "created_at", "active_contract_id").
			Order(goqu.I("created_at").Asc(), goqu.I("id").Asc()), &items); err != nil {
			return fmt.Errorf("query items: %w", err)
		}

		var contracts []contractRow
		if err := selectAll(ctx, tx, b.From(tableContracts).
			Select("id", "item_id", "position", "owner_id", "lendee_id", "start_day", "duration_days", "total_price").
			Order(goqu.I("item_id").Asc(), goqu.I("position").Asc()), &contracts); err != nil {
			return fmt.Errorf("query contracts: %w", err)
		}

		snap.Members = make([]models.MemberState, len(members))
		for i, m := range members {
			snap.Members[i] = models.MemberState{
				ID:        m.ID,
				Name:      m.Name,
				Email:     m.Email,
				Phone:     m.Phone,
				Credits:   m.Credits,
				CreatedAt: m.CreatedAt,
			}
		}

		history := make(map[uuid.UUID][]models.Contract, len(items))
		for _, c := range contracts {
			history[c.ItemID] = append(history[c.ItemID], models.Contract{
				ID:           c.ID,
				OwnerID:      c.OwnerID,
				LendeeID:     c.LendeeID,
				StartDay:     c.StartDay,
				DurationDays: c.DurationDays,
				TotalPrice:   c.TotalPrice,
			})
		}

		snap.Items = make([]models.ItemState, len(items))
		for i, it := range items {
			snap.Items[i] = models.ItemState{
				ID:               it.ID,
				Category:         models.Category(it.Category),
				Name:             it.Name,
				Description:      it.Description,
				OwnerID:          it.OwnerID,
				CostPerDay:       it.CostPerDay,
				CreatedAt:        it.CreatedAt,
				ActiveContractID: it.ActiveContractID,
				History:          history[it.ID],
			}
		}
		return nil
	})
	if err != nil {
		return models.Snapshot{}, false, err
	}
	return snap, found, nil
}

func (r *SnapshotRepository) replace(ctx context.Context, tx *sqlx.Tx, snap models.Snapshot) error {
	b := goqu.Dialect(dialectPostgres)

	// Contracts reference items; delete children first.
	for _, table := range []string{tableContracts, tableItems, tableMembers} {
		query, args, err := b.Delete(table).Prepared(true).ToSQL()
		if err != nil {
			return fmt.Errorf("build delete %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	clock := clockRow{ID: clockRowID, Day: snap.Day, SavedAt: time.Now().UTC()}
	query, args, err := b.Insert(tableClock).
		Rows(clock).
		OnConflict(goqu.DoUpdate("id", goqu.Record{
			"day":      goqu.L("EXCLUDED.day"),
			"saved_at": goqu.L("EXCLUDED.saved_at"),
		})).
		Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build clock upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save clock: %w", err)
	}

	members := make([]memberRow, len(snap.Members))
	for i, m := range snap.Members {
		members[i] = memberRow{
			ID:        m.ID,
			Name:      m.Name,
			Email:     m.Email,
			Phone:     m.Phone,
			Credits:   m.Credits,
			CreatedAt: m.CreatedAt,
		}
	}
	if err := insertRows(ctx, tx, tableMembers, members); err != nil {
		return err
	}

	items := make([]itemRow, len(snap.Items))
	var contracts []contractRow
	for i, it := range snap.Items {
		items[i] = itemRow{
			ID:               it.ID,
			OwnerID:          it.OwnerID,
			Name:             it.Name,
			Description:      it.Description,
			Category:         it.Category.String(),
			CostPerDay:       it.CostPerDay,
			CreatedAt:        it.CreatedAt,
			ActiveContractID: it.ActiveContractID,
		}
		for pos, c := range it.History {
			contracts = append(contracts, contractRow{
				ID:           c.ID,
				ItemID:       it.ID,
				Position:     pos,
				OwnerID:      c.OwnerID,
				LendeeID:     c.LendeeID,
				StartDay:     c.StartDay,
				DurationDays: c.DurationDays,
				TotalPrice:   c.TotalPrice,
			})
		}
	}
	if err := insertRows(ctx, tx, tableItems, items); err != nil {
		return err
	}
	return insertRows(ctx, tx, tableContracts, contracts)
}

func (r *SnapshotRepository) publish(ctx context.Context, tx *sqlx.Tx, outbox []events.Envelope) error {
	pub, err := r.bus.NewTxPublisher(tx.Tx)
	if err != nil {
		return err
	}
	for _, env := range outbox {
		msg, err := pkgevents.NewJSONMessage(env.EventID.String(), events.Version, env.Payload)
		if err != nil {
			return err
		}
		pkgevents.InjectTraceContext(ctx, msg)
		if err := pub.Publish(env.Topic, msg); err != nil {
			return fmt.Errorf("publish to %s: %w", env.Topic, err)
		}
	}
	return nil
}

func insertRows[T any](ctx context.Context, tx *sqlx.Tx, table string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	query, args, err := goqu.Dialect(dialectPostgres).Insert(table).Rows(rows).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func selectAll[T any](ctx context.Context, tx *sqlx.Tx, ds *goqu.SelectDataset, dest *[]T) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return err
	}
	return tx.SelectContext(ctx, dest, query, args...)
}
