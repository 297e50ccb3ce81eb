package services

import (
	"github.com/ghuser/lendingclub/pkg/app"
	"github.com/ghuser/lendingclub/pkg/config"
	"github.com/ghuser/lendingclub/services/lending/infrastructure/persistence/postgres"
)

// Services is the application-layer service container for this bounded context.
// It wires domain services with their infrastructure implementations.
type Services struct {
	Lending *LendingService
	// IsProduction hides 5xx error details from API clients.
	IsProduction bool
}

// New wires the lending service with infrastructure from the Application container.
// With a database the System is checkpointed to Postgres and events go through
// the outbox; otherwise events are published straight to the bus.
func New(a *app.Application) *Services {
	var opts []Option
	switch {
	case a.Db != nil:
		opts = append(opts, WithRepository(postgres.NewSnapshotRepository(a.Db, a.EventBus)))
	case a.EventBus != nil:
		opts = append(opts, WithPublisher(a.EventBus))
	}
	return &Services{
		Lending:      NewLendingService(a.Logger, opts...),
		IsProduction: a.Config != nil && a.Config.Environment == config.EnvProduction,
	}
}
