package app

import (
	"github.com/ghuser/lendingclub/pkg/cache"
	"github.com/ghuser/lendingclub/pkg/config"
	"github.com/ghuser/lendingclub/pkg/database"
	"github.com/ghuser/lendingclub/pkg/events"
	"github.com/ghuser/lendingclub/pkg/logger"
	"github.com/ghuser/lendingclub/pkg/workflows"
)

// Application holds shared infrastructure dependencies for all services.
// Pass to each service's route function during server initialization.
//
// Db, Redis and TemporalClient are optional: STORE_MODE=memory runs without
// Postgres, the read model is skipped without Redis, and TemporalClient is
// only set under CLOCK_MODE=temporal. Services must check for nil.
//
// Logging: app.Logger is backed by a trace-aware handler. Use slog's context
// methods and trace_id, span_id, and request_id are injected automatically:
//
//	app.Logger.InfoContext(ctx, "item listed", "item_id", id)
//	app.Logger.ErrorContext(ctx, "failed to save", "error", err)
//
// Use app.Logger.Info/Error (no context) only for startup and shutdown messages.
type Application struct {
	Config         *config.Config
	Db             *database.Database
	Logger         logger.Logger
	EventBus       *events.EventBus
	Redis          *cache.RedisClient
	TemporalClient *workflows.TemporalClient
}
