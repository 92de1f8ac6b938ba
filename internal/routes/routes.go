package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/schoolyard/pocketledger/internal/audit"
	"github.com/schoolyard/pocketledger/internal/config"
	"github.com/schoolyard/pocketledger/internal/ledger"
	"github.com/schoolyard/pocketledger/internal/middleware"
	"github.com/schoolyard/pocketledger/internal/pocket"
	"github.com/schoolyard/pocketledger/internal/students"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Auditor audit.Emitter
	Logger  *slog.Logger

	// Directory overrides the student lookup, used by tests and dev mode.
	Directory students.Directory
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLog(d.Logger))

	RegisterHealthRoutes(app, d)

	var storage ledger.Storage
	if d.DB != nil {
		storage = ledger.NewPostgresStorage(d.DB)
	} else {
		storage = ledger.NewMemoryStorage()
	}

	directory := d.Directory
	if directory == nil {
		if d.DB == nil {
			return fmt.Errorf("student directory is required without a database")
		}
		directory = students.NewPostgresDirectory(d.DB)
	}

	auditor := d.Auditor
	if auditor == nil {
		auditor = audit.NewLogEmitter(d.Logger)
	}

	engine := ledger.NewEngine(storage, directory, auditor, d.Logger)
	query := ledger.NewQuery(storage, directory)
	handler := pocket.NewHandler(engine, query)

	api := app.Group("/api/v1", middleware.ActorContext())
	if d.Cache != nil {
		api.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterPocketRoutes(api, handler, middleware.ApplyRateLimit(d.Cache, d.Cfg.ApplyRatePerMin))

	return nil
}
