// Package api управляющий HTTP интерфейс демона синхронизации.
//
//	GET    /api/v1/health                                 # Состояние и доступность удалённого хранилища
//	POST   /api/v1/sync                                   # Запустить сеанс (202, 409 если уже идёт)
//	GET    /api/v1/sync/status                            # Статус и статистика
//	GET    /api/v1/sync/conflicts                         # Записи в статусе CONFLICT
//	POST   /api/v1/sync/conflicts/{table}/{id}/resolve    # Ручное решение конфликта
//	GET    /api/v1/audit                                  # Последние записи журнала
//	GET    /api/v1/audit/failed                           # Неуспешные операции
//	DELETE /api/v1/audit                                  # Очистка журнала
package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	auditAPI "clubsync/internal/app/server/api/http/audit"
	healthAPI "clubsync/internal/app/server/api/http/health"
	"clubsync/internal/app/server/api/http/middleware"
	"clubsync/internal/app/server/api/http/middleware/logger"
	syncAPI "clubsync/internal/app/server/api/http/sync"
)

// Deps зависимости обработчиков
type Deps struct {
	DeviceID string
	Health   healthAPI.Checker
	Runner   syncAPI.Runner
	Resolver syncAPI.Resolver
	Audit    auditAPI.Servicer
}

type Handlers struct {
	Health *healthAPI.Handler
	Sync   *syncAPI.Handler
	Audit  *auditAPI.Handler
}

// New создает *chi.Mux со всеми операциями. Сеансы, запущенные через
// API, завершаются вместе с ctx.
func New(ctx context.Context, deps Deps, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("Clubsync API", "1.0.0")
	API := humachi.New(mux, config)

	h := handlers(ctx, deps, log)
	h.Health.SetupRoutes(API)
	h.Sync.SetupRoutes(API)
	h.Audit.SetupRoutes(API)

	return mux
}

func handlers(ctx context.Context, deps Deps, log *slog.Logger) *Handlers {
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(deps.Health, deps.DeviceID, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	syncHandler := syncAPI.NewHandler(ctx, deps.Runner, deps.Resolver, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	auditHandler := auditAPI.NewHandler(deps.Audit, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health: healthHandler,
		Sync:   syncHandler,
		Audit:  auditHandler,
	}
}
