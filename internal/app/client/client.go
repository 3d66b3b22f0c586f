// Package client собирает приложение устройства: локальное хранилище,
// подключение к общему хранилищу и сервисы синхронизации.
package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/exp/slog"

	"clubsync/internal/config"
	"clubsync/internal/domain/audit"
	"clubsync/internal/domain/record"
	"clubsync/internal/domain/schema"
	"clubsync/internal/domain/sync"
	"clubsync/internal/infrastructure/migration"
	"clubsync/internal/infrastructure/storage"
	"clubsync/internal/infrastructure/storage/postgres"
	"clubsync/internal/infrastructure/storage/sqlite"
	"clubsync/internal/infrastructure/storage/sqlstore"
)

// sqliteScheme позволяет указать общим хранилищем файл SQLite
const sqliteScheme = "sqlite://"

type App struct {
	config   *config.Config
	log      *slog.Logger
	registry *schema.Registry

	local     *sqlite.Store
	remote    storage.Store
	remoteURI string

	records     *record.Service
	audit       *audit.Service
	manager     *sync.Manager
	syncService *SyncService
}

type Option func(*App)

// WithRemotePassword подставляет пароль в строку подключения к общему хранилищу.
func WithRemotePassword(password string) Option {
	return func(a *App) {
		if password == "" || strings.HasPrefix(a.remoteURI, sqliteScheme) {
			return
		}
		uri, err := postgres.URIWithPassword(a.remoteURI, password)
		if err != nil {
			a.log.Warn("Не удалось подставить пароль в строку подключения", "error", err)
			return
		}
		a.remoteURI = uri
	}
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger, opts ...Option) (*App, error) {
	app := &App{
		config:    cfg,
		log:       log,
		registry:  schema.MustRegistry(schema.Default()),
		remoteURI: cfg.RemoteDatabaseURI,
	}
	for _, opt := range opts {
		opt(app)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LocalDBPath), 0o700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории данных: %w", err)
	}

	if cfg.AutoMigrate {
		if err := app.migrateLocal(); err != nil {
			return nil, err
		}
	}

	local, err := sqlite.Open(cfg.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия локального хранилища: %w", err)
	}
	app.local = local

	if app.remoteURI != "" {
		remote, err := app.openRemote(ctx)
		if err != nil {
			local.Close()
			return nil, err
		}
		app.remote = storage.WithTimeout(remote, cfg.RemoteTimeout)
	}

	app.wire()
	return app, nil
}

func (a *App) wire() {
	localRecords := sqlstore.NewRecords(a.local, a.registry)
	a.records = record.NewService(localRecords, a.registry, a.config.DeviceID, a.log)

	var auditMirror audit.Mirror
	remote := sync.Remote{Health: offline{}}
	if a.remote != nil {
		auditMirror = sqlstore.NewAudit(a.remote)
		remote = sync.Remote{
			Records:  sqlstore.NewRecords(a.remote, a.registry, sqlstore.WithServerClock()),
			Metadata: sqlstore.NewMirror(a.remote),
			Health:   a.remote,
		}
	}
	a.audit = audit.NewService(sqlstore.NewAudit(a.local), auditMirror, a.log)

	opts := sync.DefaultOptions()
	opts.Strategy = a.config.ConflictStrategy
	opts.DeviceID = a.config.DeviceID
	opts.StrictForeignKeys = a.config.StrictForeignKeys

	a.manager = sync.NewManager(
		sync.Local{
			Records:     localRecords,
			Metadata:    sqlstore.NewMetadata(a.local),
			Checkpoints: sqlstore.NewCheckpoints(a.local),
		},
		remote,
		a.audit,
		a.registry.Tables(),
		opts,
		a.log,
	)
	a.syncService = NewSyncService(a.manager, a.audit, a.config, a.log,
		WithSessionLock(flock.New(a.LockPath())))
}

func (a *App) openRemote(ctx context.Context) (storage.Store, error) {
	if path, ok := strings.CutPrefix(a.remoteURI, sqliteScheme); ok {
		if a.config.AutoMigrate {
			if err := migration.NewMigration(migration.DialectSQLite, migration.SQLiteURL(path), nil).Up(); err != nil {
				return nil, fmt.Errorf("ошибка миграции общего хранилища: %w", err)
			}
		}
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("ошибка открытия общего хранилища: %w", err)
		}
		return s, nil
	}

	s, err := postgres.Open(ctx, a.remoteURI)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к общему хранилищу: %w", err)
	}
	return s, nil
}

func (a *App) migrateLocal() error {
	mg := migration.NewMigration(migration.DialectSQLite, migration.SQLiteURL(a.config.LocalDBPath), nil)
	if err := mg.Up(); err != nil {
		return fmt.Errorf("ошибка миграции локального хранилища: %w", err)
	}
	return nil
}

// Migrate применяет миграции к обоим хранилищам. Недоступность общего
// хранилища возвращается ошибкой, локальные миграции при этом уже применены.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.migrateLocal(); err != nil {
		return err
	}
	if a.remoteURI == "" || strings.HasPrefix(a.remoteURI, sqliteScheme) {
		return nil
	}
	if !a.RemoteAvailable(ctx) {
		return sync.ErrOffline
	}
	mg := migration.NewMigration(migration.DialectPostgres, a.remoteURI, nil)
	if err := mg.Up(); err != nil {
		return fmt.Errorf("ошибка миграции общего хранилища: %w", err)
	}
	return nil
}

// RemoteAvailable проверяет доступность общего хранилища.
func (a *App) RemoteAvailable(ctx context.Context) bool {
	return a.remote != nil && a.remote.Available(ctx)
}

func (a *App) Config() *config.Config { return a.config }
func (a *App) Log() *slog.Logger { return a.log }
func (a *App) Registry() *schema.Registry { return a.registry }
func (a *App) Records() record.Servicer { return a.records }
func (a *App) Audit() *audit.Service { return a.audit }
func (a *App) SyncService() *SyncService { return a.syncService }
func (a *App) LocalPath() string { return a.local.Path() }

// LockPath файл блокировки сеансов рядом с локальной базой. Его держит
// процесс, выполняющий синхронизацию или решение конфликта.
func (a *App) LockPath() string { return a.config.LocalDBPath + ".lock" }

func (a *App) Close() error {
	var errs []error
	if a.remote != nil {
		errs = append(errs, a.remote.Close())
	}
	if a.local != nil {
		errs = append(errs, a.local.Close())
	}
	return errors.Join(errs...)
}

type appKey struct{}

// WithApp кладёт приложение в контекст команды.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

// FromContext достаёт приложение из контекста команды.
func FromContext(ctx context.Context) (*App, bool) {
	app, ok := ctx.Value(appKey{}).(*App)
	return app, ok
}

// offline заменяет общее хранилище, когда оно не настроено
type offline struct{}

func (offline) Available(context.Context) bool { return false }
