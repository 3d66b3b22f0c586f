// Package migration применяет встроенные SQL-миграции к локальному
// и удалённому хранилищу.
package migration

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	// драйверы баз данных регистрируются при импорте
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql
var files embed.FS

// Диалекты совпадают с именами storage.Dialect
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Migrator операции migrate.Migrate, которые используются здесь
type Migrator interface {
	Up() error
	Close() (error, error)
}

// MigrationEngine создает мигратор для диалекта и строки подключения
type MigrationEngine func(dialect, databaseURL string) (Migrator, error)

type Migration struct {
	dialect     string
	databaseURL string
	engine      MigrationEngine
}

func NewMigration(dialect, databaseURL string, engine MigrationEngine) *Migration {
	if engine == nil {
		engine = DefaultEngine
	}
	return &Migration{
		dialect:     dialect,
		databaseURL: databaseURL,
		engine:      engine,
	}
}

// DefaultEngine читает миграции диалекта из встроенной файловой системы.
func DefaultEngine(dialect, databaseURL string) (Migrator, error) {
	switch dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return nil, fmt.Errorf("unsupported migration dialect %q", dialect)
	}
	src, err := iofs.New(files, "sql/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", src, databaseURL)
}

// SQLiteURL строка подключения мигратора к файлу SQLite.
func SQLiteURL(path string) string {
	return "sqlite3://" + path
}

func (mg *Migration) Up() (err error) {
	m, err := mg.engine(mg.dialect, mg.databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		serr, dberr := m.Close()
		if serr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration source error: %v", err, serr)
			} else {
				err = serr
			}
		}
		if dberr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration database error: %v", err, dberr)
			} else {
				err = dberr
			}
		}
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w; migration up error", err)
	}
	return nil
}
