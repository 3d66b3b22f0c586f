package migration

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"clubsync/internal/infrastructure/storage/sqlite"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMigrator мок интерфейса Migrator
type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func TestMigration_Up_Success(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Up").Return(nil)
	mockM.On("Close").Return(nil, nil)

	var gotDialect, gotURL string
	engine := func(dialect, db string) (Migrator, error) {
		gotDialect, gotURL = dialect, db
		return mockM, nil
	}

	mg := NewMigration(DialectPostgres, "postgres://club@localhost/club", engine)
	err := mg.Up()

	assert.NoError(t, err)
	assert.Equal(t, DialectPostgres, gotDialect)
	assert.Equal(t, "postgres://club@localhost/club", gotURL)
	mockM.AssertExpectations(t)
}

func TestMigration_Up_NoChange(t *testing.T) {
	mockM := new(MockMigrator)

	// ErrNoChange не должна считаться ошибкой в методе Up()
	mockM.On("Up").Return(migrate.ErrNoChange)
	mockM.On("Close").Return(nil, nil)

	engine := func(dialect, db string) (Migrator, error) {
		return mockM, nil
	}

	err := NewMigration(DialectSQLite, "", engine).Up()
	assert.NoError(t, err)
}

func TestMigration_Up_EngineError(t *testing.T) {
	engine := func(dialect, db string) (Migrator, error) {
		return nil, errors.New("engine crash")
	}

	err := NewMigration(DialectSQLite, "", engine).Up()

	assert.Error(t, err)
	assert.Equal(t, "engine crash", err.Error())
}

func TestMigration_Up_CloseError(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Up").Return(nil)
	mockM.On("Close").Return(nil, errors.New("db close"))

	engine := func(dialect, db string) (Migrator, error) {
		return mockM, nil
	}

	err := NewMigration(DialectSQLite, "", engine).Up()
	require.Error(t, err)
	assert.Equal(t, "db close", err.Error())
}

func TestDefaultEngine_UnknownDialect(t *testing.T) {
	_, err := DefaultEngine("oracle", "")
	assert.Error(t, err)
}

func TestMigration_Up_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "club.db")

	mg := NewMigration(DialectSQLite, SQLiteURL(path), nil)
	require.NoError(t, mg.Up())
	// повторный запуск ничего не меняет
	require.NoError(t, mg.Up())

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	defer store.Close()

	rows, err := store.Query(context.Background(),
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name <> 'schema_migrations'")
	require.NoError(t, err)

	var names []string
	for _, r := range rows {
		names = append(names, r["name"].(string))
	}
	assert.ElementsMatch(t, []string{
		"members", "events", "projects", "event_attendance", "project_members", "expenses",
		"sync_metadata", "sync_metadata_mirror", "sync_checkpoints", "sync_audit_log",
	}, names)
}
