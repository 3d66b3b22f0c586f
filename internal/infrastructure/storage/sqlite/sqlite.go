// Package sqlite локальное хранилище устройства на SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"clubsync/internal/infrastructure/storage"

	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db   *sql.DB
	path string
}

// DSN строка подключения с включёнными внешними ключами и WAL.
func DSN(path string) string {
	return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// один писатель на файл
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, storage.Classify(err))
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Query(ctx context.Context, query string, args ...any) ([]storage.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Classify(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []storage.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(storage.Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Classify(err)
	}
	return out, nil
}

func (s *Store) Execute(ctx context.Context, query string, args ...any) (storage.Result, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return storage.Result{}, storage.Classify(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storage.Result{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storage.Result{}, err
	}
	return storage.Result{RowsAffected: affected, GeneratedID: id}, nil
}

func (s *Store) Available(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

func (s *Store) Dialect() storage.Dialect {
	return storage.DialectSQLite
}

func (s *Store) Close() error {
	return s.db.Close()
}
