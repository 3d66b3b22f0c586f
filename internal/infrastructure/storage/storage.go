// Package storage описывает контракт хранилища, общий для локальной
// и удалённой стороны: запросы с плейсхолдерами ? и строки как карты.
package storage

import (
	"context"
)

// Row строка результата: имя колонки -> значение драйвера
type Row map[string]any

// Result итог изменяющего запроса
type Result struct {
	RowsAffected int64
	GeneratedID  int64
}

// Dialect особенности SQL конкретного хранилища
type Dialect struct {
	Name string
	// Returning означает, что id новой строки возвращается через RETURNING id
	Returning bool
	// Now выражение текущего времени хранилища в формате его колонок времени
	Now string
}

var (
	DialectSQLite = Dialect{
		Name: "sqlite",
		// %f даёт миллисекунды, дополняем до ширины колонок времени
		Now: "strftime('%Y-%m-%dT%H:%M:%f000Z', 'now')",
	}
	DialectPostgres = Dialect{Name: "postgres", Returning: true, Now: "statement_timestamp()"}
)

type Store interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	Execute(ctx context.Context, query string, args ...any) (Result, error)
	Available(ctx context.Context) bool
	Dialect() Dialect
	Close() error
}
