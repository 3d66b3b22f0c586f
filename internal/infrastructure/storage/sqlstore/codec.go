// Package sqlstore реализует репозитории синхронизации поверх storage.Store.
// Один и тот же код обслуживает локальную SQLite и удалённый PostgreSQL.
package sqlstore

import (
	"fmt"
	"time"

	"clubsync/internal/domain/schema"
	"clubsync/internal/infrastructure/storage"
)

// sqliteTime фиксированная ширина, чтобы строки сравнивались как время
const sqliteTime = "2006-01-02T15:04:05.000000Z"

type codec struct {
	dialect storage.Dialect
}

// value готовит аргумент запроса для диалекта.
func (c codec) value(v any) any {
	switch x := v.(type) {
	case time.Time:
		return c.time(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return c.time(*x)
	case *int64:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}

func (c codec) time(t time.Time) any {
	t = schema.NormalizeTime(t)
	if c.dialect.Name == storage.DialectSQLite.Name {
		return t.Format(sqliteTime)
	}
	return t
}

func asInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	}
	return 0, fmt.Errorf("unexpected integer value %T", v)
}

func asOptInt64(v any) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	n, err := asInt64(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}

func asTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return schema.NormalizeTime(x), nil
	case string:
		return schema.ParseTime(x)
	case []byte:
		return schema.ParseTime(string(x))
	}
	return time.Time{}, fmt.Errorf("unexpected time value %T", v)
}

func asOptTime(v any) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	t, err := asTime(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// placeholders возвращает "?, ?, ..." для n аргументов.
func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}
