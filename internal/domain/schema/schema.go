// Package schema описывает фиксированный набор синхронизируемых таблиц
// и карту внешних ключей для каждой из них.
package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind тип значения бизнес-колонки
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindReal
	KindBool
	KindTime
)

// Служебные колонки, общие для всех синхронизируемых таблиц
const (
	ColumnID             = "id"
	ColumnCreatedAt      = "created_at"
	ColumnUpdatedAt      = "updated_at"
	ColumnDeletedAt      = "deleted_at"
	ColumnLastModifiedBy = "last_modified_by"
	ColumnSyncStatus     = "sync_status"
	ColumnSyncVersion    = "sync_version"
	ColumnLastSyncAt     = "last_sync_at"
)

// MetaColumns служебные колонки в порядке их записи
var MetaColumns = []string{
	ColumnCreatedAt,
	ColumnUpdatedAt,
	ColumnDeletedAt,
	ColumnLastModifiedBy,
	ColumnSyncStatus,
	ColumnSyncVersion,
	ColumnLastSyncAt,
}

// Column бизнес-колонка таблицы
type Column struct {
	Name string
	Kind Kind
}

// ForeignKey обычный внешний ключ: значение колонки указывает на id строки References
type ForeignKey struct {
	Column     string
	References string
}

// PolymorphicKey внешний ключ, целевая таблица которого выбирается
// по значению колонки-дискриминатора.
type PolymorphicKey struct {
	Column        string
	Discriminator string
	Targets       map[string]string
}

// Target возвращает таблицу для значения дискриминатора.
func (p PolymorphicKey) Target(discriminator string) (string, bool) {
	table, ok := p.Targets[strings.ToUpper(strings.TrimSpace(discriminator))]
	return table, ok
}

// Table описание синхронизируемой таблицы
type Table struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
	Polymorphic []PolymorphicKey
}

// ColumnNames возвращает имена бизнес-колонок в порядке объявления.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column ищет бизнес-колонку по имени.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasReferences сообщает, есть ли у таблицы внешние ключи.
func (t Table) HasReferences() bool {
	return len(t.ForeignKeys) > 0 || len(t.Polymorphic) > 0
}

// Normalize приводит значение, прочитанное из любого хранилища,
// к каноническому Go-типу колонки.
func (c Column) Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch c.Kind {
	case KindText:
		switch x := v.(type) {
		case string:
			return x, nil
		case time.Time:
			return x.UTC().Format(time.RFC3339Nano), nil
		default:
			return fmt.Sprint(x), nil
		}
	case KindInt:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int16:
			return int64(x), nil
		case float64:
			return int64(x), nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("column %s: parse int %q: %w", c.Name, x, err)
			}
			return n, nil
		}
	case KindReal:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case int32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, fmt.Errorf("column %s: parse real %q: %w", c.Name, x, err)
			}
			return f, nil
		}
	case KindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case int32:
			return x != 0, nil
		case int:
			return x != 0, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return nil, fmt.Errorf("column %s: parse bool %q: %w", c.Name, x, err)
			}
			return b, nil
		}
	case KindTime:
		switch x := v.(type) {
		case time.Time:
			return NormalizeTime(x), nil
		case string:
			t, err := ParseTime(x)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			return t, nil
		}
	}

	return nil, fmt.Errorf("column %s: unsupported value type %T", c.Name, v)
}

// NormalizeTime переводит время в UTC с точностью до микросекунд,
// которую сохраняют оба хранилища.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime разбирает время в одном из форматов, которые пишут драйверы.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NormalizeTime(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unknown layout", s)
}
