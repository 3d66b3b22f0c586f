package record

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

type SyncStatus string

const (
	StatusPending  SyncStatus = "PENDING"
	StatusSynced   SyncStatus = "SYNCED"
	StatusConflict SyncStatus = "CONFLICT"
)

func (SyncStatus) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type: "string",
		Enum: []any{
			string(StatusPending),
			string(StatusSynced),
			string(StatusConflict),
		},
		Description: "Статус синхронизации записи",
		Examples:    []any{StatusPending},
	}
}

// Validate проверяет, что статус известен.
func (s SyncStatus) Validate() error {
	switch s {
	case StatusPending, StatusSynced, StatusConflict:
		return nil
	}
	return fmt.Errorf("unknown sync status: %s", s)
}

// String возвращает строковое представление статуса.
func (s SyncStatus) String() string {
	return string(s)
}

// DisplayName возвращает человекочитаемое название статуса.
func (s SyncStatus) DisplayName() string {
	switch s {
	case StatusPending:
		return "Ожидает синхронизации"
	case StatusSynced:
		return "Синхронизирована"
	case StatusConflict:
		return "Конфликт"
	default:
		return "Неизвестный статус"
	}
}

// ParseSyncStatus разбирает статус без учёта регистра.
func ParseSyncStatus(s string) (SyncStatus, error) {
	st := SyncStatus(strings.ToUpper(strings.TrimSpace(s)))
	if err := st.Validate(); err != nil {
		return "", err
	}
	return st, nil
}
