package record

import (
	"errors"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidData   = errors.New("invalid record data")
	ErrUnknownTable  = errors.New("unknown table")
	ErrRecordDeleted = errors.New("record was deleted")
	// ErrStale строку изменили после того, как её прочитал сеанс синхронизации
	ErrStale = errors.New("record changed concurrently")
)
