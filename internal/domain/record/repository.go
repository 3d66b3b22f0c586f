package record

import (
	"context"
)

// Repository хранилище строк одной стороны синхронизации
type Repository interface {
	Get(ctx context.Context, table string, id int64) (*Record, error)
	List(ctx context.Context, table string, includeDeleted bool) ([]*Record, error)
	Insert(ctx context.Context, rec *Record) (int64, error)
	Update(ctx context.Context, rec *Record) error
}
