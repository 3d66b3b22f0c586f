package audit

import (
	"context"
	"time"
)

// Repository хранилище журнала
type Repository interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Failed(ctx context.Context, limit int) ([]Entry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Mirror зеркало журнала на удалённой стороне
type Mirror interface {
	Append(ctx context.Context, e Entry) error
}
