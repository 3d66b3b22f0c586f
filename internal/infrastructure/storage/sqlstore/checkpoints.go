package sqlstore

import (
	"context"
	"fmt"
	"time"

	"clubsync/internal/infrastructure/storage"
)

// Checkpoints отметки последнего pull, по одной на таблицу
type Checkpoints struct {
	store storage.Store
	codec codec
}

func NewCheckpoints(store storage.Store) *Checkpoints {
	return &Checkpoints{store: store, codec: codec{dialect: store.Dialect()}}
}

// LastPulled возвращает nil, если таблица ещё не синхронизировалась.
func (c *Checkpoints) LastPulled(ctx context.Context, table string) (*time.Time, error) {
	rows, err := c.store.Query(ctx, "SELECT last_pulled_at FROM sync_checkpoints WHERE table_name = ?", table)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	at, err := asOptTime(rows[0]["last_pulled_at"])
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", table, err)
	}
	return at, nil
}

func (c *Checkpoints) SetLastPulled(ctx context.Context, table string, at time.Time) error {
	_, err := c.store.Execute(ctx,
		"INSERT INTO sync_checkpoints (table_name, last_pulled_at) VALUES (?, ?)"+
			" ON CONFLICT (table_name) DO UPDATE SET last_pulled_at = excluded.last_pulled_at",
		table, c.codec.value(at))
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", table, err)
	}
	return nil
}
