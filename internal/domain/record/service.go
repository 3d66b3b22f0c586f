package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clubsync/internal/domain/schema"

	"golang.org/x/exp/slog"
)

// Servicer локальные изменения синхронизируемых записей
type Servicer interface {
	Create(ctx context.Context, table string, fields Fields) (*Record, error)
	Update(ctx context.Context, table string, id int64, fields Fields) (*Record, error)
	Delete(ctx context.Context, table string, id int64) (*Record, error)
	Get(ctx context.Context, table string, id int64) (*Record, error)
	List(ctx context.Context, table string, includeDeleted bool) ([]*Record, error)
}

var _ Servicer = (*Service)(nil)

// Service применяет контракт изменения записи к локальному хранилищу:
// каждое изменение увеличивает версию на 1 и переводит запись в PENDING.
type Service struct {
	repo     Repository
	registry *schema.Registry
	device   string
	now      func() time.Time
	log      *slog.Logger
}

// NewService creates a new record service
func NewService(repo Repository, registry *schema.Registry, device string, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		device:   device,
		now:      time.Now,
		log:      log.With("component", "record_service"),
	}
}

// WithClock подменяет источник времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Create(ctx context.Context, table string, fields Fields) (*Record, error) {
	tbl, err := s.table(table)
	if err != nil {
		return nil, err
	}

	normalized, err := normalize(tbl, fields, true)
	if err != nil {
		return nil, err
	}

	rec := New(table, normalized, s.device, s.now())
	id, err := s.repo.Insert(ctx, rec)
	if err != nil {
		s.log.Error("failed to create record", "table", table, "error", err)
		return nil, fmt.Errorf("create %s: %w", table, err)
	}
	rec.ID = id

	s.log.Debug("record created", "table", table, "id", id)
	return rec, nil
}

func (s *Service) Update(ctx context.Context, table string, id int64, fields Fields) (*Record, error) {
	tbl, err := s.table(table)
	if err != nil {
		return nil, err
	}

	normalized, err := normalize(tbl, fields, false)
	if err != nil {
		return nil, err
	}

	rec, err := s.repo.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted() {
		return nil, ErrRecordDeleted
	}

	rec.Apply(normalized, s.device, s.now())
	if err := s.repo.Update(ctx, rec); err != nil {
		s.log.Error("failed to update record", "table", table, "id", id, "error", err)
		return nil, fmt.Errorf("update %s/%d: %w", table, id, err)
	}

	s.log.Debug("record updated", "table", table, "id", id, "version", rec.Meta.SyncVersion)
	return rec, nil
}

// Delete мягко удаляет запись. Физическое удаление не выполняется никогда.
func (s *Service) Delete(ctx context.Context, table string, id int64) (*Record, error) {
	if _, err := s.table(table); err != nil {
		return nil, err
	}

	rec, err := s.repo.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted() {
		return rec, nil
	}

	rec.MarkDeleted(s.device, s.now())
	if err := s.repo.Update(ctx, rec); err != nil {
		s.log.Error("failed to delete record", "table", table, "id", id, "error", err)
		return nil, fmt.Errorf("delete %s/%d: %w", table, id, err)
	}

	s.log.Debug("record deleted", "table", table, "id", id)
	return rec, nil
}

func (s *Service) Get(ctx context.Context, table string, id int64) (*Record, error) {
	if _, err := s.table(table); err != nil {
		return nil, err
	}
	rec, err := s.repo.Get(ctx, table, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Error("failed to get record", "table", table, "id", id, "error", err)
		}
		return nil, err
	}
	return rec, nil
}

func (s *Service) List(ctx context.Context, table string, includeDeleted bool) ([]*Record, error) {
	if _, err := s.table(table); err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, table, includeDeleted)
	if err != nil {
		s.log.Error("failed to list records", "table", table, "error", err)
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return records, nil
}

func (s *Service) table(name string) (schema.Table, error) {
	tbl, ok := s.registry.Table(name)
	if !ok {
		return schema.Table{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return tbl, nil
}

// normalize проверяет имена колонок и приводит значения к типам схемы.
// При full незаданные колонки заполняются nil.
func normalize(tbl schema.Table, fields Fields, full bool) (Fields, error) {
	out := make(Fields, len(tbl.Columns))
	for name, v := range fields {
		col, ok := tbl.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no column %s", ErrInvalidData, tbl.Name, name)
		}
		nv, err := col.Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		out[name] = nv
	}
	if full {
		for _, col := range tbl.Columns {
			if _, ok := out[col.Name]; !ok {
				out[col.Name] = nil
			}
		}
	}
	return out, nil
}
