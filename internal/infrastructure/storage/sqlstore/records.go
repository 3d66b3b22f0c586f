package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clubsync/internal/domain/record"
	"clubsync/internal/domain/schema"
	"clubsync/internal/infrastructure/storage"
)

// Records строки бизнес-таблиц одной стороны синхронизации
type Records struct {
	store       storage.Store
	registry    *schema.Registry
	codec       codec
	serverClock bool
}

type Option func(*Records)

// WithServerClock поручает отметку last_sync_at часам самого хранилища.
// Тогда отметки pull всех устройств сравниваются по одним часам.
func WithServerClock() Option {
	return func(r *Records) {
		r.serverClock = true
	}
}

func NewRecords(store storage.Store, registry *schema.Registry, opts ...Option) *Records {
	r := &Records{
		store:    store,
		registry: registry,
		codec:    codec{dialect: store.Dialect()},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// changedAt выражение порядка репликации строки
const changedAt = "COALESCE(" + schema.ColumnLastSyncAt + ", " + schema.ColumnUpdatedAt + ")"

func (r *Records) Get(ctx context.Context, table string, id int64) (*record.Record, error) {
	t, err := r.table(table)
	if err != nil {
		return nil, err
	}
	rows, err := r.store.Query(ctx, selectFrom(t)+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get %s/%d: %w", table, id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s/%d: %w", table, id, record.ErrNotFound)
	}
	return scanRecord(t, rows[0])
}

func (r *Records) List(ctx context.Context, table string, includeDeleted bool) ([]*record.Record, error) {
	t, err := r.table(table)
	if err != nil {
		return nil, err
	}
	query := selectFrom(t)
	if !includeDeleted {
		query += " WHERE deleted_at IS NULL"
	}
	return r.query(ctx, t, query+" ORDER BY id")
}

func (r *Records) ChangedSince(ctx context.Context, table string, since *time.Time) ([]*record.Record, error) {
	t, err := r.table(table)
	if err != nil {
		return nil, err
	}
	if since == nil {
		return r.query(ctx, t, selectFrom(t)+" ORDER BY "+changedAt+", id")
	}
	return r.query(ctx, t, selectFrom(t)+" WHERE "+changedAt+" >= ? ORDER BY "+changedAt+", id",
		r.codec.value(*since))
}

func (r *Records) Pending(ctx context.Context, table string) ([]*record.Record, error) {
	t, err := r.table(table)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, t, selectFrom(t)+" WHERE sync_status = ? ORDER BY id", string(record.StatusPending))
}

func (r *Records) Insert(ctx context.Context, rec *record.Record) (int64, error) {
	t, err := r.table(rec.Table)
	if err != nil {
		return 0, err
	}

	cols, exprs, args := r.assignments(t, rec)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.Name, strings.Join(cols, ", "), strings.Join(exprs, ", "))
	if r.codec.dialect.Returning {
		query += " RETURNING id"
	}

	res, err := r.store.Execute(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", t.Name, err)
	}
	return res.GeneratedID, nil
}

func (r *Records) Update(ctx context.Context, rec *record.Record) error {
	return r.update(ctx, rec, nil)
}

func (r *Records) UpdateIf(ctx context.Context, rec *record.Record, version int64) error {
	return r.update(ctx, rec, &version)
}

func (r *Records) update(ctx context.Context, rec *record.Record, version *int64) error {
	t, err := r.table(rec.Table)
	if err != nil {
		return err
	}

	cols, exprs, args := r.assignments(t, rec)
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = " + exprs[i]
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.Name, strings.Join(sets, ", "))
	args = append(args, rec.ID)
	if version != nil {
		query += " AND sync_version = ?"
		args = append(args, *version)
	}

	res, err := r.store.Execute(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s/%d: %w", t.Name, rec.ID, err)
	}
	if res.RowsAffected == 0 {
		return r.missing(ctx, t, rec.ID, version != nil)
	}
	return nil
}

func (r *Records) UpdateStatus(ctx context.Context, table string, id, version int64, status record.SyncStatus, lastSyncAt *time.Time) error {
	t, err := r.table(table)
	if err != nil {
		return err
	}
	query := "UPDATE " + t.Name + " SET sync_status = ?, last_sync_at = ? WHERE id = ? AND sync_version = ?"
	res, err := r.store.Execute(ctx, query, string(status), r.codec.value(lastSyncAt), id, version)
	if err != nil {
		return fmt.Errorf("update status %s/%d: %w", t.Name, id, err)
	}
	if res.RowsAffected == 0 {
		return r.missing(ctx, t, id, true)
	}
	return nil
}

// missing объясняет запись, не затронувшую ни одной строки: строки нет
// или, при проверке версии, её успели изменить.
func (r *Records) missing(ctx context.Context, t schema.Table, id int64, versioned bool) error {
	if versioned {
		rows, err := r.store.Query(ctx, "SELECT id FROM "+t.Name+" WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("check %s/%d: %w", t.Name, id, err)
		}
		if len(rows) > 0 {
			return fmt.Errorf("%s/%d: %w", t.Name, id, record.ErrStale)
		}
	}
	return fmt.Errorf("%s/%d: %w", t.Name, id, record.ErrNotFound)
}

func (r *Records) table(name string) (schema.Table, error) {
	t, ok := r.registry.Table(name)
	if !ok {
		return schema.Table{}, fmt.Errorf("%w: %s", record.ErrUnknownTable, name)
	}
	return t, nil
}

func (r *Records) query(ctx context.Context, t schema.Table, query string, args ...any) ([]*record.Record, error) {
	rows, err := r.store.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.Name, err)
	}
	out := make([]*record.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := scanRecord(t, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// assignments колонки записи строки с их выражениями и аргументами.
// С часами хранилища last_sync_at вычисляет само хранилище.
func (r *Records) assignments(t schema.Table, rec *record.Record) ([]string, []string, []any) {
	cols := append(t.ColumnNames(), schema.MetaColumns...)
	values := r.args(t, rec)
	exprs := make([]string, len(cols))
	args := make([]any, 0, len(values))
	for i, c := range cols {
		if r.serverClock && c == schema.ColumnLastSyncAt {
			exprs[i] = r.codec.dialect.Now
			continue
		}
		exprs[i] = "?"
		args = append(args, values[i])
	}
	return cols, exprs, args
}

// args значения бизнес-колонок и служебных колонок в порядке MetaColumns.
func (r *Records) args(t schema.Table, rec *record.Record) []any {
	args := make([]any, 0, len(t.Columns)+len(schema.MetaColumns))
	for _, c := range t.Columns {
		args = append(args, r.codec.value(rec.Fields[c.Name]))
	}
	m := rec.Meta
	return append(args,
		r.codec.value(m.CreatedAt),
		r.codec.value(m.UpdatedAt),
		r.codec.value(m.DeletedAt),
		m.LastModifiedBy,
		string(m.SyncStatus),
		m.SyncVersion,
		r.codec.value(m.LastSyncAt),
	)
}

func selectFrom(t schema.Table) string {
	cols := append([]string{schema.ColumnID}, t.ColumnNames()...)
	cols = append(cols, schema.MetaColumns...)
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + t.Name
}

func scanRecord(t schema.Table, row storage.Row) (*record.Record, error) {
	id, err := asInt64(row[schema.ColumnID])
	if err != nil {
		return nil, fmt.Errorf("%s: id: %w", t.Name, err)
	}

	fields := make(record.Fields, len(t.Columns))
	for _, c := range t.Columns {
		v, err := c.Normalize(row[c.Name])
		if err != nil {
			return nil, fmt.Errorf("%s/%d: %w", t.Name, id, err)
		}
		fields[c.Name] = v
	}

	rec := &record.Record{ID: id, Table: t.Name, Fields: fields}
	if rec.Meta.CreatedAt, err = asTime(row[schema.ColumnCreatedAt]); err != nil {
		return nil, fmt.Errorf("%s/%d: created_at: %w", t.Name, id, err)
	}
	if rec.Meta.UpdatedAt, err = asTime(row[schema.ColumnUpdatedAt]); err != nil {
		return nil, fmt.Errorf("%s/%d: updated_at: %w", t.Name, id, err)
	}
	if rec.Meta.DeletedAt, err = asOptTime(row[schema.ColumnDeletedAt]); err != nil {
		return nil, fmt.Errorf("%s/%d: deleted_at: %w", t.Name, id, err)
	}
	if rec.Meta.LastSyncAt, err = asOptTime(row[schema.ColumnLastSyncAt]); err != nil {
		return nil, fmt.Errorf("%s/%d: last_sync_at: %w", t.Name, id, err)
	}
	if rec.Meta.SyncVersion, err = asInt64(row[schema.ColumnSyncVersion]); err != nil {
		return nil, fmt.Errorf("%s/%d: sync_version: %w", t.Name, id, err)
	}
	rec.Meta.LastModifiedBy = asString(row[schema.ColumnLastModifiedBy])
	if rec.Meta.SyncStatus, err = record.ParseSyncStatus(asString(row[schema.ColumnSyncStatus])); err != nil {
		return nil, fmt.Errorf("%s/%d: %w", t.Name, id, err)
	}
	return rec, nil
}
