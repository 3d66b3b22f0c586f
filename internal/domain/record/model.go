// Package record содержит обобщённую модель синхронизируемой строки:
// карта бизнес-полей и служебные метаданные синхронизации.
package record

import (
	"time"

	"clubsync/internal/domain/schema"
)

// Fields бизнес-колонки строки без id и служебных колонок
type Fields map[string]any

// Clone возвращает поверхностную копию карты.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String возвращает строковое значение поля.
func (f Fields) String(name string) (string, bool) {
	v, ok := f[name].(string)
	return v, ok
}

// Meta служебные колонки синхронизации
type Meta struct {
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	LastModifiedBy string     `json:"last_modified_by"`
	SyncStatus     SyncStatus `json:"sync_status"`
	SyncVersion    int64      `json:"sync_version"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
}

// Record строка любой синхронизируемой таблицы
type Record struct {
	ID     int64  `json:"id"`
	Table  string `json:"table"`
	Fields Fields `json:"fields"`
	Meta   Meta   `json:"meta"`
}

// New создаёт новую локальную запись: версия 1, статус PENDING.
func New(table string, fields Fields, device string, now time.Time) *Record {
	now = schema.NormalizeTime(now)
	return &Record{
		Table:  table,
		Fields: fields.Clone(),
		Meta: Meta{
			CreatedAt:      now,
			UpdatedAt:      now,
			LastModifiedBy: device,
			SyncStatus:     StatusPending,
			SyncVersion:    1,
		},
	}
}

// Touch фиксирует локальное изменение записи.
func (r *Record) Touch(device string, now time.Time) {
	r.Meta.UpdatedAt = schema.NormalizeTime(now)
	r.Meta.LastModifiedBy = device
	r.Meta.SyncStatus = StatusPending
	r.Meta.SyncVersion++
}

// Apply обновляет переданные поля и фиксирует изменение.
func (r *Record) Apply(fields Fields, device string, now time.Time) {
	if r.Fields == nil {
		r.Fields = make(Fields, len(fields))
	}
	for k, v := range fields {
		r.Fields[k] = v
	}
	r.Touch(device, now)
}

// MarkDeleted превращает запись в надгробие. Данные остаются до репликации удаления.
func (r *Record) MarkDeleted(device string, now time.Time) {
	r.Touch(device, now)
	deletedAt := r.Meta.UpdatedAt
	r.Meta.DeletedAt = &deletedAt
}

// IsDeleted сообщает, является ли запись надгробием.
func (r *Record) IsDeleted() bool {
	return r != nil && r.Meta.DeletedAt != nil
}

// ChangedAt время последнего события записи: удаления для надгробия, иначе изменения.
func (r *Record) ChangedAt() time.Time {
	if r.Meta.DeletedAt != nil {
		return *r.Meta.DeletedAt
	}
	return r.Meta.UpdatedAt
}

// Hash отпечаток бизнес-полей записи.
func (r *Record) Hash() string {
	if r == nil {
		return ""
	}
	return Hash(r.Fields)
}

// Clone возвращает независимую копию записи.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Fields = r.Fields.Clone()
	if r.Meta.DeletedAt != nil {
		t := *r.Meta.DeletedAt
		c.Meta.DeletedAt = &t
	}
	if r.Meta.LastSyncAt != nil {
		t := *r.Meta.LastSyncAt
		c.Meta.LastSyncAt = &t
	}
	return &c
}
