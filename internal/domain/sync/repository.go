package sync

import (
	"context"
	"time"

	"clubsync/internal/domain/audit"
	"clubsync/internal/domain/record"
)

// RecordRepository строки синхронизируемых таблиц одной стороны
type RecordRepository interface {
	Get(ctx context.Context, table string, id int64) (*record.Record, error)
	// ChangedSince возвращает строки, включая надгробия, изменённые не раньше since,
	// в порядке изменения. since nil означает все строки.
	ChangedSince(ctx context.Context, table string, since *time.Time) ([]*record.Record, error)
	Pending(ctx context.Context, table string) ([]*record.Record, error)
	Insert(ctx context.Context, rec *record.Record) (int64, error)
	Update(ctx context.Context, rec *record.Record) error
	// UpdateIf перезаписывает строку, только если её sync_version всё ещё
	// равна version. Иначе возвращает record.ErrStale.
	UpdateIf(ctx context.Context, rec *record.Record, version int64) error
	// UpdateStatus меняет статус строки с той же проверкой версии.
	UpdateStatus(ctx context.Context, table string, id, version int64, status record.SyncStatus, lastSyncAt *time.Time) error
}

// MetadataRepository локальная таблица sync_metadata
type MetadataRepository interface {
	Get(ctx context.Context, table string, localID int64) (*Metadata, error)
	Mappings(ctx context.Context, table string) ([]Mapping, error)
	Upsert(ctx context.Context, md *Metadata) error
	ListByStatus(ctx context.Context, status record.SyncStatus) ([]*Metadata, error)
}

// MirrorRepository зеркало метаданных на удалённой стороне
type MirrorRepository interface {
	Upsert(ctx context.Context, md *Metadata) error
}

// CheckpointRepository отметки последнего pull по таблицам
type CheckpointRepository interface {
	LastPulled(ctx context.Context, table string) (*time.Time, error)
	SetLastPulled(ctx context.Context, table string, at time.Time) error
}

// AuditLog журнал операций
type AuditLog interface {
	Append(ctx context.Context, e audit.Entry) error
}

// Availability проверка доступности удалённой стороны
type Availability interface {
	Available(ctx context.Context) bool
}

// Local зависимости локальной стороны
type Local struct {
	Records     RecordRepository
	Metadata    MetadataRepository
	Checkpoints CheckpointRepository
}

// Remote зависимости удалённой стороны. Metadata может быть nil.
type Remote struct {
	Records  RecordRepository
	Metadata MirrorRepository
	Health   Availability
}
