package sqlstore

import (
	"context"
	"fmt"

	"clubsync/internal/domain/record"
	"clubsync/internal/domain/sync"
	"clubsync/internal/infrastructure/storage"
)

const metadataColumns = "table_name, local_id, remote_id, sync_version, local_hash, remote_hash, " +
	"last_sync_at, sync_status, conflict_resolution, device_id"

// Metadata локальная таблица sync_metadata
type Metadata struct {
	store storage.Store
	codec codec
}

func NewMetadata(store storage.Store) *Metadata {
	return &Metadata{store: store, codec: codec{dialect: store.Dialect()}}
}

func (m *Metadata) Get(ctx context.Context, table string, localID int64) (*sync.Metadata, error) {
	rows, err := m.store.Query(ctx,
		"SELECT "+metadataColumns+" FROM sync_metadata WHERE table_name = ? AND local_id = ?", table, localID)
	if err != nil {
		return nil, fmt.Errorf("get sync metadata %s/%d: %w", table, localID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s/%d: %w", table, localID, sync.ErrMetadataNotFound)
	}
	return scanMetadata(rows[0])
}

func (m *Metadata) Mappings(ctx context.Context, table string) ([]sync.Mapping, error) {
	rows, err := m.store.Query(ctx,
		"SELECT local_id, remote_id FROM sync_metadata WHERE table_name = ? AND remote_id IS NOT NULL ORDER BY local_id", table)
	if err != nil {
		return nil, fmt.Errorf("load mappings for %s: %w", table, err)
	}
	out := make([]sync.Mapping, 0, len(rows))
	for _, row := range rows {
		local, err := asInt64(row["local_id"])
		if err != nil {
			return nil, fmt.Errorf("%s mapping: local_id: %w", table, err)
		}
		remote, err := asInt64(row["remote_id"])
		if err != nil {
			return nil, fmt.Errorf("%s mapping: remote_id: %w", table, err)
		}
		out = append(out, sync.Mapping{LocalID: local, RemoteID: remote})
	}
	return out, nil
}

// Upsert сохраняет метаданные строки. Удалённый id может принадлежать
// только одной локальной строке, прежняя связь снимается.
func (m *Metadata) Upsert(ctx context.Context, md *sync.Metadata) error {
	if md.RemoteID != nil {
		if _, err := m.store.Execute(ctx,
			"UPDATE sync_metadata SET remote_id = NULL WHERE table_name = ? AND remote_id = ? AND local_id <> ?",
			md.Table, *md.RemoteID, md.LocalID); err != nil {
			return fmt.Errorf("release remote id %s/%d: %w", md.Table, *md.RemoteID, err)
		}
	}

	query := "INSERT INTO sync_metadata (" + metadataColumns + ") VALUES (" + placeholders(10) + ")" +
		" ON CONFLICT (table_name, local_id) DO UPDATE SET" +
		" remote_id = excluded.remote_id, sync_version = excluded.sync_version," +
		" local_hash = excluded.local_hash, remote_hash = excluded.remote_hash," +
		" last_sync_at = excluded.last_sync_at, sync_status = excluded.sync_status," +
		" conflict_resolution = excluded.conflict_resolution, device_id = excluded.device_id"

	_, err := m.store.Execute(ctx, query,
		md.Table, md.LocalID, m.codec.value(md.RemoteID), md.SyncVersion, md.LocalHash, md.RemoteHash,
		m.codec.value(md.LastSyncAt), string(md.SyncStatus), md.ConflictResolution, md.DeviceID)
	if err != nil {
		return fmt.Errorf("upsert sync metadata %s/%d: %w", md.Table, md.LocalID, err)
	}
	return nil
}

func (m *Metadata) ListByStatus(ctx context.Context, status record.SyncStatus) ([]*sync.Metadata, error) {
	rows, err := m.store.Query(ctx,
		"SELECT "+metadataColumns+" FROM sync_metadata WHERE sync_status = ? ORDER BY table_name, local_id", string(status))
	if err != nil {
		return nil, fmt.Errorf("list sync metadata by status %s: %w", status, err)
	}
	out := make([]*sync.Metadata, 0, len(rows))
	for _, row := range rows {
		md, err := scanMetadata(row)
		if err != nil {
			return nil, err
		}
		out = append(out, md)
	}
	return out, nil
}

// Mirror зеркало метаданных на удалённой стороне, по строке на устройство
type Mirror struct {
	store storage.Store
	codec codec
}

func NewMirror(store storage.Store) *Mirror {
	return &Mirror{store: store, codec: codec{dialect: store.Dialect()}}
}

// Upsert пропускает метаданные без удалённого id: зеркалу не к чему их привязать.
func (m *Mirror) Upsert(ctx context.Context, md *sync.Metadata) error {
	if md.RemoteID == nil {
		return nil
	}
	query := "INSERT INTO sync_metadata_mirror (" + metadataColumns + ") VALUES (" + placeholders(10) + ")" +
		" ON CONFLICT (table_name, remote_id, device_id) DO UPDATE SET" +
		" local_id = excluded.local_id, sync_version = excluded.sync_version," +
		" local_hash = excluded.local_hash, remote_hash = excluded.remote_hash," +
		" last_sync_at = excluded.last_sync_at, sync_status = excluded.sync_status," +
		" conflict_resolution = excluded.conflict_resolution"

	_, err := m.store.Execute(ctx, query,
		md.Table, md.LocalID, *md.RemoteID, md.SyncVersion, md.LocalHash, md.RemoteHash,
		m.codec.value(md.LastSyncAt), string(md.SyncStatus), md.ConflictResolution, md.DeviceID)
	if err != nil {
		return fmt.Errorf("mirror sync metadata %s/%d: %w", md.Table, *md.RemoteID, err)
	}
	return nil
}

func scanMetadata(row storage.Row) (*sync.Metadata, error) {
	md := &sync.Metadata{
		Table:              asString(row["table_name"]),
		LocalHash:          asString(row["local_hash"]),
		RemoteHash:         asString(row["remote_hash"]),
		ConflictResolution: asString(row["conflict_resolution"]),
		DeviceID:           asString(row["device_id"]),
	}
	var err error
	if md.LocalID, err = asInt64(row["local_id"]); err != nil {
		return nil, fmt.Errorf("sync metadata: local_id: %w", err)
	}
	if md.RemoteID, err = asOptInt64(row["remote_id"]); err != nil {
		return nil, fmt.Errorf("sync metadata %s/%d: remote_id: %w", md.Table, md.LocalID, err)
	}
	if md.SyncVersion, err = asInt64(row["sync_version"]); err != nil {
		return nil, fmt.Errorf("sync metadata %s/%d: sync_version: %w", md.Table, md.LocalID, err)
	}
	if md.LastSyncAt, err = asOptTime(row["last_sync_at"]); err != nil {
		return nil, fmt.Errorf("sync metadata %s/%d: last_sync_at: %w", md.Table, md.LocalID, err)
	}
	if md.SyncStatus, err = record.ParseSyncStatus(asString(row["sync_status"])); err != nil {
		return nil, fmt.Errorf("sync metadata %s/%d: %w", md.Table, md.LocalID, err)
	}
	return md, nil
}
