package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clubsync/internal/domain/audit"
	"clubsync/internal/domain/record"
	"clubsync/internal/domain/schema"
)

// pushTable отправляет локальные строки в статусе PENDING.
func (m *Manager) pushTable(ctx context.Context, s *session, t schema.Table, tr *TableResult) error {
	rows, err := m.local.Records.Pending(ctx, t.Name)
	if err != nil {
		return fmt.Errorf("load pending rows: %w", err)
	}
	m.log.Debug("pushing table", "session_id", s.id, "table", t.Name, "rows", len(rows))

	for _, local := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		op, err := m.pushRecord(ctx, s, t, tr, local)
		if err != nil {
			tr.Failed++
			var remoteID *int64
			if id, ok := s.maps.For(t.Name).Remote(local.ID); ok {
				remoteID = &id
			}
			m.log.Warn("failed to push row", "session_id", s.id, "table", t.Name, "local_id", local.ID, "error", err)
			m.recordFailure(ctx, s, t.Name, local.ID, remoteID, op, audit.DirectionPush, err.Error())
		}
	}
	return nil
}

func (m *Manager) pushRecord(ctx context.Context, s *session, t schema.Table, tr *TableResult, local *record.Record) (audit.Operation, error) {
	remoteID, mapped := s.maps.For(t.Name).Remote(local.ID)
	op := audit.OpUpdate
	if !mapped {
		op = audit.OpInsert
	}

	// создана и удалена без синхронизации: удалённой стороне нечего удалять
	if !mapped && local.IsDeleted() {
		now := m.now()
		if _, err := m.settle(ctx, s, t, local, record.StatusSynced, &now); err != nil {
			return op, fmt.Errorf("mark local tombstone %d synced: %w", local.ID, err)
		}
		tr.Skipped++
		return op, nil
	}

	fields, missing := translate(s.maps, t, local.Fields, outward)
	if len(missing) > 0 {
		refs := strings.Join(missing, ", ")
		if m.opts.StrictForeignKeys {
			tr.Deferred++
			m.log.Warn("push deferred until references are synced",
				"session_id", s.id, "table", t.Name, "local_id", local.ID, "references", refs)
			var rid *int64
			if mapped {
				rid = &remoteID
			}
			m.recordFailure(ctx, s, t.Name, local.ID, rid, op, audit.DirectionPush, "deferred: unresolved reference "+refs)
			return op, nil
		}
		m.log.Warn("pushing unresolved reference untranslated",
			"session_id", s.id, "table", t.Name, "local_id", local.ID, "references", refs)
	}
	hash := record.Hash(fields)

	if !mapped {
		return op, m.insertRemote(ctx, s, t, tr, local, fields, hash, "")
	}

	remote, err := m.remote.Records.Get(ctx, t.Name, remoteID)
	if errors.Is(err, record.ErrNotFound) {
		m.log.Warn("mapped remote row is missing", "table", t.Name, "local_id", local.ID, "remote_id", remoteID)
		return audit.OpInsert, m.insertRemote(ctx, s, t, tr, local, fields, hash, "re-inserted missing remote row")
	}
	if err != nil {
		return op, fmt.Errorf("load remote row %d: %w", remoteID, err)
	}

	md, err := m.metadata(ctx, t.Name, local.ID)
	if err != nil {
		return op, err
	}

	c := DetectWithHashes(local, remote, hash, remote.Hash(), md.Baseline())
	res := Resolve(local, remote, c, m.opts.Strategy)
	conflict := c.Type != NoConflict

	m.log.Debug("pending row compared",
		"table", t.Name, "local_id", local.ID, "type", c.Type, "action", res.Action, "reason", res.Reason)

	switch res.Action {
	case TakeLocal:
		if conflict {
			tr.Conflicts++
			tr.Resolved++
		}
		return op, m.updateRemote(ctx, s, t, tr, local, remote, fields, hash, res.Reason)
	case TakeRemote:
		if conflict {
			tr.Conflicts++
			tr.Resolved++
		}
		return op, m.applyRemote(ctx, s, PhasePush, t, tr, local, remote, res.Reason)
	case ManualResolution:
		tr.Conflicts++
		tr.Unresolved++
		return op, m.markConflict(ctx, s, t, local, remote.ID, md, c, res, audit.DirectionPush)
	default:
		return op, m.markSynced(ctx, s, t, local, remote.ID, hash, audit.DirectionPush)
	}
}

// insertRemote создаёт удалённую строку и связывает её с локальной.
// Метаданные пишутся раньше статуса строки: при сбое между ними
// следующий сеанс найдёт соответствие и не создаст дубликат.
func (m *Manager) insertRemote(ctx context.Context, s *session, t schema.Table, tr *TableResult, local *record.Record, fields record.Fields, hash, note string) error {
	now := m.now()
	out := &record.Record{Table: t.Name, Fields: fields, Meta: local.Meta}
	out.Meta.SyncStatus = record.StatusSynced
	out.Meta.LastSyncAt = &now

	remoteID, err := m.remote.Records.Insert(ctx, out)
	if err != nil {
		return fmt.Errorf("insert remote row: %w", err)
	}
	s.maps.For(t.Name).Put(local.ID, remoteID)

	if err := m.saveMetadata(ctx, s, &Metadata{
		Table:              t.Name,
		LocalID:            local.ID,
		RemoteID:           &remoteID,
		SyncVersion:        local.Meta.SyncVersion,
		LocalHash:          hash,
		RemoteHash:         hash,
		LastSyncAt:         &now,
		SyncStatus:         record.StatusSynced,
		ConflictResolution: note,
	}); err != nil {
		return err
	}

	if _, err := m.settle(ctx, s, t, local, record.StatusSynced, &now); err != nil {
		return fmt.Errorf("mark local row %d synced: %w", local.ID, err)
	}

	tr.Pushed++
	m.recordSuccess(ctx, s, t.Name, local.ID, remoteID, audit.OpInsert, audit.DirectionPush)
	m.log.Debug("row pushed", "table", t.Name, "local_id", local.ID, "remote_id", remoteID)
	return nil
}

// updateRemote перезаписывает удалённую строку локальной версией.
// Обе стороны получают большую из версий.
func (m *Manager) updateRemote(ctx context.Context, s *session, t schema.Table, tr *TableResult, local, remote *record.Record, fields record.Fields, hash, note string) error {
	now := m.now()
	version := max(local.Meta.SyncVersion, remote.Meta.SyncVersion)

	out := &record.Record{ID: remote.ID, Table: t.Name, Fields: fields, Meta: local.Meta}
	out.Meta.CreatedAt = remote.Meta.CreatedAt
	out.Meta.SyncVersion = version
	out.Meta.SyncStatus = record.StatusSynced
	out.Meta.LastSyncAt = &now

	if err := m.remote.Records.Update(ctx, out); err != nil {
		return fmt.Errorf("update remote row %d: %w", remote.ID, err)
	}

	remoteID := remote.ID
	if err := m.saveMetadata(ctx, s, &Metadata{
		Table:              t.Name,
		LocalID:            local.ID,
		RemoteID:           &remoteID,
		SyncVersion:        version,
		LocalHash:          hash,
		RemoteHash:         hash,
		LastSyncAt:         &now,
		SyncStatus:         record.StatusSynced,
		ConflictResolution: note,
	}); err != nil {
		return err
	}

	if version != local.Meta.SyncVersion {
		next := local.Clone()
		next.Meta.SyncVersion = version
		next.Meta.SyncStatus = record.StatusSynced
		next.Meta.LastSyncAt = &now
		if _, err := m.overwrite(ctx, s, t, next, local.Meta.SyncVersion); err != nil {
			return fmt.Errorf("update local row %d: %w", local.ID, err)
		}
	} else if _, err := m.settle(ctx, s, t, local, record.StatusSynced, &now); err != nil {
		return fmt.Errorf("mark local row %d synced: %w", local.ID, err)
	}

	tr.Pushed++
	m.recordSuccess(ctx, s, t.Name, local.ID, remote.ID, audit.OpUpdate, audit.DirectionPush)
	return nil
}
