package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clubsync/internal/domain/audit"
	"clubsync/internal/domain/record"
	"clubsync/internal/domain/schema"
)

// pullTable применяет удалённые изменения таблицы, начиная с отметки
// прошлого pull за вычетом CheckpointOverlap. Повторно прочитанные строки
// с тем же отпечатком ничего не меняют. Отметка продвигается только до
// первой неудачной строки, чтобы следующий сеанс повторил её.
func (m *Manager) pullTable(ctx context.Context, s *session, t schema.Table, tr *TableResult) error {
	since, err := m.local.Checkpoints.LastPulled(ctx, t.Name)
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}

	if since != nil && m.opts.CheckpointOverlap > 0 {
		from := since.Add(-m.opts.CheckpointOverlap)
		since = &from
	}

	rows, err := m.remote.Records.ChangedSince(ctx, t.Name, since)
	if err != nil {
		return fmt.Errorf("fetch remote changes: %w", err)
	}
	m.log.Debug("pulling table", "session_id", s.id, "table", t.Name, "rows", len(rows), "since", since)

	var checkpoint *time.Time
	blocked := false

	for _, remote := range rows {
		if err := ctx.Err(); err != nil {
			m.saveCheckpoint(context.WithoutCancel(ctx), t.Name, checkpoint)
			return err
		}

		op, err := m.pullRecord(ctx, s, t, tr, remote)
		if err != nil {
			tr.Failed++
			blocked = true
			remoteID := remote.ID
			localID, _ := s.maps.For(t.Name).Local(remote.ID)
			m.log.Warn("failed to pull row", "session_id", s.id, "table", t.Name, "remote_id", remote.ID, "error", err)
			m.recordFailure(ctx, s, t.Name, localID, &remoteID, op, audit.DirectionPull, err.Error())
			continue
		}

		if !blocked {
			stamp := replicationStamp(remote)
			checkpoint = &stamp
		}
	}

	if checkpoint != nil {
		if err := m.local.Checkpoints.SetLastPulled(ctx, t.Name, *checkpoint); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}
	return nil
}

func (m *Manager) saveCheckpoint(ctx context.Context, table string, at *time.Time) {
	if at == nil {
		return
	}
	if err := m.local.Checkpoints.SetLastPulled(ctx, table, *at); err != nil {
		m.log.Warn("failed to save checkpoint", "table", table, "error", err)
	}
}

func (m *Manager) pullRecord(ctx context.Context, s *session, t schema.Table, tr *TableResult, remote *record.Record) (audit.Operation, error) {
	localID, mapped := s.maps.For(t.Name).Local(remote.ID)

	if !mapped {
		if remote.IsDeleted() {
			tr.Skipped++
			return audit.OpInsert, nil
		}
		return audit.OpInsert, m.applyRemote(ctx, s, PhasePull, t, tr, nil, remote, "")
	}

	local, err := m.local.Records.Get(ctx, t.Name, localID)
	if errors.Is(err, record.ErrNotFound) {
		m.log.Warn("mapped local row is missing", "table", t.Name, "local_id", localID, "remote_id", remote.ID)
		if remote.IsDeleted() {
			tr.Skipped++
			return audit.OpInsert, nil
		}
		return audit.OpInsert, m.applyRemote(ctx, s, PhasePull, t, tr, nil, remote, "re-inserted missing local row")
	}
	if err != nil {
		return audit.OpUpdate, fmt.Errorf("load local row %d: %w", localID, err)
	}

	switch local.Meta.SyncStatus {
	case record.StatusConflict:
		tr.Skipped++
		return audit.OpUpdate, nil
	case record.StatusPending:
		return audit.OpUpdate, m.pullOverPending(ctx, s, t, tr, local, remote)
	}

	localFields, _ := translate(s.maps, t, local.Fields, outward)
	if local.IsDeleted() == remote.IsDeleted() && record.Hash(localFields) == remote.Hash() {
		return audit.OpUpdate, nil
	}

	return audit.OpUpdate, m.applyRemote(ctx, s, PhasePull, t, tr, local, remote, "")
}

// pullOverPending решает судьбу удалённого изменения строки, у которой
// есть неотправленное локальное изменение. TAKE_LOCAL оставляет строку
// для push, который повторит сравнение.
func (m *Manager) pullOverPending(ctx context.Context, s *session, t schema.Table, tr *TableResult, local, remote *record.Record) error {
	md, err := m.metadata(ctx, t.Name, local.ID)
	if err != nil {
		return err
	}

	localFields, _ := translate(s.maps, t, local.Fields, outward)
	c := DetectWithHashes(local, remote, record.Hash(localFields), remote.Hash(), md.Baseline())
	res := Resolve(local, remote, c, m.opts.Strategy)
	conflict := c.Type != NoConflict

	m.log.Debug("pending row changed remotely",
		"table", t.Name, "local_id", local.ID, "type", c.Type, "action", res.Action, "reason", res.Reason)

	switch res.Action {
	case TakeLocal:
		return nil
	case TakeRemote:
		if conflict {
			tr.Conflicts++
			tr.Resolved++
		}
		return m.applyRemote(ctx, s, PhasePull, t, tr, local, remote, res.Reason)
	case ManualResolution:
		tr.Conflicts++
		tr.Unresolved++
		return m.markConflict(ctx, s, t, local, remote.ID, md, c, res, audit.DirectionPull)
	default:
		return m.markSynced(ctx, s, t, local, remote.ID, c.RemoteHash, audit.DirectionPull)
	}
}
