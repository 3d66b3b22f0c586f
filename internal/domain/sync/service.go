// Package sync реализует двусторонний обмен записями между локальным
// и удалённым хранилищами: сначала pull по всем таблицам, затем push.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clubsync/internal/domain/audit"
	"clubsync/internal/domain/record"
	"clubsync/internal/domain/schema"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// Options параметры менеджера синхронизации
type Options struct {
	Strategy Strategy
	DeviceID string
	// StrictForeignKeys откладывает push записи, ссылки которой ещё не
	// получили удалённый идентификатор. Иначе ссылка уходит без перевода.
	StrictForeignKeys bool
	// CheckpointOverlap на сколько раньше отметки прошлого pull начинается
	// следующий. Покрывает строки, зафиксированные позже своей отметки.
	CheckpointOverlap time.Duration
	Clock             func() time.Time
}

// DefaultOptions возвращает параметры по умолчанию.
func DefaultOptions() Options {
	return Options{
		Strategy:          LastWriteWins,
		StrictForeignKeys: true,
		CheckpointOverlap: 5 * time.Second,
		Clock:             time.Now,
	}
}

// Servicer операции сеанса синхронизации
type Servicer interface {
	Synchronize(ctx context.Context) (*Result, error)
	Conflicts(ctx context.Context) ([]*Metadata, error)
	ResolveConflict(ctx context.Context, table string, localID int64, action Action) (*Resolution, error)
}

var _ Servicer = (*Manager)(nil)

// Manager выполняет сеансы синхронизации. Внутри сеанса таблицы и записи
// обрабатываются строго последовательно.
type Manager struct {
	local  Local
	remote Remote
	audit  AuditLog
	tables []schema.Table
	opts   Options
	log    *slog.Logger
}

// NewManager создает менеджер. Таблицы должны идти в порядке синхронизации.
func NewManager(local Local, remote Remote, auditLog AuditLog, tables []schema.Table, opts Options, log *slog.Logger) *Manager {
	if opts.Strategy == "" {
		opts.Strategy = LastWriteWins
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{
		local:  local,
		remote: remote,
		audit:  auditLog,
		tables: tables,
		opts:   opts,
		log:    log.With("component", "sync_manager"),
	}
}

// session состояние одного вызова Synchronize
type session struct {
	id     string
	maps   Mappings
	broken map[string]bool
	result *Result
}

func (m *Manager) newSession() *session {
	s := &session{
		id:     uuid.NewString(),
		maps:   make(Mappings, len(m.tables)),
		broken: make(map[string]bool),
		result: &Result{StartedAt: m.now()},
	}
	s.result.SessionID = s.id
	for _, t := range m.tables {
		s.result.Table(t.Name)
	}
	return s
}

func (s *session) finish(at time.Time) *Result {
	r := s.result
	r.FinishedAt = at
	r.Pulled, r.Pushed, r.Refreshed, r.Conflicts, r.Resolved = 0, 0, 0, 0, 0
	r.Unresolved, r.Deferred, r.Failed = 0, 0, 0
	for _, t := range r.Tables {
		r.Pulled += t.Pulled
		r.Pushed += t.Pushed
		r.Refreshed += t.Refreshed
		r.Conflicts += t.Conflicts
		r.Resolved += t.Resolved
		r.Unresolved += t.Unresolved
		r.Deferred += t.Deferred
		r.Failed += t.Failed
	}
	return r
}

type phaseFunc func(ctx context.Context, s *session, t schema.Table, tr *TableResult) error

// Synchronize выполняет один сеанс. Если удалённая сторона недоступна,
// возвращает ErrOffline, не трогая локальные данные. При отмене ctx
// возвращает частичный результат вместе с ctx.Err().
func (m *Manager) Synchronize(ctx context.Context) (*Result, error) {
	if !m.remote.Health.Available(ctx) {
		m.log.Warn("remote store unavailable, sync skipped")
		return nil, ErrOffline
	}

	s := m.newSession()
	log := m.log.With("session_id", s.id)
	log.Info("sync session started", "tables", len(m.tables), "strategy", m.opts.Strategy)

	m.loadMappings(ctx, s)

	for _, phase := range []struct {
		name Phase
		fn   phaseFunc
	}{
		{PhasePull, m.pullTable},
		{PhasePush, m.pushTable},
	} {
		for _, t := range m.tables {
			if err := m.runPhase(ctx, s, t, phase.name, phase.fn); err != nil {
				res := s.finish(m.now())
				log.Warn("sync session cancelled", "phase", phase.name, "table", t.Name, "error", err)
				return res, err
			}
		}
	}

	res := s.finish(m.now())
	log.Info("sync session finished",
		"pulled", res.Pulled,
		"pushed", res.Pushed,
		"conflicts", res.Conflicts,
		"unresolved", res.Unresolved,
		"deferred", res.Deferred,
		"failed", res.Failed,
		"table_errors", len(res.Errors),
		"duration", res.Duration(),
	)
	return res, nil
}

// runPhase изолирует ошибку таблицы: она попадает в Result.Errors,
// остальные таблицы продолжают обрабатываться. Наружу уходит только отмена.
func (m *Manager) runPhase(ctx context.Context, s *session, t schema.Table, phase Phase, fn phaseFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.broken[t.Name] {
		return nil
	}

	if err := fn(ctx, s, t, s.result.Table(t.Name)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.result.Errors = append(s.result.Errors, TableError{Table: t.Name, Phase: phase, Err: err})
		m.log.Error("table sync failed", "session_id", s.id, "table", t.Name, "phase", phase, "error", err)
	}
	return nil
}

// loadMappings читает соответствия идентификаторов всех таблиц. Таблица,
// чьи соответствия или соответствия её родителей не загрузились, в сеансе
// не участвует: без них внешние ключи были бы обнулены.
func (m *Manager) loadMappings(ctx context.Context, s *session) {
	for _, t := range m.tables {
		mappings, err := m.local.Metadata.Mappings(ctx, t.Name)
		if err != nil {
			s.broken[t.Name] = true
			s.result.Errors = append(s.result.Errors, TableError{
				Table: t.Name, Phase: PhaseLoad, Err: fmt.Errorf("load id mappings: %w", err),
			})
			continue
		}
		s.maps[t.Name] = NewIDMap(mappings...)
	}

	for _, t := range m.tables {
		if s.broken[t.Name] || !t.HasReferences() {
			continue
		}
		for _, parent := range references(t) {
			if s.broken[parent] {
				s.broken[t.Name] = true
				s.result.Errors = append(s.result.Errors, TableError{
					Table: t.Name, Phase: PhaseLoad, Err: fmt.Errorf("referenced table %s is unavailable", parent),
				})
				break
			}
		}
	}
}

func references(t schema.Table) []string {
	var out []string
	for _, fk := range t.ForeignKeys {
		out = append(out, fk.References)
	}
	for _, pk := range t.Polymorphic {
		for _, target := range pk.Targets {
			out = append(out, target)
		}
	}
	return out
}

// Conflicts возвращает записи, ожидающие ручного решения.
func (m *Manager) Conflicts(ctx context.Context) ([]*Metadata, error) {
	list, err := m.local.Metadata.ListByStatus(ctx, record.StatusConflict)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	return list, nil
}

// ResolveConflict применяет внешнее решение к записи в статусе CONFLICT.
func (m *Manager) ResolveConflict(ctx context.Context, table string, localID int64, action Action) (*Resolution, error) {
	if action != TakeLocal && action != TakeRemote {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}

	t, ok := m.table(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	if !m.remote.Health.Available(ctx) {
		return nil, ErrOffline
	}

	md, err := m.local.Metadata.Get(ctx, table, localID)
	if err != nil {
		return nil, err
	}
	local, err := m.local.Records.Get(ctx, table, localID)
	if err != nil {
		return nil, err
	}
	if local.Meta.SyncStatus != record.StatusConflict || md.RemoteID == nil {
		return nil, ErrNotInConflict
	}

	s := m.newSession()
	m.loadMappings(ctx, s)
	if s.broken[table] {
		return nil, fmt.Errorf("id mappings unavailable for %s", table)
	}

	remote, err := m.remote.Records.Get(ctx, table, *md.RemoteID)
	if err != nil && !errors.Is(err, record.ErrNotFound) {
		return nil, fmt.Errorf("load remote row %d: %w", *md.RemoteID, err)
	}
	if errors.Is(err, record.ErrNotFound) {
		remote = nil
	}

	tr := s.result.Table(table)
	res := &Resolution{Action: action, Reason: "manual: " + strings.ToLower(string(action))}

	switch action {
	case TakeLocal:
		fields, missing := translate(s.maps, t, local.Fields, outward)
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedForeign, strings.Join(missing, ", "))
		}
		hash := record.Hash(fields)
		if remote == nil {
			err = m.insertRemote(ctx, s, t, tr, local, fields, hash, res.Reason)
		} else {
			err = m.updateRemote(ctx, s, t, tr, local, remote, fields, hash, res.Reason)
		}
	case TakeRemote:
		if remote == nil {
			return nil, fmt.Errorf("remote row %d: %w", *md.RemoteID, record.ErrNotFound)
		}
		err = m.applyRemote(ctx, s, PhasePull, t, tr, local, remote, res.Reason)
		if err == nil && tr.Pulled == 0 {
			// строку правили во время решения: правка сохранена и ждёт push
			err = fmt.Errorf("%s/%d: %w", table, localID, record.ErrStale)
		}
	}
	if err != nil {
		return nil, err
	}

	m.log.Info("conflict resolved manually", "table", table, "local_id", localID, "action", action)
	return res, nil
}

// Tables возвращает синхронизируемые таблицы.
func (m *Manager) Tables() []schema.Table {
	return m.tables
}

func (m *Manager) table(name string) (schema.Table, bool) {
	for _, t := range m.tables {
		if t.Name == name {
			return t, true
		}
	}
	return schema.Table{}, false
}

func (m *Manager) now() time.Time {
	return schema.NormalizeTime(m.opts.Clock())
}

// metadata возвращает nil без ошибки, если метаданных ещё нет.
func (m *Manager) metadata(ctx context.Context, table string, localID int64) (*Metadata, error) {
	md, err := m.local.Metadata.Get(ctx, table, localID)
	if errors.Is(err, ErrMetadataNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load sync metadata: %w", err)
	}
	return md, nil
}

// saveMetadata обновляет локальные метаданные и, по возможности, зеркало.
func (m *Manager) saveMetadata(ctx context.Context, s *session, md *Metadata) error {
	md.DeviceID = m.opts.DeviceID
	if err := m.local.Metadata.Upsert(ctx, md); err != nil {
		return fmt.Errorf("save sync metadata: %w", err)
	}
	if m.remote.Metadata != nil {
		if err := m.remote.Metadata.Upsert(ctx, md); err != nil {
			m.log.Warn("failed to mirror sync metadata",
				"session_id", s.id, "table", md.Table, "local_id", md.LocalID, "error", err)
		}
	}
	return nil
}

func (m *Manager) record(ctx context.Context, s *session, e audit.Entry) {
	if m.audit == nil {
		return
	}
	e.SessionID = s.id
	e.DeviceID = m.opts.DeviceID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	if err := m.audit.Append(ctx, e); err != nil {
		m.log.Warn("failed to append audit entry", "session_id", s.id, "table", e.Table, "error", err)
	}
}

func (m *Manager) recordSuccess(ctx context.Context, s *session, table string, localID, remoteID int64, op audit.Operation, dir audit.Direction) {
	m.record(ctx, s, audit.Entry{
		Table:     table,
		RecordID:  localID,
		RemoteID:  &remoteID,
		Operation: op,
		Direction: dir,
		Status:    audit.StatusSuccess,
	})
}

func (m *Manager) recordFailure(ctx context.Context, s *session, table string, localID int64, remoteID *int64, op audit.Operation, dir audit.Direction, detail string) {
	m.record(ctx, s, audit.Entry{
		Table:     table,
		RecordID:  localID,
		RemoteID:  remoteID,
		Operation: op,
		Direction: dir,
		Status:    audit.StatusFailed,
		Error:     detail,
	})
}

// applyRemote записывает удалённую версию в локальное хранилище.
// local nil означает вставку новой строки с новым соответствием. Если
// local успели изменить после чтения, строка остаётся PENDING, а
// метаданные не трогаются: следующий push сравнит обе правки с базой.
// В фазе push применённая строка считается в Refreshed, а не в Pulled.
func (m *Manager) applyRemote(ctx context.Context, s *session, phase Phase, t schema.Table, tr *TableResult, local, remote *record.Record, note string) error {
	fields, missing := translate(s.maps, t, remote.Fields, inward)
	for _, ref := range missing {
		m.log.Warn("referenced row is not synced yet, reference cleared",
			"session_id", s.id, "table", t.Name, "remote_id", remote.ID, "reference", ref)
	}

	now := m.now()
	op := audit.OpUpdate
	rec := &record.Record{Table: t.Name, Meta: record.Meta{CreatedAt: remote.Meta.CreatedAt}}
	if local != nil {
		rec = local.Clone()
	} else {
		op = audit.OpInsert
	}
	rec.Fields = fields
	rec.Meta.UpdatedAt = remote.Meta.UpdatedAt
	rec.Meta.DeletedAt = copyTime(remote.Meta.DeletedAt)
	rec.Meta.LastModifiedBy = remote.Meta.LastModifiedBy
	rec.Meta.SyncStatus = record.StatusSynced
	rec.Meta.SyncVersion = max(rec.Meta.SyncVersion, remote.Meta.SyncVersion)
	rec.Meta.LastSyncAt = &now

	if op == audit.OpInsert {
		id, err := m.local.Records.Insert(ctx, rec)
		if err != nil {
			return fmt.Errorf("insert local row: %w", err)
		}
		rec.ID = id
		s.maps.For(t.Name).Put(id, remote.ID)
	} else {
		ok, err := m.overwrite(ctx, s, t, rec, local.Meta.SyncVersion)
		if err != nil {
			return fmt.Errorf("update local row %d: %w", rec.ID, err)
		}
		if !ok {
			return nil
		}
	}

	hash := remote.Hash()
	remoteID := remote.ID
	if err := m.saveMetadata(ctx, s, &Metadata{
		Table:              t.Name,
		LocalID:            rec.ID,
		RemoteID:           &remoteID,
		SyncVersion:        rec.Meta.SyncVersion,
		LocalHash:          hash,
		RemoteHash:         hash,
		LastSyncAt:         &now,
		SyncStatus:         record.StatusSynced,
		ConflictResolution: note,
	}); err != nil {
		return err
	}

	if phase == PhasePush {
		tr.Refreshed++
	} else {
		tr.Pulled++
	}
	m.recordSuccess(ctx, s, t.Name, rec.ID, remote.ID, op, audit.DirectionPull)
	m.log.Debug("remote row applied", "table", t.Name, "local_id", rec.ID, "remote_id", remote.ID, "op", op, "phase", phase)
	return nil
}

// markSynced фиксирует совпадение версий без записи данных.
func (m *Manager) markSynced(ctx context.Context, s *session, t schema.Table, local *record.Record, remoteID int64, hash string, dir audit.Direction) error {
	now := m.now()
	if err := m.saveMetadata(ctx, s, &Metadata{
		Table:       t.Name,
		LocalID:     local.ID,
		RemoteID:    &remoteID,
		SyncVersion: local.Meta.SyncVersion,
		LocalHash:   hash,
		RemoteHash:  hash,
		LastSyncAt:  &now,
		SyncStatus:  record.StatusSynced,
	}); err != nil {
		return err
	}
	ok, err := m.settle(ctx, s, t, local, record.StatusSynced, &now)
	if err != nil {
		return fmt.Errorf("mark local row %d synced: %w", local.ID, err)
	}
	if ok {
		m.recordSuccess(ctx, s, t.Name, local.ID, remoteID, audit.OpUpdate, dir)
	}
	return nil
}

// markConflict оставляет обе версии как есть до внешнего решения.
// Базовый отпечаток не меняется.
func (m *Manager) markConflict(ctx context.Context, s *session, t schema.Table, local *record.Record, remoteID int64, md *Metadata, c Classification, res Resolution, dir audit.Direction) error {
	now := m.now()
	ok, err := m.settle(ctx, s, t, local, record.StatusConflict, local.Meta.LastSyncAt)
	if err != nil {
		return fmt.Errorf("mark local row %d conflicted: %w", local.ID, err)
	}
	if !ok {
		return nil
	}
	var lastSync *time.Time
	if md != nil {
		lastSync = md.LastSyncAt
	}
	if err := m.saveMetadata(ctx, s, &Metadata{
		Table:              t.Name,
		LocalID:            local.ID,
		RemoteID:           &remoteID,
		SyncVersion:        local.Meta.SyncVersion,
		LocalHash:          c.LocalHash,
		RemoteHash:         md.Baseline(),
		LastSyncAt:         lastSync,
		SyncStatus:         record.StatusConflict,
		ConflictResolution: res.Reason,
	}); err != nil {
		return err
	}

	m.log.Warn("conflict left for manual resolution",
		"session_id", s.id, "table", t.Name, "local_id", local.ID, "remote_id", remoteID, "type", c.Type, "at", now)
	m.recordFailure(ctx, s, t.Name, local.ID, &remoteID, audit.OpUpdate, dir,
		fmt.Sprintf("conflict: %s: %s", c.Type, res.Reason))
	return nil
}

// settle переводит локальную строку в status, если её версия не
// изменилась с момента чтения. false означает новую локальную правку:
// строка остаётся PENDING до следующего сеанса.
func (m *Manager) settle(ctx context.Context, s *session, t schema.Table, local *record.Record, status record.SyncStatus, at *time.Time) (bool, error) {
	err := m.local.Records.UpdateStatus(ctx, t.Name, local.ID, local.Meta.SyncVersion, status, at)
	return m.stale(s, t, local.ID, err)
}

// overwrite записывает rec поверх локальной строки, прочитанной в версии seen.
func (m *Manager) overwrite(ctx context.Context, s *session, t schema.Table, rec *record.Record, seen int64) (bool, error) {
	err := m.local.Records.UpdateIf(ctx, rec, seen)
	return m.stale(s, t, rec.ID, err)
}

func (m *Manager) stale(s *session, t schema.Table, localID int64, err error) (bool, error) {
	if errors.Is(err, record.ErrStale) {
		m.log.Info("local row changed during sync, left pending",
			"session_id", s.id, "table", t.Name, "local_id", localID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// replicationStamp время, по которому строку видят отметки pull.
func replicationStamp(rec *record.Record) time.Time {
	if rec.Meta.LastSyncAt != nil {
		return *rec.Meta.LastSyncAt
	}
	return rec.Meta.UpdatedAt
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
