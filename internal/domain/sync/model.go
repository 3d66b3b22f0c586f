package sync

import (
	"time"

	"clubsync/internal/domain/record"
)

// Metadata состояние синхронизации одной локальной строки. Хранит
// соответствие идентификаторов и последний согласованный отпечаток.
type Metadata struct {
	Table              string            `json:"table"`
	LocalID            int64             `json:"local_id"`
	RemoteID           *int64            `json:"remote_id,omitempty"`
	SyncVersion        int64             `json:"sync_version"`
	LocalHash          string            `json:"local_hash"`
	RemoteHash         string            `json:"remote_hash"`
	LastSyncAt         *time.Time        `json:"last_sync_at,omitempty"`
	SyncStatus         record.SyncStatus `json:"sync_status"`
	ConflictResolution string            `json:"conflict_resolution,omitempty"`
	DeviceID           string            `json:"device_id"`
}

// Baseline отпечаток последнего согласованного состояния.
func (m *Metadata) Baseline() string {
	if m == nil {
		return ""
	}
	return m.RemoteHash
}

// Mapping пара идентификаторов одной строки
type Mapping struct {
	LocalID  int64
	RemoteID int64
}

type ConflictType string

const (
	NoConflict           ConflictType = "NO_CONFLICT"
	ModifyModifyConflict ConflictType = "MODIFY_MODIFY_CONFLICT"
	DeleteModifyConflict ConflictType = "DELETE_MODIFY_CONFLICT"
)

// Phase фаза сеанса
type Phase string

const (
	PhaseLoad Phase = "load"
	PhasePull Phase = "pull"
	PhasePush Phase = "push"
)

// TableResult итоги сеанса по одной таблице
type TableResult struct {
	Table      string `json:"table"`
	Pulled     int    `json:"pulled"`
	Pushed     int    `json:"pushed"`
	// Refreshed строки, которые в фазе push получили удалённую версию
	Refreshed  int    `json:"refreshed"`
	Conflicts  int    `json:"conflicts"`
	Resolved   int    `json:"resolved"`
	Unresolved int    `json:"unresolved"`
	Deferred   int    `json:"deferred"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
}

// TableError ошибка, прервавшая фазу для одной таблицы
type TableError struct {
	Table string `json:"table"`
	Phase Phase  `json:"phase"`
	Err   error  `json:"-"`
}

func (e TableError) Error() string {
	return string(e.Phase) + " " + e.Table + ": " + e.Err.Error()
}

func (e TableError) Unwrap() error {
	return e.Err
}

// Result итоги одного сеанса
type Result struct {
	SessionID  string         `json:"session_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Pulled     int            `json:"pulled"`
	Pushed     int            `json:"pushed"`
	Refreshed  int            `json:"refreshed"`
	Conflicts  int            `json:"conflicts"`
	Resolved   int            `json:"resolved"`
	Unresolved int            `json:"unresolved"`
	Deferred   int            `json:"deferred"`
	Failed     int            `json:"failed"`
	Tables     []*TableResult `json:"tables"`
	Errors     []TableError   `json:"-"`
}

// Table возвращает итоги по таблице, создавая их при первом обращении.
func (r *Result) Table(name string) *TableResult {
	for _, t := range r.Tables {
		if t.Table == name {
			return t
		}
	}
	t := &TableResult{Table: name}
	r.Tables = append(r.Tables, t)
	return t
}

// OK сообщает, прошёл ли сеанс без ошибок таблиц.
func (r *Result) OK() bool {
	return len(r.Errors) == 0
}

// Duration длительность сеанса.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
