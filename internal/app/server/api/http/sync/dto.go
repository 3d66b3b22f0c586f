package sync

import (
	"time"

	"clubsync/internal/app/client"
	"clubsync/internal/domain/sync"
)

type startSyncInput struct{}

type startSyncOutput struct {
	Body StartSyncResponse
}

type StartSyncResponse struct {
	Status string `json:"status" example:"started"`
}

type getStatusInput struct{}

type getStatusOutput struct {
	Body StatusResponse
}

// StatusResponse состояние синхронизации устройства
type StatusResponse struct {
	Syncing bool              `json:"syncing"`
	Last    *LastSession      `json:"last,omitempty"`
	Stats   *client.SyncStats `json:"stats"`
}

// LastSession итог последнего завершённого сеанса
type LastSession struct {
	At     time.Time    `json:"at"`
	OK     bool         `json:"ok"`
	Error  string       `json:"error,omitempty"`
	Result *sync.Result `json:"result,omitempty"`
	Errors []string     `json:"errors,omitempty"`
}

type getConflictsInput struct{}

type getConflictsOutput struct {
	Body ConflictsResponse
}

type ConflictsResponse struct {
	Conflicts []*sync.Metadata `json:"conflicts"`
}

type resolveConflictInput struct {
	Table string `path:"table" doc:"Synced table name"`
	ID    int64  `path:"id" doc:"Local row id"`
	Body  ResolveRequest
}

type ResolveRequest struct {
	Action string `json:"action" example:"local" doc:"local, remote, TAKE_LOCAL or TAKE_REMOTE"`
}

type resolveConflictOutput struct {
	Body ResolveResponse
}

type ResolveResponse struct {
	Table  string      `json:"table"`
	ID     int64       `json:"id"`
	Action sync.Action `json:"action"`
	Reason string      `json:"reason"`
}

func lastSession(out *client.Outcome) *LastSession {
	if out == nil {
		return nil
	}
	ls := &LastSession{
		At:     out.At,
		OK:     out.Err == nil,
		Result: out.Result,
	}
	if out.Err != nil {
		ls.Error = out.Err.Error()
	}
	if out.Result != nil {
		for _, e := range out.Result.Errors {
			ls.Errors = append(ls.Errors, e.Error())
		}
	}
	return ls
}
